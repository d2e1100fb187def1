// Package record encodes whole records against a table schema.
//
// A record is the concatenation, in schema order, of one entry per field:
//
//	[len:u8][len bytes of the field's binary encoding]
//
// Fixed-width values therefore always carry their width as the length prefix;
// strings carry their byte length, which caps a string value at 255 bytes.
package record

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/schema"
)

// Record holds one value per schema field, in schema order. Values use the Go
// representation of their field type (see codec.EncodeValue).
type Record []any

// Codec encodes and decodes records of one schema.
type Codec struct {
	schema *schema.TableSchema
	index  map[string]int
}

// NewCodec binds a codec to s. The schema is cloned, so later changes to s do
// not affect the codec.
func NewCodec(s *schema.TableSchema) (*Codec, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c := &Codec{schema: s.Clone(), index: make(map[string]int, len(s.Fields))}
	for i, f := range c.schema.Fields {
		c.index[f.Name] = i
	}
	return c, nil
}

// Schema returns the schema the codec was built for.
func (c *Codec) Schema() *schema.TableSchema {
	return c.schema
}

// Encode serializes r.
func (c *Codec) Encode(r Record) ([]byte, error) {
	fields := c.schema.Fields
	if len(r) != len(fields) {
		return nil, errors.Wrapf(format.ErrTypeMismatch, "record has %d values, table %q has %d fields",
			len(r), c.schema.Name, len(fields))
	}

	buf := make([]byte, 0, c.sizeHint())
	for i, f := range fields {
		enc, err := codec.EncodeValue(f.Type, r[i])
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		if len(enc) > format.MaxEncodedValueLen {
			return nil, errors.Wrapf(format.ErrFieldTooLarge, "field %q encodes to %d bytes, limit %d",
				f.Name, len(enc), format.MaxEncodedValueLen)
		}
		buf = append(buf, byte(len(enc)))
		buf = append(buf, enc...)
	}
	return buf, nil
}

// Decode parses data into a record. Empty input or a length prefix that runs
// past the end fails with ErrTruncatedRecord; bytes left after the last field
// fail with ErrFormat.
func (c *Codec) Decode(data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, errors.Wrapf(format.ErrTruncatedRecord, "empty record for table %q", c.schema.Name)
	}

	fields := c.schema.Fields
	r := make(Record, len(fields))
	pos := 0
	for i, f := range fields {
		if pos >= len(data) {
			return nil, errors.Wrapf(format.ErrTruncatedRecord, "record ends before field %q", f.Name)
		}
		n := int(data[pos])
		pos++
		if pos+n > len(data) {
			return nil, errors.Wrapf(format.ErrTruncatedRecord, "field %q needs %d bytes at %d, record is %d bytes",
				f.Name, n, pos, len(data))
		}
		v, err := codec.DecodeValue(f.Type, data[pos:pos+n])
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		r[i] = v
		pos += n
	}
	if pos != len(data) {
		return nil, errors.Wrapf(format.ErrFormat, "%d trailing bytes after the last field", len(data)-pos)
	}
	return r, nil
}

// OID returns the record's identity as a counter value.
func (c *Codec) OID(r Record) (uint64, error) {
	if len(r) == 0 {
		return 0, errors.Wrap(format.ErrTypeMismatch, "empty record has no oid")
	}
	return codec.OIDFromValue(c.schema.Fields[0].Type, r[0])
}

// Value returns the named field of r.
func (c *Codec) Value(r Record, name string) (any, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, errors.Wrapf(format.ErrNotFound, "table %q has no field %q", c.schema.Name, name)
	}
	if i >= len(r) {
		return nil, errors.Wrapf(format.ErrTypeMismatch, "record has %d values", len(r))
	}
	return r[i], nil
}

func (c *Codec) sizeHint() int {
	n := 0
	for _, f := range c.schema.Fields {
		w := f.Type.Width()
		if w == 0 {
			w = 16
		}
		n += 1 + w
	}
	return n
}

// EncodeRecord is a one-shot Encode for callers without a Codec.
func EncodeRecord(s *schema.TableSchema, r Record) ([]byte, error) {
	c, err := NewCodec(s)
	if err != nil {
		return nil, err
	}
	return c.Encode(r)
}

// DecodeRecord is a one-shot Decode for callers without a Codec.
func DecodeRecord(s *schema.TableSchema, data []byte) (Record, error) {
	c, err := NewCodec(s)
	if err != nil {
		return nil, err
	}
	return c.Decode(data)
}
