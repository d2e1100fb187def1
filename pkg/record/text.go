package record

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
)

// ParseRecord builds a full record from field name to text value. Every field,
// including the OID field, must be present.
func (c *Codec) ParseRecord(text map[string]string) (Record, error) {
	return c.parse(text, 0)
}

// ParseValues builds the non-OID values of a record, in schema order, as
// table.Handle.Insert expects them. The OID field must not be given.
func (c *Codec) ParseValues(text map[string]string) (Record, error) {
	oidName := c.schema.Fields[0].Name
	if _, ok := text[oidName]; ok {
		return nil, errors.Wrapf(format.ErrTypeMismatch, "oid field %q is assigned on insert", oidName)
	}
	return c.parse(text, 1)
}

func (c *Codec) parse(text map[string]string, from int) (Record, error) {
	for name := range text {
		if _, ok := c.index[name]; !ok {
			return nil, errors.Wrapf(format.ErrNotFound, "table %q has no field %q", c.schema.Name, name)
		}
	}

	fields := c.schema.Fields[from:]
	r := make(Record, len(fields))
	for i, f := range fields {
		s, ok := text[f.Name]
		if !ok {
			return nil, errors.Wrapf(format.ErrTypeMismatch, "missing value for field %q", f.Name)
		}
		v, err := codec.ParseValue(f.Type, s)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		r[i] = v
	}
	return r, nil
}

// Format renders a full record as field name to text value.
func (c *Codec) Format(r Record) map[string]string {
	out := make(map[string]string, len(r))
	for i, f := range c.schema.Fields {
		if i >= len(r) {
			break
		}
		out[f.Name] = codec.FormatValue(f.Type, r[i])
	}
	return out
}
