package schema

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
)

// Header is the decoded fixed part of a table file header.
//
// Table header layout (little-endian):
//
//	name            64 bytes, right-padded with zeros
//	offset_header   u32, where the metadata ends and the data region begins
//	reserved        3 bytes
//	references      count:u8, name:64 bytes each
//	fields          count:u8, [name_len:u8 name is_fk:u8 type_len:u8 type_name]*
//	methods         count:u8, [name_len:u8 name]*
//
// The first field is the OID field.
type Header struct {
	Name         string
	OffsetHeader uint32
}

// HeaderSize returns the number of bytes MarshalHeader produces:
// fixed fields + references + fields + methods.
func (s *TableSchema) HeaderSize() int {
	n := format.TableFixedHeaderSize
	n += 1 + len(s.References)*format.MaxTableNameLen
	n++
	for _, f := range s.Fields {
		n += 1 + len(f.Name) + 1 + 1 + len(f.Type.String())
	}
	n++
	for _, m := range s.Methods {
		n += 1 + len(m)
	}
	return n
}

// MarshalHeader validates the schema and returns its header bytes. The result
// is deterministic: equal schemas produce identical bytes.
func (s *TableSchema) MarshalHeader() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	size := s.HeaderSize()
	buf := make([]byte, 0, size)

	name, err := format.PadName(s.Name, format.MaxTableNameLen)
	if err != nil {
		return nil, err
	}
	buf = append(buf, name...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = append(buf, 0, 0, 0)

	buf = append(buf, byte(len(s.References)))
	for _, r := range s.References {
		padded, err := format.PadName(r, format.MaxTableNameLen)
		if err != nil {
			return nil, err
		}
		buf = append(buf, padded...)
	}

	buf = append(buf, byte(len(s.Fields)))
	for _, f := range s.Fields {
		typeName := f.Type.String()
		buf = append(buf, byte(len(f.Name)))
		buf = append(buf, f.Name...)
		if f.IsFK {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, byte(len(typeName)))
		buf = append(buf, typeName...)
	}

	buf = append(buf, byte(len(s.Methods)))
	for _, m := range s.Methods {
		buf = append(buf, byte(len(m)))
		buf = append(buf, m...)
	}

	if len(buf) != size {
		// HeaderSize and MarshalHeader describe the same layout.
		panic("schema: header size mismatch")
	}
	return buf, nil
}

// ReadOffsetHeader returns the offset_header value from the fixed header.
func ReadOffsetHeader(data []byte) (uint32, error) {
	if len(data) < format.TableFixedHeaderSize {
		return 0, errors.Wrapf(format.ErrFormat, "table header is %d bytes, need at least %d",
			len(data), format.TableFixedHeaderSize)
	}
	return binary.LittleEndian.Uint32(data[format.TableOffsetHeaderOffset:]), nil
}

// ParseHeader decodes a header produced by MarshalHeader. data must hold at
// least offset_header bytes; anything after that is ignored. The parsed
// metadata must end exactly at offset_header.
func ParseHeader(data []byte) (*TableSchema, Header, error) {
	var hdr Header

	if len(data) < format.MinTableHeaderSize {
		return nil, hdr, errors.Wrapf(format.ErrFormat, "table header is %d bytes, need at least %d",
			len(data), format.MinTableHeaderSize)
	}

	hdr.Name = format.TrimName(data[:format.MaxTableNameLen])
	hdr.OffsetHeader = binary.LittleEndian.Uint32(data[format.TableOffsetHeaderOffset:])
	if hdr.OffsetHeader < format.MinTableHeaderSize {
		return nil, hdr, errors.Wrapf(format.ErrFormat, "offset_header %d is inside the fixed header", hdr.OffsetHeader)
	}
	if uint64(hdr.OffsetHeader) > uint64(len(data)) {
		return nil, hdr, errors.Wrapf(format.ErrFormat, "offset_header %d is past the %d header bytes",
			hdr.OffsetHeader, len(data))
	}

	r := &headerReader{data: data[:hdr.OffsetHeader], pos: format.TableFixedHeaderSize}
	s := &TableSchema{Name: hdr.Name}

	refCount, err := r.readByte("reference count")
	if err != nil {
		return nil, hdr, err
	}
	for i := 0; i < int(refCount); i++ {
		raw, err := r.readBytes(format.MaxTableNameLen, "reference name")
		if err != nil {
			return nil, hdr, err
		}
		s.References = append(s.References, format.TrimName(raw))
	}

	fieldCount, err := r.readByte("field count")
	if err != nil {
		return nil, hdr, err
	}
	for i := 0; i < int(fieldCount); i++ {
		name, err := r.readString("field name")
		if err != nil {
			return nil, hdr, err
		}
		fk, err := r.readByte("is_fk flag")
		if err != nil {
			return nil, hdr, err
		}
		typeName, err := r.readString("type name")
		if err != nil {
			return nil, hdr, err
		}
		t, err := codec.ParseType(typeName)
		if err != nil {
			return nil, hdr, errors.Wrapf(err, "field %q", name)
		}
		s.Fields = append(s.Fields, FieldDescriptor{Name: name, IsOID: i == 0, IsFK: fk != 0, Type: t})
	}

	methodCount, err := r.readByte("method count")
	if err != nil {
		return nil, hdr, err
	}
	for i := 0; i < int(methodCount); i++ {
		m, err := r.readString("method name")
		if err != nil {
			return nil, hdr, err
		}
		s.Methods = append(s.Methods, m)
	}

	if r.pos != int(hdr.OffsetHeader) {
		return nil, hdr, errors.Wrapf(format.ErrFormat, "metadata ends at %d but offset_header is %d",
			r.pos, hdr.OffsetHeader)
	}
	if err := s.Validate(); err != nil {
		return nil, hdr, errors.Mark(errors.Wrap(err, "stored schema"), format.ErrFormat)
	}
	return s, hdr, nil
}

// headerReader is a bounds-checked cursor over header bytes.
type headerReader struct {
	data []byte
	pos  int
}

func (r *headerReader) readBytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errors.Wrapf(format.ErrFormat, "%s at %d runs past the header end %d", what, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *headerReader) readByte(what string) (byte, error) {
	b, err := r.readBytes(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *headerReader) readString(what string) (string, error) {
	n, err := r.readByte(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
