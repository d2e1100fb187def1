// Package schema describes a table: its columns, the tables it references and
// the method names recorded as metadata. It also owns the table header layout,
// so that the same code sizes a new table file and parses it back.
package schema

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
)

// FieldDescriptor describes one column.
type FieldDescriptor struct {
	Name  string     `json:"name" yaml:"name"`
	IsOID bool       `json:"is_oid,omitempty" yaml:"is_oid,omitempty"`
	IsFK  bool       `json:"is_fk,omitempty" yaml:"is_fk,omitempty"`
	Type  codec.Type `json:"type" yaml:"type"`
}

// TableSchema describes a table. Build one with New and the chained helpers:
//
//	schema.New("orders").
//		OID("id", codec.TypeI64).
//		ForeignKey("customer", codec.TypeI64, "customers").
//		Field("total", codec.TypeF64)
type TableSchema struct {
	Name       string            `json:"name" yaml:"name"`
	References []string          `json:"references,omitempty" yaml:"references,omitempty"`
	Fields     []FieldDescriptor `json:"fields" yaml:"fields"`
	Methods    []string          `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// New starts a schema for the named table.
func New(name string) *TableSchema {
	return &TableSchema{Name: name}
}

// OID appends the identity field. A schema has exactly one, and it comes first.
func (s *TableSchema) OID(name string, t codec.Type) *TableSchema {
	s.Fields = append(s.Fields, FieldDescriptor{Name: name, IsOID: true, Type: t})
	return s
}

// Field appends a primitive field.
func (s *TableSchema) Field(name string, t codec.Type) *TableSchema {
	s.Fields = append(s.Fields, FieldDescriptor{Name: name, Type: t})
	return s
}

// ForeignKey appends a field holding an OID of table, and adds table to the
// references if it is not there yet.
func (s *TableSchema) ForeignKey(name string, t codec.Type, table string) *TableSchema {
	s.Fields = append(s.Fields, FieldDescriptor{Name: name, IsFK: true, Type: t})
	return s.Reference(table)
}

// Reference adds a referenced table name, keeping references a set.
func (s *TableSchema) Reference(table string) *TableSchema {
	for _, r := range s.References {
		if r == table {
			return s
		}
	}
	s.References = append(s.References, table)
	return s
}

// Method records a method name. Methods are metadata only.
func (s *TableSchema) Method(name string) *TableSchema {
	s.Methods = append(s.Methods, name)
	return s
}

// OIDField returns the identity field descriptor.
func (s *TableSchema) OIDField() FieldDescriptor {
	for _, f := range s.Fields {
		if f.IsOID {
			return f
		}
	}
	return FieldDescriptor{}
}

// FieldIndex returns the position of the named field, or -1.
func (s *TableSchema) FieldIndex(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (s *TableSchema) Clone() *TableSchema {
	c := &TableSchema{Name: s.Name}
	c.References = append(c.References, s.References...)
	c.Fields = append(c.Fields, s.Fields...)
	c.Methods = append(c.Methods, s.Methods...)
	return c
}

// ValidateTableName checks a table or reference name: 1..64 bytes, no zero
// bytes, and usable as a file name.
func ValidateTableName(name string) error {
	if name == "" {
		return errors.Wrap(format.ErrInvalidSchema, "table name is empty")
	}
	if len(name) > format.MaxTableNameLen {
		return errors.Wrapf(format.ErrNameTooLong, "table name %q is %d bytes, limit %d",
			name, len(name), format.MaxTableNameLen)
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return errors.Wrapf(format.ErrInvalidSchema, "table name %q is not a valid file name", name)
	}
	return nil
}

// Validate checks every limit the header layout imposes, plus the identity
// rules: exactly one OID field, placed first, integer typed.
func (s *TableSchema) Validate() error {
	if err := ValidateTableName(s.Name); err != nil {
		return err
	}

	if len(s.References) > format.MaxReferences {
		return errors.Wrapf(format.ErrCapacityExceeded, "%d references, limit %d",
			len(s.References), format.MaxReferences)
	}
	seenRefs := make(map[string]struct{}, len(s.References))
	for _, r := range s.References {
		if r == "" {
			return errors.Wrap(format.ErrInvalidSchema, "empty reference name")
		}
		if len(r) > format.MaxTableNameLen {
			return errors.Wrapf(format.ErrNameTooLong, "reference %q is %d bytes, limit %d",
				r, len(r), format.MaxTableNameLen)
		}
		if strings.IndexByte(r, 0) >= 0 {
			return errors.Wrapf(format.ErrInvalidSchema, "reference %q contains a zero byte", r)
		}
		if _, dup := seenRefs[r]; dup {
			return errors.Wrapf(format.ErrInvalidSchema, "duplicate reference %q", r)
		}
		seenRefs[r] = struct{}{}
	}

	if len(s.Fields) == 0 {
		return errors.Wrap(format.ErrInvalidSchema, "schema has no fields")
	}
	if len(s.Fields) > format.MaxFields {
		return errors.Wrapf(format.ErrCapacityExceeded, "%d fields, limit %d", len(s.Fields), format.MaxFields)
	}

	oids := 0
	seenFields := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if err := validateShortName("field", f.Name); err != nil {
			return err
		}
		if _, dup := seenFields[f.Name]; dup {
			return errors.Wrapf(format.ErrInvalidSchema, "duplicate field %q", f.Name)
		}
		seenFields[f.Name] = struct{}{}

		if !f.Type.Valid() {
			return errors.Wrapf(format.ErrInvalidSchema, "field %q has invalid type %s", f.Name, f.Type)
		}

		if f.IsOID {
			oids++
			if i != 0 {
				return errors.Wrapf(format.ErrInvalidSchema, "oid field %q must be the first field", f.Name)
			}
			if f.IsFK {
				return errors.Wrapf(format.ErrInvalidSchema, "oid field %q cannot be a foreign key", f.Name)
			}
			if !f.Type.IsInteger() {
				return errors.Wrapf(format.ErrInvalidSchema, "oid field %q must be an integer, not %s", f.Name, f.Type)
			}
		}

		if f.IsFK {
			if !f.Type.IsInteger() {
				return errors.Wrapf(format.ErrInvalidSchema, "foreign key %q must be an integer, not %s", f.Name, f.Type)
			}
			if len(s.References) == 0 {
				return errors.Wrapf(format.ErrInvalidSchema, "foreign key %q but no referenced tables", f.Name)
			}
		}
	}
	if oids != 1 {
		return errors.Wrapf(format.ErrInvalidSchema, "schema has %d oid fields, want exactly 1", oids)
	}

	if len(s.Methods) > format.MaxMethods {
		return errors.Wrapf(format.ErrCapacityExceeded, "%d methods, limit %d", len(s.Methods), format.MaxMethods)
	}
	for _, m := range s.Methods {
		if err := validateShortName("method", m); err != nil {
			return err
		}
	}

	return nil
}

func validateShortName(kind, name string) error {
	if name == "" {
		return errors.Wrapf(format.ErrInvalidSchema, "empty %s name", kind)
	}
	if len(name) > format.MaxFieldNameLen {
		return errors.Wrapf(format.ErrNameTooLong, "%s name is %d bytes, limit %d",
			kind, len(name), format.MaxFieldNameLen)
	}
	return nil
}
