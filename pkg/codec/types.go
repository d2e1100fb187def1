package codec

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// Type is the closed set of primitive types a field can declare.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeI128
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
	TypeF32
	TypeF64
	TypeBool
	TypeChar
	TypeString
	TypeIsize
	TypeUsize
)

// wordSize is the platform-native width of isize/usize in bytes.
const wordSize = strconv.IntSize / 8

// typeNames are the on-disk type names. String is capitalized in existing
// table files; "string" is accepted when parsing.
var typeNames = map[Type]string{
	TypeI8:     "i8",
	TypeI16:    "i16",
	TypeI32:    "i32",
	TypeI64:    "i64",
	TypeI128:   "i128",
	TypeU8:     "u8",
	TypeU16:    "u16",
	TypeU32:    "u32",
	TypeU64:    "u64",
	TypeU128:   "u128",
	TypeF32:    "f32",
	TypeF64:    "f64",
	TypeBool:   "bool",
	TypeChar:   "char",
	TypeString: "String",
	TypeIsize:  "isize",
	TypeUsize:  "usize",
}

var typesByName = func() map[string]Type {
	m := make(map[string]Type, len(typeNames)+1)
	for t, name := range typeNames {
		m[name] = t
	}
	m["string"] = TypeString
	return m
}()

// ParseType maps an on-disk type name to its Type.
func ParseType(name string) (Type, error) {
	t, ok := typesByName[name]
	if !ok {
		return TypeInvalid, errors.Wrapf(format.ErrFormat, "unknown type name %q", name)
	}
	return t, nil
}

// String returns the on-disk type name.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "invalid(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Width returns the encoded width in bytes, or 0 for variable-width types.
func (t Type) Width() int {
	switch t {
	case TypeI8, TypeU8, TypeBool:
		return 1
	case TypeI16, TypeU16:
		return 2
	case TypeI32, TypeU32, TypeF32, TypeChar:
		return 4
	case TypeI64, TypeU64, TypeF64:
		return 8
	case TypeI128, TypeU128:
		return 16
	case TypeIsize, TypeUsize:
		return wordSize
	}
	return 0
}

// IsInteger reports whether t is a signed or unsigned integer type.
func (t Type) IsInteger() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeI128,
		TypeU8, TypeU16, TypeU32, TypeU64, TypeU128,
		TypeIsize, TypeUsize:
		return true
	}
	return false
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeI128, TypeIsize:
		return true
	}
	return false
}

// MarshalText encodes the type as its on-disk name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Wrapf(format.ErrFormat, "cannot marshal %s", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses an on-disk type name.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
