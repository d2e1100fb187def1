package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// Char is a single Unicode scalar value. It is a distinct type so that char
// fields are never confused with i32 fields.
type Char rune

// Primitive lists the Go types the binary codec can encode.
type Primitive interface {
	int8 | int16 | int32 | int64 | Int128 |
		uint8 | uint16 | uint32 | uint64 | Uint128 |
		float32 | float64 | bool | Char | string | int | uint
}

// TypeOf returns the codec Type for the Go type T.
func TypeOf[T Primitive]() Type {
	var zero T
	return ValueType(zero)
}

// ValueType returns the Type whose Go representation v holds, or TypeInvalid.
func ValueType(v any) Type {
	switch v.(type) {
	case int8:
		return TypeI8
	case int16:
		return TypeI16
	case int32:
		return TypeI32
	case int64:
		return TypeI64
	case Int128:
		return TypeI128
	case uint8:
		return TypeU8
	case uint16:
		return TypeU16
	case uint32:
		return TypeU32
	case uint64:
		return TypeU64
	case Uint128:
		return TypeU128
	case float32:
		return TypeF32
	case float64:
		return TypeF64
	case bool:
		return TypeBool
	case Char:
		return TypeChar
	case string:
		return TypeString
	case int:
		return TypeIsize
	case uint:
		return TypeUsize
	}
	return TypeInvalid
}

// Encode returns the little-endian encoding of v.
func Encode[T Primitive](v T) []byte {
	buf, err := EncodeValue(TypeOf[T](), v)
	if err != nil {
		// TypeOf and EncodeValue cover the same closed set.
		panic(err)
	}
	return buf
}

// Decode decodes data as a T. Fixed-width types require len(data) to equal
// their width exactly.
func Decode[T Primitive](data []byte) (T, error) {
	var zero T
	v, err := DecodeValue(TypeOf[T](), data)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// EncodeValue encodes v, which must hold the Go type that represents t.
func EncodeValue(t Type, v any) ([]byte, error) {
	switch t {
	case TypeI8:
		x, ok := v.(int8)
		if !ok {
			return nil, mismatch(t, v)
		}
		return []byte{byte(x)}, nil
	case TypeU8:
		x, ok := v.(uint8)
		if !ok {
			return nil, mismatch(t, v)
		}
		return []byte{x}, nil
	case TypeI16:
		x, ok := v.(int16)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(x)), nil
	case TypeU16:
		x, ok := v.(uint16)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint16(nil, x), nil
	case TypeI32:
		x, ok := v.(int32)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
	case TypeU32:
		x, ok := v.(uint32)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint32(nil, x), nil
	case TypeI64:
		x, ok := v.(int64)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
	case TypeU64:
		x, ok := v.(uint64)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint64(nil, x), nil
	case TypeI128:
		x, ok := v.(Int128)
		if !ok {
			return nil, mismatch(t, v)
		}
		buf := binary.LittleEndian.AppendUint64(nil, x.Lo)
		return binary.LittleEndian.AppendUint64(buf, uint64(x.Hi)), nil
	case TypeU128:
		x, ok := v.(Uint128)
		if !ok {
			return nil, mismatch(t, v)
		}
		buf := binary.LittleEndian.AppendUint64(nil, x.Lo)
		return binary.LittleEndian.AppendUint64(buf, x.Hi), nil
	case TypeF32:
		x, ok := v.(float32)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(x)), nil
	case TypeF64:
		x, ok := v.(float64)
		if !ok {
			return nil, mismatch(t, v)
		}
		return binary.LittleEndian.AppendUint64(nil, math.Float64bits(x)), nil
	case TypeBool:
		x, ok := v.(bool)
		if !ok {
			return nil, mismatch(t, v)
		}
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeChar:
		x, ok := v.(Char)
		if !ok {
			return nil, mismatch(t, v)
		}
		if !utf8.ValidRune(rune(x)) {
			return nil, errors.Wrapf(format.ErrFormat, "char %#x is not a Unicode scalar value", uint32(x))
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
	case TypeString:
		x, ok := v.(string)
		if !ok {
			return nil, mismatch(t, v)
		}
		return []byte(x), nil
	case TypeIsize:
		x, ok := v.(int)
		if !ok {
			return nil, mismatch(t, v)
		}
		if wordSize == 4 {
			return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
		}
		return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
	case TypeUsize:
		x, ok := v.(uint)
		if !ok {
			return nil, mismatch(t, v)
		}
		if wordSize == 4 {
			return binary.LittleEndian.AppendUint32(nil, uint32(x)), nil
		}
		return binary.LittleEndian.AppendUint64(nil, uint64(x)), nil
	}
	return nil, errors.Wrapf(format.ErrFormat, "cannot encode type %s", t)
}

// DecodeValue decodes data as a value of type t. The returned value holds the
// Go type that represents t.
func DecodeValue(t Type, data []byte) (any, error) {
	if !t.Valid() {
		return nil, errors.Wrapf(format.ErrFormat, "cannot decode type %s", t)
	}
	if w := t.Width(); w > 0 && len(data) != w {
		return nil, errors.Wrapf(format.ErrFormat, "%s needs %d bytes, got %d", t, w, len(data))
	}

	switch t {
	case TypeI8:
		return int8(data[0]), nil
	case TypeU8:
		return data[0], nil
	case TypeI16:
		return int16(binary.LittleEndian.Uint16(data)), nil
	case TypeU16:
		return binary.LittleEndian.Uint16(data), nil
	case TypeI32:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case TypeU32:
		return binary.LittleEndian.Uint32(data), nil
	case TypeI64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case TypeU64:
		return binary.LittleEndian.Uint64(data), nil
	case TypeI128:
		return Int128{
			Lo: binary.LittleEndian.Uint64(data[0:8]),
			Hi: int64(binary.LittleEndian.Uint64(data[8:16])),
		}, nil
	case TypeU128:
		return Uint128{
			Lo: binary.LittleEndian.Uint64(data[0:8]),
			Hi: binary.LittleEndian.Uint64(data[8:16]),
		}, nil
	case TypeF32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	case TypeF64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case TypeBool:
		return data[0] != 0, nil
	case TypeChar:
		cp := binary.LittleEndian.Uint32(data)
		if cp > utf8.MaxRune || !utf8.ValidRune(rune(cp)) {
			return nil, errors.Wrapf(format.ErrFormat, "char %#x is not a Unicode scalar value", cp)
		}
		return Char(cp), nil
	case TypeString:
		if !utf8.Valid(data) {
			return nil, errors.Wrap(format.ErrFormat, "string is not valid UTF-8")
		}
		return string(data), nil
	case TypeIsize:
		if wordSize == 4 {
			return int(int32(binary.LittleEndian.Uint32(data))), nil
		}
		return int(int64(binary.LittleEndian.Uint64(data))), nil
	case TypeUsize:
		if wordSize == 4 {
			return uint(binary.LittleEndian.Uint32(data)), nil
		}
		return uint(binary.LittleEndian.Uint64(data)), nil
	}
	return nil, errors.Wrapf(format.ErrFormat, "cannot decode type %s", t)
}

func mismatch(t Type, v any) error {
	return errors.Wrapf(format.ErrTypeMismatch, "%s field cannot hold %T", t, v)
}
