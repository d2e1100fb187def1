package codec

import (
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// ParseValue parses the textual form of a value of type t, as typed on the
// command line or sent to the HTTP API.
func ParseValue(t Type, text string) (any, error) {
	switch t {
	case TypeI8, TypeI16, TypeI32, TypeI64, TypeIsize:
		bits := t.Width() * 8
		n, err := strconv.ParseInt(text, 10, bits)
		if err != nil {
			return nil, parseErr(t, text, err)
		}
		switch t {
		case TypeI8:
			return int8(n), nil
		case TypeI16:
			return int16(n), nil
		case TypeI32:
			return int32(n), nil
		case TypeI64:
			return n, nil
		default:
			return int(n), nil
		}
	case TypeU8, TypeU16, TypeU32, TypeU64, TypeUsize:
		bits := t.Width() * 8
		n, err := strconv.ParseUint(text, 10, bits)
		if err != nil {
			return nil, parseErr(t, text, err)
		}
		switch t {
		case TypeU8:
			return uint8(n), nil
		case TypeU16:
			return uint16(n), nil
		case TypeU32:
			return uint32(n), nil
		case TypeU64:
			return n, nil
		default:
			return uint(n), nil
		}
	case TypeI128, TypeU128:
		b, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return nil, parseErr(t, text, nil)
		}
		if t == TypeI128 {
			return Int128FromBig(b)
		}
		return Uint128FromBig(b)
	case TypeF32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return nil, parseErr(t, text, err)
		}
		return float32(f), nil
	case TypeF64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, parseErr(t, text, err)
		}
		return f, nil
	case TypeBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, parseErr(t, text, err)
		}
		return b, nil
	case TypeChar:
		if utf8.RuneCountInString(text) != 1 {
			return nil, parseErr(t, text, nil)
		}
		r, _ := utf8.DecodeRuneInString(text)
		if r == utf8.RuneError {
			return nil, parseErr(t, text, nil)
		}
		return Char(r), nil
	case TypeString:
		return text, nil
	}
	return nil, errors.Wrapf(format.ErrFormat, "cannot parse type %s", t)
}

// FormatValue renders v, a value of type t, in the form ParseValue accepts.
func FormatValue(t Type, v any) string {
	switch x := v.(type) {
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case Int128:
		return x.String()
	case Uint128:
		return x.String()
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case Char:
		return string(rune(x))
	case string:
		return x
	}
	return ""
}

// OIDValue converts an OID counter value into the declared integer type of an
// OID or foreign key field.
func OIDValue(t Type, oid uint64) (any, error) {
	overflow := func() error {
		return errors.Wrapf(format.ErrCapacityExceeded, "oid %d overflows %s", oid, t)
	}
	switch t {
	case TypeI8:
		if oid > math.MaxInt8 {
			return nil, overflow()
		}
		return int8(oid), nil
	case TypeI16:
		if oid > math.MaxInt16 {
			return nil, overflow()
		}
		return int16(oid), nil
	case TypeI32:
		if oid > math.MaxInt32 {
			return nil, overflow()
		}
		return int32(oid), nil
	case TypeI64:
		if oid > math.MaxInt64 {
			return nil, overflow()
		}
		return int64(oid), nil
	case TypeIsize:
		if oid > math.MaxInt {
			return nil, overflow()
		}
		return int(oid), nil
	case TypeU8:
		if oid > math.MaxUint8 {
			return nil, overflow()
		}
		return uint8(oid), nil
	case TypeU16:
		if oid > math.MaxUint16 {
			return nil, overflow()
		}
		return uint16(oid), nil
	case TypeU32:
		if oid > math.MaxUint32 {
			return nil, overflow()
		}
		return uint32(oid), nil
	case TypeU64:
		return oid, nil
	case TypeUsize:
		if uint64(uint(oid)) != oid {
			return nil, overflow()
		}
		return uint(oid), nil
	case TypeI128:
		return Int128{Lo: oid}, nil
	case TypeU128:
		return Uint128{Lo: oid}, nil
	}
	return nil, errors.Wrapf(format.ErrTypeMismatch, "%s cannot hold an oid", t)
}

// MaxOID returns the largest OID counter value t can hold. It is zero for
// types that cannot hold an OID.
func MaxOID(t Type) uint64 {
	switch t {
	case TypeI8:
		return math.MaxInt8
	case TypeI16:
		return math.MaxInt16
	case TypeI32:
		return math.MaxInt32
	case TypeI64:
		return math.MaxInt64
	case TypeIsize:
		return math.MaxInt
	case TypeU8:
		return math.MaxUint8
	case TypeU16:
		return math.MaxUint16
	case TypeU32:
		return math.MaxUint32
	case TypeUsize:
		return uint64(^uint(0))
	case TypeU64, TypeI128, TypeU128:
		return math.MaxUint64
	}
	return 0
}

// OIDFromValue is the inverse of OIDValue. Negative values and values wider
// than 64 bits are rejected.
func OIDFromValue(t Type, v any) (uint64, error) {
	if ValueType(v) != t {
		return 0, mismatch(t, v)
	}
	negative := func() error {
		return errors.Wrapf(format.ErrFormat, "negative oid %v", v)
	}
	switch x := v.(type) {
	case int8:
		if x < 0 {
			return 0, negative()
		}
		return uint64(x), nil
	case int16:
		if x < 0 {
			return 0, negative()
		}
		return uint64(x), nil
	case int32:
		if x < 0 {
			return 0, negative()
		}
		return uint64(x), nil
	case int64:
		if x < 0 {
			return 0, negative()
		}
		return uint64(x), nil
	case int:
		if x < 0 {
			return 0, negative()
		}
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case uint:
		return uint64(x), nil
	case Int128:
		if x.Hi != 0 {
			return 0, errors.Wrapf(format.ErrFormat, "oid %s does not fit in 64 bits", x)
		}
		return x.Lo, nil
	case Uint128:
		if x.Hi != 0 {
			return 0, errors.Wrapf(format.ErrFormat, "oid %s does not fit in 64 bits", x)
		}
		return x.Lo, nil
	}
	return 0, mismatch(t, v)
}

func parseErr(t Type, text string, cause error) error {
	err := errors.Wrapf(format.ErrTypeMismatch, "cannot parse %q as %s", text, t)
	if cause != nil {
		err = errors.WithSecondaryError(err, cause)
	}
	return err
}
