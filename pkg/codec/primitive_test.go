package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		typ   Type
		value any
	}{
		{"i8 min", TypeI8, int8(math.MinInt8)},
		{"i8 max", TypeI8, int8(math.MaxInt8)},
		{"i16", TypeI16, int16(-12345)},
		{"i32", TypeI32, int32(math.MinInt32)},
		{"i64", TypeI64, int64(math.MaxInt64)},
		{"i128 negative", TypeI128, Int128From64(-7)},
		{"i128 wide", TypeI128, Int128{Hi: math.MaxInt64, Lo: math.MaxUint64}},
		{"u8", TypeU8, uint8(255)},
		{"u16", TypeU16, uint16(65535)},
		{"u32", TypeU32, uint32(0xDEADBEEF)},
		{"u64", TypeU64, uint64(math.MaxUint64)},
		{"u128", TypeU128, Uint128{Hi: 1, Lo: 2}},
		{"f32", TypeF32, float32(3.25)},
		{"f64", TypeF64, math.Pi},
		{"f64 negative zero", TypeF64, math.Copysign(0, -1)},
		{"bool true", TypeBool, true},
		{"bool false", TypeBool, false},
		{"char ascii", TypeChar, Char('a')},
		{"char emoji", TypeChar, Char('🎯')},
		{"string", TypeString, "john@example.com"},
		{"string empty", TypeString, ""},
		{"string unicode", TypeString, "🔑 unicode with émojis"},
		{"isize", TypeIsize, int(-99)},
		{"usize", TypeUsize, uint(99)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := EncodeValue(tc.typ, tc.value)
			require.NoError(t, err)

			if w := tc.typ.Width(); w > 0 {
				assert.Len(t, encoded, w)
			}

			decoded, err := DecodeValue(tc.typ, encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.value, decoded)
		})
	}
}

func TestGenericEncodeDecode(t *testing.T) {
	t.Run("i64 little-endian", func(t *testing.T) {
		buf := Encode(int64(0x0102030405060708))
		assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, buf)

		v, err := Decode[int64](buf)
		require.NoError(t, err)
		assert.Equal(t, int64(0x0102030405060708), v)
	})

	t.Run("u32 magic number", func(t *testing.T) {
		buf := Encode(format.MagicNumber)
		assert.Equal(t, []byte{0x42, 0x44, 0x59, 0x4D}, buf)
	})

	t.Run("char distinct from i32", func(t *testing.T) {
		assert.Equal(t, TypeChar, TypeOf[Char]())
		assert.Equal(t, TypeI32, TypeOf[int32]())
	})

	t.Run("string consumes slice", func(t *testing.T) {
		v, err := Decode[string]([]byte("abc"))
		require.NoError(t, err)
		assert.Equal(t, "abc", v)
	})

	t.Run("i128 layout", func(t *testing.T) {
		buf := Encode(Int128From64(-1))
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 16), buf)
	})
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		typ  Type
		data []byte
	}{
		{"i32 too short", TypeI32, []byte{1, 2, 3}},
		{"i32 too long", TypeI32, []byte{1, 2, 3, 4, 5}},
		{"u8 empty", TypeU8, nil},
		{"u128 short", TypeU128, make([]byte, 15)},
		{"bool two bytes", TypeBool, []byte{1, 0}},
		{"char surrogate", TypeChar, Encode(uint32(0xD800))},
		{"char beyond range", TypeChar, Encode(uint32(0x110000))},
		{"string invalid utf8", TypeString, []byte{0xff, 0xfe}},
		{"invalid type", TypeInvalid, []byte{1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeValue(tc.typ, tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, format.ErrFormat), "got %v", err)
		})
	}
}

func TestBoolDecodesNonZeroAsTrue(t *testing.T) {
	v, err := Decode[bool]([]byte{7})
	require.NoError(t, err)
	assert.True(t, v)
}

func TestEncodeTypeMismatch(t *testing.T) {
	_, err := EncodeValue(TypeI64, int32(1))
	assert.True(t, errors.Is(err, format.ErrTypeMismatch))

	_, err = EncodeValue(TypeChar, int32('a'))
	assert.True(t, errors.Is(err, format.ErrTypeMismatch))

	_, err = EncodeValue(TypeChar, Char(0xD800))
	assert.True(t, errors.Is(err, format.ErrFormat))
}

func TestTypeNames(t *testing.T) {
	for typ, name := range typeNames {
		parsed, err := ParseType(name)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
		assert.Equal(t, name, typ.String())
	}

	parsed, err := ParseType("string")
	require.NoError(t, err)
	assert.Equal(t, TypeString, parsed)

	_, err = ParseType("Vec<u8>")
	assert.True(t, errors.Is(err, format.ErrFormat))

	assert.Equal(t, wordSize, TypeIsize.Width())
	assert.True(t, TypeU128.IsInteger())
	assert.False(t, TypeF64.IsInteger())
	assert.True(t, TypeIsize.IsSigned())
	assert.False(t, TypeUsize.IsSigned())
}

func TestTypeTextMarshaling(t *testing.T) {
	text, err := TypeU16.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "u16", string(text))

	var typ Type
	require.NoError(t, typ.UnmarshalText([]byte("f32")))
	assert.Equal(t, TypeF32, typ)

	_, err = TypeInvalid.MarshalText()
	assert.Error(t, err)
}
