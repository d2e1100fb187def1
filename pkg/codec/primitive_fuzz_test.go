//go:build fuzz
// +build fuzz

package codec

import (
	"math"
	"testing"
	"unicode/utf8"
)

// FuzzPrimitive_RoundTrip encodes random numbers and strings and decodes them back
func FuzzPrimitive_RoundTrip(f *testing.F) {
	f.Add(int64(0), uint64(0), float64(0), "", int32(0))
	f.Add(int64(-1), uint64(math.MaxUint64), math.Inf(1), "user:123", int32('x'))

	f.Fuzz(func(t *testing.T, i int64, u uint64, fl float64, s string, r int32) {
		if got, err := Decode[int64](Encode(i)); err != nil || got != i {
			t.Fatalf("i64 round trip: got %d, %v", got, err)
		}
		if got, err := Decode[uint64](Encode(u)); err != nil || got != u {
			t.Fatalf("u64 round trip: got %d, %v", got, err)
		}
		if got, err := Decode[float64](Encode(fl)); err != nil || math.Float64bits(got) != math.Float64bits(fl) {
			t.Fatalf("f64 round trip: got %v, %v", got, err)
		}
		if utf8.ValidString(s) {
			if got, err := Decode[string](Encode(s)); err != nil || got != s {
				t.Fatalf("string round trip: got %q, %v", got, err)
			}
		}
		if utf8.ValidRune(r) {
			if got, err := Decode[Char](Encode(Char(r))); err != nil || got != Char(r) {
				t.Fatalf("char round trip: got %q, %v", got, err)
			}
		}
	})
}

// FuzzDecodeValue_NoPanic feeds arbitrary bytes to every decoder
func FuzzDecodeValue_NoPanic(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00, 0xD8, 0x00, 0x00})
	f.Add([]byte("hello"))

	f.Fuzz(func(t *testing.T, data []byte) {
		for typ := range typeNames {
			_, _ = DecodeValue(typ, data)
		}
	})
}
