// Package codec provides the primitive binary codec for objektdb.
//
// Every field value stored in a table is encoded by this package before the
// record layer frames it with a length prefix. The package knows nothing about
// schemas or files; it maps a closed set of primitive types to little-endian
// byte sequences and back.
//
// # Types
//
// The supported types and their encodings:
//
//	i8  i16  i32  i64  i128     two's complement, 1/2/4/8/16 bytes
//	u8  u16  u32  u64  u128     unsigned, 1/2/4/8/16 bytes
//	f32 f64                     IEEE 754 bits, 4/8 bytes
//	bool                        1 byte, 0 = false, anything else decodes as true
//	char                        4-byte Unicode code point
//	String                      UTF-8 bytes, no terminator, consumes the slice
//	isize usize                 platform word size (8 bytes on 64-bit hosts)
//
// In Go these are represented by int8…int64, Int128, uint8…uint64, Uint128,
// float32, float64, bool, Char, string, int and uint respectively. Char is a
// named rune so that char fields are never confused with i32 fields.
//
// # Usage
//
// With static types:
//
//	buf := codec.Encode(int64(42))
//	v, err := codec.Decode[int64](buf)
//
// With types known only at runtime (the record layer does this):
//
//	buf, err := codec.EncodeValue(codec.TypeI64, int64(42))
//	v, err := codec.DecodeValue(codec.TypeI64, buf)
//
// # Errors
//
// Decoding a fixed-width type from a slice of the wrong length, a char that is
// not a Unicode scalar value, or a string that is not valid UTF-8 fails with an
// error wrapping format.ErrFormat. Encoding a Go value that does not represent
// the requested type fails with format.ErrTypeMismatch.
//
// For every representable value v, Decode(Encode(v)) == v.
package codec
