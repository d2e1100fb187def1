package codec_test

import (
	"fmt"
	"log"

	"github.com/ssargent/objektdb/pkg/codec"
)

// ExampleEncode demonstrates static encoding and decoding
func ExampleEncode() {
	buf := codec.Encode(int32(258))
	fmt.Printf("% x\n", buf)

	v, err := codec.Decode[int32](buf)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)

	// Output:
	// 02 01 00 00
	// 258
}

// ExampleDecodeValue demonstrates decoding with a type only known at runtime
func ExampleDecodeValue() {
	typ, err := codec.ParseType("char")
	if err != nil {
		log.Fatal(err)
	}

	v, err := codec.DecodeValue(typ, []byte{0xe9, 0x00, 0x00, 0x00})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(codec.FormatValue(typ, v))

	// Output:
	// é
}
