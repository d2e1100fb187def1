package schema

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalHeader_Layout(t *testing.T) {
	s := New("orders").
		OID("id", codec.TypeI64).
		ForeignKey("customer", codec.TypeI64, "customers")

	hdr, err := s.MarshalHeader()
	require.NoError(t, err)

	wantName := make([]byte, 64)
	copy(wantName, "orders")
	assert.Equal(t, wantName, hdr[:64], "name is right-padded with zeros")
	assert.Equal(t, uint32(len(hdr)), binary.LittleEndian.Uint32(hdr[64:68]))
	assert.Equal(t, []byte{0, 0, 0}, hdr[68:71], "reserved bytes")
	assert.Equal(t, byte(1), hdr[71], "reference count")

	wantRef := make([]byte, 64)
	copy(wantRef, "customers")
	assert.Equal(t, wantRef, hdr[72:136])

	assert.Equal(t, byte(2), hdr[136], "field count")
	// "id": len, name, is_fk, type_len, type
	assert.Equal(t, []byte{2, 'i', 'd', 0, 3, 'i', '6', '4'}, hdr[137:145])
	assert.Equal(t, byte(8), hdr[145])
	assert.Equal(t, "customer", string(hdr[146:154]))
	assert.Equal(t, byte(1), hdr[154], "is_fk")
	assert.Equal(t, []byte{3, 'i', '6', '4'}, hdr[155:159])
	assert.Equal(t, byte(0), hdr[159], "method count")
	assert.Len(t, hdr, 160)
	assert.Equal(t, s.HeaderSize(), len(hdr))
}

func TestMarshalHeader_Deterministic(t *testing.T) {
	a, err := ordersSchema().MarshalHeader()
	require.NoError(t, err)
	b, err := ordersSchema().MarshalHeader()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestMarshalHeader_RejectsInvalid(t *testing.T) {
	_, err := New("t").Field("a", codec.TypeI32).MarshalHeader()
	assert.True(t, errors.Is(err, format.ErrInvalidSchema))
}

func TestParseHeader_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		schema *TableSchema
	}{
		{"orders", ordersSchema()},
		{"minimal", New("t").OID("id", codec.TypeU8)},
		{"methods and many types", New("everything").
			OID("oid", codec.TypeU128).
			Field("a", codec.TypeI8).
			Field("b", codec.TypeI16).
			Field("c", codec.TypeChar).
			Field("d", codec.TypeBool).
			Field("e", codec.TypeString).
			Field("f", codec.TypeIsize).
			Field("g", codec.TypeF32).
			ForeignKey("owner", codec.TypeUsize, "users").
			Reference("audit").
			Method("summary").
			Method("recalculate")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.schema.MarshalHeader()
			require.NoError(t, err)

			// Data region bytes after the header are ignored.
			withRegion := append(append([]byte{}, raw...), make([]byte, 128)...)

			got, hdr, err := ParseHeader(withRegion)
			require.NoError(t, err)
			assert.Equal(t, tt.schema.Name, hdr.Name)
			assert.Equal(t, uint32(len(raw)), hdr.OffsetHeader)
			assert.Equal(t, tt.schema, got)

			off, err := ReadOffsetHeader(withRegion)
			require.NoError(t, err)
			assert.Equal(t, hdr.OffsetHeader, off)
		})
	}
}

func TestParseHeader_Malformed(t *testing.T) {
	valid, err := ordersSchema().MarshalHeader()
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte{}, valid...))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"shorter than fixed header", valid[:40]},
		{"offset inside fixed header", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[64:], 10)
			return b
		})},
		{"offset past data", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[64:], uint32(len(b)+1))
			return b
		})},
		{"offset before metadata end", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[64:], uint32(len(b)-1))
			return b
		})},
		{"reference count too large", mutate(func(b []byte) []byte {
			b[71] = 9
			return b
		})},
		{"unknown type name", mutate(func(b []byte) []byte {
			copy(b[142:145], "xyz")
			return b
		})},
		{"offset after metadata end", mutate(func(b []byte) []byte {
			b = append(b, 0)
			binary.LittleEndian.PutUint32(b[64:], uint32(len(b)))
			return b
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseHeader(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, format.ErrFormat), "got %v", err)
		})
	}
}
