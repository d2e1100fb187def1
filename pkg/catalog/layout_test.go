package catalog

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_Marshal(t *testing.T) {
	h := NewHeader()
	assert.Equal(t, []byte{0x42, 0x44, 0x59, 0x4D, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, h.Marshal())

	h.TableCount = 3
	parsed, err := ParseHeader(append(h.Marshal(), make([]byte, 3*format.DirectoryEntrySize)...))
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHeader_Errors(t *testing.T) {
	valid := NewHeader().Marshal()

	badMagic := append([]byte{}, valid...)
	badMagic[0] = 0

	badVersion := append([]byte{}, valid...)
	badVersion[format.CatalogVersionOffset] = 2

	short := append([]byte{}, valid...)
	short[format.CatalogCountOffset] = 1

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"partial header", valid[:6]},
		{"bad magic", badMagic},
		{"bad version", badVersion},
		{"count exceeds entries", short},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHeader(tt.data)
			assert.True(t, errors.Is(err, format.ErrFormat), "got %v", err)
		})
	}
}

func TestParseHeader_IgnoresTrailingBytes(t *testing.T) {
	data := append(NewHeader().Marshal(), 0xAA, 0xBB)
	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), h.TableCount)
}

func TestDirectoryEntry_Layout(t *testing.T) {
	e := DirectoryEntry{Name: "orders", FilePath: "orders.tbl", LastOID: 0x0102030405060708}
	raw, err := e.Marshal()
	require.NoError(t, err)
	require.Len(t, raw, 148)

	wantName := make([]byte, 64)
	copy(wantName, "orders")
	assert.Equal(t, wantName, raw[0:64])

	wantPath := make([]byte, 68)
	copy(wantPath, "orders.tbl")
	assert.Equal(t, wantPath, raw[64:132])

	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[132:136]), "offset")
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(raw[136:140]), "checksum")
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(raw[140:148]))

	parsed, err := ParseEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, e, parsed)
}

func TestDirectoryEntry_Errors(t *testing.T) {
	_, err := DirectoryEntry{Name: strings.Repeat("n", 65)}.Marshal()
	assert.True(t, errors.Is(err, format.ErrNameTooLong))

	_, err = ParseEntry(make([]byte, 100))
	assert.True(t, errors.Is(err, format.ErrFormat))

	_, err = ParseEntry(make([]byte, 148))
	assert.True(t, errors.Is(err, format.ErrFormat), "empty name")
}

func TestNewEntry(t *testing.T) {
	e := newEntry("customers")
	assert.Equal(t, DirectoryEntry{Name: "customers", FilePath: "customers.tbl"}, e)
}
