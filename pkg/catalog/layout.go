package catalog

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// Header is the fixed 10-byte prefix of a catalog file.
type Header struct {
	Magic      uint32 `json:"magic"`
	Version    uint8  `json:"version"`
	TableCount uint8  `json:"table_count"`
	Flags      uint32 `json:"flags"`
}

// NewHeader returns the header of an empty catalog.
func NewHeader() Header {
	return Header{Magic: format.MagicNumber, Version: format.Version}
}

// Marshal returns the 10 header bytes.
func (h Header) Marshal() []byte {
	buf := make([]byte, format.CatalogHeaderSize)
	binary.LittleEndian.PutUint32(buf[format.CatalogMagicOffset:], h.Magic)
	buf[format.CatalogVersionOffset] = h.Version
	buf[format.CatalogCountOffset] = h.TableCount
	binary.LittleEndian.PutUint32(buf[format.CatalogFlagsOffset:], h.Flags)
	return buf
}

// ParseHeader decodes and checks the catalog header: magic, version, and a
// file long enough for table_count directory entries. Bytes past the last
// entry are ignored.
func ParseHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < format.CatalogHeaderSize {
		return h, errors.Wrapf(format.ErrFormat, "catalog is %d bytes, header needs %d", len(data), format.CatalogHeaderSize)
	}
	h.Magic = binary.LittleEndian.Uint32(data[format.CatalogMagicOffset:])
	h.Version = data[format.CatalogVersionOffset]
	h.TableCount = data[format.CatalogCountOffset]
	h.Flags = binary.LittleEndian.Uint32(data[format.CatalogFlagsOffset:])

	if h.Magic != format.MagicNumber {
		return h, errors.Wrapf(format.ErrFormat, "bad catalog magic %#08x", h.Magic)
	}
	if h.Version != format.Version {
		return h, errors.Wrapf(format.ErrFormat, "unsupported catalog version %d", h.Version)
	}
	if need := entryOffset(int(h.TableCount)); len(data) < need {
		return h, errors.Wrapf(format.ErrFormat, "catalog lists %d tables but is %d bytes, need %d",
			h.TableCount, len(data), need)
	}
	return h, nil
}

// DirectoryEntry describes one registered table.
type DirectoryEntry struct {
	Name     string `json:"name"`
	FilePath string `json:"file_path"`
	Offset   uint32 `json:"offset"`
	Checksum uint32 `json:"checksum"`
	LastOID  uint64 `json:"last_oid"`
}

// newEntry returns the entry for a freshly registered table.
func newEntry(table string) DirectoryEntry {
	return DirectoryEntry{Name: table, FilePath: format.TableFileName(table)}
}

// Marshal returns the 148 entry bytes.
func (e DirectoryEntry) Marshal() ([]byte, error) {
	buf := make([]byte, format.DirectoryEntrySize)
	name, err := format.PadName(e.Name, format.MaxTableNameLen)
	if err != nil {
		return nil, err
	}
	path, err := format.PadName(e.FilePath, format.MaxFilePathLen)
	if err != nil {
		return nil, err
	}
	copy(buf[format.EntryNameOffset:], name)
	copy(buf[format.EntryPathOffset:], path)
	binary.LittleEndian.PutUint32(buf[format.EntryOffsetOffset:], e.Offset)
	binary.LittleEndian.PutUint32(buf[format.EntryChecksumOffset:], e.Checksum)
	binary.LittleEndian.PutUint64(buf[format.EntryLastOIDOffset:], e.LastOID)
	return buf, nil
}

// ParseEntry decodes one directory entry.
func ParseEntry(data []byte) (DirectoryEntry, error) {
	if len(data) < format.DirectoryEntrySize {
		return DirectoryEntry{}, errors.Wrapf(format.ErrFormat, "directory entry is %d bytes, need %d",
			len(data), format.DirectoryEntrySize)
	}
	e := DirectoryEntry{
		Name:     format.TrimName(data[format.EntryNameOffset:format.EntryPathOffset]),
		FilePath: format.TrimName(data[format.EntryPathOffset:format.EntryOffsetOffset]),
		Offset:   binary.LittleEndian.Uint32(data[format.EntryOffsetOffset:]),
		Checksum: binary.LittleEndian.Uint32(data[format.EntryChecksumOffset:]),
		LastOID:  binary.LittleEndian.Uint64(data[format.EntryLastOIDOffset:]),
	}
	if e.Name == "" {
		return e, errors.Wrap(format.ErrFormat, "directory entry has an empty name")
	}
	return e, nil
}

func entryOffset(i int) int {
	return format.CatalogHeaderSize + i*format.DirectoryEntrySize
}
