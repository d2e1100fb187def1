// Package format holds the on-disk layout constants and the error taxonomy shared
// by every objektdb package.
//
// Nothing in this package changes at runtime. The constants fix the byte-exact
// layout of the catalog file (<db>/<db>.db), the table file (<db>/<table>.tbl) and
// the paired bucket file (<db>/<table>_bucket.bin). All multi-byte integers on disk
// are little-endian and fixed-width names are right-padded with zero bytes.
package format

// Catalog file layout
const (
	// MagicNumber identifies a catalog file. It is the first four bytes of every
	// <db>.db file, little-endian.
	MagicNumber uint32 = 0x4D594442

	// Version is the only catalog format version this package reads and writes.
	Version uint8 = 1

	// CatalogHeaderSize is [magic:4][version:1][table_count:1][flags:4].
	CatalogHeaderSize = 10

	// Byte offsets inside the catalog header.
	CatalogMagicOffset   = 0
	CatalogVersionOffset = 4
	CatalogCountOffset   = 5
	CatalogFlagsOffset   = 6

	// MaxTables is the largest table_count a catalog can hold (one byte).
	MaxTables = 255

	// DirectoryEntrySize is name(64) + file_path(68) + offset(4) + checksum(4) + last_oid(8).
	DirectoryEntrySize = 148

	// Byte offsets inside a directory entry.
	EntryNameOffset     = 0
	EntryPathOffset     = 64
	EntryOffsetOffset   = 132
	EntryChecksumOffset = 136
	EntryLastOIDOffset  = 140
)

// Name limits
const (
	// MaxTableNameLen bounds table and reference names (fixed-width, null-padded).
	MaxTableNameLen = 64

	// MaxFilePathLen bounds the table file name stored in a directory entry.
	MaxFilePathLen = 68

	// MaxFieldNameLen bounds field, method and type names (1-byte length prefix).
	MaxFieldNameLen = 255

	// MaxReferences, MaxFields and MaxMethods bound the 1-byte section counts.
	MaxReferences = 255
	MaxFields     = 255
	MaxMethods    = 255

	// MaxEncodedValueLen is the largest value the 1-byte record length prefix can describe.
	MaxEncodedValueLen = 255
)

// Table file layout
const (
	// TableFixedHeaderSize is name(64) + offset_header(4) + reserved(3).
	TableFixedHeaderSize = 71

	// TableOffsetHeaderOffset is where offset_header sits in the fixed header.
	TableOffsetHeaderOffset = 64

	// MinTableHeaderSize is the fixed header plus the three one-byte section counts.
	MinTableHeaderSize = TableFixedHeaderSize + 3

	// RegionDescriptorSize is the size of the descriptor at the start of the
	// data/index region. An all-zero descriptor denotes a fresh region.
	RegionDescriptorSize = 32

	// SlotHeaderSize is oid(8) + status(1) + length(4).
	SlotHeaderSize = 13

	// SlotLive and SlotDeleted are the slot status bytes.
	SlotLive    = 1
	SlotDeleted = 2

	// DefaultTableCapacity is the pre-allocated data/index region size. The
	// region grows in steps of the same size.
	DefaultTableCapacity = 256 * 1024

	// MinTableCapacity leaves room for the region descriptor and one slot.
	MinTableCapacity = 64
)

// File naming
const (
	CatalogSuffix = ".db"
	TableSuffix   = ".tbl"
	BucketSuffix  = "_bucket.bin"
	LockSuffix    = ".lock"
)

// CatalogFileName returns the catalog file name for a database.
func CatalogFileName(db string) string { return db + CatalogSuffix }

// TableFileName returns the table file name for a table.
func TableFileName(table string) string { return table + TableSuffix }

// BucketFileName returns the bucket file name for a table.
func BucketFileName(table string) string { return table + BucketSuffix }

// LockFileName returns the advisory lock file name for a database.
func LockFileName(db string) string { return db + LockSuffix }
