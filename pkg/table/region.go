package table

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// regionDescriptor sits at offset_header, at the start of the data region.
//
//	+0  offset_index  u32  absolute offset of the first slot
//	+4  offset_free   u32  absolute offset just past the last slot
//	+8  bucket_ref    u32  CRC-32 (IEEE) of the bucket file name
//	+12 record_count  u32  live slots
//	+16 last_oid      u64  highest OID ever assigned in this file
//	+24 reserved      8 bytes
//
// A freshly created table has an all-zero descriptor.
type regionDescriptor struct {
	OffsetIndex uint32
	OffsetFree  uint32
	BucketRef   uint32
	RecordCount uint32
	LastOID     uint64
}

func (d regionDescriptor) marshal() []byte {
	buf := make([]byte, format.RegionDescriptorSize)
	binary.LittleEndian.PutUint32(buf[0:], d.OffsetIndex)
	binary.LittleEndian.PutUint32(buf[4:], d.OffsetFree)
	binary.LittleEndian.PutUint32(buf[8:], d.BucketRef)
	binary.LittleEndian.PutUint32(buf[12:], d.RecordCount)
	binary.LittleEndian.PutUint64(buf[16:], d.LastOID)
	return buf
}

func unmarshalDescriptor(buf []byte) (d regionDescriptor, fresh bool) {
	fresh = true
	for _, b := range buf[:format.RegionDescriptorSize] {
		if b != 0 {
			fresh = false
			break
		}
	}
	d.OffsetIndex = binary.LittleEndian.Uint32(buf[0:])
	d.OffsetFree = binary.LittleEndian.Uint32(buf[4:])
	d.BucketRef = binary.LittleEndian.Uint32(buf[8:])
	d.RecordCount = binary.LittleEndian.Uint32(buf[12:])
	d.LastOID = binary.LittleEndian.Uint64(buf[16:])
	return d, fresh
}

// validate checks the descriptor against the header end and the file size.
func (d regionDescriptor) validate(offsetHeader uint32, fileSize int64, bucketRef uint32) error {
	start := offsetHeader + format.RegionDescriptorSize
	if d.OffsetIndex < start {
		return errors.Wrapf(format.ErrFormat, "offset_index %d is before the region start %d", d.OffsetIndex, start)
	}
	if d.OffsetFree < d.OffsetIndex {
		return errors.Wrapf(format.ErrFormat, "offset_free %d is before offset_index %d", d.OffsetFree, d.OffsetIndex)
	}
	if int64(d.OffsetFree) > fileSize {
		return errors.Wrapf(format.ErrFormat, "offset_free %d is past the file end %d", d.OffsetFree, fileSize)
	}
	if d.BucketRef != bucketRef {
		return errors.Wrapf(format.ErrFormat, "bucket_ref %08x does not match the bucket file (%08x)", d.BucketRef, bucketRef)
	}
	return nil
}

func bucketRef(table string) uint32 {
	return crc32.ChecksumIEEE([]byte(format.BucketFileName(table)))
}

// slot locates one record in the data region. Slots are ordered by OID in the
// in-memory index.
type slot struct {
	OID    uint64
	Offset uint32 // slot header position
	Length uint32 // record bytes after the header
}

func slotLess(a, b slot) bool { return a.OID < b.OID }

func (s slot) dataOffset() int64 { return int64(s.Offset) + format.SlotHeaderSize }

func (s slot) end() uint32 { return s.Offset + format.SlotHeaderSize + s.Length }

func marshalSlotHeader(oid uint64, status byte, length uint32) []byte {
	buf := make([]byte, format.SlotHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:], oid)
	buf[8] = status
	binary.LittleEndian.PutUint32(buf[9:], length)
	return buf
}

// scanSlots walks the slot area, which starts at base in the file, and returns
// the live slots. Deleted slots are skipped; any other status is corruption.
func scanSlots(area []byte, base uint32) ([]slot, error) {
	var live []slot
	pos := 0
	for pos < len(area) {
		if len(area)-pos < format.SlotHeaderSize {
			return nil, errors.Wrapf(format.ErrFormat, "partial slot header at %d", int(base)+pos)
		}
		oid := binary.LittleEndian.Uint64(area[pos:])
		status := area[pos+8]
		length := binary.LittleEndian.Uint32(area[pos+9:])
		next := pos + format.SlotHeaderSize + int(length)
		if next > len(area) || next < pos {
			return nil, errors.Wrapf(format.ErrFormat, "slot at %d claims %d bytes past offset_free", int(base)+pos, length)
		}
		switch status {
		case format.SlotLive:
			live = append(live, slot{OID: oid, Offset: base + uint32(pos), Length: length})
		case format.SlotDeleted:
		default:
			return nil, errors.Wrapf(format.ErrFormat, "slot at %d has status %d", int(base)+pos, status)
		}
		pos = next
	}
	return live, nil
}
