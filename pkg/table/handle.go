package table

import (
	"io"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/btree"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/record"
	"github.com/ssargent/objektdb/pkg/schema"
)

// OIDAllocator reserves OIDs for a table. NextOID returns an OID that is
// greater than every OID it returned before for table and not below floor,
// and records it durably before returning. An OID above limit is refused with
// ErrCapacityExceeded and nothing is recorded.
type OIDAllocator interface {
	NextOID(table string, floor, limit uint64) (uint64, error)
}

// tableFile is the subset of *os.File a Handle uses.
type tableFile interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Sync() error
	Close() error
	Name() string
}

// Stats describes the occupancy of an open table.
type Stats struct {
	Table        string `json:"table"`
	Records      int    `json:"records"`
	LastOID      uint64 `json:"last_oid"`
	OffsetHeader uint32 `json:"offset_header"`
	OffsetFree   uint32 `json:"offset_free"`
	FileSize     int64  `json:"file_size"`
}

// Handle gives record access to one open table file. Methods are safe for
// concurrent use; the database lock keeps other processes out.
type Handle struct {
	file     tableFile
	name     string
	schema   *schema.TableSchema
	codec    *record.Codec
	header   schema.Header
	desc     regionDescriptor
	index    *btree.BTreeG[slot]
	size     int64
	capacity uint32
	sync     bool
	alloc    OIDAllocator
	logger   *slog.Logger
	mutex    sync.Mutex
	isOpen   bool
}

func newHandle(f *os.File, name string, s *Store, alloc OIDAllocator) (*Handle, error) {
	ts, hdr, size, err := readHeader(f, name)
	if err != nil {
		return nil, err
	}
	c, err := record.NewCodec(ts)
	if err != nil {
		return nil, errors.Mark(err, format.ErrFormat)
	}

	h := &Handle{
		file:     f,
		name:     name,
		schema:   ts,
		codec:    c,
		header:   hdr,
		index:    btree.NewG[slot](32, slotLess),
		size:     size,
		capacity: s.config.Capacity,
		sync:     s.config.SyncWrites,
		alloc:    alloc,
		logger:   s.logger.With("table", name),
	}

	if size < int64(hdr.OffsetHeader)+format.RegionDescriptorSize {
		return nil, errors.Wrapf(format.ErrFormat, "table file %s has no room for the region descriptor", f.Name())
	}
	raw := make([]byte, format.RegionDescriptorSize)
	if _, err := f.ReadAt(raw, int64(hdr.OffsetHeader)); err != nil {
		return nil, format.WrapIO(err, "read region descriptor %s", f.Name())
	}
	desc, fresh := unmarshalDescriptor(raw)
	if fresh {
		start := hdr.OffsetHeader + format.RegionDescriptorSize
		desc = regionDescriptor{OffsetIndex: start, OffsetFree: start, BucketRef: bucketRef(name)}
	} else if err := desc.validate(hdr.OffsetHeader, size, bucketRef(name)); err != nil {
		return nil, errors.Wrapf(err, "table file %s", f.Name())
	}
	h.desc = desc

	if err := h.rebuildIndex(); err != nil {
		return nil, err
	}
	h.isOpen = true

	h.logger.Debug("table opened",
		"records", h.index.Len(),
		"last_oid", h.desc.LastOID,
		"fresh", fresh)
	return h, nil
}

// rebuildIndex scans the slot area and loads every live slot into the index.
func (h *Handle) rebuildIndex() error {
	area := make([]byte, h.desc.OffsetFree-h.desc.OffsetIndex)
	if len(area) > 0 {
		if _, err := h.file.ReadAt(area, int64(h.desc.OffsetIndex)); err != nil {
			return format.WrapIO(err, "read slot area %s", h.file.Name())
		}
	}
	live, err := scanSlots(area, h.desc.OffsetIndex)
	if err != nil {
		return errors.Wrapf(err, "table file %s", h.file.Name())
	}
	for _, s := range live {
		if s.OID > h.desc.LastOID {
			return errors.Wrapf(format.ErrFormat, "slot oid %d is above last_oid %d", s.OID, h.desc.LastOID)
		}
		if _, dup := h.index.ReplaceOrInsert(s); dup {
			return errors.Wrapf(format.ErrFormat, "oid %d has two live slots", s.OID)
		}
	}
	if uint32(h.index.Len()) != h.desc.RecordCount {
		return errors.Wrapf(format.ErrFormat, "record_count %d but %d live slots", h.desc.RecordCount, h.index.Len())
	}
	return nil
}

// Name returns the table name.
func (h *Handle) Name() string { return h.name }

// Schema returns a copy of the table schema.
func (h *Handle) Schema() *schema.TableSchema { return h.schema.Clone() }

// Codec returns the record codec for this table.
func (h *Handle) Codec() *record.Codec { return h.codec }

// Len returns the number of live records.
func (h *Handle) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.index.Len()
}

// LastOID returns the highest OID assigned in this table file.
func (h *Handle) LastOID() uint64 {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.desc.LastOID
}

// Stats returns occupancy figures.
func (h *Handle) Stats() Stats {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return Stats{
		Table:        h.name,
		Records:      h.index.Len(),
		LastOID:      h.desc.LastOID,
		OffsetHeader: h.header.OffsetHeader,
		OffsetFree:   h.desc.OffsetFree,
		FileSize:     h.size,
	}
}

// Insert stores a new record and returns its OID. values holds every field
// except the OID field, in schema order.
func (h *Handle) Insert(values record.Record) (uint64, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isOpen {
		return 0, format.ErrClosed
	}

	oidField := h.schema.Fields[0]
	if len(values) != len(h.schema.Fields)-1 {
		return 0, errors.Wrapf(format.ErrTypeMismatch, "insert into %q takes %d values, got %d",
			h.name, len(h.schema.Fields)-1, len(values))
	}

	// Encode with a zero OID first so that bad values do not consume an OID.
	zero, err := codec.OIDValue(oidField.Type, 0)
	if err != nil {
		return 0, err
	}
	full := make(record.Record, 0, len(h.schema.Fields))
	full = append(full, zero)
	full = append(full, values...)
	data, err := h.codec.Encode(full)
	if err != nil {
		return 0, err
	}

	limit := codec.MaxOID(oidField.Type)
	if h.desc.LastOID >= limit {
		return 0, errors.Wrapf(format.ErrCapacityExceeded, "table %q has exhausted its %s oids", h.name, oidField.Type)
	}
	oid := h.desc.LastOID + 1
	if h.alloc != nil {
		if oid, err = h.alloc.NextOID(h.name, oid, limit); err != nil {
			return 0, err
		}
	}

	oidValue, err := codec.OIDValue(oidField.Type, oid)
	if err != nil {
		return 0, err
	}
	oidBytes, err := codec.EncodeValue(oidField.Type, oidValue)
	if err != nil {
		return 0, err
	}
	copy(data[1:], oidBytes)

	s, err := h.appendSlot(oid, data)
	if err != nil {
		return 0, err
	}
	h.desc.LastOID = oid
	h.desc.RecordCount++
	if err := h.writeDescriptor(); err != nil {
		return 0, err
	}
	h.index.ReplaceOrInsert(s)
	return oid, nil
}

// ReadRaw returns the encoded record stored under oid.
func (h *Handle) ReadRaw(oid uint64) ([]byte, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.readRawLocked(oid)
}

func (h *Handle) readRawLocked(oid uint64) ([]byte, error) {
	if !h.isOpen {
		return nil, format.ErrClosed
	}
	s, ok := h.index.Get(slot{OID: oid})
	if !ok {
		return nil, errors.Wrapf(format.ErrNotFound, "table %q has no record %d", h.name, oid)
	}
	buf := make([]byte, s.Length)
	if _, err := h.file.ReadAt(buf, s.dataOffset()); err != nil {
		return nil, format.WrapIO(err, "read record %d of %q", oid, h.name)
	}
	return buf, nil
}

// Read returns the decoded record stored under oid.
func (h *Handle) Read(oid uint64) (record.Record, error) {
	raw, err := h.ReadRaw(oid)
	if err != nil {
		return nil, err
	}
	return h.codec.Decode(raw)
}

// Replace overwrites the record whose OID is r's OID field. A record of the
// same encoded length is rewritten in place; otherwise the old slot is marked
// deleted and a new one appended.
func (h *Handle) Replace(r record.Record) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isOpen {
		return format.ErrClosed
	}
	oid, err := h.codec.OID(r)
	if err != nil {
		return err
	}
	old, ok := h.index.Get(slot{OID: oid})
	if !ok {
		return errors.Wrapf(format.ErrNotFound, "table %q has no record %d", h.name, oid)
	}
	data, err := h.codec.Encode(r)
	if err != nil {
		return err
	}

	if uint32(len(data)) == old.Length {
		if _, err := h.file.WriteAt(data, old.dataOffset()); err != nil {
			return format.WrapIO(err, "rewrite record %d of %q", oid, h.name)
		}
		return h.syncLocked()
	}

	free := h.desc.OffsetFree
	s, err := h.appendSlot(oid, data)
	if err != nil {
		return err
	}
	if err := h.markDeleted(old); err != nil {
		// The appended slot stays past offset_free and is overwritten later.
		h.desc.OffsetFree = free
		return err
	}
	h.index.ReplaceOrInsert(s)
	return h.writeDescriptor()
}

// Delete removes the record stored under oid. OIDs are never reused.
func (h *Handle) Delete(oid uint64) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.isOpen {
		return format.ErrClosed
	}
	s, ok := h.index.Get(slot{OID: oid})
	if !ok {
		return errors.Wrapf(format.ErrNotFound, "table %q has no record %d", h.name, oid)
	}
	if err := h.markDeleted(s); err != nil {
		return err
	}
	h.desc.RecordCount--
	if err := h.writeDescriptor(); err != nil {
		return err
	}
	h.index.Delete(s)
	return nil
}

// Scan calls fn for every live record in OID order until fn returns an error.
// fn runs without the handle lock held and may call other Handle methods;
// records deleted during the scan are skipped.
func (h *Handle) Scan(fn func(oid uint64, r record.Record) error) error {
	h.mutex.Lock()
	if !h.isOpen {
		h.mutex.Unlock()
		return format.ErrClosed
	}
	oids := make([]uint64, 0, h.index.Len())
	h.index.Ascend(func(s slot) bool {
		oids = append(oids, s.OID)
		return true
	})
	h.mutex.Unlock()

	for _, oid := range oids {
		r, err := h.Read(oid)
		if errors.Is(err, format.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(oid, r); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the table file to stable storage.
func (h *Handle) Sync() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.isOpen {
		return format.ErrClosed
	}
	return format.WrapIO(h.file.Sync(), "sync table %q", h.name)
}

// Close releases the table file. Closing twice is a no-op.
func (h *Handle) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.isOpen {
		return nil
	}
	h.isOpen = false
	return format.WrapIO(h.file.Close(), "close table %q", h.name)
}

// appendSlot writes a live slot at offset_free, growing the region first when
// it does not fit. The descriptor is updated in memory only.
func (h *Handle) appendSlot(oid uint64, data []byte) (slot, error) {
	need := int64(format.SlotHeaderSize) + int64(len(data))
	end := int64(h.desc.OffsetFree) + need
	if end > math.MaxUint32 {
		return slot{}, errors.Wrapf(format.ErrCapacityExceeded, "table %q would exceed 4 GiB", h.name)
	}
	if end > h.size {
		if err := h.grow(end); err != nil {
			return slot{}, err
		}
	}

	buf := marshalSlotHeader(oid, format.SlotLive, uint32(len(data)))
	buf = append(buf, data...)
	if _, err := h.file.WriteAt(buf, int64(h.desc.OffsetFree)); err != nil {
		return slot{}, format.WrapIO(err, "append record %d to %q", oid, h.name)
	}
	s := slot{OID: oid, Offset: h.desc.OffsetFree, Length: uint32(len(data))}
	h.desc.OffsetFree = s.end()
	return s, nil
}

// grow extends the file by whole capacity steps until it holds at least want bytes.
func (h *Handle) grow(want int64) error {
	step := int64(h.capacity)
	size := h.size
	for size < want {
		size += step
	}
	if size > math.MaxUint32 {
		size = math.MaxUint32
	}
	if err := h.file.Truncate(size); err != nil {
		return format.WrapIO(err, "grow table %q to %d bytes", h.name, size)
	}
	h.logger.Debug("table region grown", "from", h.size, "to", size)
	h.size = size
	return nil
}

func (h *Handle) markDeleted(s slot) error {
	if _, err := h.file.WriteAt([]byte{format.SlotDeleted}, int64(s.Offset)+8); err != nil {
		return format.WrapIO(err, "delete record %d of %q", s.OID, h.name)
	}
	return nil
}

func (h *Handle) writeDescriptor() error {
	if _, err := h.file.WriteAt(h.desc.marshal(), int64(h.header.OffsetHeader)); err != nil {
		return format.WrapIO(err, "write region descriptor of %q", h.name)
	}
	return h.syncLocked()
}

func (h *Handle) syncLocked() error {
	if !h.sync {
		return nil
	}
	return format.WrapIO(h.file.Sync(), "sync table %q", h.name)
}
