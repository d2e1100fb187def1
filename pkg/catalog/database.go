package catalog

import (
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/metrics"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/ssargent/objektdb/pkg/table"
)

// Database is an open database: its catalog file, the single-writer lock and
// the table handles opened through it.
type Database struct {
	name    string
	path    string
	file    *os.File
	header  Header
	entries []*tableEntry
	size    int64
	store   *table.Store
	handles map[string]*table.Handle
	lock    *dbLock
	sync    bool
	logger  *slog.Logger
	metrics *metrics.Metrics
	mutex   sync.Mutex
	isOpen  bool
}

// tableEntry is a directory entry plus its slot index. It is the OID
// allocator of its table; mu guards LastOID so inserts never need the
// database mutex.
type tableEntry struct {
	DirectoryEntry
	index int
	db    *Database
	mu    sync.Mutex
}

func openDatabase(c *Catalog, name string, lock *dbLock) (*Database, error) {
	path := c.CatalogPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, format.WrapIO(err, "open catalog file %s", path)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, format.WrapIO(err, "read catalog file %s", path)
	}
	header, err := ParseHeader(data)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "catalog %s", path)
	}

	store, err := c.tableStore(name)
	if err != nil {
		f.Close()
		return nil, err
	}

	d := &Database{
		name:    name,
		path:    path,
		file:    f,
		header:  header,
		size:    int64(len(data)),
		store:   store,
		handles: make(map[string]*table.Handle),
		lock:    lock,
		sync:    c.config.SyncWrites,
		logger:  c.logger.With("database", name),
		metrics: c.metrics,
	}

	seen := make(map[string]struct{}, header.TableCount)
	for i := 0; i < int(header.TableCount); i++ {
		e, err := ParseEntry(data[entryOffset(i):])
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "catalog %s entry %d", path, i)
		}
		if _, dup := seen[e.Name]; dup {
			f.Close()
			return nil, errors.Wrapf(format.ErrFormat, "catalog %s lists table %q twice", path, e.Name)
		}
		seen[e.Name] = struct{}{}
		d.entries = append(d.entries, &tableEntry{DirectoryEntry: e, index: i, db: d})
	}

	d.isOpen = true
	d.metrics.SetTables(name, len(d.entries))
	d.logger.Debug("database opened", "tables", len(d.entries), "lock", lock.Token())
	return d, nil
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Store returns the table store of the database directory.
func (d *Database) Store() *table.Store { return d.store }

// Header returns the catalog header.
func (d *Database) Header() Header {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.header
}

// Tables returns the directory entries in registration order.
func (d *Database) Tables() []DirectoryEntry {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := make([]DirectoryEntry, len(d.entries))
	for i, e := range d.entries {
		e.mu.Lock()
		out[i] = e.DirectoryEntry
		e.mu.Unlock()
	}
	return out
}

// Entry returns the directory entry of a table.
func (d *Database) Entry(name string) (DirectoryEntry, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	e := d.findLocked(name)
	if e == nil {
		return DirectoryEntry{}, errors.Wrapf(format.ErrNotFound, "table %q in database %q", name, d.name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.DirectoryEntry, nil
}

// Schema reads the schema of a registered table from its header.
func (d *Database) Schema(name string) (*schema.TableSchema, error) {
	if _, err := d.Entry(name); err != nil {
		return nil, err
	}
	ts, _, err := d.store.ReadSchema(name)
	return ts, err
}

// RegisterTable adds ts to the catalog and creates its table and bucket
// files. Either both happen or the catalog is restored byte for byte.
func (d *Database) RegisterTable(ts *schema.TableSchema) (err error) {
	defer d.metrics.ObserveOperation("create_table", time.Now(), &err)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return format.ErrClosed
	}
	if err := ts.Validate(); err != nil {
		return err
	}
	if err := d.verifyHeaderLocked(); err != nil {
		return err
	}
	if int(d.header.TableCount) >= format.MaxTables {
		return errors.Wrapf(format.ErrCapacityExceeded, "database %q already has %d tables", d.name, d.header.TableCount)
	}
	if d.findLocked(ts.Name) != nil {
		return errors.Wrapf(format.ErrAlreadyExists, "table %q in database %q", ts.Name, d.name)
	}

	entry := newEntry(ts.Name)
	raw, err := entry.Marshal()
	if err != nil {
		return err
	}

	count := d.header.TableCount
	off := int64(entryOffset(int(count)))
	saved, err := d.snapshotLocked(off, format.DirectoryEntrySize)
	if err != nil {
		return err
	}

	if err := d.writeEntryLocked(off, raw, count+1); err != nil {
		return d.rollbackLocked(err, off, saved, count)
	}
	if err := d.store.Create(ts); err != nil {
		return d.rollbackLocked(err, off, saved, count)
	}

	d.header.TableCount = count + 1
	if end := off + format.DirectoryEntrySize; end > d.size {
		d.size = end
	}
	d.entries = append(d.entries, &tableEntry{DirectoryEntry: entry, index: int(count), db: d})

	d.metrics.SetTables(d.name, len(d.entries))
	d.logger.Info("table registered",
		"table", ts.Name,
		"fields", len(ts.Fields),
		"references", len(ts.References),
		"slot", count)
	return nil
}

// verifyHeaderLocked re-reads the on-disk header so that a catalog damaged
// after open is not appended to.
func (d *Database) verifyHeaderLocked() error {
	buf := make([]byte, format.CatalogHeaderSize)
	if _, err := d.file.ReadAt(buf, 0); err != nil {
		return format.WrapIO(err, "read catalog header %s", d.path)
	}
	if magic := binary.LittleEndian.Uint32(buf); magic != format.MagicNumber {
		return errors.Wrapf(format.ErrFormat, "bad catalog magic %#08x in %s", magic, d.path)
	}
	if buf[format.CatalogCountOffset] != d.header.TableCount {
		return errors.Wrapf(format.ErrFormat, "catalog %s table_count changed from %d to %d",
			d.path, d.header.TableCount, buf[format.CatalogCountOffset])
	}
	return nil
}

// snapshotLocked returns the current bytes in [off, off+n), clipped to the file.
func (d *Database) snapshotLocked(off int64, n int) ([]byte, error) {
	if off >= d.size {
		return nil, nil
	}
	if rest := d.size - off; rest < int64(n) {
		n = int(rest)
	}
	buf := make([]byte, n)
	if _, err := d.file.ReadAt(buf, off); err != nil {
		return nil, format.WrapIO(err, "read catalog %s", d.path)
	}
	return buf, nil
}

func (d *Database) writeEntryLocked(off int64, raw []byte, count uint8) error {
	if _, err := d.file.WriteAt(raw, off); err != nil {
		return format.WrapIO(err, "write directory entry %s", d.path)
	}
	if _, err := d.file.WriteAt([]byte{count}, format.CatalogCountOffset); err != nil {
		return format.WrapIO(err, "write table count %s", d.path)
	}
	return d.syncLocked()
}

// rollbackLocked restores the entry bytes, the file size and table_count as
// they were before a failed registration, and returns cause.
func (d *Database) rollbackLocked(cause error, off int64, saved []byte, count uint8) error {
	restore := func() error {
		if len(saved) > 0 {
			if _, err := d.file.WriteAt(saved, off); err != nil {
				return err
			}
		}
		if err := d.file.Truncate(d.size); err != nil {
			return err
		}
		if _, err := d.file.WriteAt([]byte{count}, format.CatalogCountOffset); err != nil {
			return err
		}
		return d.syncLocked()
	}
	if err := restore(); err != nil {
		d.logger.Error("catalog rollback failed", "error", err)
		return errors.WithSecondaryError(cause, format.WrapIO(err, "roll back catalog %s", d.path))
	}
	d.logger.Warn("table registration rolled back", "error", cause)
	return cause
}

// ReinitializeTable rewrites a registered table from ts, discarding every
// record. Its catalog last_oid is kept, so OIDs stay unique across resets.
func (d *Database) ReinitializeTable(ts *schema.TableSchema) (err error) {
	defer d.metrics.ObserveOperation("reinitialize_table", time.Now(), &err)

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return format.ErrClosed
	}
	if err := ts.Validate(); err != nil {
		return err
	}
	if d.findLocked(ts.Name) == nil {
		return errors.Wrapf(format.ErrNotFound, "table %q in database %q", ts.Name, d.name)
	}
	if h, ok := d.handles[ts.Name]; ok {
		delete(d.handles, ts.Name)
		if err := h.Close(); err != nil {
			return err
		}
	}
	if err := d.store.Reinitialize(ts); err != nil {
		return err
	}
	d.metrics.SetRecords(d.name, ts.Name, 0)
	return nil
}

// OpenTable returns the handle of a registered table, opening it on first
// use. OIDs are reserved through the catalog entry. The handle stays owned by
// the database and is closed by Close.
func (d *Database) OpenTable(name string) (*table.Handle, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.isOpen {
		return nil, format.ErrClosed
	}
	if h, ok := d.handles[name]; ok {
		return h, nil
	}
	e := d.findLocked(name)
	if e == nil {
		return nil, errors.Wrapf(format.ErrNotFound, "table %q in database %q", name, d.name)
	}
	h, err := d.store.OpenWith(name, e)
	if err != nil {
		return nil, err
	}
	d.handles[name] = h
	d.metrics.SetRecords(d.name, name, h.Len())
	return h, nil
}

// NextOID reserves the next OID of a table: one past the catalog's last_oid
// and at least floor. The new last_oid is written before it is returned; an
// OID above limit is refused without touching the catalog.
func (d *Database) NextOID(name string, floor, limit uint64) (uint64, error) {
	d.mutex.Lock()
	e := d.findLocked(name)
	open := d.isOpen
	d.mutex.Unlock()

	if !open {
		return 0, format.ErrClosed
	}
	if e == nil {
		return 0, errors.Wrapf(format.ErrNotFound, "table %q in database %q", name, d.name)
	}
	return e.NextOID(name, floor, limit)
}

// NextOID implements table.OIDAllocator for one catalog entry.
func (e *tableEntry) NextOID(_ string, floor, limit uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.LastOID >= limit || floor > limit {
		return 0, errors.Wrapf(format.ErrCapacityExceeded, "table %q has exhausted its oids", e.Name)
	}
	next := e.LastOID + 1
	if next < floor {
		next = floor
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], next)
	off := int64(entryOffset(e.index)) + format.EntryLastOIDOffset
	if _, err := e.db.file.WriteAt(buf[:], off); err != nil {
		return 0, format.WrapIO(err, "write last_oid of %q", e.Name)
	}
	if e.db.sync {
		if err := e.db.file.Sync(); err != nil {
			return 0, format.WrapIO(err, "sync catalog %s", e.db.path)
		}
	}
	e.LastOID = next
	return next, nil
}

// Close closes every table handle, the catalog file and releases the lock.
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !d.isOpen {
		return nil
	}
	return d.closeLocked()
}

func (d *Database) closeLocked() error {
	d.isOpen = false

	var errs error
	for name, h := range d.handles {
		d.metrics.SetRecords(d.name, name, h.Len())
		errs = errors.CombineErrors(errs, h.Close())
	}
	d.handles = nil
	errs = errors.CombineErrors(errs, format.WrapIO(d.file.Close(), "close catalog %s", d.path))
	errs = errors.CombineErrors(errs, d.lock.release())
	d.logger.Debug("database closed")
	return errs
}

// drop removes every table, then the catalog file, and closes the database.
// It returns the names of the removed tables.
func (d *Database) drop() ([]string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	names := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		names = append(names, e.Name)
	}
	for name, h := range d.handles {
		if err := h.Close(); err != nil {
			d.logger.Warn("closing table before drop", "table", name, "error", err)
		}
	}
	d.handles = map[string]*table.Handle{}

	var errs error
	for _, name := range names {
		if err := d.store.Remove(name); err != nil && !errors.Is(err, format.ErrNotFound) {
			errs = errors.CombineErrors(errs, err)
		}
	}
	if errs == nil {
		if err := os.Remove(d.path); err != nil {
			errs = format.WrapIO(err, "remove catalog %s", d.path)
		}
	}
	if err := d.closeLocked(); err != nil && errs == nil {
		errs = err
	}
	return names, errs
}

func (d *Database) findLocked(name string) *tableEntry {
	for _, e := range d.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (d *Database) syncLocked() error {
	if !d.sync {
		return nil
	}
	return format.WrapIO(d.file.Sync(), "sync catalog %s", d.path)
}
