package table

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/logging"
	"github.com/ssargent/objektdb/pkg/schema"
)

// StoreConfig holds configuration for a table store
type StoreConfig struct {
	Dir        string // database directory holding the table and bucket files
	Capacity   uint32 // data region size at creation, and the growth step
	SyncWrites bool   // fsync after every mutation
}

// Store creates, reinitializes, opens and removes the table files of one
// database directory.
type Store struct {
	config StoreConfig
	logger *slog.Logger
}

// NewStore creates a table store. A zero Capacity selects DefaultTableCapacity.
func NewStore(config StoreConfig, logger *slog.Logger) (*Store, error) {
	if config.Dir == "" {
		return nil, errors.New("table store directory is required")
	}
	if config.Capacity == 0 {
		config.Capacity = format.DefaultTableCapacity
	}
	if config.Capacity < format.MinTableCapacity {
		return nil, errors.Wrapf(format.ErrCapacityExceeded, "table capacity %d is below the minimum %d",
			config.Capacity, format.MinTableCapacity)
	}
	return &Store{config: config, logger: logging.OrDiscard(logger)}, nil
}

// Config returns the effective configuration.
func (s *Store) Config() StoreConfig {
	return s.config
}

// TablePath returns the table file path for name.
func (s *Store) TablePath(name string) string {
	return filepath.Join(s.config.Dir, format.TableFileName(name))
}

// BucketPath returns the bucket file path for name.
func (s *Store) BucketPath(name string) string {
	return filepath.Join(s.config.Dir, format.BucketFileName(name))
}

// Exists reports whether the table file for name is present.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.TablePath(name))
	return err == nil
}

// Create writes a new table file (header followed by Capacity zero bytes) and
// an empty bucket file. Neither file may exist. On failure no file created by
// this call is left behind.
func (s *Store) Create(ts *schema.TableSchema) error {
	header, err := ts.MarshalHeader()
	if err != nil {
		return err
	}

	tablePath := s.TablePath(ts.Name)
	f, err := os.OpenFile(tablePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(format.ErrAlreadyExists, "table file %s", tablePath)
		}
		return format.WrapIO(err, "create table file %s", tablePath)
	}

	if err := s.writeTable(f, header); err != nil {
		f.Close()
		os.Remove(tablePath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tablePath)
		return format.WrapIO(err, "close table file %s", tablePath)
	}

	bucketPath := s.BucketPath(ts.Name)
	b, err := os.OpenFile(bucketPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		os.Remove(tablePath)
		if os.IsExist(err) {
			return errors.Wrapf(format.ErrAlreadyExists, "bucket file %s", bucketPath)
		}
		return format.WrapIO(err, "create bucket file %s", bucketPath)
	}
	if err := b.Close(); err != nil {
		os.Remove(tablePath)
		os.Remove(bucketPath)
		return format.WrapIO(err, "close bucket file %s", bucketPath)
	}

	s.logger.Debug("table created",
		"table", ts.Name,
		"offset_header", len(header),
		"capacity", s.config.Capacity)
	return nil
}

// Reinitialize rewrites an existing table file from ts, discarding every
// record, and truncates its bucket file. The table file must exist.
func (s *Store) Reinitialize(ts *schema.TableSchema) error {
	header, err := ts.MarshalHeader()
	if err != nil {
		return err
	}

	tablePath := s.TablePath(ts.Name)
	f, err := os.OpenFile(tablePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(format.ErrNotFound, "table file %s", tablePath)
		}
		return format.WrapIO(err, "open table file %s", tablePath)
	}
	if err := s.writeTable(f, header); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return format.WrapIO(err, "close table file %s", tablePath)
	}

	bucketPath := s.BucketPath(ts.Name)
	b, err := os.OpenFile(bucketPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return format.WrapIO(err, "truncate bucket file %s", bucketPath)
	}
	if err := b.Close(); err != nil {
		return format.WrapIO(err, "close bucket file %s", bucketPath)
	}

	s.logger.Info("table reinitialized", "table", ts.Name, "offset_header", len(header))
	return nil
}

// Remove deletes the table and bucket files of name.
func (s *Store) Remove(name string) error {
	tablePath := s.TablePath(name)
	if err := os.Remove(tablePath); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(format.ErrNotFound, "table file %s", tablePath)
		}
		return format.WrapIO(err, "remove table file %s", tablePath)
	}
	bucketPath := s.BucketPath(name)
	if err := os.Remove(bucketPath); err != nil && !os.IsNotExist(err) {
		return format.WrapIO(err, "remove bucket file %s", bucketPath)
	}
	s.logger.Debug("table removed", "table", name)
	return nil
}

// ReadSchema parses only the header of a table file.
func (s *Store) ReadSchema(name string) (*schema.TableSchema, schema.Header, error) {
	if err := schema.ValidateTableName(name); err != nil {
		return nil, schema.Header{}, err
	}
	f, err := s.openExisting(name, os.O_RDONLY)
	if err != nil {
		return nil, schema.Header{}, err
	}
	defer f.Close()
	ts, hdr, _, err := readHeader(f, name)
	return ts, hdr, err
}

// Open opens a table for record access. OIDs come from the handle's own
// counter; see OpenWith.
func (s *Store) Open(name string) (*Handle, error) {
	return s.OpenWith(name, nil)
}

// OpenWith opens a table whose OIDs are reserved through alloc.
func (s *Store) OpenWith(name string, alloc OIDAllocator) (*Handle, error) {
	if err := schema.ValidateTableName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.BucketPath(name)); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(format.ErrNotFound, "bucket file %s", s.BucketPath(name))
		}
		return nil, format.WrapIO(err, "stat bucket file %s", s.BucketPath(name))
	}

	f, err := s.openExisting(name, os.O_RDWR)
	if err != nil {
		return nil, err
	}
	h, err := newHandle(f, name, s, alloc)
	if err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

func (s *Store) openExisting(name string, flag int) (*os.File, error) {
	path := s.TablePath(name)
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(format.ErrNotFound, "table file %s", path)
		}
		return nil, format.WrapIO(err, "open table file %s", path)
	}
	return f, nil
}

func (s *Store) writeTable(f *os.File, header []byte) error {
	if _, err := f.Write(header); err != nil {
		return format.WrapIO(err, "write table header %s", f.Name())
	}
	if err := f.Truncate(int64(len(header)) + int64(s.config.Capacity)); err != nil {
		return format.WrapIO(err, "allocate table region %s", f.Name())
	}
	if s.config.SyncWrites {
		if err := f.Sync(); err != nil {
			return format.WrapIO(err, "sync table file %s", f.Name())
		}
	}
	return nil
}

// readHeader reads and parses the table header and checks the stored name.
// It also returns the file size.
func readHeader(f *os.File, name string) (*schema.TableSchema, schema.Header, int64, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, schema.Header{}, 0, format.WrapIO(err, "stat table file %s", f.Name())
	}
	size := info.Size()
	if size < format.MinTableHeaderSize {
		return nil, schema.Header{}, size, errors.Wrapf(format.ErrFormat, "table file %s is %d bytes, need at least %d",
			f.Name(), size, format.MinTableHeaderSize)
	}

	fixed := make([]byte, format.TableFixedHeaderSize)
	if _, err := f.ReadAt(fixed, 0); err != nil {
		return nil, schema.Header{}, size, format.WrapIO(err, "read table header %s", f.Name())
	}
	offsetHeader, err := schema.ReadOffsetHeader(fixed)
	if err != nil {
		return nil, schema.Header{}, size, err
	}
	if int64(offsetHeader) > size || offsetHeader < format.MinTableHeaderSize {
		return nil, schema.Header{}, size, errors.Wrapf(format.ErrFormat, "table file %s: offset_header %d outside [%d, %d]",
			f.Name(), offsetHeader, format.MinTableHeaderSize, size)
	}

	raw := make([]byte, offsetHeader)
	if _, err := f.ReadAt(raw, 0); err != nil && err != io.EOF {
		return nil, schema.Header{}, size, format.WrapIO(err, "read table header %s", f.Name())
	}
	ts, hdr, err := schema.ParseHeader(raw)
	if err != nil {
		return nil, hdr, size, errors.Wrapf(err, "table file %s", f.Name())
	}
	if hdr.Name != name {
		return nil, hdr, size, errors.Wrapf(format.ErrFormat, "table file %s stores table %q", f.Name(), hdr.Name)
	}
	return ts, hdr, size, nil
}
