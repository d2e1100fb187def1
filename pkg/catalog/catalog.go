package catalog

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/logging"
	"github.com/ssargent/objektdb/pkg/metrics"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/ssargent/objektdb/pkg/table"
)

// Config holds configuration for a catalog root
type Config struct {
	Root          string           // directory holding one sub-directory per database
	TableCapacity uint32           // data region size of new tables; 0 selects the default
	SyncWrites    bool             // fsync catalog and table files after every mutation
	Logger        *slog.Logger     // nil discards
	Metrics       *metrics.Metrics // nil records nothing
}

// Catalog manages the databases under one root directory.
type Catalog struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCatalog creates the root directory if needed.
func NewCatalog(config Config) (*Catalog, error) {
	if config.Root == "" {
		return nil, errors.New("catalog root directory is required")
	}
	if err := os.MkdirAll(config.Root, 0755); err != nil {
		return nil, format.WrapIO(err, "create root %s", config.Root)
	}
	return &Catalog{
		config:  config,
		logger:  logging.OrDiscard(config.Logger),
		metrics: config.Metrics,
	}, nil
}

// Root returns the root directory.
func (c *Catalog) Root() string { return c.config.Root }

// DBPath returns the directory of a database.
func (c *Catalog) DBPath(name string) string {
	return filepath.Join(c.config.Root, name)
}

// CatalogPath returns the catalog file of a database.
func (c *Catalog) CatalogPath(name string) string {
	return filepath.Join(c.config.Root, name, format.CatalogFileName(name))
}

// CreateDB creates <root>/<name>/ and an empty catalog file inside it.
func (c *Catalog) CreateDB(name string) (err error) {
	defer c.metrics.ObserveOperation("create_db", time.Now(), &err)

	if err := validateDBName(name); err != nil {
		return err
	}
	dir := c.DBPath(name)
	if err := os.Mkdir(dir, 0755); err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(format.ErrAlreadyExists, "database %q", name)
		}
		return format.WrapIO(err, "create database directory %s", dir)
	}

	if err := c.writeEmptyCatalog(name); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			err = errors.WithSecondaryError(err, rmErr)
		}
		return err
	}

	c.metrics.SetTables(name, 0)
	c.logger.Info("database created", "database", name, "path", dir)
	return nil
}

func (c *Catalog) writeEmptyCatalog(name string) error {
	path := c.CatalogPath(name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errors.Wrapf(format.ErrAlreadyExists, "catalog file %s", path)
		}
		return format.WrapIO(err, "create catalog file %s", path)
	}
	if _, err := f.Write(NewHeader().Marshal()); err != nil {
		f.Close()
		return format.WrapIO(err, "write catalog header %s", path)
	}
	if c.config.SyncWrites {
		if err := f.Sync(); err != nil {
			f.Close()
			return format.WrapIO(err, "sync catalog file %s", path)
		}
	}
	return format.WrapIO(f.Close(), "close catalog file %s", path)
}

// DeleteDB removes a database: every registered table and bucket file, the
// catalog file and the directory. The database must not be open.
func (c *Catalog) DeleteDB(name string) (err error) {
	defer c.metrics.ObserveOperation("delete_db", time.Now(), &err)

	if err := validateDBName(name); err != nil {
		return err
	}
	path := c.CatalogPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(format.ErrNotFound, "database %q", name)
		}
		return format.WrapIO(err, "stat catalog file %s", path)
	}

	db, err := c.Open(name)
	if err != nil {
		return err
	}
	tables, err := db.drop()
	if err != nil {
		return err
	}

	dir := c.DBPath(name)
	if err := os.RemoveAll(dir); err != nil {
		return format.WrapIO(err, "remove database directory %s", dir)
	}

	c.metrics.ForgetDatabase(name, tables)
	c.logger.Info("database deleted", "database", name, "tables", len(tables))
	return nil
}

// ListDBs returns the names of the databases under the root, sorted.
func (c *Catalog) ListDBs() ([]string, error) {
	entries, err := os.ReadDir(c.config.Root)
	if err != nil {
		return nil, format.WrapIO(err, "list root %s", c.config.Root)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if info, err := os.Stat(c.CatalogPath(e.Name())); err == nil && info.Mode().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Open takes the single-writer lock of a database and loads its catalog.
func (c *Catalog) Open(name string) (*Database, error) {
	if err := validateDBName(name); err != nil {
		return nil, err
	}
	path := c.CatalogPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(format.ErrNotFound, "database %q", name)
		}
		return nil, format.WrapIO(err, "stat catalog file %s", path)
	}

	lock, err := acquireLock(c.DBPath(name), name)
	if err != nil {
		if errors.Is(err, format.ErrLocked) {
			c.metrics.RecordLockConflict()
		}
		return nil, err
	}

	db, err := openDatabase(c, name, lock)
	if err != nil {
		lock.release()
		return nil, err
	}
	return db, nil
}

// CreateTable registers a table in an existing database: open, register, close.
func (c *Catalog) CreateTable(db string, ts *schema.TableSchema) error {
	d, err := c.Open(db)
	if err != nil {
		return err
	}
	regErr := d.RegisterTable(ts)
	if err := d.Close(); err != nil && regErr == nil {
		return err
	}
	return regErr
}

// ReinitializeTable rewrites a registered table from ts, discarding its records.
func (c *Catalog) ReinitializeTable(db string, ts *schema.TableSchema) error {
	d, err := c.Open(db)
	if err != nil {
		return err
	}
	reErr := d.ReinitializeTable(ts)
	if err := d.Close(); err != nil && reErr == nil {
		return err
	}
	return reErr
}

func validateDBName(name string) error {
	if err := schema.ValidateTableName(name); err != nil {
		return errors.Wrap(err, "database name")
	}
	return nil
}

func (c *Catalog) tableStore(name string) (*table.Store, error) {
	return table.NewStore(table.StoreConfig{
		Dir:        c.DBPath(name),
		Capacity:   c.config.TableCapacity,
		SyncWrites: c.config.SyncWrites,
	}, c.logger.With("database", name))
}
