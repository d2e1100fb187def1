//go:build !unix

package catalog

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// Without flock the lock file itself is the lock: it exists while held.
func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(format.ErrLocked, "lock file %s", path)
		}
		return nil, format.WrapIO(err, "create lock file %s", path)
	}
	return f, nil
}

func unlockFile(f *os.File, path string) error {
	closeErr := f.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return format.WrapIO(err, "remove lock file %s", path)
	}
	return format.WrapIO(closeErr, "close lock file %s", path)
}
