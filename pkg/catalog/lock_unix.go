//go:build unix

package catalog

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
	"golang.org/x/sys/unix"
)

func lockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, format.WrapIO(err, "open lock file %s", path)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errors.Wrapf(format.ErrLocked, "lock file %s", path)
		}
		return nil, format.WrapIO(err, "flock %s", path)
	}
	return f, nil
}

func unlockFile(f *os.File, path string) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return format.WrapIO(err, "unlock %s", path)
	}
	return format.WrapIO(f.Close(), "close lock file %s", path)
}
