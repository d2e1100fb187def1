package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/objektdb/pkg/format"
)

// heldLocks tracks the databases locked by this process. flock is per open
// file description, so two opens in one process need this check as well.
var (
	heldMu    sync.Mutex
	heldLocks = map[string]struct{}{}
)

// dbLock is the single-writer lock of one database directory.
type dbLock struct {
	key   string
	path  string
	file  *os.File
	token ksuid.KSUID
}

func acquireLock(dir, db string) (*dbLock, error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, format.WrapIO(err, "resolve database path %s", dir)
	}

	heldMu.Lock()
	if _, busy := heldLocks[key]; busy {
		heldMu.Unlock()
		return nil, errors.Wrapf(format.ErrLocked, "database %q is already open in this process", db)
	}
	heldLocks[key] = struct{}{}
	heldMu.Unlock()

	path := filepath.Join(dir, format.LockFileName(db))
	f, err := lockFile(path)
	if err != nil {
		forget(key)
		if errors.Is(err, format.ErrLocked) {
			if owner := readOwner(path); owner != "" {
				return nil, errors.Wrapf(err, "database %q is held by %s", db, owner)
			}
			return nil, errors.Wrapf(err, "database %q", db)
		}
		return nil, err
	}

	l := &dbLock{key: key, path: path, file: f, token: ksuid.New()}
	owner := fmt.Sprintf("%s pid=%d\n", l.token, os.Getpid())
	if err := writeOwner(f, owner); err != nil {
		l.release()
		return nil, format.WrapIO(err, "write lock file %s", path)
	}
	return l, nil
}

// Token identifies this lock holder.
func (l *dbLock) Token() string {
	return l.token.String()
}

func (l *dbLock) release() error {
	if l == nil {
		return nil
	}
	err := unlockFile(l.file, l.path)
	forget(l.key)
	return err
}

func forget(key string) {
	heldMu.Lock()
	delete(heldLocks, key)
	heldMu.Unlock()
}

func writeOwner(f *os.File, owner string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(owner), 0)
	return err
}

func readOwner(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
