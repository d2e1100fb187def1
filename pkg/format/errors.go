package format

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// Error taxonomy. Every package wraps one of these so callers can classify a
// failure with errors.Is while still getting a readable cause.
var (
	ErrFormat           = errors.New("format error")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrTruncatedRecord  = errors.New("truncated record")
	ErrFieldTooLarge    = errors.New("field too large")
	ErrIO               = errors.New("i/o error")
	ErrInvalidSchema    = errors.New("invalid schema")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrLocked           = errors.New("database is locked by another writer")
	ErrClosed           = errors.New("handle is closed")

	// ErrNameTooLong is also a capacity error.
	ErrNameTooLong = errors.Mark(errors.New("name too long"), ErrCapacityExceeded)
)

// WrapIO wraps a file-system failure and marks it as ErrIO. A nil err yields nil.
func WrapIO(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, format, args...), ErrIO)
}

// PadName writes name into a zero-filled buffer of width bytes (right padding).
func PadName(name string, width int) ([]byte, error) {
	if len(name) > width {
		return nil, errors.Wrapf(ErrNameTooLong, "%q is %d bytes, limit %d", name, len(name), width)
	}
	buf := make([]byte, width)
	copy(buf, name)
	return buf, nil
}

// TrimName reverses PadName: the name ends at the first zero byte.
func TrimName(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}
