package format

import (
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameTooLongIsCapacityError(t *testing.T) {
	err := errors.Wrapf(ErrNameTooLong, "table %q", "x")

	assert.True(t, errors.Is(err, ErrNameTooLong))
	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.False(t, errors.Is(err, ErrFormat))
}

func TestWrapIO(t *testing.T) {
	assert.NoError(t, WrapIO(nil, "nothing"))

	_, statErr := os.Stat("/definitely/not/here")
	require.Error(t, statErr)

	err := WrapIO(statErr, "stat %s", "here")
	assert.True(t, errors.Is(err, ErrIO))
	assert.Contains(t, err.Error(), "stat here")
}

func TestPadName(t *testing.T) {
	t.Run("right padded", func(t *testing.T) {
		buf, err := PadName("orders", 64)
		require.NoError(t, err)
		assert.Len(t, buf, 64)
		assert.Equal(t, []byte("orders"), buf[:6])
		for _, b := range buf[6:] {
			assert.Equal(t, byte(0), b)
		}
		assert.Equal(t, "orders", TrimName(buf))
	})

	t.Run("exact width", func(t *testing.T) {
		name := strings.Repeat("n", 64)
		buf, err := PadName(name, 64)
		require.NoError(t, err)
		assert.Equal(t, name, TrimName(buf))
	})

	t.Run("too long", func(t *testing.T) {
		_, err := PadName(strings.Repeat("n", 65), 64)
		assert.True(t, errors.Is(err, ErrNameTooLong))
	})
}
