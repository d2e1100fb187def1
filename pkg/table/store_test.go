package table

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersSchema() *schema.TableSchema {
	return schema.New("orders").
		OID("id", codec.TypeI64).
		ForeignKey("customer", codec.TypeI64, "customers").
		Field("item", codec.TypeString).
		Field("quantity", codec.TypeU32)
}

func newTestStore(t *testing.T, capacity uint32) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "objektdb-table-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewStore(StoreConfig{Dir: dir, Capacity: capacity}, nil)
	require.NoError(t, err)
	return s
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(StoreConfig{Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(format.DefaultTableCapacity), s.Config().Capacity)

	_, err = NewStore(StoreConfig{Dir: t.TempDir(), Capacity: 8}, nil)
	assert.True(t, errors.Is(err, format.ErrCapacityExceeded))

	_, err = NewStore(StoreConfig{}, nil)
	assert.Error(t, err)
}

func TestStore_Create(t *testing.T) {
	s := newTestStore(t, 1024)
	ts := ordersSchema()
	require.NoError(t, s.Create(ts))

	header, err := ts.MarshalHeader()
	require.NoError(t, err)

	data, err := os.ReadFile(s.TablePath("orders"))
	require.NoError(t, err)
	require.Len(t, data, len(header)+1024)
	assert.Equal(t, header, data[:len(header)])
	assert.Equal(t, make([]byte, 1024), data[len(header):], "region is zero filled")
	assert.Equal(t, uint32(len(header)), binary.LittleEndian.Uint32(data[64:68]))

	info, err := os.Stat(s.BucketPath("orders"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
	assert.True(t, s.Exists("orders"))
}

func TestStore_Create_AlreadyExists(t *testing.T) {
	s := newTestStore(t, 1024)
	require.NoError(t, s.Create(ordersSchema()))

	before, err := os.ReadFile(s.TablePath("orders"))
	require.NoError(t, err)

	err = s.Create(ordersSchema())
	assert.True(t, errors.Is(err, format.ErrAlreadyExists), "got %v", err)

	after, err := os.ReadFile(s.TablePath("orders"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing table untouched")
}

func TestStore_Create_NameTooLongLeavesNoFiles(t *testing.T) {
	s := newTestStore(t, 1024)
	name := strings.Repeat("n", 65)

	err := s.Create(schema.New(name).OID("id", codec.TypeU32))
	assert.True(t, errors.Is(err, format.ErrNameTooLong))
	assert.True(t, errors.Is(err, format.ErrCapacityExceeded))

	entries, err := os.ReadDir(s.Config().Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_Create_BucketConflictRemovesTable(t *testing.T) {
	s := newTestStore(t, 1024)
	require.NoError(t, os.Mkdir(s.BucketPath("orders"), 0755))

	err := s.Create(ordersSchema())
	require.Error(t, err)
	assert.True(t, errors.Is(err, format.ErrAlreadyExists))
	assert.False(t, s.Exists("orders"))
}

func TestStore_Reinitialize(t *testing.T) {
	s := newTestStore(t, 256)
	require.NoError(t, s.Create(ordersSchema()))

	h, err := s.Open("orders")
	require.NoError(t, err)
	_, err = h.Insert([]any{int64(1), "widget", uint32(3)})
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, os.WriteFile(s.BucketPath("orders"), []byte("payload"), 0644))

	wider := ordersSchema().Field("note", codec.TypeString)
	require.NoError(t, s.Reinitialize(wider))

	h, err = s.Open("orders")
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, wider, h.Schema())

	info, err := os.Stat(s.BucketPath("orders"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestStore_Reinitialize_Missing(t *testing.T) {
	s := newTestStore(t, 256)
	err := s.Reinitialize(ordersSchema())
	assert.True(t, errors.Is(err, format.ErrNotFound))
	assert.False(t, s.Exists("orders"))
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t, 256)
	require.NoError(t, s.Create(ordersSchema()))
	require.NoError(t, s.Remove("orders"))

	_, err := os.Stat(s.TablePath("orders"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(s.BucketPath("orders"))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, errors.Is(s.Remove("orders"), format.ErrNotFound))
}

func TestStore_ReadSchema(t *testing.T) {
	s := newTestStore(t, 256)
	require.NoError(t, s.Create(ordersSchema()))

	got, hdr, err := s.ReadSchema("orders")
	require.NoError(t, err)
	assert.Equal(t, ordersSchema(), got)
	assert.Equal(t, "orders", hdr.Name)
}

func TestStore_Open_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, s *Store)
		wantErr error
	}{
		{
			name:    "missing table",
			setup:   func(t *testing.T, s *Store) {},
			wantErr: format.ErrNotFound,
		},
		{
			name: "missing bucket",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				require.NoError(t, os.Remove(s.BucketPath("orders")))
			},
			wantErr: format.ErrNotFound,
		},
		{
			name: "file shorter than header",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				require.NoError(t, os.Truncate(s.TablePath("orders"), 40))
			},
			wantErr: format.ErrFormat,
		},
		{
			name: "stored name differs",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				data, err := os.ReadFile(s.TablePath("orders"))
				require.NoError(t, err)
				copy(data, "ordxrs")
				require.NoError(t, os.WriteFile(s.TablePath("orders"), data, 0644))
			},
			wantErr: format.ErrFormat,
		},
		{
			name: "offset_free past file end",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				patchDescriptor(t, s, func(d *regionDescriptor) { d.OffsetFree = 1 << 30 })
			},
			wantErr: format.ErrFormat,
		},
		{
			name: "offset_index inside header",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				patchDescriptor(t, s, func(d *regionDescriptor) { d.OffsetIndex = 10 })
			},
			wantErr: format.ErrFormat,
		},
		{
			name: "bucket ref mismatch",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				patchDescriptor(t, s, func(d *regionDescriptor) { d.BucketRef ^= 0xFF })
			},
			wantErr: format.ErrFormat,
		},
		{
			name: "record count disagrees with slots",
			setup: func(t *testing.T, s *Store) {
				require.NoError(t, s.Create(ordersSchema()))
				patchDescriptor(t, s, func(d *regionDescriptor) { d.RecordCount = 3 })
			},
			wantErr: format.ErrFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, 256)
			tt.setup(t, s)

			h, err := s.Open("orders")
			require.Error(t, err)
			assert.Nil(t, h)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

// patchDescriptor rewrites the region descriptor of the orders table, starting
// from the descriptor a fresh handle would use.
func patchDescriptor(t *testing.T, s *Store, mutate func(d *regionDescriptor)) {
	t.Helper()
	path := s.TablePath("orders")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	off := binary.LittleEndian.Uint32(data[64:68])
	start := off + format.RegionDescriptorSize
	d := regionDescriptor{OffsetIndex: start, OffsetFree: start, BucketRef: bucketRef("orders")}
	mutate(&d)
	copy(data[off:], d.marshal())
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestStore_FilesLiveInDir(t *testing.T) {
	s := newTestStore(t, 256)
	assert.Equal(t, filepath.Join(s.Config().Dir, "orders.tbl"), s.TablePath("orders"))
	assert.Equal(t, filepath.Join(s.Config().Dir, "orders_bucket.bin"), s.BucketPath("orders"))
}
