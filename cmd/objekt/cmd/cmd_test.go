package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/config"
	"github.com/ssargent/objektdb/pkg/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t          *testing.T
	configPath string
	dataDir    string
}

// newCLI writes a config file pointing at a temporary data directory
func newCLI(t *testing.T) *cli {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Storage.TableCapacity = 1024
	cfg.Storage.SyncWrites = false
	cfg.Logging.Level = "error"
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, configPath))
	return &cli{t: t, configPath: configPath, dataDir: cfg.DataDir}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	rootCmd, state := newRootCmd()
	defer state.close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", c.configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func TestDatabaseCommands(t *testing.T) {
	c := newCLI(t)

	assert.Contains(t, c.mustRun("list-dbs"), "No databases found")
	assert.Contains(t, c.mustRun("create-db", "shop"), "Created database shop")
	assert.FileExists(t, filepath.Join(c.dataDir, "shop", "shop.db"))

	_, err := c.run("create-db", "shop")
	assert.True(t, errors.Is(err, format.ErrAlreadyExists), "got %v", err)

	c.mustRun("create-db", "archive")
	out := c.mustRun("list-dbs", "-o", "json")
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"archive", "shop"}, names)

	assert.Contains(t, c.mustRun("drop-db", "archive"), "Dropped database archive")
	assert.NoDirExists(t, filepath.Join(c.dataDir, "archive"))

	_, err = c.run("drop-db", "archive")
	assert.True(t, errors.Is(err, format.ErrNotFound), "got %v", err)
}

func TestTableAndRecordCommands(t *testing.T) {
	c := newCLI(t)
	c.mustRun("create-db", "shop")
	c.mustRun("create-table", "shop", "customers", "--oid", "id:i64", "--field", "name:String", "--field", "vip:bool")
	c.mustRun("create-table", "shop", "orders",
		"--oid", "id:i64", "--field", "customer:i64:customers", "--field", "total:f64", "--method", "ship")

	header, err := os.ReadFile(filepath.Join(c.dataDir, "shop", "orders.tbl"))
	require.NoError(t, err)
	assert.Equal(t, byte(1), header[71], "orders references customers")

	out := c.mustRun("describe", "shop")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "orders.tbl")

	out = c.mustRun("insert", "shop", "customers", "name=ada", "vip=true")
	assert.Contains(t, out, "oid 1")
	out = c.mustRun("insert", "shop", "customers", "name=bob", "vip=false")
	assert.Contains(t, out, "oid 2")
	c.mustRun("insert", "shop", "orders", "customer=1", "total=12.5")

	out = c.mustRun("get", "shop", "customers", "1")
	assert.Contains(t, out, "name:")
	assert.Contains(t, out, "ada")

	out = c.mustRun("get", "shop", "customers", "2", "-o", "json")
	var rec struct {
		OID    uint64            `json:"oid"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, uint64(2), rec.OID)
	assert.Equal(t, map[string]string{"id": "2", "name": "bob", "vip": "false"}, rec.Fields)

	c.mustRun("replace", "shop", "customers", "2", "name=robert", "vip=true")
	assert.Contains(t, c.mustRun("get", "shop", "customers", "2"), "robert")

	out = c.mustRun("scan", "shop", "customers", "-o", "json")
	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "ada", rows[0]["name"])

	out = c.mustRun("scan", "shop", "customers", "--limit", "1", "-o", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 1)

	c.mustRun("delete", "shop", "customers", "1")
	_, err = c.run("get", "shop", "customers", "1")
	assert.True(t, errors.Is(err, format.ErrNotFound), "got %v", err)

	out = c.mustRun("describe", "shop", "orders")
	assert.Contains(t, out, "customer")
	assert.Contains(t, out, "fk")
	assert.Contains(t, out, "ship")

	assert.Contains(t, c.mustRun("reinit-table", "shop", "customers"), "Reinitialized")
	assert.Contains(t, c.mustRun("scan", "shop", "customers"), "No records found")
	assert.Contains(t, c.mustRun("insert", "shop", "customers", "name=cy", "vip=true"), "oid 3")
}

func TestCommandErrors(t *testing.T) {
	c := newCLI(t)
	c.mustRun("create-db", "shop")
	c.mustRun("create-table", "shop", "customers", "--oid", "id:i64", "--field", "name:String")

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"unknown database", []string{"describe", "nope"}, format.ErrNotFound},
		{"unknown table", []string{"get", "shop", "nope", "1"}, format.ErrNotFound},
		{"duplicate table", []string{"create-table", "shop", "customers", "--field", "name:String"}, format.ErrAlreadyExists},
		{"table name too long", []string{"create-table", "shop", string(bytes.Repeat([]byte("t"), 65))}, format.ErrCapacityExceeded},
		{"bad value", []string{"insert", "shop", "customers", "name"}, nil},
		{"missing value", []string{"insert", "shop", "customers"}, format.ErrTypeMismatch},
		{"oid assigned", []string{"insert", "shop", "customers", "id=4", "name=x"}, format.ErrTypeMismatch},
		{"unknown type", []string{"create-table", "shop", "t", "--field", "x:decimal"}, format.ErrFormat},
		{"bad field flag", []string{"create-table", "shop", "t", "--field", "x"}, nil},
		{"bad oid", []string{"get", "shop", "customers", "-1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "got %v", err)
			}
		})
	}
}

func TestConfigHandling(t *testing.T) {
	t.Run("missing explicit config", func(t *testing.T) {
		c := &cli{t: t, configPath: filepath.Join(t.TempDir(), "none.yaml")}
		_, err := c.run("list-dbs")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("data dir flag overrides config", func(t *testing.T) {
		c := newCLI(t)
		other := filepath.Join(t.TempDir(), "other")
		c.mustRun("--data-dir", other, "create-db", "shop")
		assert.FileExists(t, filepath.Join(other, "shop", "shop.db"))
		assert.NoDirExists(t, filepath.Join(c.dataDir, "shop"))
	})

	t.Run("invalid log level", func(t *testing.T) {
		c := newCLI(t)
		_, err := c.run("--log-level", "chatty", "list-dbs")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	c := &cli{t: t, configPath: filepath.Join(dir, "objekt.yaml")}
	dataDir := filepath.Join(dir, "data")

	out := c.mustRun("init", "--data-dir", dataDir, "--print-key")
	assert.Contains(t, out, "Configuration written to")
	assert.Contains(t, out, "API key:")
	assert.DirExists(t, dataDir)

	cfg, err := config.LoadConfig(c.configPath)
	require.NoError(t, err)
	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Len(t, cfg.Security.APIKey, 64)

	_, err = c.run("init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	c.mustRun("init", "--force")
	again, err := config.LoadConfig(c.configPath)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Security.APIKey, again.Security.APIKey)
}

func TestSchemaFromFlags(t *testing.T) {
	c := newCreateTableCmd()
	require.NoError(t, c.ParseFlags([]string{
		"--oid", "key:u32",
		"--field", "owner:u32:users",
		"--field", "title:String",
		"--ref", "audit",
		"--method", "archive",
	}))

	ts, err := schemaFromFlags(c, "notes")
	require.NoError(t, err)
	require.NoError(t, ts.Validate())

	assert.Equal(t, "notes", ts.Name)
	assert.Equal(t, []string{"users", "audit"}, ts.References)
	assert.Equal(t, []string{"archive"}, ts.Methods)
	require.Len(t, ts.Fields, 3)
	assert.True(t, ts.Fields[0].IsOID)
	assert.Equal(t, codec.TypeU32, ts.Fields[0].Type)
	assert.True(t, ts.Fields[1].IsFK)
	assert.Equal(t, codec.TypeString, ts.Fields[2].Type)
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=ada", "note=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada", "note": "a=b", "empty": ""}, got)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"a=1", "a=2"})
	assert.Error(t, err)
}
