package api

import (
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/ssargent/objektdb/pkg/table"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string // empty disables authentication
}

// CreateDatabaseRequest is the body of POST /databases
type CreateDatabaseRequest struct {
	Name string `json:"name"`
}

// TableDescription is returned by GET /databases/{db}/tables/{table}
type TableDescription struct {
	Entry  catalog.DirectoryEntry `json:"entry"`
	Schema *schema.TableSchema    `json:"schema"`
	Stats  table.Stats            `json:"stats"`
}

// RecordResponse carries one record in its text form
type RecordResponse struct {
	OID    uint64            `json:"oid"`
	Fields map[string]string `json:"fields"`
}
