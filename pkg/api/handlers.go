package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/ssargent/objektdb/pkg/table"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"databases": s.openDatabases(),
	})
}

func (s *Server) handleListDatabases(w http.ResponseWriter, r *http.Request) {
	names, err := s.catalog.ListDBs()
	if err != nil {
		sendStoreError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	sendSuccess(w, names)
}

func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	var req CreateDatabaseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.catalog.CreateDB(req.Name); err != nil {
		sendStoreError(w, err)
		return
	}
	s.logger.Info("database created", "database", req.Name)
	sendStatus(w, map[string]string{"name": req.Name}, http.StatusCreated)
}

func (s *Server) handleDeleteDatabase(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "db")
	if err := s.release(name); err != nil {
		sendStoreError(w, err)
		return
	}
	if err := s.catalog.DeleteDB(name); err != nil {
		sendStoreError(w, err)
		return
	}
	s.logger.Info("database deleted", "database", name)
	sendSuccess(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	db, err := s.database(chi.URLParam(r, "db"))
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, db.Tables())
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	db, err := s.database(chi.URLParam(r, "db"))
	if err != nil {
		sendStoreError(w, err)
		return
	}
	var ts schema.TableSchema
	if !decodeBody(w, r, &ts) {
		return
	}
	if err := db.RegisterTable(&ts); err != nil {
		sendStoreError(w, err)
		return
	}
	sendStatus(w, &ts, http.StatusCreated)
}

func (s *Server) handleDescribeTable(w http.ResponseWriter, r *http.Request) {
	db, err := s.database(chi.URLParam(r, "db"))
	if err != nil {
		sendStoreError(w, err)
		return
	}
	name := chi.URLParam(r, "table")
	entry, err := db.Entry(name)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	h, err := db.OpenTable(name)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, TableDescription{Entry: entry, Schema: h.Schema(), Stats: h.Stats()})
}

func (s *Server) handleReinitializeTable(w http.ResponseWriter, r *http.Request) {
	db, err := s.database(chi.URLParam(r, "db"))
	if err != nil {
		sendStoreError(w, err)
		return
	}
	var ts schema.TableSchema
	if !decodeBody(w, r, &ts) {
		return
	}
	name := chi.URLParam(r, "table")
	if ts.Name == "" {
		ts.Name = name
	}
	if ts.Name != name {
		sendError(w, fmt.Sprintf("schema names table %q, path names %q", ts.Name, name), http.StatusBadRequest)
		return
	}
	if err := db.ReinitializeTable(&ts); err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, &ts)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	h, ok := s.tableHandle(w, r)
	if !ok {
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	out, err := listRecords(h, limit)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, out)
}

func (s *Server) handleInsertRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.tableHandle(w, r)
	if !ok {
		return
	}
	var fields map[string]string
	if !decodeBody(w, r, &fields) {
		return
	}
	rec, err := insertRecord(h, fields)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	s.metrics.SetRecords(chi.URLParam(r, "db"), h.Name(), h.Len())
	sendStatus(w, rec, http.StatusCreated)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.tableHandle(w, r)
	if !ok {
		return
	}
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	rec, err := readRecord(h, oid)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, rec)
}

func (s *Server) handleReplaceRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.tableHandle(w, r)
	if !ok {
		return
	}
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	var fields map[string]string
	if !decodeBody(w, r, &fields) {
		return
	}
	rec, err := replaceRecord(h, oid, fields)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	sendSuccess(w, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	h, ok := s.tableHandle(w, r)
	if !ok {
		return
	}
	oid, ok := parseOID(w, r)
	if !ok {
		return
	}
	if err := h.Delete(oid); err != nil {
		sendStoreError(w, err)
		return
	}
	s.metrics.SetRecords(chi.URLParam(r, "db"), h.Name(), h.Len())
	sendSuccess(w, map[string]string{"status": "deleted"})
}

// tableHandle resolves the {db} and {table} path parameters.
func (s *Server) tableHandle(w http.ResponseWriter, r *http.Request) (*table.Handle, bool) {
	db, err := s.database(chi.URLParam(r, "db"))
	if err != nil {
		sendStoreError(w, err)
		return nil, false
	}
	h, err := db.OpenTable(chi.URLParam(r, "table"))
	if err != nil {
		sendStoreError(w, err)
		return nil, false
	}
	return h, true
}

func parseOID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	oid, err := strconv.ParseUint(chi.URLParam(r, "oid"), 10, 64)
	if err != nil {
		sendError(w, "oid must be an unsigned integer", http.StatusBadRequest)
		return 0, false
	}
	return oid, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendError(w, "Invalid JSON in request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
