package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/ssargent/objektdb/pkg/catalog"
)

// SessionAction names an operation sent over a websocket session.
type SessionAction string

const (
	ActionInsert   SessionAction = "insert"
	ActionGet      SessionAction = "get"
	ActionReplace  SessionAction = "replace"
	ActionDelete   SessionAction = "delete"
	ActionList     SessionAction = "list"
	ActionDescribe SessionAction = "describe"
)

func (a SessionAction) valid() bool {
	switch a {
	case ActionInsert, ActionGet, ActionReplace, ActionDelete, ActionList, ActionDescribe:
		return true
	}
	return false
}

// SessionRequest is one message from the client. ReqID is echoed back so
// clients can pipeline requests.
type SessionRequest struct {
	Action SessionAction     `json:"action"`
	Table  string            `json:"table"`
	OID    uint64            `json:"oid,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	ReqID  int64             `json:"req_id,omitempty"`
}

// SessionResponse answers one SessionRequest. Status uses HTTP status codes.
type SessionResponse struct {
	ReqID  int64       `json:"req_id,omitempty"`
	Status int         `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

var errBadRequest = errors.New("bad request")

var upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSession upgrades to a websocket bound to one database and serves
// record operations until the client goes away.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "db")
	db, err := s.database(name)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "database", name, "error", err)
		return
	}
	s.track(conn)
	defer func() {
		s.untrack(conn)
		conn.Close()
	}()

	logger := s.logger.With("database", name, "remote", r.RemoteAddr)
	logger.Info("session opened")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("session closed unexpectedly", "error", err)
			} else {
				logger.Info("session closed")
			}
			return
		}

		var req SessionRequest
		var res SessionResponse
		if err := json.Unmarshal(message, &req); err != nil {
			res = SessionResponse{Status: http.StatusBadRequest, Error: "invalid request: " + err.Error()}
		} else {
			res = s.dispatch(db, req)
		}
		res.ReqID = req.ReqID

		if err := conn.WriteJSON(res); err != nil {
			logger.Warn("writing session response", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(db *catalog.Database, req SessionRequest) SessionResponse {
	if !req.Action.valid() {
		err := errors.Wrapf(errBadRequest, "unknown action %q", req.Action)
		return SessionResponse{Status: statusFor(err), Error: err.Error()}
	}

	start := time.Now()
	data, err := s.runAction(db, req)
	s.metrics.RecordOperation("session_"+string(req.Action), err == nil, time.Since(start))
	if err != nil {
		return SessionResponse{Status: statusFor(err), Error: err.Error()}
	}
	return SessionResponse{Status: http.StatusOK, Data: data}
}

func (s *Server) runAction(db *catalog.Database, req SessionRequest) (interface{}, error) {
	h, err := db.OpenTable(req.Table)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionInsert:
		rec, err := insertRecord(h, req.Fields)
		if err != nil {
			return nil, err
		}
		s.metrics.SetRecords(db.Name(), h.Name(), h.Len())
		return rec, nil
	case ActionGet:
		return readRecord(h, req.OID)
	case ActionReplace:
		return replaceRecord(h, req.OID, req.Fields)
	case ActionDelete:
		if err := h.Delete(req.OID); err != nil {
			return nil, err
		}
		s.metrics.SetRecords(db.Name(), h.Name(), h.Len())
		return map[string]uint64{"deleted": req.OID}, nil
	case ActionList:
		limit := req.Limit
		if limit <= 0 {
			limit = defaultListLimit
		}
		return listRecords(h, limit)
	case ActionDescribe:
		entry, err := db.Entry(req.Table)
		if err != nil {
			return nil, err
		}
		return TableDescription{Entry: entry, Schema: h.Schema(), Stats: h.Stats()}, nil
	}
	return nil, errors.Wrapf(errBadRequest, "unknown action %q", req.Action)
}
