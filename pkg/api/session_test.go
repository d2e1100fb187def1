package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialSession(t *testing.T, ts *testServer, db string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/v1/databases/" + db + "/session"
	header := http.Header{}
	if ts.apiKey != "" {
		header.Set("X-API-Key", ts.apiKey)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req SessionRequest) SessionResponse {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	var res SessionResponse
	require.NoError(t, conn.ReadJSON(&res))
	return res
}

func TestSession(t *testing.T) {
	ts := setupTestServer(t, "secret")
	_, _ = ts.do("POST", "/databases", `{"name":"shop"}`)
	code, _ := ts.do("POST", "/databases/shop/tables", customersSchema)
	require.Equal(t, http.StatusCreated, code)

	conn := dialSession(t, ts, "shop")

	res := roundTrip(t, conn, SessionRequest{
		Action: ActionInsert, Table: "customers", ReqID: 7,
		Fields: map[string]string{"name": "ada", "vip": "true"},
	})
	require.Equal(t, http.StatusOK, res.Status, res.Error)
	assert.Equal(t, int64(7), res.ReqID)
	var rec RecordResponse
	decode(t, res.Data, &rec)
	assert.Equal(t, uint64(1), rec.OID)

	res = roundTrip(t, conn, SessionRequest{
		Action: ActionReplace, Table: "customers", OID: 1,
		Fields: map[string]string{"name": "ada l.", "vip": "false"},
	})
	require.Equal(t, http.StatusOK, res.Status, res.Error)

	res = roundTrip(t, conn, SessionRequest{Action: ActionGet, Table: "customers", OID: 1})
	require.Equal(t, http.StatusOK, res.Status)
	decode(t, res.Data, &rec)
	assert.Equal(t, "ada l.", rec.Fields["name"])

	res = roundTrip(t, conn, SessionRequest{Action: ActionList, Table: "customers"})
	require.Equal(t, http.StatusOK, res.Status)
	var list []RecordResponse
	decode(t, res.Data, &list)
	assert.Len(t, list, 1)

	res = roundTrip(t, conn, SessionRequest{Action: ActionDescribe, Table: "customers"})
	require.Equal(t, http.StatusOK, res.Status)
	var desc TableDescription
	decode(t, res.Data, &desc)
	assert.Equal(t, uint64(1), desc.Entry.LastOID)

	res = roundTrip(t, conn, SessionRequest{Action: ActionDelete, Table: "customers", OID: 1})
	require.Equal(t, http.StatusOK, res.Status)

	// the REST side sees the same handle
	code, _ = ts.do("GET", "/databases/shop/tables/customers/records/1", "")
	assert.Equal(t, http.StatusNotFound, code)

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			req  SessionRequest
			want int
		}{
			{"unknown action", SessionRequest{Action: "truncate", Table: "customers"}, http.StatusBadRequest},
			{"unknown table", SessionRequest{Action: ActionGet, Table: "orders", OID: 1}, http.StatusNotFound},
			{"missing record", SessionRequest{Action: ActionGet, Table: "customers", OID: 1}, http.StatusNotFound},
			{"bad value", SessionRequest{Action: ActionInsert, Table: "customers",
				Fields: map[string]string{"name": "x", "vip": "maybe"}}, http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				res := roundTrip(t, conn, tt.req)
				assert.Equal(t, tt.want, res.Status)
				assert.NotEmpty(t, res.Error)
			})
		}
	})

	t.Run("malformed message", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		var res SessionResponse
		require.NoError(t, conn.ReadJSON(&res))
		assert.Equal(t, http.StatusBadRequest, res.Status)
	})
}

func TestSession_Refused(t *testing.T) {
	ts := setupTestServer(t, "secret")
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/api/v1/databases/nope/session"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"X-API-Key": {"secret"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_CloseSessions(t *testing.T) {
	ts := setupTestServer(t, "")
	_, _ = ts.do("POST", "/databases", `{"name":"shop"}`)
	conn := dialSession(t, ts, "shop")

	require.Eventually(t, func() bool {
		ts.server.mutex.Lock()
		defer ts.server.mutex.Unlock()
		return len(ts.server.sessions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ts.server.closeSessions()

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
