// Package api serves the catalog over a JSON REST API, plus a websocket
// session endpoint for streaming record operations against one database.
//
// Databases opened by the server stay open, and so stay locked against other
// processes, until they are dropped or the server shuts down.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/logging"
	"github.com/ssargent/objektdb/pkg/metrics"
)

// Server holds the API server state
type Server struct {
	catalog   *catalog.Catalog
	config    ServerConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
	mutex     sync.Mutex
	databases map[string]*catalog.Database
	sessions  map[*websocket.Conn]struct{}
}

// NewServer creates a new API server
func NewServer(cat *catalog.Catalog, config ServerConfig, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		catalog:   cat,
		config:    config,
		metrics:   m,
		logger:    logging.OrDiscard(logger).With("component", "api"),
		databases: make(map[string]*catalog.Database),
		sessions:  make(map[*websocket.Conn]struct{}),
	}
}

// Routes builds the router with all routes configured
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey, s.metrics))
		}

		r.Get("/health", instrument(s.metrics, "GET", "/health", s.handleHealth))

		r.Get("/databases", instrument(s.metrics, "GET", "/databases", s.handleListDatabases))
		r.Post("/databases", instrument(s.metrics, "POST", "/databases", s.handleCreateDatabase))
		r.Delete("/databases/{db}", instrument(s.metrics, "DELETE", "/databases/{db}", s.handleDeleteDatabase))
		r.Get("/databases/{db}/session", s.handleSession)

		r.Route("/databases/{db}/tables", func(r chi.Router) {
			const base = "/databases/{db}/tables"
			r.Get("/", instrument(s.metrics, "GET", base, s.handleListTables))
			r.Post("/", instrument(s.metrics, "POST", base, s.handleCreateTable))
			r.Get("/{table}", instrument(s.metrics, "GET", base+"/{table}", s.handleDescribeTable))
			r.Put("/{table}", instrument(s.metrics, "PUT", base+"/{table}", s.handleReinitializeTable))

			const records = base + "/{table}/records"
			r.Get("/{table}/records", instrument(s.metrics, "GET", records, s.handleListRecords))
			r.Post("/{table}/records", instrument(s.metrics, "POST", records, s.handleInsertRecord))
			r.Get("/{table}/records/{oid}", instrument(s.metrics, "GET", records+"/{oid}", s.handleGetRecord))
			r.Put("/{table}/records/{oid}", instrument(s.metrics, "PUT", records+"/{oid}", s.handleReplaceRecord))
			r.Delete("/{table}/records/{oid}", instrument(s.metrics, "DELETE", records+"/{oid}", s.handleDeleteRecord))
		})
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully and closes
// every database the server opened.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Bind, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeSessions)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting objektdb REST API server", "addr", addr, "root", s.catalog.Root())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.CombineErrors(fmt.Errorf("listen on %s: %w", addr, err), s.Close())
		}
		return s.Close()
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	return errors.CombineErrors(err, s.Close())
}

// Close closes every open database.
func (s *Server) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var err error
	for name, db := range s.databases {
		err = errors.CombineErrors(err, db.Close())
		delete(s.databases, name)
	}
	return err
}

// database returns the open database, opening it on first use.
func (s *Server) database(name string) (*catalog.Database, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if db, ok := s.databases[name]; ok {
		return db, nil
	}
	db, err := s.catalog.Open(name)
	if err != nil {
		return nil, err
	}
	s.databases[name] = db
	return db, nil
}

// release closes a database the server holds, if any.
func (s *Server) release(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	db, ok := s.databases[name]
	if !ok {
		return nil
	}
	delete(s.databases, name)
	return db.Close()
}

func (s *Server) track(conn *websocket.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessions[conn] = struct{}{}
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.sessions, conn)
}

// closeSessions tells every websocket client the server is going away.
// Hijacked connections are not closed by http.Server.Shutdown.
func (s *Server) closeSessions() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn := range s.sessions {
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
		delete(s.sessions, conn)
	}
}

func (s *Server) openDatabases() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.databases)
}

// requestLogger logs each request through slog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
