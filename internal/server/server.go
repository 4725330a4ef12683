// Package server exposes the csql query engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/eventql/eventql-sub000/internal/config"
	"github.com/eventql/eventql-sub000/internal/logger"
	"github.com/eventql/eventql-sub000/pkg/runtime"
	"github.com/eventql/eventql-sub000/pkg/storage"
)

// Server is the HTTP query server.
type Server struct {
	cfg    *config.Config
	log    *logger.Logger
	rt     *runtime.Runtime
	tables storage.TableProvider
	auth   *Authenticator
	stats  *Statistics
	router *mux.Router

	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	running    atomic.Bool
}

// New creates a server answering queries against tables.
func New(cfg *config.Config, log *logger.Logger, rt *runtime.Runtime, tables storage.TableProvider) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		log:    log.Named("server"),
		rt:     rt,
		tables: tables,
		auth:   NewAuthenticator(cfg.Server.Users),
		stats:  NewStatistics(),
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.accessLog)

	router.Methods(http.MethodGet).Path("/health").HandlerFunc(s.handleHealth)
	router.Methods(http.MethodGet).Path("/metrics").Handler(s.stats.Handler())

	api := router.PathPrefix("/api/v1").Subrouter()
	if s.auth != nil {
		api.Use(s.auth.Middleware)
	}
	api.Methods(http.MethodPost).Path("/sql").HandlerFunc(s.handleSQL)
	api.Methods(http.MethodGet).Path("/sql").Queries("q", "{q}").HandlerFunc(s.handleSQL)
	api.Methods(http.MethodPost).Path("/eval").HandlerFunc(s.handleEval)
	api.Methods(http.MethodGet).Path("/tables").HandlerFunc(s.handleListTables)
	api.Methods(http.MethodGet).Path("/tables/{name}").HandlerFunc(s.handleDescribeTable)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "NotFound", fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})
	return router
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stats returns the statistics tracker.
func (s *Server) Stats() *Statistics {
	return s.stats
}

// Start starts listening on the configured host and port.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprintf("%d", s.cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve starts serving requests on listener in the background.
func (s *Server) Serve(listener net.Listener) error {
	if s.running.Load() {
		return errors.New("server already running")
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
	}
	s.running.Store(true)
	s.log.Info("server started", "address", listener.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve error", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil if the server is not running.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the server, waiting for running requests until ctx
// is done.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()

	s.log.Info("server stopped")
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"remote", r.RemoteAddr,
			"duration", time.Since(start))
	})
}
