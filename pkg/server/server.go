// Package server exposes the latest refresh result over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raterudder/semsledger/pkg/common"
	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/refresh"
	"github.com/raterudder/semsledger/pkg/types"
)

// State is where the server reads results from. *refresh.Poller implements
// it.
type State interface {
	Latest() (refresh.Result, bool)
	Settings() types.Settings
}

// Server handles the HTTP API.
type Server struct {
	state    State
	gatherer prometheus.Gatherer

	listenAddr string
	serverName string
	httpServer *http.Server
}

// Configured registers the server flags and returns a server reading from
// state. gatherer may be nil to disable /metrics.
func Configured(state State, gatherer prometheus.Gatherer) *Server {
	srv := &Server{
		state:      state,
		gatherer:   gatherer,
		serverName: common.DefaultUserAgent(),
	}

	listenAddr := lflag.String("http-listen", ":8080", "HTTP server listen address, empty disables the server")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
	})

	return srv
}

// Enabled reports whether the server has an address to listen on.
func (s *Server) Enabled() bool {
	return s.listenAddr != ""
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/state", s.handleState)
	apiMux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	apiMux.HandleFunc("GET /api/ledger", s.handleLedger)
	apiMux.HandleFunc("GET /api/series", s.handleSeries)
	apiMux.HandleFunc("GET /api/report.xlsx", s.handleReportXLSX)
	apiMux.HandleFunc("GET /api/report.pdf", s.handleReportPDF)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.serverNameMiddleware(gziphandler.GzipHandler(noStoreMiddleware(mux)))
}

// Run serves until ctx is done and then shuts down, giving in-flight requests
// a few seconds to finish.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		stopped <- s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
	err := s.httpServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	if err := <-stopped; err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSONStatus(w, code, errorResponse{Error: msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.WriteString(w, "ok"); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// serverNameMiddleware stamps every response with the build version.
func (s *Server) serverNameMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

// results change every cycle so nothing may be cached
func noStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}
