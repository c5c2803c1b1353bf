// Package server exposes the router over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ksasa/router/internal/audit"
	"github.com/ksasa/router/internal/gate"
	"github.com/ksasa/router/internal/hitl"
	"github.com/ksasa/router/internal/logging"
	"github.com/ksasa/router/internal/orchestrator"
	"github.com/ksasa/router/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// #region deps
// Deps are the collaborators the handlers call. Audit and Telemetry may be nil.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Ledger       *hitl.Ledger
	Gate         *gate.Gate
	Metrics      *telemetry.Metrics
	Audit        audit.Writer
	Telemetry    *telemetry.Log
	StaticDir    string
}

// #endregion deps

// #region server
// Server routes HTTP requests to the orchestrator and the pending-action ledger.
type Server struct {
	d   Deps
	mux *http.ServeMux
	log *slog.Logger
}

// New builds a server and registers its routes.
func New(d Deps) *Server {
	s := &Server{d: d, mux: http.NewServeMux(), log: logging.New("server")}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("POST /agent/action", s.handleAction)
	s.mux.HandleFunc("GET /admin/pending", s.handlePending)
	s.mux.HandleFunc("POST /admin/approve", s.handleApprove)
	s.mux.HandleFunc("POST /admin/decline", s.handleDecline)
	s.mux.HandleFunc("POST /sms/inbound", s.handleSMS)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	if s.d.StaticDir != "" {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.d.StaticDir))))
	}
}

// Handler returns the root handler with CORS headers applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.mux.ServeHTTP(w, r)
	})
}

// #endregion server

// #region listen
// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// #endregion listen

// #region helpers
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest)
		return false
	}
	return true
}

// #endregion helpers
