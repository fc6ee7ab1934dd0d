// Package web provides the HTTP API for match queries, notification runs,
// profile and listing intake, and ledger administration.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/evcraddock/matchmaker/internal/intake"
	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/logging"
	"github.com/evcraddock/matchmaker/internal/match"
	"github.com/evcraddock/matchmaker/internal/metrics"
	"github.com/evcraddock/matchmaker/internal/notify"
)

// Deps are the services the API is built on.
type Deps struct {
	Investors *investor.Repository
	Listings  *listing.Repository
	Engine    *match.Engine
	Notifier  *notify.Service
	Intake    *intake.Service
	Ledger    ledger.Store
}

// Server is the API HTTP server.
type Server struct {
	investors *investor.Repository
	listings  *listing.Repository
	engine    *match.Engine
	notifier  *notify.Service
	intake    *intake.Service
	ledger    ledger.Store
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer creates an API server.
func NewServer(d Deps) *Server {
	s := &Server{
		investors: d.Investors,
		listings:  d.Listings,
		engine:    d.Engine,
		notifier:  d.Notifier,
		intake:    d.Intake,
		ledger:    d.Ledger,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())
	s.mux.HandleFunc("/api/investors", s.handleAPIInvestors)
	s.mux.HandleFunc("/api/investors/", s.handleAPIInvestors)
	s.mux.HandleFunc("/api/properties", s.handleAPIProperties)
	s.mux.HandleFunc("/api/properties/", s.handleAPIProperties)
	s.mux.HandleFunc("/api/ledger", s.handleAPILedger)

	s.handler = logging.RequestLogger(s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting API server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
