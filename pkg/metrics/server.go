package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"blinksync/pkg/logger"
)

// Server exposes /metrics and /healthz
type Server struct {
	srv      *http.Server
	recorder *Recorder
	logger   logger.Logger
	// staleAfter marks the process unhealthy when no cycle finished for that long.
	// Zero disables the check.
	staleAfter time.Duration
	now        func() time.Time
}

// NewServer creates a metrics server on addr
func NewServer(addr string, rec *Recorder, staleAfter time.Duration, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		recorder:   rec,
		logger:     log,
		staleAfter: staleAfter,
		now:        time.Now,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.recorder.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, last := s.recorder.Snapshot()
	status := http.StatusOK
	body := map[string]interface{}{
		"status": "ok",
		"state":  state,
	}
	if !last.IsZero() {
		body["last_cycle"] = last.UTC().Format(time.RFC3339)
	}
	if s.staleAfter > 0 && !last.IsZero() && s.now().Sub(last) > s.staleAfter {
		status = http.StatusServiceUnavailable
		body["status"] = "stale"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Metrics endpoint listening", map[string]interface{}{
			"address": s.srv.Addr,
		})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
