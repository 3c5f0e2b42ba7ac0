// Package statusapi serves a read-only JSON view of a running simulation.
package statusapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/ossim/pkg/model"
)

// Source is the live scheduler state the API reports.
type Source interface {
	RunID() string
	Now() int64
	CPUs() []model.CPUStatus
	ReadyQueue() []model.ProcessInfo
	Processes() []model.ProcessInfo
	Process(id int) (model.ProcessInfo, bool)
}

// Server is the status HTTP API.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	source    Source
	startTime time.Time
}

// New creates a Server with all routes registered.
func New(src Source, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "statusapi"),
		source:    src,
		startTime: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(stampRequestID)
	r.Use(logRequests(s.logger, s.source))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/cpus", s.handleCPUs)
		r.Get("/ready-queue", s.handleReadyQueue)
		r.Route("/processes", func(r chi.Router) {
			r.Get("/", s.handleListProcesses)
			r.Get("/{id}", s.handleGetProcess)
		})
	})
}

// Serve accepts connections on ln until ctx ends, then shuts down
// gracefully. The caller binds ln so a bad address fails before the
// simulation starts.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.logger.Info("status API listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("status API stopped")
	return nil
}
