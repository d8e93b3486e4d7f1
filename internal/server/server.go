package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/formloft/formloft/internal/submit"
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	SubmitRate     rate.Limit
	SubmitBurst    int
}

// Server owns the router and the underlying http.Server.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger
	srv    *http.Server
}

// New builds the router with the full middleware chain and all routes.
func New(opts Options, logger *slog.Logger, submitHandler *submit.Handler, verify VerifyKeyFunc) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "formloft")
	})

	r.Route("/submit", func(sr chi.Router) {
		sr.Use(CORSMiddleware)
		sr.Use(RateLimitMiddleware(opts.SubmitRate, opts.SubmitBurst))
		sr.Post("/{form_id}", submitHandler.HandleSubmit)
		sr.Options("/{form_id}", HandlePreflight)
	})

	r.Get("/submit-success", HandleSubmitSuccess)
	r.Post("/api/verify-openai-key", VerifyKeyHandler(verify, logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		Router: r,
		logger: logger,
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.Port),
			Handler: r,
		},
	}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
