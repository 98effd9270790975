// Package httpapi exposes the voice service over HTTP: speech and document synthesis,
// image generation, payments and the operational endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/metrics"
	"github.com/book-expert/voice-service/internal/payment"
	"github.com/book-expert/voice-service/internal/store"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	logFmtListening   = "HTTP server listening on %s"
	logFmtStopping    = "Shutting down HTTP server"
)

// VoicePipeline synthesizes speech and documents.
type VoicePipeline interface {
	Available() bool
	SynthesizeSpeech(ctx context.Context, req tts.SpeechRequest) (*tts.SynthesisResult, error)
	SynthesizeDocument(ctx context.Context, req tts.DocumentRequest) (*tts.SynthesisResult, error)
}

// ImageService generates and serves images.
type ImageService interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Image(ctx context.Context, key string) (*core.Object, error)
}

// PaymentService creates and verifies plan purchases.
type PaymentService interface {
	CreateOrder(ctx context.Context, userID, planName string) (*payment.OrderResult, error)
	Verify(ctx context.Context, userID string, params map[string]string) (*core.User, error)
	History(ctx context.Context, userID string) ([]core.Transaction, error)
}

// StatsSource reports usage counters.
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the services the routes call. Nil images, payments or stats leave
// their routes unmounted.
type Dependencies struct {
	Pipeline VoicePipeline
	Images   ImageService
	Payments PaymentService
	Stats    StatsSource
	Checks   map[string]HealthCheck
}

// Server is the HTTP front of the service.
type Server struct {
	cfg        *config.Config
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer builds the router for the given dependencies.
func NewServer(cfg *config.Config, deps Dependencies, log *logger.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log,
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(s.cors)
	r.Use(s.limitBody)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if s.deps.Stats != nil {
		r.Get("/api/stats", s.handleStats)
	}

	r.Post("/synthesize", s.handleSynthesize)
	r.Post("/synthesize-file", s.handleSynthesizeFile)

	r.Route("/api/voice", func(r chi.Router) {
		r.Post("/synthesize", s.handleSynthesize)
		r.Post("/synthesize-file", s.handleSynthesizeFile)
	})

	if s.deps.Images != nil {
		r.Route("/api/image", func(r chi.Router) {
			r.Post("/generate", s.handleGenerateImage)
			r.Get("/{key}", s.handleGetImage)
		})
	}

	if s.deps.Payments != nil {
		r.Route("/api/payment", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/order", s.handleCreateOrder)
			r.Post("/verify", s.handleVerifyPayment)
			r.Get("/history", s.handlePaymentHistory)
		})
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)

	go func() {
		s.logger.System(logFmtListening, s.httpServer.Addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	s.logger.System(logFmtStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}
