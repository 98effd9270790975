// main package for the voice-service
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/extract"
	"github.com/book-expert/voice-service/internal/httpapi"
	"github.com/book-expert/voice-service/internal/imagegen"
	"github.com/book-expert/voice-service/internal/natsserver"
	"github.com/book-expert/voice-service/internal/objectstore"
	"github.com/book-expert/voice-service/internal/payment"
	"github.com/book-expert/voice-service/internal/store"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/worker"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

var errNATSDisconnected = errors.New("nats connection is not connected")

// healthChecker is implemented by synthesizers that can check their backend.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voice-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// newSynthesizer returns the configured synthesis capability, or nil when it cannot be
// created. The service keeps running without it and answers synthesis requests with 403.
func newSynthesizer(
	ctx context.Context,
	cfg *config.Config,
	secrets *config.Secrets,
	log *logger.Logger,
) (core.Synthesizer, func()) {
	if cfg.Synthesis.Provider == config.ProviderHTTP {
		log.Info("Using HTTP synthesis service at %s", cfg.Synthesis.ServiceURL)

		return tts.NewHTTPClient(cfg.Synthesis.ServiceURL, cfg.CallTimeout()), func() {}
	}

	google, err := tts.NewGoogleSynthesizer(ctx, secrets.GCPProjectID)
	if err != nil {
		log.Warn("Google Cloud TTS unavailable, synthesis endpoints will answer 403: %v", err)

		return nil, func() {}
	}

	log.Info("Google Cloud TTS client ready (project %q)", secrets.GCPProjectID)

	return google, func() {
		closeErr := google.Close()
		if closeErr != nil {
			log.Error("Failed to close Google Cloud TTS client: %v", closeErr)
		}
	}
}

// connectNATS starts the embedded server when configured and connects to it, or to
// the configured URL. It returns a nil connection when NATS is not configured.
func connectNATS(cfg *config.Config, log *logger.Logger) (*nats.Conn, func(), error) {
	embedded, err := natsserver.Start(cfg.NATS, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}

	url := cfg.NATS.URL
	if embedded != nil {
		url = embedded.ClientURL()
	}

	if url == "" {
		log.Warn("NATS is not configured; the document worker and image storage are disabled")

		return nil, func() {}, nil
	}

	natsConnection, err := nats.Connect(url, nats.Name("voice-service"))
	if err != nil {
		embedded.Shutdown()

		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	log.Info("Connected to NATS at %s", url)

	return natsConnection, func() {
		drainErr := natsConnection.Drain()
		if drainErr != nil {
			log.Error("Failed to drain NATS connection: %v", drainErr)
		}

		embedded.Shutdown()
	}, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	// 2. Load configuration and secrets
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		bootstrapLog.Error("Failed to load secrets: %v", err)

		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Storage, synthesis and the pipeline
	db, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	defer func() { _ = db.Close() }()

	synthesizer, closeSynthesizer := newSynthesizer(ctx, cfg, secrets, log)
	defer closeSynthesizer()

	pipeline, err := tts.NewPipeline(cfg, extract.NewDefaultRegistry(cfg, log), synthesizer, log)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	deps := httpapi.Dependencies{
		Pipeline: pipeline,
		Payments: payment.NewService(payment.SettingsFrom(cfg, secrets), db, db, log),
		Stats:    db,
		Checks:   map[string]httpapi.HealthCheck{"database": db.Ping},
	}

	if checker, ok := synthesizer.(healthChecker); ok {
		deps.Checks["synthesis"] = checker.HealthCheck
	}

	// 5. NATS: object storage, image generation and the document worker
	natsConnection, closeNATS, err := connectNATS(cfg, log)
	if err != nil {
		return err
	}

	defer closeNATS()

	group, groupCtx := errgroup.WithContext(ctx)

	if natsConnection != nil {
		files, storeErr := objectstore.New(ctx, natsConnection, cfg.NATS.ObjectStoreBucket)
		if storeErr != nil {
			return fmt.Errorf("failed to open object store: %w", storeErr)
		}

		deps.Images = imagegen.NewGenerator(
			imagegen.NewHTTPFetcher(cfg.Images.ProviderURL, cfg.CallTimeout()),
			files,
			cfg.Images.PublicBaseURL,
			log,
		)
		deps.Checks["nats"] = func(context.Context) error {
			if !natsConnection.IsConnected() {
				return errNATSDisconnected
			}

			return nil
		}

		documentWorker := worker.NewNatsWorker(natsConnection, cfg.NATS.DocumentSubject, files, pipeline, cfg.RequestTimeout(), log)
		group.Go(func() error { return documentWorker.Run(groupCtx) })
	}

	// 6. HTTP
	server := httpapi.NewServer(cfg, deps, log)
	group.Go(func() error { return server.Run(groupCtx) })

	log.System("Voice-Service initialized. Synthesis available: %t", pipeline.Available())

	err = group.Wait()
	if err != nil {
		return fmt.Errorf("service stopped: %w", err)
	}

	log.System("Voice-Service stopped")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
