// Package natsserver runs an in-process NATS server with JetStream so the service can
// start without an external broker.
package natsserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/nats-io/nats-server/v2/server"
)

const (
	readyTimeout    = 5 * time.Second
	defaultStoreDir = "data/nats"
	listenHost      = "127.0.0.1"
)

// ErrNotReady is returned when the server does not accept connections in time.
var ErrNotReady = errors.New("embedded NATS server failed to become ready")

// EmbeddedServer wraps a NATS server instance.
type EmbeddedServer struct {
	ns     *server.Server
	logger *logger.Logger
}

// Start creates and starts an embedded server. It returns nil when the configuration
// does not ask for one. A negative port picks a random free port.
func Start(cfg config.NATSConfig, log *logger.Logger) (*EmbeddedServer, error) {
	if !cfg.Embedded {
		return nil, nil
	}

	storeDir := cfg.StoreDir
	if storeDir == "" {
		storeDir = defaultStoreDir
	}

	opts := &server.Options{
		Host:      listenHost,
		Port:      cfg.Port,
		JetStream: true,
		StoreDir:  storeDir,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()

		return nil, fmt.Errorf("%w within %s", ErrNotReady, readyTimeout)
	}

	log.Info("Embedded NATS server started at %s (store: %s)", ns.ClientURL(), storeDir)

	return &EmbeddedServer{ns: ns, logger: log}, nil
}

// ClientURL returns the URL clients connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit. It is safe on a nil receiver.
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}

	e.logger.Info("Shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
