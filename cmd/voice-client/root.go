package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/book-expert/logger"
	"github.com/spf13/cobra"
)

const (
	defaultServerURL = "http://localhost:5000"
	defaultTimeout   = 5 * time.Minute
	envServerURL     = "VOICE_SERVICE_URL"
	logFileName      = "voice-client.log"
)

// clientOptions are the persistent flags shared by every command.
type clientOptions struct {
	serverURL string
	timeout   time.Duration
	logDir    string
}

// session is what a command needs once the persistent flags are parsed.
type session struct {
	client *apiClient
	log    *logger.Logger
	logDir string
}

type runFunc func(cmd *cobra.Command, args []string) error

// withLogger opens the client log for the duration of one command run.
func (s *session) withLogger(run runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(s.logDir, logFileName)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		s.log = log

		runErr := run(cmd, args)
		closeErr := s.close()

		if runErr != nil {
			return runErr
		}

		return closeErr
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}
	sess := &session{}

	serverURL := os.Getenv(envServerURL)
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	cmd := &cobra.Command{
		Use:           "voice-client",
		Short:         "Command line client for the voice service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sess.logDir = opts.logDir
			sess.client = newAPIClient(opts.serverURL, opts.timeout)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", serverURL, "Voice service base URL (env "+envServerURL+")")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "Request timeout")
	cmd.PersistentFlags().StringVar(&opts.logDir, "log-dir", os.TempDir(), "Directory for the client log")

	cmd.AddCommand(newSynthesizeCmd(sess))
	cmd.AddCommand(newSynthesizeFileCmd(sess))
	cmd.AddCommand(newImageCmd(sess))
	cmd.AddCommand(newHealthCmd(sess))

	return cmd
}

func (s *session) close() error {
	if s.log == nil {
		return nil
	}

	err := s.log.Close()
	s.log = nil

	if err != nil {
		return fmt.Errorf("failed to close logger: %w", err)
	}

	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
