// Package worker provides a NATS worker that turns stored documents into audio.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const audioKeySuffix = ".mp3"

var (
	// ErrDocumentKeyEmpty indicates a job without a document or intro text.
	ErrDocumentKeyEmpty = errors.New("document key or intro text is required")
	// ErrMimeTypeEmpty indicates a document key without a MIME type.
	ErrMimeTypeEmpty = errors.New("mime type is required with a document key")
)

// DocumentSubmitted asks for a stored document to be read aloud. DeleteDocument removes
// the source document once its audio is stored.
type DocumentSubmitted struct {
	Header         events.EventHeader `json:"header"`
	DocumentKey    string             `json:"documentKey,omitempty"`
	MimeType       string             `json:"mimeType,omitempty"`
	LanguageCode   string             `json:"languageCode,omitempty"`
	Gender         string             `json:"gender,omitempty"`
	IntroText      string             `json:"introText,omitempty"`
	DeleteDocument bool               `json:"deleteDocument,omitempty"`
}

// DocumentSynthesized is the reply to a DocumentSubmitted job. Error is set instead of
// AudioKey when the job fails.
type DocumentSynthesized struct {
	Header        events.EventHeader `json:"header"`
	AudioKey      string             `json:"audioKey,omitempty"`
	TextLength    int                `json:"textLength"`
	ChunkCount    int                `json:"chunkCount"`
	LikelyScanned bool               `json:"likelyScanned,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// DocumentSynthesizer is the part of tts.Pipeline the worker needs.
type DocumentSynthesizer interface {
	SynthesizeDocument(ctx context.Context, req tts.DocumentRequest) (*tts.SynthesisResult, error)
}

type documentRemover interface {
	Delete(ctx context.Context, key string) error
}

// NatsWorker listens for document jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	pipeline       DocumentSynthesizer
	jobTimeout     time.Duration
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	pipeline DocumentSynthesizer,
	jobTimeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		pipeline:       pipeline,
		jobTimeout:     jobTimeout,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is done, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Document worker listening on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	event, err := parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)
		w.reply(msg, &DocumentSynthesized{Error: err.Error()})

		return
	}

	reply, processErr := w.processDocumentJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process document job for workflow %s: %v", event.Header.WorkflowID, processErr)

		reply = &DocumentSynthesized{Header: event.Header, Error: processErr.Error()}
	}

	w.reply(msg, reply)
}

// processDocumentJob downloads the document, runs the pipeline and uploads the audio.
func (w *NatsWorker) processDocumentJob(ctx context.Context, event *DocumentSubmitted) (*DocumentSynthesized, error) {
	req := tts.DocumentRequest{
		MimeType:     event.MimeType,
		LanguageCode: event.LanguageCode,
		Gender:       event.Gender,
		IntroText:    event.IntroText,
	}

	if event.DocumentKey != "" {
		document, err := w.store.Download(ctx, event.DocumentKey)
		if err != nil {
			return nil, fmt.Errorf("failed to download document for key '%s': %w", event.DocumentKey, err)
		}

		req.FileData = document.Data
	}

	result, err := w.pipeline.SynthesizeDocument(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize document: %w", err)
	}

	audioKey := uuid.NewString() + audioKeySuffix

	err = w.store.Upload(ctx, core.Object{Key: audioKey, ContentType: result.ContentType, Data: result.Audio})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	w.log.Info("Workflow %s: %d chars in %d chunks stored as %s",
		event.Header.WorkflowID, result.TextLength, result.ChunkCount, audioKey)

	if event.DeleteDocument && event.DocumentKey != "" {
		w.removeDocument(ctx, event)
	}

	return &DocumentSynthesized{
		Header:        event.Header,
		AudioKey:      audioKey,
		TextLength:    result.TextLength,
		ChunkCount:    result.ChunkCount,
		LikelyScanned: result.LikelyScanned,
	}, nil
}

// removeDocument deletes the source document when the store supports it. A failure only
// logs, since the audio is already stored.
func (w *NatsWorker) removeDocument(ctx context.Context, event *DocumentSubmitted) {
	remover, ok := w.store.(documentRemover)
	if !ok {
		w.log.Warn("Workflow %s: object store cannot delete %s", event.Header.WorkflowID, event.DocumentKey)

		return
	}

	err := remover.Delete(ctx, event.DocumentKey)
	if err != nil {
		w.log.Warn("Workflow %s: failed to delete document %s: %v", event.Header.WorkflowID, event.DocumentKey, err)
	}
}

func (w *NatsWorker) reply(msg *nats.Msg, replyEvent *DocumentSynthesized) {
	if msg.Reply == "" {
		return
	}

	err := publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", replyEvent.Header.WorkflowID, err)
	}
}

// publishReplyEvent marshals and responds with the DocumentSynthesized event.
func publishReplyEvent(msg *nats.Msg, replyEvent *DocumentSynthesized) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseAndValidateEvent(msg *nats.Msg) (*DocumentSubmitted, error) {
	var event DocumentSubmitted

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.DocumentKey == "" && event.IntroText == "" {
		return nil, ErrDocumentKeyEmpty
	}

	if event.DocumentKey != "" && event.MimeType == "" {
		return nil, ErrMimeTypeEmpty
	}

	return &event, nil
}
