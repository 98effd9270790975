package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	logFmtBatchStarted   = "Synthesizing batch %d/%d (%d chunks)"
	logFmtChunkFailed    = "Failed to synthesize chunk %d/%d (%d chars, voice %s): %v"
	logFmtSynthesisDone  = "Synthesized %d chunks into %d bytes"
	errFmtChunkSynthesis = "chunk %d: %v"
)

// Static errors.
var (
	ErrNoChunks         = errors.New("no chunks to synthesize")
	ErrEmptyAudio       = errors.New("synthesizer returned empty audio")
	ErrNilSynthesizer   = errors.New("synthesizer cannot be nil")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)

// SynthesisError identifies the chunk whose synthesis call failed.
type SynthesisError struct {
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf(errFmtChunkSynthesis, e.Index, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Orchestrator synthesizes ordered chunks in bounded concurrent batches and joins
// the audio in chunk order.
type Orchestrator struct {
	synthesizer core.Synthesizer
	batchSize   int
	callTimeout time.Duration
	logger      *logger.Logger
}

// NewOrchestrator creates an Orchestrator. A zero callTimeout leaves calls bounded
// only by the caller's context.
func NewOrchestrator(
	synthesizer core.Synthesizer,
	batchSize int,
	callTimeout time.Duration,
	log *logger.Logger,
) (*Orchestrator, error) {
	if synthesizer == nil {
		return nil, ErrNilSynthesizer
	}

	if batchSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	return &Orchestrator{
		synthesizer: synthesizer,
		batchSize:   batchSize,
		callTimeout: callTimeout,
		logger:      log,
	}, nil
}

// Synthesize runs every chunk through the synthesizer, batchSize calls at a time.
// A batch finishes completely before the next one starts. If any call fails the
// whole operation fails with a *SynthesisError for the lowest failing index and no
// audio is returned.
func (o *Orchestrator) Synthesize(
	ctx context.Context,
	chunks []string,
	voice core.Voice,
	audio core.AudioConfig,
) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}

	segments := make([][]byte, len(chunks))
	batchCount := (len(chunks) + o.batchSize - 1) / o.batchSize

	for batch := range batchCount {
		start := batch * o.batchSize
		end := min(start+o.batchSize, len(chunks))

		o.logger.Info(logFmtBatchStarted, batch+1, batchCount, end-start)

		batchErr := o.synthesizeBatch(ctx, chunks, start, end, segments, voice, audio)
		if batchErr != nil {
			return nil, batchErr
		}
	}

	var joined bytes.Buffer

	for _, segment := range segments {
		joined.Write(segment)
	}

	metrics.RecordSynthesis(len(chunks), joined.Len())
	o.logger.Info(logFmtSynthesisDone, len(chunks), joined.Len())

	return joined.Bytes(), nil
}

// synthesizeBatch fills segments[start:end]. Every call in the batch runs to
// completion; failures are reported by lowest index.
func (o *Orchestrator) synthesizeBatch(
	ctx context.Context,
	chunks []string,
	start, end int,
	segments [][]byte,
	voice core.Voice,
	audio core.AudioConfig,
) error {
	var group errgroup.Group

	failures := make([]error, end-start)

	for index := start; index < end; index++ {
		group.Go(func() error {
			segment, callErr := o.synthesizeChunk(ctx, chunks[index], voice, audio)
			if callErr != nil {
				o.logger.Error(logFmtChunkFailed, index, len(chunks), len(chunks[index]), voice.Name, callErr)
				failures[index-start] = callErr

				return callErr
			}

			segments[index] = segment

			return nil
		})
	}

	if group.Wait() == nil {
		return nil
	}

	for offset, failure := range failures {
		if failure != nil {
			return &SynthesisError{Index: start + offset, Err: failure}
		}
	}

	return nil
}

func (o *Orchestrator) synthesizeChunk(
	ctx context.Context,
	text string,
	voice core.Voice,
	audio core.AudioConfig,
) ([]byte, error) {
	callCtx := ctx

	if o.callTimeout > 0 {
		var cancel context.CancelFunc

		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	started := time.Now()

	segment, err := o.synthesizer.SynthesizeSpeech(callCtx, text, voice, audio)
	if err == nil && len(segment) == 0 {
		err = ErrEmptyAudio
	}

	metrics.RecordSynthesisCall(err == nil, started)

	if err != nil {
		return nil, err
	}

	return segment, nil
}
