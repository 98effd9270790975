package tts_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
	"github.com/book-expert/voice-service/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockSynthesis = errors.New("mock synthesis error")

// stubSynthesizer returns "[text]" after a random delay and tracks concurrency.
type stubSynthesizer struct {
	maxDelay time.Duration
	failOn   map[string]bool
	block    bool

	mu       sync.Mutex
	calls    []string
	voices   []core.Voice
	configs  []core.AudioConfig
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *stubSynthesizer) SynthesizeSpeech(
	ctx context.Context,
	text string,
	voice core.Voice,
	audioConfig core.AudioConfig,
) ([]byte, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.voices = append(s.voices, voice)
	s.configs = append(s.configs, audioConfig)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	if s.maxDelay > 0 {
		time.Sleep(rand.N(s.maxDelay))
	}

	if s.failOn[text] {
		return nil, errMockSynthesis
	}

	return []byte("[" + text + "]"), nil
}

func (s *stubSynthesizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	return testLogger
}

func numberedChunks(count int) []string {
	chunks := make([]string, count)
	for index := range chunks {
		chunks[index] = fmt.Sprintf("chunk-%02d", index)
	}

	return chunks
}

func testVoice() core.Voice {
	return tts.SelectVoice("en-US", tts.GenderFemale)
}

func TestNewOrchestrator_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	testLogger := createTestLogger(t)

	_, err := tts.NewOrchestrator(nil, 15, time.Second, testLogger)
	require.ErrorIs(t, err, tts.ErrNilSynthesizer)

	_, err = tts.NewOrchestrator(&stubSynthesizer{}, 0, time.Second, testLogger)
	require.ErrorIs(t, err, tts.ErrInvalidBatchSize)
}

func TestOrchestrator_PreservesChunkOrder(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{maxDelay: 20 * time.Millisecond}

	orchestrator, err := tts.NewOrchestrator(synth, 15, time.Second, createTestLogger(t))
	require.NoError(t, err)

	for range 10 {
		audioData, synthErr := orchestrator.Synthesize(
			context.Background(),
			[]string{"A", "B", "C"},
			testVoice(),
			audio.DocumentConfig(audio.FORMAT_MP3),
		)
		require.NoError(t, synthErr)
		assert.Equal(t, "[A][B][C]", string(audioData))
	}
}

func TestOrchestrator_OrderAcrossBatches(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{maxDelay: 5 * time.Millisecond}

	orchestrator, err := tts.NewOrchestrator(synth, 4, time.Second, createTestLogger(t))
	require.NoError(t, err)

	chunks := numberedChunks(11)

	audioData, err := orchestrator.Synthesize(context.Background(), chunks, testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))
	require.NoError(t, err)

	expected := ""
	for _, chunk := range chunks {
		expected += "[" + chunk + "]"
	}

	assert.Equal(t, expected, string(audioData))
	assert.Equal(t, 11, synth.callCount())
}

func TestOrchestrator_FailFastReportsChunkIndex(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{
		maxDelay: 2 * time.Millisecond,
		failOn:   map[string]bool{"chunk-07": true},
	}

	orchestrator, err := tts.NewOrchestrator(synth, 15, time.Second, createTestLogger(t))
	require.NoError(t, err)

	audioData, err := orchestrator.Synthesize(context.Background(), numberedChunks(20), testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))
	require.Error(t, err)
	assert.Nil(t, audioData)

	var synthesisErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthesisErr)
	assert.Equal(t, 7, synthesisErr.Index)
	require.ErrorIs(t, err, errMockSynthesis)

	// The failing batch is the first; the second batch never starts.
	assert.Equal(t, 15, synth.callCount())
}

func TestOrchestrator_ReportsLowestFailingIndex(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{
		maxDelay: 5 * time.Millisecond,
		failOn:   map[string]bool{"chunk-03": true, "chunk-09": true, "chunk-12": true},
	}

	orchestrator, err := tts.NewOrchestrator(synth, 15, time.Second, createTestLogger(t))
	require.NoError(t, err)

	_, err = orchestrator.Synthesize(context.Background(), numberedChunks(15), testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))

	var synthesisErr *tts.SynthesisError
	require.ErrorAs(t, err, &synthesisErr)
	assert.Equal(t, 3, synthesisErr.Index)
}

func TestOrchestrator_BoundsConcurrencyToBatchSize(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{maxDelay: 10 * time.Millisecond}

	orchestrator, err := tts.NewOrchestrator(synth, 15, time.Second, createTestLogger(t))
	require.NoError(t, err)

	_, err = orchestrator.Synthesize(context.Background(), numberedChunks(47), testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))
	require.NoError(t, err)

	assert.LessOrEqual(t, synth.peak.Load(), int32(15))
	assert.Equal(t, 47, synth.callCount())
}

func TestOrchestrator_AppliesPerCallTimeout(t *testing.T) {
	t.Parallel()

	synth := &stubSynthesizer{block: true}

	orchestrator, err := tts.NewOrchestrator(synth, 15, 20*time.Millisecond, createTestLogger(t))
	require.NoError(t, err)

	_, err = orchestrator.Synthesize(context.Background(), []string{"slow"}, testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_NoChunks(t *testing.T) {
	t.Parallel()

	orchestrator, err := tts.NewOrchestrator(&stubSynthesizer{}, 15, time.Second, createTestLogger(t))
	require.NoError(t, err)

	_, err = orchestrator.Synthesize(context.Background(), nil, testVoice(),
		audio.DocumentConfig(audio.FORMAT_MP3))
	require.ErrorIs(t, err, tts.ErrNoChunks)
}
