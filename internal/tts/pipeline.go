package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/metrics"
	"github.com/book-expert/voice-service/internal/tts/audio"
	"github.com/book-expert/voice-service/internal/tts/text"
)

// Stage is a step of a pipeline run.
type Stage string

// Pipeline stages in the order a run passes through them.
const (
	StageReceived         Stage = "RECEIVED"
	StageExtracted        Stage = "EXTRACTED"
	StageSanitized        Stage = "SANITIZED"
	StageLanguageDetected Stage = "LANGUAGE_DETECTED"
	StageChunked          Stage = "CHUNKED"
	StageSynthesizing     Stage = "SYNTHESIZING"
	StageDone             Stage = "DONE"
	StageError            Stage = "ERROR"
)

// Error kinds of a failed run.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrExtractionFailure    = errors.New("text extraction failed")
	ErrInsufficientText     = errors.New("insufficient readable text")
	ErrSynthesisFailure     = errors.New("synthesis failed")
	ErrSynthesisUnavailable = errors.New("synthesis capability not configured")
)

const (
	logFmtExtracted   = "Extracted %d chars from %d bytes (%s) with %s"
	logFmtScanned     = "Document %s reports %d pages but only %d chars of text; likely scanned"
	logFmtUnsupported = "Unsupported MIME type for extraction: %s (%d bytes)"
	logFmtPlan        = "Synthesis plan: lang=%s voice=%s script=%s chars=%d chunks=%d"
	logFmtRunFailed   = "Pipeline failed (%s): %v"
	logFmtHinglish    = "Romanized Hindi detected (%d keywords); switching %s to %s"
	introSeparator    = "\n\n"
)

// PipelineError is the terminal error of a run. Stage is the step that could not be
// completed and Kind is one of the Err* kinds above. Trace lists the stages the run
// entered, ending with StageError.
type PipelineError struct {
	Stage Stage
	Kind  error
	Err   error
	Trace []Stage
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}

	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// stageTrace records the stages a run has entered, in order.
type stageTrace []Stage

func (t *stageTrace) enter(stage Stage) {
	*t = append(*t, stage)
}

func (t stageTrace) current() Stage {
	return t[len(t)-1]
}

// fail builds the error of the stage being attempted.
func (t stageTrace) fail(kind, cause error) *PipelineError {
	return &PipelineError{Stage: t.current(), Kind: kind, Err: cause}
}

func (t stageTrace) String() string {
	names := make([]string, len(t))
	for index, stage := range t {
		names[index] = string(stage)
	}

	return strings.Join(names, " -> ")
}

// DocumentRequest asks for a document to be read aloud.
type DocumentRequest struct {
	FileData     []byte
	MimeType     string
	LanguageCode string
	Gender       string
	IntroText    string
}

// SpeechRequest asks for a short piece of text to be spoken.
type SpeechRequest struct {
	Text         string
	LanguageCode string
	Gender       string
	Tone         string
}

// LanguageDecision is derived once per run from the sanitized text.
type LanguageDecision struct {
	Script text.Script
	Voice  core.Voice
}

// SynthesisResult is the audio of a run plus what the caller reports about it.
type SynthesisResult struct {
	Audio         []byte
	ContentType   string
	TextLength    int
	ChunkCount    int
	LikelyScanned bool
	Language      LanguageDecision
	Stages        []Stage
}

// Pipeline turns documents and text into audio.
type Pipeline struct {
	extractor         core.Extractor
	orchestrator      *Orchestrator
	sanitizer         *text.Sanitizer
	preprocessor      *text.Preprocessor
	detector          *text.Detector
	chunker           *text.Chunker
	encoding          audio.Format
	defaultLanguage   string
	secondaryLanguage string
	extractionTimeout time.Duration
	logger            *logger.Logger
}

// NewPipeline wires a pipeline from configuration. A nil synthesizer leaves the
// pipeline running but every run fails with ErrSynthesisUnavailable.
func NewPipeline(
	cfg *config.Config,
	extractor core.Extractor,
	synthesizer core.Synthesizer,
	log *logger.Logger,
) (*Pipeline, error) {
	encoding := audio.Format(cfg.Synthesis.AudioEncoding)

	validateErr := audio.Validate(audio.DocumentConfig(encoding))
	if validateErr != nil {
		return nil, validateErr
	}

	pipeline := &Pipeline{
		extractor:         extractor,
		sanitizer:         text.NewSanitizer(),
		preprocessor:      text.NewPreprocessor(),
		detector:          text.NewDetector(cfg.Language.DensityThreshold, cfg.Language.CountThreshold),
		chunker:           text.NewChunker(cfg.Language.DefaultChunkSize, cfg.Language.SecondaryChunkSize),
		encoding:          encoding,
		defaultLanguage:   cfg.Synthesis.DefaultLanguage,
		secondaryLanguage: cfg.Synthesis.SecondaryLanguage,
		extractionTimeout: cfg.ExtractionTimeout(),
		logger:            log,
	}

	if synthesizer != nil {
		orchestrator, err := NewOrchestrator(synthesizer, cfg.Synthesis.BatchSize, cfg.CallTimeout(), log)
		if err != nil {
			return nil, err
		}

		pipeline.orchestrator = orchestrator
	}

	return pipeline, nil
}

// Available reports whether a synthesis capability is configured.
func (p *Pipeline) Available() bool {
	return p.orchestrator != nil
}

// SynthesizeDocument extracts, cleans, chunks and reads a document. An intro text is
// read before the document and is enough on its own.
func (p *Pipeline) SynthesizeDocument(ctx context.Context, req DocumentRequest) (*SynthesisResult, error) {
	started := time.Now()

	result, trace, err := p.runDocument(ctx, req)

	return p.finish(result, trace, err, started)
}

// SynthesizeSpeech reads a short text with live preprocessing, romanized Hindi
// detection and a tone profile.
func (p *Pipeline) SynthesizeSpeech(ctx context.Context, req SpeechRequest) (*SynthesisResult, error) {
	started := time.Now()

	result, trace, err := p.runSpeech(ctx, req)

	return p.finish(result, trace, err, started)
}

func (p *Pipeline) finish(
	result *SynthesisResult,
	trace stageTrace,
	err error,
	started time.Time,
) (*SynthesisResult, error) {
	if err != nil {
		failed := trace.current()
		trace.enter(StageError)

		var pipelineErr *PipelineError
		if errors.As(err, &pipelineErr) {
			pipelineErr.Trace = trace
		}

		p.logger.Error(logFmtRunFailed, trace, err)
		metrics.RecordPipeline(string(failed), false, started)

		return nil, err
	}

	trace.enter(StageDone)
	result.Stages = trace

	metrics.RecordPipeline(string(StageDone), true, started)

	return result, nil
}

func (p *Pipeline) runDocument(ctx context.Context, req DocumentRequest) (*SynthesisResult, stageTrace, error) {
	trace := stageTrace{StageReceived}

	if p.orchestrator == nil {
		return nil, trace, trace.fail(ErrSynthesisUnavailable, nil)
	}

	hasFile := len(req.FileData) > 0 && req.MimeType != ""
	hasIntro := strings.TrimSpace(req.IntroText) != ""

	if !hasFile && !hasIntro {
		return nil, trace, trace.fail(ErrInvalidInput, errors.New("either fileData or introText is required"))
	}

	trace.enter(StageExtracted)

	extraction := &core.Extraction{}

	if len(req.FileData) > 0 {
		extracted, extractErr := p.extract(ctx, req.FileData, req.MimeType)
		if extractErr != nil {
			return nil, trace, trace.fail(ErrExtractionFailure, extractErr)
		}

		extraction = extracted
	}

	raw := extraction.Text
	if hasIntro {
		raw = req.IntroText + introSeparator + raw
	}

	trace.enter(StageSanitized)

	sanitized := p.sanitizer.Sanitize(raw)
	if !text.IsReadable(sanitized) {
		return nil, trace, trace.fail(ErrInsufficientText, nil)
	}

	trace.enter(StageLanguageDetected)

	decision := p.decideDocumentLanguage(sanitized, req)

	trace.enter(StageChunked)

	chunks := p.chunker.Chunk(sanitized, decision.Script)

	trace.enter(StageSynthesizing)

	result, synthErr := p.synthesize(ctx, sanitized, chunks, decision, audio.DocumentConfig(p.encoding))
	if synthErr != nil {
		return nil, trace, trace.fail(ErrSynthesisFailure, synthErr)
	}

	result.LikelyScanned = extraction.LikelyScanned

	return result, trace, nil
}

func (p *Pipeline) runSpeech(ctx context.Context, req SpeechRequest) (*SynthesisResult, stageTrace, error) {
	trace := stageTrace{StageReceived}

	if p.orchestrator == nil {
		return nil, trace, trace.fail(ErrSynthesisUnavailable, nil)
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, trace, trace.fail(ErrInvalidInput, errors.New("text is required"))
	}

	trace.enter(StageSanitized)

	processed := p.preprocessor.PreprocessText(req.Text)
	if !text.IsReadable(processed) {
		return nil, trace, trace.fail(ErrInsufficientText, nil)
	}

	trace.enter(StageLanguageDetected)

	decision := p.decideSpeechLanguage(req)

	trace.enter(StageChunked)

	tone := audio.ResolveTone(req.Tone, utf8.RuneCountInString(req.Text))
	chunks := p.chunker.Chunk(processed, decision.Script)

	trace.enter(StageSynthesizing)

	result, synthErr := p.synthesize(ctx, processed, chunks, decision, audio.SpeechConfig(p.encoding, tone))
	if synthErr != nil {
		return nil, trace, trace.fail(ErrSynthesisFailure, synthErr)
	}

	return result, trace, nil
}

// decideSpeechLanguage keeps the requested language unless English text reads as
// romanized Hindi, which is spoken with the secondary language.
func (p *Pipeline) decideSpeechLanguage(req SpeechRequest) LanguageDecision {
	languageCode := req.LanguageCode
	if languageCode == "" {
		languageCode = p.defaultLanguage
	}

	if IsEnglish(languageCode) && p.preprocessor.IsRomanizedHindi(req.Text) {
		p.logger.Info(logFmtHinglish, p.preprocessor.CountRomanizedHindi(req.Text), languageCode, p.secondaryLanguage)
		languageCode = p.secondaryLanguage
	}

	script := text.ScriptDefault
	if IsHindi(languageCode) {
		script = text.ScriptDevanagari
	}

	return LanguageDecision{
		Script: script,
		Voice:  SelectVoice(languageCode, req.Gender),
	}
}

// extract runs the extractor under the extraction deadline.
func (p *Pipeline) extract(ctx context.Context, data []byte, mimeType string) (*core.Extraction, error) {
	if p.extractor == nil {
		return nil, errors.New("no extractor configured")
	}

	extractCtx := ctx

	if p.extractionTimeout > 0 {
		var cancel context.CancelFunc

		extractCtx, cancel = context.WithTimeout(ctx, p.extractionTimeout)
		defer cancel()
	}

	extraction, err := p.extractor.Extract(extractCtx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract %d bytes of %s: %w", len(data), mimeType, err)
	}

	if extraction.Strategy == "" {
		p.logger.Warn(logFmtUnsupported, mimeType, len(data))
	} else {
		p.logger.Info(logFmtExtracted, utf8.RuneCountInString(extraction.Text), len(data), mimeType, extraction.Strategy)
	}

	if extraction.LikelyScanned {
		p.logger.Warn(logFmtScanned, mimeType, extraction.PageCount, len(strings.TrimSpace(extraction.Text)))
	}

	return extraction, nil
}

// decideDocumentLanguage reads Devanagari text with the secondary language. Other text
// keeps a requested non-Hindi language, or falls back to the default language.
func (p *Pipeline) decideDocumentLanguage(sanitized string, req DocumentRequest) LanguageDecision {
	detection := p.detector.Detect(sanitized)

	languageCode := p.defaultLanguage

	switch {
	case detection.Script == text.ScriptDevanagari:
		languageCode = p.secondaryLanguage
	case req.LanguageCode != "" && !IsHindi(req.LanguageCode):
		languageCode = req.LanguageCode
	}

	return LanguageDecision{
		Script: detection.Script,
		Voice:  SelectVoice(languageCode, req.Gender),
	}
}

func (p *Pipeline) synthesize(
	ctx context.Context,
	sanitized string,
	chunks []string,
	decision LanguageDecision,
	audioConfig core.AudioConfig,
) (*SynthesisResult, error) {
	textLength := utf8.RuneCountInString(sanitized)

	p.logger.Info(logFmtPlan, decision.Voice.LanguageCode, decision.Voice.Name, decision.Script,
		textLength, len(chunks))

	audioData, err := p.orchestrator.Synthesize(ctx, chunks, decision.Voice, audioConfig)
	if err != nil {
		return nil, err
	}

	return &SynthesisResult{
		Audio:       audioData,
		ContentType: p.encoding.ContentType(),
		TextLength:  textLength,
		ChunkCount:  len(chunks),
		Language:    decision,
	}, nil
}
