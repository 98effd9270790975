// Package extract recovers plain text from uploaded documents. Each format is handled
// by a Strategy; a Registry picks the strategies for a MIME type and tries them in
// order until one succeeds.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/metrics"
)

// Strategy names.
const (
	StrategyPDF    = "pdf"
	StrategyOffice = "office"
	StrategyWord   = "word"
	StrategyOCR    = "ocr"
	StrategyPlain  = "plain"
	StrategyHTML   = "html"
)

// MIME types and fragments used for dispatch.
const (
	mimePDF            = "application/pdf"
	mimeFragmentWord   = "word"
	mimeFragmentOffice = "officedocument"
	mimeFragmentODF    = "opendocument"
	prefixImage        = "image/"
	prefixText         = "text/"
	mimeHTML           = "text/html"
	mimeXHTML          = "application/xhtml+xml"
	suffixDocx         = ".docx"
	suffixDoc          = ".doc"
)

const logFmtStrategyFailed = "Extraction strategy %s failed for %s (%d bytes): %v"

// ErrEmptyDocument is returned when a strategy is given no bytes.
var ErrEmptyDocument = errors.New("document is empty")

// Strategy extracts text from one document format.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, data []byte) (*core.Extraction, error)
}

// Attempt records one failed strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// ExtractionError aggregates every strategy tried for a document.
type ExtractionError struct {
	MimeType string
	Attempts []Attempt
}

func (e *ExtractionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", attempt.Strategy, attempt.Err))
	}

	return fmt.Sprintf("all extraction strategies failed for %s: %s", e.MimeType, strings.Join(parts, "; "))
}

// Unwrap exposes each attempt's error.
func (e *ExtractionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		errs = append(errs, attempt.Err)
	}

	return errs
}

// Matcher reports whether a normalized MIME type belongs to a route.
type Matcher func(mimeType string) bool

type route struct {
	match      Matcher
	strategies []Strategy
}

// Registry maps MIME types to ordered strategy chains.
type Registry struct {
	routes []route
	logger *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{logger: log}
}

// NewDefaultRegistry registers the PDF, Office, image, HTML and text chains.
func NewDefaultRegistry(cfg *config.Config, log *logger.Logger) *Registry {
	registry := NewRegistry(log)

	registry.Register(IsPDF, NewPDFStrategy(cfg.Extraction.MinPDFTextLength))
	registry.Register(IsOffice, NewOfficeStrategy(), NewWordStrategy())
	registry.Register(IsImage, NewOCRStrategy(cfg.Extraction.TesseractBinary, cfg.Extraction.OCRLanguages))
	registry.Register(IsHTML, NewHTMLStrategy())
	registry.Register(IsText, NewPlainStrategy())

	return registry
}

// Register appends a route. Routes are checked in registration order.
func (r *Registry) Register(match Matcher, strategies ...Strategy) {
	r.routes = append(r.routes, route{match: match, strategies: strategies})
}

// Extract implements core.Extractor. An unsupported MIME type yields empty text and
// no error. Strategies stop early when ctx is done.
func (r *Registry) Extract(ctx context.Context, data []byte, mimeType string) (*core.Extraction, error) {
	normalized := normalizeMIME(mimeType)

	strategies := r.strategiesFor(normalized)
	if len(strategies) == 0 {
		return &core.Extraction{}, nil
	}

	extractionErr := &ExtractionError{MimeType: mimeType}

	for _, strategy := range strategies {
		extraction, err := runStrategy(ctx, strategy, data)

		metrics.RecordExtraction(strategy.Name(), err == nil)

		if err == nil {
			extraction.Strategy = strategy.Name()

			return extraction, nil
		}

		r.logger.Warn(logFmtStrategyFailed, strategy.Name(), mimeType, len(data), err)
		extractionErr.Attempts = append(extractionErr.Attempts, Attempt{Strategy: strategy.Name(), Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	return nil, extractionErr
}

func (r *Registry) strategiesFor(mimeType string) []Strategy {
	for _, candidate := range r.routes {
		if candidate.match(mimeType) {
			return candidate.strategies
		}
	}

	return nil
}

// runStrategy runs a strategy in its own goroutine so a slow parser cannot hold the
// caller past its deadline.
func runStrategy(ctx context.Context, strategy Strategy, data []byte) (*core.Extraction, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	type outcome struct {
		extraction *core.Extraction
		err        error
	}

	done := make(chan outcome, 1)

	go func() {
		extraction, err := strategy.Extract(ctx, data)
		done <- outcome{extraction: extraction, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("extraction interrupted: %w", ctx.Err())
	case result := <-done:
		if result.err == nil && result.extraction == nil {
			result.extraction = &core.Extraction{}
		}

		return result.extraction, result.err
	}
}

func normalizeMIME(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")

	return strings.ToLower(strings.TrimSpace(base))
}

// IsPDF matches PDF documents.
func IsPDF(mimeType string) bool {
	return mimeType == mimePDF
}

// IsOffice matches Word, OOXML and OpenDocument types, plus bare .doc/.docx names.
func IsOffice(mimeType string) bool {
	return strings.Contains(mimeType, mimeFragmentWord) ||
		strings.Contains(mimeType, mimeFragmentOffice) ||
		strings.Contains(mimeType, mimeFragmentODF) ||
		strings.HasSuffix(mimeType, suffixDocx) ||
		strings.HasSuffix(mimeType, suffixDoc)
}

// IsImage matches every image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, prefixImage)
}

// IsHTML matches HTML and XHTML pages.
func IsHTML(mimeType string) bool {
	return mimeType == mimeHTML || mimeType == mimeXHTML
}

// IsText matches every text type.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, prefixText)
}
