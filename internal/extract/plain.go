package extract

import (
	"context"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
)

const replacementChar = "\uFFFD"

// PlainStrategy decodes text documents as UTF-8. Each invalid byte sequence becomes
// U+FFFD; the text is otherwise returned unchanged.
type PlainStrategy struct{}

// NewPlainStrategy creates a plain text strategy.
func NewPlainStrategy() *PlainStrategy {
	return &PlainStrategy{}
}

// Name implements Strategy.
func (s *PlainStrategy) Name() string {
	return StrategyPlain
}

// Extract implements Strategy.
func (s *PlainStrategy) Extract(_ context.Context, data []byte) (*core.Extraction, error) {
	return &core.Extraction{Text: strings.ToValidUTF8(string(data), replacementChar)}, nil
}
