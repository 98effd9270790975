package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
)

// ErrOCRNoText is returned when tesseract runs but recognizes nothing.
var ErrOCRNoText = errors.New("OCR recognized no text")

// OCRStrategy recognizes text in images with the tesseract CLI, reading the image
// from stdin. languages is a tesseract language list such as "eng+hin".
type OCRStrategy struct {
	binary    string
	languages string
}

// NewOCRStrategy creates an OCR strategy.
func NewOCRStrategy(binary, languages string) *OCRStrategy {
	return &OCRStrategy{binary: binary, languages: languages}
}

// Name implements Strategy.
func (s *OCRStrategy) Name() string {
	return StrategyOCR
}

// Extract implements Strategy.
func (s *OCRStrategy) Extract(ctx context.Context, data []byte) (*core.Extraction, error) {
	args := []string{"stdin", "stdout", "-l", s.languages, "--psm", "3"}

	// #nosec G204 -- binary and languages come from the service configuration
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("%s execution failed: %w - output: %s", s.binary, err, strings.TrimSpace(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, ErrOCRNoText
	}

	return &core.Extraction{Text: text, PageCount: 1}, nil
}
