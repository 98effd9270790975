package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/book-expert/voice-service/internal/core"
)

// oleSignature starts every legacy compound document (.doc).
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// wordRunPattern matches the text runs of a WordprocessingML body.
var wordRunPattern = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)

// wordParagraphEnd closes a WordprocessingML paragraph.
const wordParagraphEnd = "</w:p>"

// minLegacyRun is the shortest character run kept from a legacy binary document.
const minLegacyRun = 4

// Rune ranges kept from legacy binary documents.
const (
	latinExtendedLast = 0x024F
	devanagariFirst   = 0x0900
	devanagariLast    = 0x097F
	punctuationFirst  = 0x2000
	punctuationLast   = 0x206F
)

// Errors for the raw Word strategy.
var (
	ErrNotWordDocument = errors.New("not a Word document")
	ErrNoWordText      = errors.New("no text runs found in Word document")
)

// WordStrategy is the fallback for Word files the Office strategy cannot read. It
// scans the raw body XML of a DOCX for text runs, or recovers printable runs from a
// legacy binary .doc.
type WordStrategy struct{}

// NewWordStrategy creates a raw Word strategy.
func NewWordStrategy() *WordStrategy {
	return &WordStrategy{}
}

// Name implements Strategy.
func (s *WordStrategy) Name() string {
	return StrategyWord
}

// Extract implements Strategy.
func (s *WordStrategy) Extract(_ context.Context, data []byte) (*core.Extraction, error) {
	var (
		text string
		err  error
	)

	switch {
	case bytes.HasPrefix(data, oleSignature):
		text = legacyWordText(data)
	case bytes.HasPrefix(data, []byte("PK")):
		text, err = rawDocxText(data)
	default:
		return nil, ErrNotWordDocument
	}

	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrNoWordText
	}

	return &core.Extraction{Text: text}, nil
}

// rawDocxText pulls <w:t> runs out of word/document.xml without parsing the tree, so
// documents with malformed XML still yield text.
func rawDocxText(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	part := findPart(archive, partWordDocument)
	if part == nil {
		return "", ErrNoTextPart
	}

	reader, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", part.Name, err)
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", part.Name, err)
	}

	var text strings.Builder

	for _, paragraph := range strings.Split(string(body), wordParagraphEnd) {
		runs := wordRunPattern.FindAllStringSubmatch(paragraph, -1)
		if len(runs) == 0 {
			continue
		}

		for _, run := range runs {
			text.WriteString(html.UnescapeString(run[1]))
		}

		text.WriteByte('\n')
	}

	return strings.TrimSpace(text.String()), nil
}

// legacyWordText recovers text from a binary .doc. Word stores body text either as
// UTF-16LE or as 8-bit characters, so both encodings are scanned and the richer
// result wins.
func legacyWordText(data []byte) string {
	wide := utf16Runs(data)
	narrow := byteRuns(data)

	if len(wide) >= len(narrow) {
		return wide
	}

	return narrow
}

func utf16Runs(data []byte) string {
	units := make([]uint16, 0, len(data)/2)
	for index := 0; index+1 < len(data); index += 2 {
		units = append(units, uint16(data[index])|uint16(data[index+1])<<8)
	}

	return printableRuns(utf16.Decode(units))
}

func byteRuns(data []byte) string {
	runes := make([]rune, len(data))
	for index, b := range data {
		runes[index] = rune(b)
	}

	return printableRuns(runes)
}

// isLegacyTextRune accepts printable Latin, punctuation and Devanagari runes. Other
// ranges are mostly binary structure misread as UTF-16.
func isLegacyTextRune(r rune) bool {
	if !unicode.IsPrint(r) {
		return false
	}

	return r <= latinExtendedLast ||
		(r >= devanagariFirst && r <= devanagariLast) ||
		(r >= punctuationFirst && r <= punctuationLast)
}

// printableRuns keeps runs of at least minLegacyRun printable runes, one per line.
func printableRuns(runes []rune) string {
	var (
		text    strings.Builder
		current []rune
	)

	flush := func() {
		if len(current) >= minLegacyRun && strings.TrimSpace(string(current)) != "" {
			text.WriteString(string(current))
			text.WriteByte('\n')
		}

		current = current[:0]
	}

	for _, r := range runes {
		if r == '\r' {
			current = append(current, '\n')

			continue
		}

		if !isLegacyTextRune(r) {
			flush()

			continue
		}

		current = append(current, r)
	}

	flush()

	return strings.TrimSpace(text.String())
}
