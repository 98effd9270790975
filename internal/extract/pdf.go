package extract

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFStrategy reads the text layer of a PDF. It performs no OCR; a document whose
// text layer is shorter than minTextLength despite having pages is flagged as
// likely scanned.
type PDFStrategy struct {
	minTextLength int
}

// NewPDFStrategy creates a PDF strategy.
func NewPDFStrategy(minTextLength int) *PDFStrategy {
	return &PDFStrategy{minTextLength: minTextLength}
}

// Name implements Strategy.
func (s *PDFStrategy) Name() string {
	return StrategyPDF
}

// Extract implements Strategy.
func (s *PDFStrategy) Extract(ctx context.Context, data []byte) (*core.Extraction, error) {
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var fullText strings.Builder

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pdf extraction interrupted at page %d: %w", pageNr, ctx.Err())
		}

		pageText := extractPageText(pdfCtx, pageNr)
		if pageText == "" {
			continue
		}

		if fullText.Len() > 0 {
			fullText.WriteByte('\n')
		}

		fullText.WriteString(pageText)
	}

	text := fullText.String()

	return &core.Extraction{
		Text:          text,
		PageCount:     pdfCtx.PageCount,
		LikelyScanned: pdfCtx.PageCount > 0 && len([]rune(strings.TrimSpace(text))) < s.minTextLength,
	}, nil
}

// extractPageText reads the text operators of one page's content stream.
func extractPageText(pdfCtx *model.Context, pageNr int) string {
	reader, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
	if err != nil || reader == nil {
		return ""
	}

	content, err := io.ReadAll(reader)
	if err != nil || len(content) == 0 {
		return ""
	}

	return textFromContentStream(content)
}

// textFromContentStream collects the strings shown by the Tj, TJ, ' and " operators and
// turns text positioning operators into whitespace. Operators may share a line.
func textFromContentStream(content []byte) string {
	var (
		text     strings.Builder
		operands []pdfOperand
	)

	lexer := &pdfLexer{data: content}

	for {
		kind, value := lexer.next()

		switch kind {
		case pdfTokenEOF:
			return collapsePDFWhitespace(text.String())
		case pdfTokenString:
			operands = append(operands, pdfOperand{text: pdfBytesToText(value), isText: true})
		case pdfTokenNumber:
			number, _ := strconv.ParseFloat(string(value), 64)
			operands = append(operands, pdfOperand{number: number})
		case pdfTokenOperator:
			applyTextOperator(&text, string(value), operands)

			if string(value) == "ID" {
				lexer.skipInlineImage()
			}

			operands = operands[:0]
		}
	}
}

// tjSpaceAdjustment is the TJ displacement, in thousandths of an em, read as a word gap.
const tjSpaceAdjustment = -250

type pdfOperand struct {
	text   string
	number float64
	isText bool
}

func applyTextOperator(text *strings.Builder, operator string, operands []pdfOperand) {
	switch operator {
	case "Tj":
		writeOperandText(text, operands)
	case "TJ":
		for _, operand := range operands {
			switch {
			case operand.isText:
				text.WriteString(operand.text)
			case operand.number <= tjSpaceAdjustment:
				text.WriteByte(' ')
			}
		}
	case "'", `"`:
		text.WriteByte('\n')
		writeOperandText(text, operands)
	case "T*":
		text.WriteByte('\n')
	case "Td", "TD", "Tm", "ET":
		if text.Len() > 0 {
			text.WriteByte(' ')
		}
	}
}

func writeOperandText(text *strings.Builder, operands []pdfOperand) {
	for _, operand := range operands {
		if operand.isText {
			text.WriteString(operand.text)
		}
	}
}

type pdfTokenKind int

const (
	pdfTokenEOF pdfTokenKind = iota
	pdfTokenString
	pdfTokenNumber
	pdfTokenOperator
	pdfTokenOther
)

// pdfLexer splits a content stream into strings, numbers and operators. Names,
// dictionaries and array brackets come back as pdfTokenOther.
type pdfLexer struct {
	data []byte
	pos  int
}

func (l *pdfLexer) next() (pdfTokenKind, []byte) {
	l.skipSpaceAndComments()

	if l.pos >= len(l.data) {
		return pdfTokenEOF, nil
	}

	switch current := l.data[l.pos]; {
	case current == '(':
		return pdfTokenString, l.literalString()
	case current == '<' && l.peek(1) == '<', current == '>' && l.peek(1) == '>':
		l.pos += 2

		return pdfTokenOther, nil
	case current == '<':
		return pdfTokenString, l.hexString()
	case current == '/':
		l.pos++
		l.regular()

		return pdfTokenOther, nil
	case isPDFDelimiter(current):
		l.pos++

		return pdfTokenOther, nil
	}

	word := l.regular()
	if isPDFNumber(word) {
		return pdfTokenNumber, word
	}

	return pdfTokenOperator, word
}

func (l *pdfLexer) peek(offset int) byte {
	if l.pos+offset >= len(l.data) {
		return 0
	}

	return l.data[l.pos+offset]
}

func (l *pdfLexer) skipSpaceAndComments() {
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case ' ', '\t', '\n', '\r', '\f', 0:
			l.pos++
		case '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

// regular reads a run of regular characters.
func (l *pdfLexer) regular() []byte {
	start := l.pos

	for l.pos < len(l.data) && !isPDFSpace(l.data[l.pos]) && !isPDFDelimiter(l.data[l.pos]) {
		l.pos++
	}

	return l.data[start:l.pos]
}

// literalString reads a balanced (...) string and returns its decoded bytes.
func (l *pdfLexer) literalString() []byte {
	l.pos++
	start := l.pos
	depth := 1

	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := l.data[start:l.pos]
				l.pos++

				return decodePDFString(raw)
			}
		}

		l.pos++
	}

	return decodePDFString(l.data[start:])
}

// hexString reads a <...> string. An odd final digit is padded with zero.
func (l *pdfLexer) hexString() []byte {
	l.pos++

	digits := make([]byte, 0, 64)

	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		if isHexDigit(l.data[l.pos]) {
			digits = append(digits, l.data[l.pos])
		}

		l.pos++
	}

	l.pos++

	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}

	decoded, err := hex.DecodeString(string(digits))
	if err != nil {
		return nil
	}

	return decoded
}

// skipInlineImage moves past the binary data of a BI ... ID ... EI inline image.
func (l *pdfLexer) skipInlineImage() {
	for index := l.pos; index+1 < len(l.data); index++ {
		if l.data[index] != 'E' || l.data[index+1] != 'I' {
			continue
		}

		before := index == 0 || isPDFSpace(l.data[index-1])
		after := index+2 >= len(l.data) || isPDFSpace(l.data[index+2])

		if before && after {
			l.pos = index + 2

			return
		}
	}

	l.pos = len(l.data)
}

func isPDFSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isPDFDelimiter(b byte) bool {
	return strings.IndexByte("()<>[]{}/%", b) >= 0
}

func isPDFNumber(word []byte) bool {
	digits := 0

	for _, b := range word {
		switch {
		case b >= '0' && b <= '9':
			digits++
		case b == '+', b == '-', b == '.':
		default:
			return false
		}
	}

	return digits > 0
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// pdfBytesToText decodes a PDF text string: UTF-16BE or UTF-8 when marked with a byte
// order mark, otherwise one byte per rune.
func pdfBytesToText(raw []byte) string {
	switch {
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		units := make([]uint16, 0, len(raw)/2)
		for index := 2; index+1 < len(raw); index += 2 {
			units = append(units, uint16(raw[index])<<8|uint16(raw[index+1]))
		}

		return string(utf16.Decode(units))
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return string(raw[3:])
	}

	runes := make([]rune, len(raw))
	for index, b := range raw {
		runes[index] = rune(b)
	}

	return string(runes)
}

// decodePDFString resolves the escape sequences of a PDF literal string.
func decodePDFString(raw []byte) []byte {
	decoded := make([]byte, 0, len(raw))

	for index := 0; index < len(raw); index++ {
		if raw[index] != '\\' || index+1 >= len(raw) {
			decoded = append(decoded, raw[index])

			continue
		}

		index++

		switch escaped := raw[index]; escaped {
		case 'n':
			decoded = append(decoded, '\n')
		case 'r':
			decoded = append(decoded, '\r')
		case 't':
			decoded = append(decoded, '\t')
		case '\n':
		case '\r':
			if index+1 < len(raw) && raw[index+1] == '\n' {
				index++
			}
		default:
			if !isOctal(escaped) {
				decoded = append(decoded, escaped)

				continue
			}

			value := int(escaped - '0')

			for digits := 1; digits < 3 && index+1 < len(raw) && isOctal(raw[index+1]); digits++ {
				index++
				value = value*8 + int(raw[index]-'0')
			}

			decoded = append(decoded, byte(value))
		}
	}

	return decoded
}

func isOctal(b byte) bool {
	return b >= '0' && b <= '7'
}

// collapsePDFWhitespace keeps printable runes and folds whitespace runs to one space.
func collapsePDFWhitespace(text string) string {
	var cleaned strings.Builder

	previousSpace := false

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !previousSpace && cleaned.Len() > 0 {
				cleaned.WriteByte(' ')

				previousSpace = true
			}
		case unicode.IsPrint(r):
			cleaned.WriteRune(r)

			previousSpace = false
		}
	}

	return strings.TrimSpace(cleaned.String())
}
