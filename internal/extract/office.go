package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
)

// Archive parts that carry document text.
const (
	partWordDocument = "word/document.xml"
	partODFContent   = "content.xml"
	partSlidePrefix  = "ppt/slides/slide"
	partSlideSuffix  = ".xml"
)

// ErrNoTextPart is returned when an archive has none of the known text parts.
var ErrNoTextPart = errors.New("no document text part found in archive")

// OfficeStrategy reads DOCX, PPTX and OpenDocument archives.
type OfficeStrategy struct{}

// NewOfficeStrategy creates an Office strategy.
func NewOfficeStrategy() *OfficeStrategy {
	return &OfficeStrategy{}
}

// Name implements Strategy.
func (s *OfficeStrategy) Name() string {
	return StrategyOffice
}

// Extract implements Strategy.
func (s *OfficeStrategy) Extract(ctx context.Context, data []byte) (*core.Extraction, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open office archive: %w", err)
	}

	if part := findPart(archive, partWordDocument); part != nil {
		return extractPart(part, isOOXMLText)
	}

	if part := findPart(archive, partODFContent); part != nil {
		return extractPart(part, isODFText)
	}

	slides := slideParts(archive)
	if len(slides) == 0 {
		return nil, ErrNoTextPart
	}

	texts := make([]string, 0, len(slides))

	for _, slide := range slides {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("office extraction interrupted: %w", ctx.Err())
		}

		text, readErr := readXMLText(slide, isOOXMLText)
		if readErr != nil {
			return nil, readErr
		}

		if text != "" {
			texts = append(texts, text)
		}
	}

	return extractionOf(strings.Join(texts, "\n"), len(slides)), nil
}

func extractionOf(text string, pages int) *core.Extraction {
	return &core.Extraction{Text: text, PageCount: pages}
}

func extractPart(part *zip.File, isText textElement) (*core.Extraction, error) {
	text, err := readXMLText(part, isText)
	if err != nil {
		return nil, err
	}

	return extractionOf(text, 0), nil
}

func findPart(archive *zip.Reader, name string) *zip.File {
	for _, file := range archive.File {
		if file.Name == name {
			return file
		}
	}

	return nil
}

// slideParts returns the slide parts in slide order.
func slideParts(archive *zip.Reader) []*zip.File {
	var slides []*zip.File

	for _, file := range archive.File {
		if strings.HasPrefix(file.Name, partSlidePrefix) && path.Ext(file.Name) == partSlideSuffix {
			slides = append(slides, file)
		}
	}

	sort.Slice(slides, func(i, j int) bool {
		return slideNumber(slides[i].Name) < slideNumber(slides[j].Name)
	})

	return slides
}

func slideNumber(name string) int {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, partSlidePrefix), partSlideSuffix)

	number, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}

	return number
}

// textElement reports whether character data inside an element is document text.
type textElement func(name xml.Name) bool

// isOOXMLText matches <w:t> and <a:t> runs.
func isOOXMLText(name xml.Name) bool {
	return name.Local == "t"
}

// isODFText matches <text:p>, <text:h> and <text:span>.
func isODFText(name xml.Name) bool {
	switch name.Local {
	case "p", "h", "span":
		return true
	default:
		return false
	}
}

// readXMLText walks an XML part, keeping text inside matching elements and ending a
// line at every paragraph.
func readXMLText(part *zip.File, isText textElement) (string, error) {
	reader, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", part.Name, err)
	}
	defer reader.Close()

	decoder := xml.NewDecoder(reader)

	var (
		text  strings.Builder
		depth int
	)

	for {
		token, tokenErr := decoder.Token()
		if errors.Is(tokenErr, io.EOF) {
			break
		}

		if tokenErr != nil {
			return "", fmt.Errorf("parse %s: %w", part.Name, tokenErr)
		}

		switch element := token.(type) {
		case xml.StartElement:
			switch {
			case isText(element.Name):
				depth++
			case element.Name.Local == "tab", element.Name.Local == "br", element.Name.Local == "s":
				text.WriteByte(' ')
			}
		case xml.EndElement:
			if isText(element.Name) && depth > 0 {
				depth--
			}

			if element.Name.Local == "p" || element.Name.Local == "h" {
				text.WriteByte('\n')
			}
		case xml.CharData:
			if depth > 0 {
				text.Write(element)
			}
		}
	}

	return strings.TrimSpace(text.String()), nil
}
