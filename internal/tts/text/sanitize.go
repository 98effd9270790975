// Package text provides the text preparation stages of the speech pipeline.
//
// Document text is sanitized, classified by script and cut into bounded chunks
// before it reaches the synthesis capability. Live speech requests go through the
// lighter Preprocessor instead.
package text

import (
	"regexp"
	"strings"
)

// MinReadableLength is the shortest sanitized text worth synthesizing.
const MinReadableLength = 2

// Symbol replacements applied to document text.
const (
	trademarkSymbol = "™"
	copyrightSymbol = "©"
	trademarkWord   = " tm "
	symbolSpace     = " "
	spokenTM        = "tum"
)

// removedSymbols is the exact set of symbols replaced by a space. Everything else,
// including ! ' and #, is left untouched.
var removedSymbols = []string{
	",", ".", "?", ";", `"`, `\`, "*", "/", "+", "-", ":", "@", "[", "]", "(", ")", "|", "_",
}

// Sanitizer strips characters that upset the synthesis engine from extracted text.
type Sanitizer struct {
	symbolReplacer *strings.Replacer
	tmPattern      *regexp.Regexp
}

// NewSanitizer creates a Sanitizer with its replacer and patterns compiled.
func NewSanitizer() *Sanitizer {
	pairs := make([]string, 0, 2*len(removedSymbols)+4)
	pairs = append(pairs, trademarkSymbol, trademarkWord, copyrightSymbol, symbolSpace)

	for _, symbol := range removedSymbols {
		pairs = append(pairs, symbol, symbolSpace)
	}

	return &Sanitizer{
		symbolReplacer: strings.NewReplacer(pairs...),
		tmPattern:      regexp.MustCompile(`(?i)\btm\b`),
	}
}

// Sanitize returns text free of control characters and of the removed symbol set,
// with "tm" spoken as "tum" and whitespace collapsed to single spaces.
// It never fails; callers check the result against MinReadableLength.
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}

	cleaned := strings.ToValidUTF8(text, "")
	cleaned = strings.Map(dropControl, cleaned)
	cleaned = s.symbolReplacer.Replace(cleaned)

	// Runs after symbol stripping: "(tm)" only becomes a standalone token here.
	cleaned = s.tmPattern.ReplaceAllString(cleaned, spokenTM)

	return strings.Join(strings.Fields(cleaned), " ")
}

// IsReadable reports whether sanitized text is long enough to synthesize.
func IsReadable(sanitized string) bool {
	return len([]rune(sanitized)) >= MinReadableLength
}

// dropControl removes C0 and C1 control characters. Tab, line feed and carriage
// return survive until whitespace is collapsed so that lines do not run together.
func dropControl(r rune) rune {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return r
	case r < 0x20:
		return -1
	case r >= 0x7F && r <= 0x9F:
		return -1
	default:
		return r
	}
}
