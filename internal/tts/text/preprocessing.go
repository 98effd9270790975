package text

import (
	"regexp"
	"strings"
)

// RomanizedHindiThreshold is the number of romanized Hindi keywords a live request
// must contain before it is read with a Hindi voice.
const RomanizedHindiThreshold = 2

// Regex patterns for live speech preprocessing.
const (
	liveSymbolsPattern    = `[,.\-]`
	romanizedHindiPattern = `(?i)\b(hai|mein|ka|ki|aur|tha|thi|hum|tum|aap|kya|nahi|han|ho|ko|se|yeh|woh|karna|kar|raha|rahe|hota|sahi|achha|bhi|ek|ladka|gaon|raat|mitti|diya|jalata|padhai|kyunki|bijli|aksar|chali|jaati|usse|mazaak|kehte|chhote|tu|lega|muskurata|andhera|jitna|bada|kaafi|rehta|sapne|paisa|kam|ghar|lekin|bahut|roz|chhota|magar|par|bas|aaj|kal|kabhi|jab|tab|toh|hi|kyun|sab|kuch|kaun|kab|kahan)\b`
)

// shorthand maps chat shorthand to the words a listener expects to hear.
type shorthand struct {
	pattern     *regexp.Regexp
	replacement string
}

// Preprocessor prepares short conversational text for synthesis.
type Preprocessor struct {
	symbolPattern         *regexp.Regexp
	romanizedHindiPattern *regexp.Regexp
	shorthands            []shorthand
}

// NewPreprocessor creates a preprocessor with compiled patterns.
func NewPreprocessor() *Preprocessor {
	expansions := []struct{ token, words string }{
		{"tm", "tum"},
		{"kkrh", "kya kar rahe ho"},
		{"clg", "college"},
		{"plz", "please"},
	}

	shorthands := make([]shorthand, 0, len(expansions))
	for _, expansion := range expansions {
		shorthands = append(shorthands, shorthand{
			pattern:     regexp.MustCompile(`(?i)\b` + expansion.token + `\b`),
			replacement: expansion.words,
		})
	}

	return &Preprocessor{
		symbolPattern:         regexp.MustCompile(liveSymbolsPattern),
		romanizedHindiPattern: regexp.MustCompile(romanizedHindiPattern),
		shorthands:            shorthands,
	}
}

// PreprocessText hides commas, periods and hyphens, expands shorthand and collapses
// whitespace.
func (p *Preprocessor) PreprocessText(text string) string {
	if text == "" {
		return text
	}

	processed := p.symbolPattern.ReplaceAllString(text, " ")

	for _, sh := range p.shorthands {
		processed = sh.pattern.ReplaceAllString(processed, sh.replacement)
	}

	return strings.Join(strings.Fields(processed), " ")
}

// CountRomanizedHindi counts romanized Hindi keywords in the original text.
func (p *Preprocessor) CountRomanizedHindi(text string) int {
	return len(p.romanizedHindiPattern.FindAllStringIndex(text, -1))
}

// IsRomanizedHindi reports whether text reads as Hindi written in Latin script.
func (p *Preprocessor) IsRomanizedHindi(text string) bool {
	return p.CountRomanizedHindi(text) > RomanizedHindiThreshold
}
