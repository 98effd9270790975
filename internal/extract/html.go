package extract

import (
	"context"
	"html"
	"strings"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/microcosm-cc/bluemonday"
)

// blockBreaks keeps block elements on separate lines once tags are stripped.
var blockBreaks = strings.NewReplacer(
	"</p>", "</p>\n",
	"</div>", "</div>\n",
	"</li>", "</li>\n",
	"</h1>", "</h1>\n",
	"</h2>", "</h2>\n",
	"</h3>", "</h3>\n",
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
)

// HTMLStrategy reduces an HTML page to its text with a strict bluemonday policy.
type HTMLStrategy struct {
	policy *bluemonday.Policy
}

// NewHTMLStrategy creates an HTML strategy.
func NewHTMLStrategy() *HTMLStrategy {
	return &HTMLStrategy{policy: bluemonday.StrictPolicy()}
}

// Name implements Strategy.
func (s *HTMLStrategy) Name() string {
	return StrategyHTML
}

// Extract implements Strategy.
func (s *HTMLStrategy) Extract(_ context.Context, data []byte) (*core.Extraction, error) {
	page := blockBreaks.Replace(strings.ToValidUTF8(string(data), replacementChar))

	return &core.Extraction{Text: html.UnescapeString(s.policy.Sanitize(page))}, nil
}
