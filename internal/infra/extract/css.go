package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// CSSExtractor extracts the text content of elements matching a CSS
// selector. Matches are joined in document order, so a reordered list is a
// detected change.
type CSSExtractor struct {
	selector string
	matcher  cascadia.Selector
}

// NewCSSExtractor compiles selector eagerly so misconfigured targets fail at
// construction rather than on their first check.
func NewCSSExtractor(selector string) (*CSSExtractor, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	return &CSSExtractor{selector: selector, matcher: matcher}, nil
}

// Extract returns the trimmed text of every matching element, one per line.
func (e *CSSExtractor) Extract(body, _ string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var parts []string
	doc.FindMatcher(e.matcher).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: selector %q matched nothing", ErrNoContent, e.selector)
	}
	return strings.Join(parts, "\n"), nil
}
