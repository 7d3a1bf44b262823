// Package extract turns raw fetched pages into the content a watch target
// actually cares about. Each extraction mode reduces a page to a stable
// string; change detection compares hashes of that string across checks, so
// extractors must be deterministic for identical input.
package extract

import "fmt"

// Mode names an extraction strategy.
type Mode string

const (
	// ModeText extracts the readable article text, ignoring markup and chrome.
	ModeText Mode = "text"

	// ModeCSS extracts the text of elements matching a CSS selector.
	ModeCSS Mode = "css"

	// ModeRegex extracts substrings matching a regular expression.
	ModeRegex Mode = "regex"

	// ModeFeed digests an RSS/Atom feed into its item identities.
	ModeFeed Mode = "feed"
)

// Extractor reduces a fetched page body to the watched content.
type Extractor interface {
	// Extract returns the watched content of body. baseURL is the URL the
	// body was fetched from; strategies that resolve relative references
	// use it.
	Extract(body, baseURL string) (string, error)
}

// New returns the Extractor for mode. Selector is required for ModeCSS,
// pattern for ModeRegex; both are ignored by the other modes.
func New(mode Mode, selector, pattern string) (Extractor, error) {
	switch mode {
	case ModeText:
		return &TextExtractor{}, nil
	case ModeCSS:
		return NewCSSExtractor(selector)
	case ModeRegex:
		return NewRegexExtractor(pattern)
	case ModeFeed:
		return &FeedExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}
