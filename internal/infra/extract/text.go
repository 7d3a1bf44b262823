package extract

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// TextExtractor extracts the readable article text using the Mozilla
// Readability algorithm. Navigation, ads, and page chrome are stripped, so
// layout tweaks around an unchanged article do not register as changes.
type TextExtractor struct{}

// Extract returns the clean article text of body.
func (e *TextExtractor) Extract(body, baseURL string) (string, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		parsedURL = nil // Readability can work without a URL
	}

	article, err := readability.FromReader(strings.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	if article.TextContent == "" {
		// Fall back to Content if TextContent is empty
		if article.Content == "" {
			return "", fmt.Errorf("%w: no readable content", ErrNoContent)
		}
		slog.Debug("using article Content instead of TextContent",
			slog.String("url", baseURL),
			slog.Int("content_length", len(article.Content)))
		return article.Content, nil
	}
	return article.TextContent, nil
}
