package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// RegexExtractor extracts substrings matching a regular expression. When the
// pattern has a capture group, the first group is extracted instead of the
// whole match.
type RegexExtractor struct {
	pattern *regexp.Regexp
}

// NewRegexExtractor compiles pattern eagerly so misconfigured targets fail
// at construction rather than on their first check.
func NewRegexExtractor(pattern string) (*RegexExtractor, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &RegexExtractor{pattern: re}, nil
}

// Extract returns every match (or first capture group), one per line.
func (e *RegexExtractor) Extract(body, _ string) (string, error) {
	matches := e.pattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: pattern %q matched nothing", ErrNoContent, e.pattern.String())
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			parts = append(parts, m[1])
		} else {
			parts = append(parts, m[0])
		}
	}
	return strings.Join(parts, "\n"), nil
}
