package entity

import (
	"fmt"
	"net/url"
	"time"
)

// Watch modes supported by a target. The mode decides how the fetched page
// is reduced to the watched content before hashing.
const (
	ModeText  = "text"  // readable article text
	ModeCSS   = "css"   // text of elements matching Selector
	ModeRegex = "regex" // substrings matching Pattern
	ModeFeed  = "feed"  // RSS/Atom item digest
)

// Target represents a watched web page or feed.
// It contains the URL, the extraction mode deciding what part of the page is
// watched, and the state of the last check.
type Target struct {
	ID            int64
	Name          string
	URL           string
	Mode          string `json:"mode"`               // text, css, regex, feed
	Selector      string `json:"selector,omitempty"` // required when Mode is css
	Pattern       string `json:"pattern,omitempty"`  // required when Mode is regex
	Active        bool
	LastCheckedAt *time.Time
	LastHash      string // hash of the last observed content, empty before the first check
}

// Validate validates the Target entity fields.
// It checks that the URL is well formed and that the mode has the
// configuration it needs.
func (t *Target) Validate() error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}

	if err := ValidateURL(t.URL); err != nil {
		return err
	}

	// Modeが空の場合はtextとみなす（後方互換性）
	if t.Mode == "" {
		t.Mode = ModeText
	}

	validModes := map[string]bool{
		ModeText:  true,
		ModeCSS:   true,
		ModeRegex: true,
		ModeFeed:  true,
	}
	if !validModes[t.Mode] {
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("invalid mode: %s (must be text, css, regex, or feed)", t.Mode)}
	}

	if t.Mode == ModeCSS && t.Selector == "" {
		return &ValidationError{Field: "selector", Message: "required when mode is css"}
	}
	if t.Mode == ModeRegex && t.Pattern == "" {
		return &ValidationError{Field: "pattern", Message: "required when mode is regex"}
	}

	return nil
}

// Key returns the identity used for circuit breaking and change detection.
// Two targets watching the same URL with different modes are tracked
// separately.
func (t *Target) Key() string {
	return fmt.Sprintf("%s#%s", t.URL, t.Mode)
}

// Host returns the hostname of the target URL, used as the per-host
// politeness key. Validate must have passed for the result to be meaningful.
func (t *Target) Host() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
