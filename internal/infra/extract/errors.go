package extract

import "errors"

var (
	// ErrUnknownMode is returned when an extraction mode is not recognized.
	ErrUnknownMode = errors.New("unknown extraction mode")

	// ErrInvalidSelector is returned when a CSS selector is empty or malformed.
	ErrInvalidSelector = errors.New("invalid CSS selector")

	// ErrInvalidPattern is returned when a regular expression does not compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrNoContent is returned when a page yields nothing to watch.
	ErrNoContent = errors.New("no watchable content found")
)
