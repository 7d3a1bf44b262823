package entity

import "time"

// Change outcome values reported after comparing extracted content
// against the previously recorded hash.
const (
	// OutcomeInitial means the target was checked for the first time
	// and a baseline hash was recorded.
	OutcomeInitial = "initial"

	// OutcomeChanged means the extracted content differs from the
	// previously recorded hash.
	OutcomeChanged = "changed"
)

// Change represents a detected content change on a watch target.
// It carries everything a notification channel needs to render a message.
type Change struct {
	Target     *Target   // The target that changed (must not be nil)
	Outcome    string    // OutcomeInitial or OutcomeChanged
	NewHash    string    // SHA-256 hex of the newly extracted content
	OldHash    string    // Previous hash (empty for initial checks)
	Excerpt    string    // Leading portion of the extracted content
	DetectedAt time.Time // When the change was detected
}

// IsInitial reports whether this change is the first observation of the
// target rather than an actual content difference.
func (c *Change) IsInitial() bool {
	return c.Outcome == OutcomeInitial
}
