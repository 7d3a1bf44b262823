package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedExtractor digests an RSS/Atom feed into one line per item: identity,
// title, and last update. Presentation-only changes elsewhere in the feed
// (generator timestamps, counters) do not show up in the digest, so they do
// not trigger change notifications.
type FeedExtractor struct{}

// Extract parses body as a feed and returns the item digest.
func (e *FeedExtractor) Extract(body, _ string) (string, error) {
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return "", fmt.Errorf("parsing feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return "", fmt.Errorf("%w: feed has no items", ErrNoContent)
	}

	var b strings.Builder
	for _, item := range feed.Items {
		id := item.GUID
		if id == "" {
			id = item.Link
		}

		var ts string
		switch {
		case item.UpdatedParsed != nil:
			ts = item.UpdatedParsed.UTC().Format(time.RFC3339)
		case item.PublishedParsed != nil:
			ts = item.PublishedParsed.UTC().Format(time.RFC3339)
		}

		fmt.Fprintf(&b, "%s\t%s\t%s\n", id, item.Title, ts)
	}
	return b.String(), nil
}
