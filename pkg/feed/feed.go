// Package feed implements the FeedIngester: it parses an RSS/Atom byte
// stream into an ordered, indexed sequence of domain.EpisodeRecord values.
// Parsing itself is delegated to github.com/mmcdole/gofeed, exactly as the
// teacher's pkg/parser/rss.go wraps gofeed.Parser; the extraction rules
// (show-notes priority, enclosure selection, malformed-entry skipping) are
// podtext-specific and implemented on top of the parsed feed.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"podtext/pkg/domain"
)

// Sentinel error kinds per spec.md §7.
var (
	ErrFeedUnreachable = errors.New("feed unreachable")
	ErrFeedUnparseable = errors.New("feed produced zero usable entries")
)

// DefaultLimit is used when List is called with limit <= 0.
const DefaultLimit = 10

// Ingester parses feeds into episode listings.
type Ingester struct {
	parser *gofeed.Parser
	client *http.Client
}

// New creates an Ingester with the given HTTP client. A nil client falls
// back to a client with the default 30s fetch timeout (spec.md §5).
func New(client *http.Client) *Ingester {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Ingester{parser: gofeed.NewParser(), client: client}
}

// List fetches source.FeedURL and returns up to limit episodes, most-recent
// first, indexed 1..min(limit, n). A limit <= 0 uses DefaultLimit.
func (ing *Ingester) List(ctx context.Context, source domain.FeedDescriptor, limit int) ([]domain.EpisodeRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	body, err := ing.fetch(ctx, source.FeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	return ing.parse(body, source.FeedURL, limit)
}

// ListFromReader parses a feed already available as a byte stream — used
// directly by tests and by callers that already hold the feed bytes.
func (ing *Ingester) ListFromReader(r io.Reader, feedURL string, limit int) ([]domain.EpisodeRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return ing.parse(r, feedURL, limit)
}

func (ing *Ingester) fetch(ctx context.Context, feedURL string) (io.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "podtext/1.0 (+https://example.invalid)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, text/xml, */*;q=0.8")

	resp, err := ing.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(body), nil
}

func (ing *Ingester) parse(r io.Reader, feedURL string, limit int) ([]domain.EpisodeRecord, error) {
	parsed, err := ing.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnparseable, err)
	}
	if parsed == nil || len(parsed.Items) == 0 {
		return nil, ErrFeedUnparseable
	}

	type withDate struct {
		item    *gofeed.Item
		pubDate time.Time
	}
	entries := make([]withDate, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		title := item.Title
		mediaURL := extractMediaURL(item)
		if title == "" || mediaURL == "" {
			continue // malformed entry, skipped per spec.md §4.2
		}
		entries = append(entries, withDate{item: item, pubDate: parsePubDate(item)})
	}

	if len(entries) == 0 {
		return nil, ErrFeedUnparseable
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].pubDate.After(entries[j].pubDate)
	})

	if limit < len(entries) {
		entries = entries[:limit]
	}

	records := make([]domain.EpisodeRecord, 0, len(entries))
	for i, e := range entries {
		records = append(records, domain.EpisodeRecord{
			Index:           i + 1,
			Title:           e.item.Title,
			PubDate:         e.pubDate,
			MediaURL:        extractMediaURL(e.item),
			ShowNotes:       extractShowNotes(e.item),
			FeedURL:         feedURL,
			DurationSeconds: extractDuration(e.item),
		})
	}
	return records, nil
}

// extractMediaURL picks the first enclosure with a non-empty URL, per
// spec.md §4.2.
func extractMediaURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// extractShowNotes follows the priority order content -> summary -> description.
func extractShowNotes(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Description != "" {
		// gofeed does not distinguish <summary> from <description> for RSS;
		// Atom feeds populate item.Description from <summary> when no
		// <content> element is present, which matches the priority order.
		return item.Description
	}
	return ""
}

func extractDuration(item *gofeed.Item) *int {
	if item.ITunesExt == nil || item.ITunesExt.Duration == "" {
		return nil
	}
	secs, ok := parseITunesDuration(item.ITunesExt.Duration)
	if !ok {
		return nil
	}
	return &secs
}

// parseITunesDuration parses itunes:duration, which may be plain seconds
// ("1800") or HH:MM:SS / MM:SS.
func parseITunesDuration(s string) (int, bool) {
	var parts []int
	cur := 0
	has := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			has = true
			continue
		}
		if r == ':' {
			parts = append(parts, cur)
			cur = 0
			has = false
			continue
		}
		return 0, false
	}
	if has {
		parts = append(parts, cur)
	}
	if len(parts) == 0 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		total = total*60 + p
	}
	return total, true
}

func parsePubDate(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}
