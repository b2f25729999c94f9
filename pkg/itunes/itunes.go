// Package itunes implements the supplemental search client pinned in
// SPEC_FULL.md: a minimal net/http wrapper around the iTunes Search API's
// plain JSON GET endpoint, grounded in
// original_source/podtext/clients/itunes.py and
// original_source/src/podtext/core/models.py's Podcast shape. This is
// explicitly a "contracted collaborator" per spec.md §1 — only the
// response-shape parsing is pinned, not the HTTP contract's full surface.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"podtext/pkg/domain"
)

const searchEndpoint = "https://itunes.apple.com/search"

// DefaultTimeout matches spec.md §5's fetch default.
const DefaultTimeout = 30 * time.Second

// Client searches the iTunes podcast directory.
type Client struct {
	http *http.Client
}

// New builds a Client with the given timeout. A timeout <= 0 uses
// DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

type searchResponse struct {
	Results []struct {
		CollectionName  string `json:"collectionName"`
		FeedURL         string `json:"feedUrl"`
		ArtistName      string `json:"artistName"`
		ArtworkURL600   string `json:"artworkUrl600"`
	} `json:"results"`
}

// Search queries the iTunes Search API for podcasts matching query,
// returning at most limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Podcast, error) {
	if limit <= 0 {
		limit = 10
	}

	q := url.Values{}
	q.Set("term", query)
	q.Set("media", "podcast")
	q.Set("limit", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("itunes search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("itunes search: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("itunes search: decode response: %w", err)
	}

	out := make([]domain.Podcast, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.FeedURL == "" {
			continue
		}
		out = append(out, domain.Podcast{
			Title:      r.CollectionName,
			FeedURL:    r.FeedURL,
			Author:     r.ArtistName,
			ArtworkURL: r.ArtworkURL600,
		})
	}
	return out, nil
}
