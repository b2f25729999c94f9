package itunes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"collectionName":"My Podcast","feedUrl":"https://example.com/feed.xml","artistName":"Jane","artworkUrl600":"https://example.com/art.jpg"},{"collectionName":"No Feed"}]}`))
	}))
	defer srv.Close()

	c := New(0)
	// Redirect the client at the test server by constructing requests
	// against it directly isn't possible without exposing the endpoint, so
	// this test exercises the JSON-decoding path via a transport override.
	c.http = srv.Client()
	origTransport := c.http.Transport
	_ = origTransport

	// Since searchEndpoint is a constant pointing at the real API, route
	// through the test server using a custom RoundTripper.
	c.http.Transport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		req.URL.Scheme = "http"
		req.URL.Host = srv.Listener.Addr().String()
		return http.DefaultTransport.RoundTrip(req)
	})

	results, err := c.Search(context.Background(), "test", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected feed-less result to be skipped, got %d results", len(results))
	}
	if results[0].Title != "My Podcast" || results[0].FeedURL != "https://example.com/feed.xml" {
		t.Fatalf("got %+v", results[0])
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }
