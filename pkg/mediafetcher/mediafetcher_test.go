package mediafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchWritesBodyToDestPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "ep.mp3")
	f := New(0)
	if err := f.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("got %q", data)
	}
}

func TestFetchNonOKStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "ep.mp3")
	f := New(0)
	if err := f.Fetch(context.Background(), srv.URL, dest); err == nil {
		t.Fatalf("expected an error for 404 response")
	}
}

func TestTempNameDerivesFromURLBasename(t *testing.T) {
	got := TempName("https://example.com/episodes/ep42.mp3")
	if got != "ep42.mp3" {
		t.Fatalf("got %q, want ep42.mp3", got)
	}
}

func TestTempNameFallsBackToUUIDForRootURL(t *testing.T) {
	got := TempName("https://example.com/")
	if got == "" {
		t.Fatalf("expected a non-empty fallback name")
	}
	if got == "/" {
		t.Fatalf("fallback must not be the raw root path")
	}
}
