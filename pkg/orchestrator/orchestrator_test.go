package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podtext/pkg/analysis"
	"podtext/pkg/diagnostics"
	"podtext/pkg/domain"
)

type fakeFeed struct {
	episodes []domain.EpisodeRecord
}

func (f *fakeFeed) List(ctx context.Context, source domain.FeedDescriptor, limit int) ([]domain.EpisodeRecord, error) {
	n := limit
	if n > len(f.episodes) {
		n = len(f.episodes)
	}
	if n < 0 {
		n = 0
	}
	return f.episodes[:n], nil
}

type fakeFetcher struct {
	fail bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, mediaURL, destPath string) error {
	if f.fail {
		return errors.New("download failed")
	}
	return os.WriteFile(destPath, []byte("audio"), 0o644)
}

type fakeTranscriber struct {
	result domain.TranscriptionResult
	fail   bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, modelID string) (domain.TranscriptionResult, error) {
	if f.fail {
		return domain.TranscriptionResult{}, errors.New("transcription failed")
	}
	return f.result, nil
}

type noopLLM struct{ fail bool }

func (n *noopLLM) Complete(ctx context.Context, promptName, prompt string) (string, error) {
	if n.fail {
		return "", errors.New("llm unavailable")
	}
	switch promptName {
	case "summary":
		return "a summary", nil
	case "topics":
		return "topic a\ntopic b", nil
	case "keywords":
		return "kw1\nkw2", nil
	case "ad_detection":
		return "[]", nil
	}
	return "", nil
}

// scriptedLLM returns a fixed response per prompt name, used to drive ad
// detection with real spans instead of noopLLM's always-empty "[]".
type scriptedLLM struct {
	responses map[string]string
}

func (s *scriptedLLM) Complete(ctx context.Context, promptName, prompt string) (string, error) {
	return s.responses[promptName], nil
}

func testFeedEpisodes() []domain.EpisodeRecord {
	return []domain.EpisodeRecord{
		{Index: 1, Title: "First Episode", PubDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), MediaURL: "https://example.com/ep1.mp3", FeedURL: "https://example.com/feed.xml", ShowNotes: "<p>notes one</p>"},
		{Index: 2, Title: "Second Episode", PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), MediaURL: "https://example.com/ep2.mp3", FeedURL: "https://example.com/feed.xml"},
		{Index: 3, Title: "Third Episode", PubDate: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), MediaURL: "https://example.com/ep3.mp3", FeedURL: "https://example.com/feed.xml"},
	}
}

func newTestOrchestrator(t *testing.T, llmFail bool) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()
	diag := diagnostics.New(nil)
	engine := analysis.NewEngine(&noopLLM{fail: llmFail}, "", diag)
	o := New(
		&fakeFeed{episodes: testFeedEpisodes()},
		&fakeFetcher{},
		&fakeTranscriber{result: domain.TranscriptionResult{
			Text:     "hello world this is a transcript",
			Language: "en",
			Segments: []domain.Segment{
				{StartS: 0, EndS: 1, Text: "hello world"},
				{StartS: 1, EndS: 2, Text: "this is a transcript"},
			},
		}},
		engine,
		diag,
	)
	return o, dir
}

func TestProcessEpisodeSuccess(t *testing.T) {
	o, dir := newTestOrchestrator(t, false)
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}

	result := o.ProcessEpisode(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "My Podcast"}, 1, opts)
	if !result.Success {
		t.Fatalf("expected success, got err=%v", result.Err)
	}
	if result.OutputPath == "" {
		t.Fatalf("expected output path to be set")
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty output file")
	}
}

func TestProcessEpisodeIndexOutOfRange(t *testing.T) {
	o, dir := newTestOrchestrator(t, false)
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}

	result := o.ProcessEpisode(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml"}, 9999, opts)
	if result.Success {
		t.Fatalf("expected failure for out-of-range index")
	}
	if !errors.Is(result.Err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", result.Err)
	}
}

func TestProcessEpisodeGracefulDegradation(t *testing.T) {
	o, dir := newTestOrchestrator(t, true) // LLM fails every sub-call
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}

	result := o.ProcessEpisode(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "My Podcast"}, 1, opts)
	if !result.Success {
		t.Fatalf("expected success even with a fully degraded analysis, got err=%v", result.Err)
	}
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	body := string(data)
	if contains(body, "summary:") {
		t.Fatalf("expected no summary field in degraded front matter, got:\n%s", body)
	}
	if !contains(body, "hello world this is a transcript") {
		t.Fatalf("expected unedited transcript in body, got:\n%s", body)
	}
}

// TestProcessEpisodeExcisesAdsFromRenderedBody exercises the full
// ProcessEpisode path with non-degenerate segment timing and a real ad
// span, guarding against the marker being lost between ApplyAdExcision and
// the rendered body.
func TestProcessEpisodeExcisesAdsFromRenderedBody(t *testing.T) {
	dir := t.TempDir()
	diag := diagnostics.New(nil)

	const adPhrase = "this is an advertisement"
	fullText := "hello world " + adPhrase + " end of episode"
	adStart := strings.Index(fullText, adPhrase)
	adEnd := adStart + len(adPhrase)

	llm := &scriptedLLM{responses: map[string]string{
		"ad_detection": fmt.Sprintf(`[{"start_char":%d,"end_char":%d,"confidence":1.0}]`, adStart, adEnd),
	}}
	engine := analysis.NewEngine(llm, "", diag)

	o := New(
		&fakeFeed{episodes: []domain.EpisodeRecord{
			{Index: 1, Title: "Ep", MediaURL: "https://example.com/ep.mp3", FeedURL: "https://example.com/feed.xml"},
		}},
		&fakeFetcher{},
		&fakeTranscriber{result: domain.TranscriptionResult{
			Text:     fullText,
			Language: "en",
			Segments: []domain.Segment{
				{StartS: 0, EndS: 1, Text: "hello world"},
				{StartS: 1, EndS: 2, Text: adPhrase},
				{StartS: 10, EndS: 11, Text: "end of episode"}, // gap > 2s threshold
			},
		}},
		engine,
		diag,
	)

	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}
	result := o.ProcessEpisode(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "Pod"}, 1, opts)
	if !result.Success {
		t.Fatalf("expected success, got err=%v", result.Err)
	}

	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, analysis.AdExcisionMarker) {
		t.Fatalf("expected ad excision marker in rendered body, got:\n%s", body)
	}
	if strings.Contains(body, adPhrase) {
		t.Fatalf("expected excised ad copy to be absent from rendered body, got:\n%s", body)
	}
	if !strings.Contains(body, "end of episode") {
		t.Fatalf("expected trailing segment to survive, got:\n%s", body)
	}
}

func TestProcessBatchDeduplicatesAndIsolatesFailures(t *testing.T) {
	o, dir := newTestOrchestrator(t, false)
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}

	results := o.ProcessBatch(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "My Podcast"}, []int{3, 1, 3, 2, 1}, opts)
	if len(results) != 3 {
		t.Fatalf("expected 3 deduplicated results, got %d", len(results))
	}
	wantOrder := []int{3, 1, 2}
	for i, idx := range wantOrder {
		if results[i].Index != idx {
			t.Fatalf("result %d index = %d, want %d", i, results[i].Index, idx)
		}
		if !results[i].Success {
			t.Fatalf("expected index %d to succeed", idx)
		}
	}
}

func TestProcessBatchPartialFailure(t *testing.T) {
	o, dir := newTestOrchestrator(t, false)
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}

	results := o.ProcessBatch(context.Background(), domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "My Podcast"}, []int{1, 9999, 2}, opts)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("expected success,failure,success got %+v", results)
	}
}

func TestProcessEpisodeDoesNotOverwriteExistingFile(t *testing.T) {
	o, dir := newTestOrchestrator(t, false)
	opts := Options{MediaDir: filepath.Join(dir, "media"), OutputDir: filepath.Join(dir, "out")}
	source := domain.FeedDescriptor{FeedURL: "https://example.com/feed.xml", PodcastName: "My Podcast"}

	first := o.ProcessEpisode(context.Background(), source, 1, opts)
	if !first.Success {
		t.Fatalf("first run should succeed: %v", first.Err)
	}

	second := o.ProcessEpisode(context.Background(), source, 1, opts)
	if second.Success {
		t.Fatalf("expected second run to fail without overwrite=true")
	}

	opts.Overwrite = true
	third := o.ProcessEpisode(context.Background(), source, 1, opts)
	if !third.Success {
		t.Fatalf("expected overwrite=true to succeed: %v", third.Err)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
