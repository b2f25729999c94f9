// Package domain holds the value objects shared by every podtext component:
// feed descriptors, episode records, transcription results, analysis output,
// and the rendered document. Every type here is a value object after
// construction — nothing in this package mutates a shared instance.
package domain

import "time"

// FeedDescriptor identifies a podcast RSS/Atom feed to ingest.
type FeedDescriptor struct {
	FeedURL     string // preserved byte-exact through the pipeline
	PodcastName string // possibly empty; set only by the caller, never from the feed title

	// Author and ArtworkURL are supplemental fields. Nothing in this module
	// sets them: the iTunes search client reports author and artwork on
	// domain.Podcast, not on FeedDescriptor, so both are empty unless the
	// caller fills them in.
	Author     string
	ArtworkURL string
}

// EpisodeRecord is one entry in an ingested feed listing. Index is 1-based
// and addresses the entry's position in the listing for one ingestion call;
// it is not stable across separate fetches of the same feed.
type EpisodeRecord struct {
	Index     int
	Title     string
	PubDate   time.Time
	MediaURL  string
	ShowNotes string
	FeedURL   string

	// DurationSeconds is supplemental, populated when the item's
	// itunes:duration tag carries a parseable value; nil otherwise.
	DurationSeconds *int
}

// Segment is one timed span of a transcript.
type Segment struct {
	StartS float64
	EndS   float64
	Text   string
}

// TranscriptionResult is the output of the Transcriber port.
type TranscriptionResult struct {
	Text     string
	Segments []Segment
	Language string // ISO-639-1, lowercase
}

// AdSpan is a half-open character interval [StartChar, EndChar) into a
// transcript's text, annotated with the engine's confidence that it is
// advertising content.
type AdSpan struct {
	StartChar  int
	EndChar    int
	Confidence float64
}

// AnalysisResult is the output of one AnalysisEngine.Analyze call. Any field
// may be empty when the backing LLM call failed or was unreachable.
type AnalysisResult struct {
	Summary  string
	Topics   []string
	Keywords []string
	AdSpans  []AdSpan
}

// OutputDocument is the fully rendered artifact for one episode, ready to be
// persisted as UTF-8 Markdown with YAML front matter.
type OutputDocument struct {
	FrontMatter FrontMatter
	Body        string
}

// FrontMatter is an ordered mapping; the field declaration order (mirrored
// by the renderer's YAML struct) fixes the key order of the rendered YAML to
// the one spec.md pins.
type FrontMatter struct {
	Title     string
	PubDate   string // formatted YYYY-MM-DD
	Podcast   string
	FeedURL   string
	MediaURL  string
	Summary   string
	Topics    []string
	Keywords  []string
}

// BatchResult records the outcome of processing one episode index within a
// batch. Exactly one of OutputPath / Err is set.
type BatchResult struct {
	Index      int
	Success    bool
	OutputPath string
	Err        error
}

// Podcast is the supplemental search-result shape described in
// SPEC_FULL.md's iTunes search client section.
type Podcast struct {
	Title      string
	FeedURL    string
	Author     string
	ArtworkURL string
}
