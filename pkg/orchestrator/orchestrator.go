// Package orchestrator implements the PipelineOrchestrator: the state
// machine that threads one episode through
// RESOLVED → DOWNLOADED → TRANSCRIBED → ANALYZED → RENDERED → PERSISTED →
// CLEANED, per spec.md §4.5, plus batch sequencing with per-episode
// isolation. Persistence uses renameio.WriteFile (carried from the xg2g
// member of the reference corpus) so a crash mid-write never leaves a
// partial file visible at the final path.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"podtext/pkg/analysis"
	"podtext/pkg/diagnostics"
	"podtext/pkg/domain"
	"podtext/pkg/mediafetcher"
	"podtext/pkg/pathsan"
	"podtext/pkg/ports"
	"podtext/pkg/transcriber"
)

// Sentinel error kinds per spec.md §7. Recoverable kinds
// (AnalysisUnavailable, PromptFileMissing, CleanupError) never reach here —
// they are absorbed inside the AnalysisEngine / prompt loader / cleanup
// step and only ever produce a diagnostic warning.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrWrite            = errors.New("write failed")
)

const maxTitleLength = 30

// FeedLister is the narrow slice of feed.Ingester the orchestrator depends
// on, kept as an interface so tests can substitute a fake.
type FeedLister interface {
	List(ctx context.Context, source domain.FeedDescriptor, limit int) ([]domain.EpisodeRecord, error)
}

// Options carries the per-run knobs that spec.md §6 exposes through
// config/flags: model ids, thresholds, directories, and behavioral
// switches. The CLI layer is responsible for resolving these from
// config.Config plus flag overrides before constructing an Orchestrator.
type Options struct {
	WhisperModel            string
	MediaDir                string
	OutputDir               string
	TempStorage             bool
	Overwrite               bool
	SkipLanguageCheck       bool
	AdConfidenceThreshold   float64
	ParagraphSilenceS       float64
}

// Orchestrator threads one episode, or a batch of episodes, through the
// pipeline state machine.
type Orchestrator struct {
	Feed        FeedLister
	Fetcher     ports.MediaFetcher
	Transcriber ports.Transcriber
	Analysis    *analysis.Engine
	Clock       ports.Clock
	FS          ports.FileSystem
	Diag        diagnostics.Channel
}

// New builds an Orchestrator with the SystemClock and OSFileSystem.
func New(feed FeedLister, fetcher ports.MediaFetcher, tr ports.Transcriber, an *analysis.Engine, diag diagnostics.Channel) *Orchestrator {
	return &Orchestrator{Feed: feed, Fetcher: fetcher, Transcriber: tr, Analysis: an, Clock: ports.SystemClock{}, FS: ports.OSFileSystem{}, Diag: diag}
}

// ProcessEpisode runs the full state machine for one episode index within
// source's feed listing and returns its BatchResult.
func (o *Orchestrator) ProcessEpisode(ctx context.Context, source domain.FeedDescriptor, index int, opts Options) domain.BatchResult {
	episode, err := o.resolve(ctx, source, index, opts)
	if err != nil {
		o.Diag.Error("resolve", index, err)
		return domain.BatchResult{Index: index, Success: false, Err: err}
	}

	tmpPath, err := o.download(ctx, episode, opts)
	if err != nil {
		o.Diag.Error("download", index, err)
		return domain.BatchResult{Index: index, Success: false, Err: err}
	}

	transcript, err := o.transcribe(ctx, index, tmpPath, opts)
	if err != nil {
		o.Diag.Error("transcribe", index, err)
		o.cleanup(index, tmpPath, opts)
		return domain.BatchResult{Index: index, Success: false, Err: err}
	}

	result := o.Analysis.Analyze(ctx, index, transcript.Text)

	threshold := opts.AdConfidenceThreshold
	if threshold <= 0 {
		threshold = analysis.DefaultAdConfidenceThreshold
	}
	survivingSpans := analysis.SurvivingSpans(result.AdSpans, threshold)
	editedText := analysis.ApplyAdExcision(transcript.Text, result.AdSpans, threshold)

	doc, err := o.render(source, episode, transcript, editedText, survivingSpans, result, opts)
	if err != nil {
		o.Diag.Error("render", index, err)
		o.cleanup(index, tmpPath, opts)
		return domain.BatchResult{Index: index, Success: false, Err: err}
	}

	outputPath := o.outputPath(opts.OutputDir, source.PodcastName, episode)
	if err := o.persist(outputPath, doc, opts.Overwrite); err != nil {
		o.Diag.Error("persist", index, err)
		o.cleanup(index, tmpPath, opts)
		return domain.BatchResult{Index: index, Success: false, Err: err}
	}

	o.cleanup(index, tmpPath, opts)
	o.Diag.Info("cleaned", index, outputPath)
	return domain.BatchResult{Index: index, Success: true, OutputPath: outputPath}
}

// ProcessBatch deduplicates indices preserving first occurrence, then
// processes each entry strictly sequentially. A per-entry failure never
// prevents subsequent entries from running, per spec.md §4.5.
func (o *Orchestrator) ProcessBatch(ctx context.Context, source domain.FeedDescriptor, indices []int, opts Options) []domain.BatchResult {
	seen := make(map[int]bool, len(indices))
	deduped := make([]int, 0, len(indices))
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		deduped = append(deduped, idx)
	}

	results := make([]domain.BatchResult, 0, len(deduped))
	succeeded, failed := 0, 0
	for _, idx := range deduped {
		r := o.ProcessEpisode(ctx, source, idx, opts)
		results = append(results, r)
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	o.Diag.BatchSummary(succeeded, failed)
	return results
}

func (o *Orchestrator) resolve(ctx context.Context, source domain.FeedDescriptor, index int, opts Options) (domain.EpisodeRecord, error) {
	if index < 1 {
		return domain.EpisodeRecord{}, fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
	}
	episodes, err := o.Feed.List(ctx, source, index)
	if err != nil {
		return domain.EpisodeRecord{}, err
	}
	for _, e := range episodes {
		if e.Index == index {
			return e, nil
		}
	}
	return domain.EpisodeRecord{}, fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
}

func (o *Orchestrator) download(ctx context.Context, episode domain.EpisodeRecord, opts Options) (string, error) {
	mediaDir := opts.MediaDir
	if mediaDir == "" {
		mediaDir = ".podtext/downloads/"
	}
	if err := o.FS.MkdirAll(mediaDir); err != nil {
		return "", err
	}
	name := mediafetcher.TempName(episode.MediaURL)
	tmpPath := filepath.Join(mediaDir, name)
	if err := o.Fetcher.Fetch(ctx, episode.MediaURL, tmpPath); err != nil {
		return "", err
	}
	return tmpPath, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, index int, tmpPath string, opts Options) (domain.TranscriptionResult, error) {
	model := opts.WhisperModel
	if model == "" {
		model = "base"
	}
	result, err := o.Transcriber.Transcribe(ctx, tmpPath, model)
	if err != nil {
		return domain.TranscriptionResult{}, err
	}
	if !opts.SkipLanguageCheck {
		if lang, isEnglish := transcriber.DetectLanguage(result); !isEnglish {
			o.Diag.Warn("language", index, fmt.Sprintf("transcript language %q is not English", lang))
		}
	}
	return result, nil
}

func (o *Orchestrator) render(source domain.FeedDescriptor, episode domain.EpisodeRecord, transcript domain.TranscriptionResult, editedText string, survivingSpans []domain.AdSpan, result domain.AnalysisResult, opts Options) (domain.OutputDocument, error) {
	fm := domain.FrontMatter{
		Title:    episode.Title,
		PubDate:  formatPubDate(episode.PubDate),
		Podcast:  source.PodcastName,
		FeedURL:  episode.FeedURL,
		MediaURL: episode.MediaURL,
		Summary:  result.Summary,
		Topics:   result.Topics,
		Keywords: result.Keywords,
	}
	silence := opts.ParagraphSilenceS
	if silence <= 0 {
		silence = 2.0
	}
	return renderDocument(fm, editedText, transcript.Segments, episode.ShowNotes, silence, survivingSpans)
}

func formatPubDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func (o *Orchestrator) outputPath(outputDir, podcastName string, episode domain.EpisodeRecord) string {
	if outputDir == "" {
		outputDir = ".podtext/output/"
	}
	podcastComponent := pathsan.Sanitize(podcastName, maxTitleLength, "unknown-podcast")
	titleComponent := pathsan.Sanitize(episode.Title, maxTitleLength, fmt.Sprintf("episode_%d", episode.Index))
	return filepath.Join(outputDir, podcastComponent, titleComponent+".md")
}

// persist writes doc to path atomically via renameio.WriteFile, refusing
// to clobber an existing file unless overwrite is true, per spec.md §4.5.
func (o *Orchestrator) persist(path string, doc domain.OutputDocument, overwrite bool) error {
	if !overwrite && o.FS.Exists(path) {
		return fmt.Errorf("%w: %s already exists", ErrWrite, path)
	}
	if err := o.FS.WriteFile(path, []byte(doc.Body)); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// cleanup removes the downloaded media file when temp_storage is enabled.
// Cleanup failure is logged but never fails the episode, per spec.md §4.5.
func (o *Orchestrator) cleanup(index int, tmpPath string, opts Options) {
	if !opts.TempStorage || tmpPath == "" {
		return
	}
	if err := o.FS.Remove(tmpPath); err != nil {
		o.Diag.Warn("cleanup", index, err.Error())
	}
}
