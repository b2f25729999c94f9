// Package analysis implements the AnalysisEngine: it drives the external
// LLMClient port through four independent prompts (summary, topics,
// keywords, advertisement detection) and applies ad excision to the
// transcript text. Every sub-call degrades independently per spec.md §4.4 —
// a failure never aborts the others, and the field is simply left empty.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"podtext/pkg/diagnostics"
	"podtext/pkg/domain"
)

// AdExcisionMarker is the literal text that replaces an excised ad span.
// Confirmed against original_source/src/podtext/core/processor.py's
// ADVERTISEMENT_MARKER constant, which is bracketed at the call site.
const AdExcisionMarker = "[ADVERTISEMENT WAS REMOVED]"

// DefaultAdConfidenceThreshold is the threshold callers pass to
// ApplyAdExcision / SurvivingSpans when none is configured, per spec.md §6
// (analysis.ad_confidence_threshold).
const DefaultAdConfidenceThreshold = 0.9

// ErrAnalysisUnavailable is recorded on the diagnostics channel — never
// returned from Analyze, since §4.4's failure model degrades instead of
// failing the caller.
var ErrAnalysisUnavailable = errors.New("analysis backend unavailable")

// LLMClient is the external port: given a prompt name (for diagnostics) and
// a fully rendered prompt, it returns the model's raw text response.
type LLMClient interface {
	Complete(ctx context.Context, promptName, prompt string) (string, error)
}

// Engine drives LLMClient through the four analysis sub-calls.
type Engine struct {
	client LLMClient
	diag   diagnostics.Channel
	p      prompts
}

// NewEngine builds an Engine. promptFilePath may be empty, in which case
// built-in defaults are used directly. Prompts are read once at
// construction time, per spec.md §4.4 ("prompts are re-read on process
// start").
func NewEngine(client LLMClient, promptFilePath string, diag diagnostics.Channel) *Engine {
	var p prompts
	if promptFilePath == "" {
		p = defaultPrompts()
	} else {
		loaded, ok := loadPrompts(promptFilePath)
		p = loaded
		if !ok {
			diag.Warn("analysis", 0, fmt.Sprintf("prompt file %q missing or malformed, using built-in defaults", promptFilePath))
		}
	}
	return &Engine{client: client, diag: diag, p: p}
}

// Analyze runs summary, topics, keywords, and ad_detection in that order
// against transcriptText. Each sub-call failure leaves its field empty and
// emits a warning; Analyze itself never returns an error.
func (e *Engine) Analyze(ctx context.Context, index int, transcriptText string) domain.AnalysisResult {
	var result domain.AnalysisResult

	if summary, err := e.summary(ctx, transcriptText); err != nil {
		e.diag.Warn("analyze:summary", index, err.Error())
	} else {
		result.Summary = summary
	}

	if topics, err := e.topics(ctx, transcriptText); err != nil {
		e.diag.Warn("analyze:topics", index, err.Error())
	} else {
		result.Topics = topics
	}

	if keywords, err := e.keywords(ctx, transcriptText); err != nil {
		e.diag.Warn("analyze:keywords", index, err.Error())
	} else {
		result.Keywords = keywords
	}

	if spans, err := e.adSpans(ctx, transcriptText); err != nil {
		e.diag.Warn("analyze:ad_detection", index, err.Error())
	} else {
		result.AdSpans = spans
	}

	return result
}

func (e *Engine) summary(ctx context.Context, text string) (string, error) {
	raw, err := e.client.Complete(ctx, "summary", renderPrompt(e.p.summary, truncateForPrompt(text)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return strings.TrimSpace(raw), nil
}

func (e *Engine) topics(ctx context.Context, text string) ([]string, error) {
	raw, err := e.client.Complete(ctx, "topics", renderPrompt(e.p.topics, truncateForPrompt(text)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return splitNonEmptyLines(raw), nil
}

func (e *Engine) keywords(ctx context.Context, text string) ([]string, error) {
	raw, err := e.client.Complete(ctx, "keywords", renderPrompt(e.p.keywords, truncateForPrompt(text)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}
	return dedupe(splitNonEmptyLines(raw)), nil
}

type rawAdSpan struct {
	StartChar  int     `json:"start_char"`
	EndChar    int     `json:"end_char"`
	Confidence float64 `json:"confidence"`
}

func (e *Engine) adSpans(ctx context.Context, text string) ([]domain.AdSpan, error) {
	raw, err := e.client.Complete(ctx, "ad_detection", renderPrompt(e.p.adDetection, truncateForPrompt(text)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	var parsed []rawAdSpan
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		// Unparsable JSON degrades this sub-call to empty, per spec.md §4.4.
		return nil, fmt.Errorf("%w: unparsable ad span response: %v", ErrAnalysisUnavailable, err)
	}

	spans := make([]domain.AdSpan, 0, len(parsed))
	for _, p := range parsed {
		if p.StartChar < 0 || p.EndChar <= p.StartChar || p.EndChar > len(text) {
			continue
		}
		spans = append(spans, domain.AdSpan{StartChar: p.StartChar, EndChar: p.EndChar, Confidence: p.Confidence})
	}
	return spans, nil
}

// truncateForPrompt caps input sent to the LLM at 50,000 characters,
// mirroring the original's text[:50000] truncation in
// services/analysis.py.
func truncateForPrompt(text string) string {
	const limit = 50000
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func splitNonEmptyLines(s string) []string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// SurvivingSpans drops spans below threshold, sorts the rest by start
// offset, and merges overlaps — the exact span set ApplyAdExcision rewrites
// the text with. Exposed so callers that need to track how excision shifted
// character offsets (e.g. the renderer's paragraph segmentation, which must
// place breaks correctly in the edited text) can remap positions through
// the same edit ApplyAdExcision performed, rather than recomputing it.
func SurvivingSpans(spans []domain.AdSpan, threshold float64) []domain.AdSpan {
	surviving := make([]domain.AdSpan, 0, len(spans))
	for _, s := range spans {
		if s.Confidence >= threshold {
			surviving = append(surviving, s)
		}
	}
	if len(surviving) == 0 {
		return nil
	}
	sort.Slice(surviving, func(i, j int) bool { return surviving[i].StartChar < surviving[j].StartChar })
	return mergeOverlaps(surviving)
}

// ApplyAdExcision drops spans below threshold, merges overlaps, and
// replaces each surviving span with AdExcisionMarker, per spec.md §4.4.
func ApplyAdExcision(text string, spans []domain.AdSpan, threshold float64) string {
	merged := SurvivingSpans(spans, threshold)
	if len(merged) == 0 {
		return text
	}

	runes := []rune(text)
	for i := len(merged) - 1; i >= 0; i-- {
		s := merged[i]
		start, end := s.StartChar, s.EndChar
		if start < 0 {
			start = 0
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start >= end {
			continue
		}
		runes = append(runes[:start], append([]rune(AdExcisionMarker), runes[end:]...)...)
	}
	return string(runes)
}

func mergeOverlaps(spans []domain.AdSpan) []domain.AdSpan {
	if len(spans) == 0 {
		return nil
	}
	out := []domain.AdSpan{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.StartChar <= last.EndChar {
			if s.EndChar > last.EndChar {
				last.EndChar = s.EndChar
			}
			if s.Confidence > last.Confidence {
				last.Confidence = s.Confidence
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
