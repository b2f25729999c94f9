package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"podtext/pkg/analysis"
	"podtext/pkg/domain"
	"podtext/pkg/markup"
)

// maxShowNotesLength caps converted show notes at 50,000 characters, per
// spec.md §4.5. Truncation appends a literal marker paragraph — spec.md's
// own contract, not the original's "*[Show notes truncated due to
// length]*" message (original_source/src/podtext/core/output.py), since
// spec.md is authoritative over the source it was distilled from.
const maxShowNotesLength = 50000

const truncationMarker = "\n\n[Content truncated]"

// frontMatterYAML mirrors domain.FrontMatter field-for-field so that
// yaml.v3's struct marshaling (which preserves declaration order) produces
// the ordered mapping spec.md §4.5 requires, with optional fields omitted
// when empty.
type frontMatterYAML struct {
	Title    string   `yaml:"title"`
	PubDate  string   `yaml:"pub_date"`
	Podcast  string   `yaml:"podcast"`
	FeedURL  string   `yaml:"feed_url"`
	MediaURL string   `yaml:"media_url"`
	Summary  string   `yaml:"summary,omitempty"`
	Topics   []string `yaml:"topics,omitempty"`
	Keywords []string `yaml:"keywords,omitempty"`
}

// renderDocument builds the final Markdown document: YAML front matter
// fences, the paragraph-segmented transcript body, and an optional Show
// Notes section, per spec.md §4.5/§6. transcriptText is the ad-excised
// transcript (the output of analysis.ApplyAdExcision); excisionSpans is the
// same surviving/merged span set that excision applied, passed through so
// paragraph breaks — derived from segments' original timing — land at the
// right offsets in the edited text instead of the pre-excision one.
func renderDocument(fm domain.FrontMatter, transcriptText string, segments []domain.Segment, showNotesHTML string, silenceThresholdS float64, excisionSpans []domain.AdSpan) (domain.OutputDocument, error) {
	yamlBytes, err := yaml.Marshal(frontMatterYAML{
		Title:    fm.Title,
		PubDate:  fm.PubDate,
		Podcast:  fm.Podcast,
		FeedURL:  fm.FeedURL,
		MediaURL: fm.MediaURL,
		Summary:  fm.Summary,
		Topics:   fm.Topics,
		Keywords: fm.Keywords,
	})
	if err != nil {
		return domain.OutputDocument{}, fmt.Errorf("render front matter: %w", err)
	}

	var body strings.Builder
	body.WriteString("---\n")
	body.Write(yamlBytes)
	body.WriteString("---\n\n")
	body.WriteString(paragraphize(transcriptText, segments, silenceThresholdS, excisionSpans))

	if strings.TrimSpace(showNotesHTML) != "" {
		body.WriteString("\n\n## Show Notes\n\n")
		body.WriteString(truncateShowNotes(markup.ToMarkdown(showNotesHTML)))
	}

	return domain.OutputDocument{FrontMatter: fm, Body: body.String()}, nil
}

func truncateShowNotes(s string) string {
	runes := []rune(s)
	if len(runes) <= maxShowNotesLength {
		return s
	}
	return string(runes[:maxShowNotesLength]) + truncationMarker
}

// paragraphize splits editedText into paragraphs. Paragraph break points are
// decided purely from segments' original timing — the silence-gap strategy
// (a new paragraph begins when the gap between consecutive segments exceeds
// silenceThresholdS) when segment timing is informative, falling back to
// fixed-size segment batching when every segment shares the same start/end
// (degenerate timing, e.g. a Transcriber that returns one giant segment) —
// this resolves spec.md §9's paragraph-break open question. Each break is
// then remapped from its offset in the original, pre-excision segment join
// to the matching offset in editedText via excisionSpans, the same
// surviving/merged span set analysis.ApplyAdExcision rewrote the text with,
// so paragraphs are always sliced from the edited text itself — never
// reconstructed from the original, unedited segment text.
const fixedBatchSize = 5

func paragraphize(editedText string, segments []domain.Segment, silenceThresholdS float64, excisionSpans []domain.AdSpan) string {
	if len(segments) == 0 {
		return editedText
	}
	if silenceThresholdS <= 0 {
		silenceThresholdS = 2.0
	}

	var breakSegIdx []int
	if degenerateTiming(segments) {
		breakSegIdx = fixedBatchBreaks(len(segments), fixedBatchSize)
	} else {
		breakSegIdx = silenceGapBreaks(segments, silenceThresholdS)
	}

	segStarts := segmentOffsets(segments)
	breakOffsets := make([]int, 0, len(breakSegIdx))
	for _, idx := range breakSegIdx {
		breakOffsets = append(breakOffsets, remapOffset(segStarts[idx], excisionSpans))
	}

	return splitAtOffsets(editedText, breakOffsets)
}

func degenerateTiming(segments []domain.Segment) bool {
	first := segments[0]
	for _, s := range segments {
		if s.StartS != first.StartS || s.EndS != first.EndS {
			return false
		}
	}
	return true
}

// silenceGapBreaks returns the indices of segments that begin a new
// paragraph under the silence-gap strategy.
func silenceGapBreaks(segments []domain.Segment, silenceThresholdS float64) []int {
	var breaks []int
	prevEnd := segments[0].StartS
	for i, s := range segments {
		if i > 0 && s.StartS-prevEnd > silenceThresholdS {
			breaks = append(breaks, i)
		}
		prevEnd = s.EndS
	}
	return breaks
}

// fixedBatchBreaks returns the indices of segments that begin a new
// paragraph every batchSize segments.
func fixedBatchBreaks(n, batchSize int) []int {
	var breaks []int
	for i := batchSize; i < n; i += batchSize {
		breaks = append(breaks, i)
	}
	return breaks
}

// segmentOffsets returns, for each segment, its start rune offset in the
// original text that transcriber.CLIBackend.Transcribe joins from
// segments — each trimmed segment text separated by a single space, in
// order. This is the same text analysis.Engine.Analyze received and
// analysis.ApplyAdExcision rewrote, so these offsets are valid inputs to
// remapOffset.
func segmentOffsets(segments []domain.Segment) []int {
	offsets := make([]int, len(segments))
	pos := 0
	for i, s := range segments {
		offsets[i] = pos
		pos += len([]rune(strings.TrimSpace(s.Text)))
		if i < len(segments)-1 {
			pos++ // the joining space
		}
	}
	return offsets
}

// remapOffset translates a rune offset in the original, pre-excision text
// into the matching offset in the text analysis.ApplyAdExcision produced
// from spans (sorted, non-overlapping, as analysis.SurvivingSpans returns
// them). An offset that fell inside an excised span is snapped to just
// after that span's marker, since the content it pointed into no longer
// exists.
func remapOffset(orig int, spans []domain.AdSpan) int {
	delta := 0
	markerLen := len([]rune(analysis.AdExcisionMarker))
	for _, s := range spans {
		if orig <= s.StartChar {
			break
		}
		if orig <= s.EndChar {
			return s.StartChar + delta + markerLen
		}
		delta += markerLen - (s.EndChar - s.StartChar)
	}
	return orig + delta
}

// splitAtOffsets slices text at the given rune offsets (each the start of a
// new paragraph), trims each resulting paragraph, drops any that end up
// empty (e.g. a paragraph consisting entirely of excised ad copy), and
// joins what remains with a blank line.
func splitAtOffsets(text string, offsets []int) string {
	runes := []rune(text)
	sort.Ints(offsets)

	bounds := make([]int, 0, len(offsets)+2)
	bounds = append(bounds, 0)
	for _, o := range offsets {
		if o <= bounds[len(bounds)-1] || o >= len(runes) {
			continue
		}
		bounds = append(bounds, o)
	}
	bounds = append(bounds, len(runes))

	var out strings.Builder
	for i := 0; i < len(bounds)-1; i++ {
		para := strings.TrimSpace(string(runes[bounds[i]:bounds[i+1]]))
		if para == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(para)
	}
	return out.String()
}
