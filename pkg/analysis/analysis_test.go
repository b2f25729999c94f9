package analysis

import (
	"context"
	"errors"
	"testing"

	"podtext/pkg/diagnostics"
	"podtext/pkg/domain"
)

type fakeLLM struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeLLM) Complete(ctx context.Context, promptName, prompt string) (string, error) {
	f.calls = append(f.calls, promptName)
	if err, ok := f.errs[promptName]; ok {
		return "", err
	}
	return f.responses[promptName], nil
}

func newDiag() diagnostics.Channel {
	return diagnostics.New(nil)
}

func TestAnalyzeRunsSubCallsInOrder(t *testing.T) {
	llm := &fakeLLM{responses: map[string]string{
		"summary":      "a short summary",
		"topics":       "topic one\ntopic two",
		"keywords":     "alpha\nbeta\nalpha",
		"ad_detection": `[{"start_char":0,"end_char":3,"confidence":0.95}]`,
	}}
	e := NewEngine(llm, "", newDiag())
	result := e.Analyze(context.Background(), 1, "some transcript text")

	want := []string{"summary", "topics", "keywords", "ad_detection"}
	if len(llm.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(llm.calls))
	}
	for i, name := range want {
		if llm.calls[i] != name {
			t.Fatalf("call %d = %q, want %q (order matters)", i, llm.calls[i], name)
		}
	}

	if result.Summary != "a short summary" {
		t.Fatalf("summary = %q", result.Summary)
	}
	if len(result.Topics) != 2 {
		t.Fatalf("topics = %v", result.Topics)
	}
	if len(result.Keywords) != 2 {
		t.Fatalf("keywords not deduplicated: %v", result.Keywords)
	}
	if len(result.AdSpans) != 1 || result.AdSpans[0].StartChar != 0 {
		t.Fatalf("ad spans = %v", result.AdSpans)
	}
}

func TestAnalyzeGracefulDegradationAllFail(t *testing.T) {
	failAll := errors.New("backend unreachable")
	llm := &fakeLLM{errs: map[string]error{
		"summary":      failAll,
		"topics":       failAll,
		"keywords":     failAll,
		"ad_detection": failAll,
	}}
	e := NewEngine(llm, "", newDiag())
	result := e.Analyze(context.Background(), 1, "transcript")

	if result.Summary != "" || result.Topics != nil || result.Keywords != nil || result.AdSpans != nil {
		t.Fatalf("expected every field empty on total failure, got %+v", result)
	}
}

func TestAnalyzePartialFailureDoesNotAbortOthers(t *testing.T) {
	llm := &fakeLLM{
		responses: map[string]string{"summary": "ok summary"},
		errs:      map[string]error{"topics": errors.New("rate limited")},
	}
	e := NewEngine(llm, "", newDiag())
	result := e.Analyze(context.Background(), 1, "transcript")

	if result.Summary != "ok summary" {
		t.Fatalf("summary should have succeeded: %q", result.Summary)
	}
	if result.Topics != nil {
		t.Fatalf("topics should be empty after failure: %v", result.Topics)
	}
	// keywords and ad_detection must still have been attempted.
	found := map[string]bool{}
	for _, c := range llm.calls {
		found[c] = true
	}
	if !found["keywords"] || !found["ad_detection"] {
		t.Fatalf("expected keywords and ad_detection to still run, calls=%v", llm.calls)
	}
}

func TestApplyAdExcisionS4Scenario(t *testing.T) {
	text := "A B C D E"
	spans := []domain.AdSpan{
		{StartChar: 0, EndChar: 3, Confidence: 0.95},
		{StartChar: 6, EndChar: 9, Confidence: 0.80},
	}
	got := ApplyAdExcision(text, spans, 0.9)
	want := "[ADVERTISEMENT WAS REMOVED] C D E"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyAdExcisionMergesOverlaps(t *testing.T) {
	text := "0123456789"
	spans := []domain.AdSpan{
		{StartChar: 0, EndChar: 5, Confidence: 0.95},
		{StartChar: 3, EndChar: 8, Confidence: 0.95},
	}
	got := ApplyAdExcision(text, spans, 0.9)
	wantMarkers := 1
	count := 0
	idx := 0
	for {
		i := indexFrom(got, AdExcisionMarker, idx)
		if i < 0 {
			break
		}
		count++
		idx = i + len(AdExcisionMarker)
	}
	if count != wantMarkers {
		t.Fatalf("expected %d marker(s) after merge, got %d in %q", wantMarkers, count, got)
	}
	if containsOriginal(got, "34567") {
		t.Fatalf("merged span bytes leaked into output: %q", got)
	}
}

func TestApplyAdExcisionNoSurvivingSpansReturnsOriginal(t *testing.T) {
	text := "hello world"
	spans := []domain.AdSpan{{StartChar: 0, EndChar: 5, Confidence: 0.1}}
	got := ApplyAdExcision(text, spans, 0.9)
	if got != text {
		t.Fatalf("got %q, want unmodified %q", got, text)
	}
}

func TestSurvivingSpansMatchesApplyAdExcision(t *testing.T) {
	spans := []domain.AdSpan{
		{StartChar: 6, EndChar: 9, Confidence: 0.95},
		{StartChar: 0, EndChar: 3, Confidence: 0.95},
		{StartChar: 1, EndChar: 2, Confidence: 0.1}, // below threshold, dropped
	}
	got := SurvivingSpans(spans, 0.9)
	if len(got) != 2 {
		t.Fatalf("expected 2 surviving spans, got %d: %v", len(got), got)
	}
	if got[0].StartChar != 0 || got[1].StartChar != 6 {
		t.Fatalf("expected spans sorted by start offset, got %v", got)
	}
	excised := ApplyAdExcision("0123456789", spans, 0.9)
	if want := AdExcisionMarker + "345" + AdExcisionMarker + "9"; excised != want {
		t.Fatalf("ApplyAdExcision = %q, want %q (same spans as SurvivingSpans)", excised, want)
	}
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	i := indexOf(s[from:], sub)
	if i < 0 {
		return -1
	}
	return from + i
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func containsOriginal(s, sub string) bool {
	return indexOf(s, sub) >= 0
}
