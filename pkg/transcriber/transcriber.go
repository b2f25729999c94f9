// Package transcriber implements the Transcriber port: a local ASR model
// binding, treated per spec.md §1 as a pluggable collaborator contracted
// only through domain.TranscriptionResult. The production implementation
// shells out to a whisper-compatible CLI and parses its JSON output,
// grounded on the meet-recording-processor member's
// internal/transcribe/fasterwhisper.go (exec.CommandContext wrapping a
// model binary, JSON segments parsed into {start, end, text}).
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"podtext/pkg/domain"
)

// ErrTranscription is the sentinel kind for every transcription failure,
// per spec.md §7.
var ErrTranscription = errors.New("transcription failed")

// CLIBackend runs a whisper-compatible CLI binary that accepts an audio
// path and a model identifier and writes a JSON transcript to stdout.
type CLIBackend struct {
	binary string // e.g. "whisper-cli" or a project-local wrapper script
}

// NewCLIBackend builds a CLIBackend invoking the given binary. An empty
// binary defaults to "whisper".
func NewCLIBackend(binary string) *CLIBackend {
	if binary == "" {
		binary = "whisper"
	}
	return &CLIBackend{binary: binary}
}

type cliOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe runs the backend binary against audioPath with the given
// model id and parses its JSON output into a TranscriptionResult.
func (b *CLIBackend) Transcribe(ctx context.Context, audioPath, modelID string) (domain.TranscriptionResult, error) {
	cmd := exec.CommandContext(ctx, b.binary, "--audio", audioPath, "--model", modelID, "--output-format", "json")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return domain.TranscriptionResult{}, fmt.Errorf("%w: %s", ErrTranscription, msg)
	}

	var parsed cliOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: parse output: %v", ErrTranscription, err)
	}
	if parsed.Language == "" {
		return domain.TranscriptionResult{}, fmt.Errorf("%w: empty language in output", ErrTranscription)
	}

	segments := make([]domain.Segment, 0, len(parsed.Segments))
	var full strings.Builder
	for i, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		segments = append(segments, domain.Segment{StartS: s.Start, EndS: s.End, Text: text})
		if i > 0 {
			full.WriteString(" ")
		}
		full.WriteString(text)
	}

	return domain.TranscriptionResult{
		Text:     full.String(),
		Segments: segments,
		Language: strings.ToLower(parsed.Language),
	}, nil
}

// DetectLanguage reports whether result's language is English. The
// orchestrator warns (does not fail) when this returns false, per
// spec.md §4.5.
func DetectLanguage(result domain.TranscriptionResult) (lang string, isEnglish bool) {
	lang = strings.ToLower(result.Language)
	return lang, lang == "" || lang == "en"
}
