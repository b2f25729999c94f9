// Package diagnostics provides the single diagnostic channel every podtext
// component logs through: a thin wrapper over zerolog that tags every event
// with the episode index and pipeline stage it occurred in, and keeps
// warnings (recoverable per spec.md §7) visibly distinct from errors
// (fatal for the episode) without ever surfacing a stack trace at default
// verbosity.
package diagnostics

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Channel is the diagnostic sink passed to every component that needs to
// report a warning or an error outside its return value (a warning never
// aborts the step that raised it; an error does).
type Channel struct {
	logger zerolog.Logger
}

// New builds a Channel writing human-readable, colorized output to w.
// Pass os.Stderr for CLI use.
func New(w io.Writer) Channel {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	logger := zerolog.New(console).With().Timestamp().Logger()
	return Channel{logger: logger}
}

// Warn records a recoverable condition: the step continues, but the cause
// is surfaced to the operator.
func (c Channel) Warn(stage string, index int, msg string) {
	c.logger.Warn().Str("stage", stage).Int("index", index).Msg(msg)
}

// Error records a fatal-for-this-episode condition.
func (c Channel) Error(stage string, index int, err error) {
	c.logger.Error().Str("stage", stage).Int("index", index).Err(err).Msg("episode failed")
}

// Info records a non-diagnostic progress event (e.g. "downloaded", "persisted").
func (c Channel) Info(stage string, index int, msg string) {
	c.logger.Info().Str("stage", stage).Int("index", index).Msg(msg)
}

// BatchSummary reports the final counts for a batch run.
func (c Channel) BatchSummary(succeeded, failed int) {
	c.logger.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("batch complete")
}
