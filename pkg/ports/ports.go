// Package ports declares the external collaborators the orchestrator
// depends on but does not implement itself: media download, speech-to-text,
// wall-clock time, and filesystem access. Each is contracted only through
// its interface, per spec.md §1/§2. The production media-download and
// speech-to-text implementations live in sibling packages (mediafetcher,
// transcriber); the production Clock and FileSystem are defined here.
package ports

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"podtext/pkg/domain"
)

// MediaFetcher retrieves the bytes at mediaURL and stores them at
// destPath. Implementations are responsible for their own timeout.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL, destPath string) error
}

// Transcriber runs speech-to-text over the audio file at audioPath using
// the named model and returns the result.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, modelID string) (domain.TranscriptionResult, error)
}

// Clock supplies the current time; injected so tests can pin it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// FileSystem is the narrow filesystem surface the orchestrator needs:
// directory creation, atomic writes, existence checks, and removal.
type FileSystem interface {
	MkdirAll(path string) error
	WriteFile(path string, data []byte) error
	Exists(path string) bool
	Remove(path string) error
}

// OSFileSystem is the production FileSystem, backed by the os package and
// renameio for atomic writes.
type OSFileSystem struct{}

// MkdirAll creates path and any missing parents with mode 0o755.
func (OSFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// WriteFile writes data to path atomically via renameio, creating parent
// directories first.
func (OSFileSystem) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// Exists reports whether path names an existing file or directory.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes path. Removing an absent path is not an error.
func (OSFileSystem) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
