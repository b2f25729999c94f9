// Package config loads and resolves podtext's configuration. No TOML
// library appears anywhere in the reference corpus (checked every member's
// go.mod), so the file reader here is a small hand-written line scanner in
// the style of the meet-recording-processor member's
// internal/config/env.go regex-driven `.env` scanner, adapted to
// `[section]` / `key = "value"` TOML syntax instead of shell assignment —
// see DESIGN.md for the justification. Resolution precedence is flag > env
// > local file > global file > built-in default, per spec.md §5/§6.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// LocalPath and GlobalPath are the two file locations checked in
// precedence order, per spec.md §5.
const LocalPath = ".podtext/config"

// GlobalPath returns $HOME/.podtext/config, or "" if the home directory
// cannot be determined.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".podtext", "config")
}

// Config is the single typed configuration record populated by Load, per
// spec.md §9's design note replacing the original's duck-typed config
// object.
type Config struct {
	AnthropicKey           string
	MediaDir               string
	OutputDir              string
	TempStorage            bool
	WhisperModel            string
	ClaudeModel             string
	AdConfidenceThreshold   float64
	ParagraphSilenceS       float64
	SearchLimit             int
	EpisodeLimit            int
}

// Default returns the built-in defaults from spec.md §6's table.
func Default() Config {
	return Config{
		AnthropicKey:          "",
		MediaDir:              ".podtext/downloads/",
		OutputDir:             ".podtext/output/",
		TempStorage:           false,
		WhisperModel:          "base",
		ClaudeModel:           "claude-3-5-sonnet-latest",
		AdConfidenceThreshold: 0.9,
		ParagraphSilenceS:     2.0,
		SearchLimit:           10,
		EpisodeLimit:          10,
	}
}

var sectionHeader = regexp.MustCompile(`^\[([A-Za-z0-9_.]+)\]$`)
var keyValue = regexp.MustCompile(`^([A-Za-z0-9_]+)\s*=\s*(.+)$`)

// Load resolves the configuration: built-in default, overlaid by the
// global file, overlaid by the local file, overlaid by the ANTHROPIC_API_KEY
// environment variable, which is always env-first per spec.md §5's "the AI
// backend key is resolved environment-first". Flag overrides, when
// present, are applied by the caller after Load returns (cmd/podtext owns
// flag parsing, which is out-of-core per spec.md §1).
//
// If the global config file is absent, it is created populated with
// defaults, per spec.md §6 — generalized from the original's
// _ensure_local_config_exists, which only auto-created the local file.
func Load() (Config, error) {
	cfg := Default()

	global := GlobalPath()
	if global != "" {
		if err := ensureExists(global); err != nil {
			return Config{}, fmt.Errorf("ensure global config: %w", err)
		}
		if err := applyFile(&cfg, global); err != nil {
			return Config{}, fmt.Errorf("read global config: %w", err)
		}
	}

	if _, err := os.Stat(LocalPath); err == nil {
		if err := applyFile(&cfg, LocalPath); err != nil {
			return Config{}, fmt.Errorf("read local config: %w", err)
		}
	}

	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		cfg.AnthropicKey = key
	}

	return cfg, nil
}

func ensureExists(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTOML()), 0o644)
}

func defaultTOML() string {
	d := Default()
	var b strings.Builder
	fmt.Fprintf(&b, "[api]\nanthropic_key = \"%s\"\n\n", d.AnthropicKey)
	fmt.Fprintf(&b, "[storage]\nmedia_dir = \"%s\"\noutput_dir = \"%s\"\ntemp_storage = %t\n\n", d.MediaDir, d.OutputDir, d.TempStorage)
	fmt.Fprintf(&b, "[whisper]\nmodel = \"%s\"\n\n", d.WhisperModel)
	fmt.Fprintf(&b, "[analysis]\nclaude_model = \"%s\"\nad_confidence_threshold = %v\nparagraph_silence_threshold_s = %v\n\n", d.ClaudeModel, d.AdConfidenceThreshold, d.ParagraphSilenceS)
	fmt.Fprintf(&b, "[defaults]\nsearch_limit = %d\nepisode_limit = %d\n", d.SearchLimit, d.EpisodeLimit)
	return b.String()
}

// applyFile scans a minimal TOML subset: `[section]` headers and
// `key = value` assignments, where value is a double-quoted string, a bare
// boolean, or a bare number. Comments (`#`) and blank lines are skipped.
func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	section := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			section = m[1]
			continue
		}
		m := keyValue.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, rawVal := m[1], strings.TrimSpace(m[2])
		applyKey(cfg, section, key, unquote(rawVal))
	}
	return scanner.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}

func applyKey(cfg *Config, section, key, val string) {
	switch section + "." + key {
	case "api.anthropic_key":
		cfg.AnthropicKey = val
	case "storage.media_dir":
		cfg.MediaDir = val
	case "storage.output_dir":
		cfg.OutputDir = val
	case "storage.temp_storage":
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.TempStorage = b
		}
	case "whisper.model":
		cfg.WhisperModel = val
	case "analysis.claude_model":
		cfg.ClaudeModel = val
	case "analysis.ad_confidence_threshold":
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.AdConfidenceThreshold = f
		}
	case "analysis.paragraph_silence_threshold_s":
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.ParagraphSilenceS = f
		}
	case "defaults.search_limit":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.SearchLimit = n
		}
	case "defaults.episode_limit":
		if n, err := strconv.Atoi(val); err == nil {
			cfg.EpisodeLimit = n
		}
	}
}
