// Command podtext discovers podcasts, retrieves episode media from RSS
// feeds, transcribes them, enriches the transcript through an external LLM
// backend, and writes a structured Markdown document per episode.
//
// The command dispatcher here is a plain command table, per spec.md §9 —
// grounded in the teacher's cmd/podcasttranscripts/main.go flag-based
// entry point, generalized from one flag.Parse() call to a per-subcommand
// flag.FlagSet, since podtext exposes three distinct commands instead of
// one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"podtext/pkg/analysis"
	"podtext/pkg/config"
	"podtext/pkg/diagnostics"
	"podtext/pkg/domain"
	"podtext/pkg/feed"
	"podtext/pkg/itunes"
	"podtext/pkg/llmclient"
	"podtext/pkg/mediafetcher"
	"podtext/pkg/orchestrator"
	"podtext/pkg/transcriber"
)

// exit codes per spec.md §6's CLI surface table.
const (
	exitOK        = 0
	exitAnyFail   = 1
	exitBadInput  = 2
)

type command func(ctx context.Context, diag diagnostics.Channel, cfg config.Config, args []string) int

var commands = map[string]command{
	"search":     runSearch,
	"episodes":   runEpisodes,
	"transcribe": runTranscribe,
}

func main() {
	diag := diagnostics.New(os.Stderr)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: podtext <search|episodes|transcribe> [flags] [args]")
		os.Exit(exitBadInput)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(exitBadInput)
	}

	cfg, err := config.Load()
	if err != nil {
		diag.Error("config", 0, err)
		os.Exit(exitBadInput)
	}

	os.Exit(cmd(context.Background(), diag, cfg, os.Args[2:]))
}

func runSearch(ctx context.Context, diag diagnostics.Channel, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.SearchLimit, "maximum number of results")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: podtext search <query> [--limit N]")
		return exitBadInput
	}
	query := fs.Arg(0)

	client := itunes.New(0)
	results, err := client.Search(ctx, query, *limit)
	if err != nil {
		diag.Error("search", 0, err)
		return exitAnyFail
	}
	for _, p := range results {
		fmt.Printf("%s\t%s\t%s\n", p.Title, p.Author, p.FeedURL)
	}
	return exitOK
}

func runEpisodes(ctx context.Context, diag diagnostics.Channel, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("episodes", flag.ContinueOnError)
	limit := fs.Int("limit", cfg.EpisodeLimit, "maximum number of episodes")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: podtext episodes <feed_url> [--limit N]")
		return exitBadInput
	}
	feedURL := fs.Arg(0)

	ing := feed.New(nil)
	episodes, err := ing.List(ctx, domain.FeedDescriptor{FeedURL: feedURL}, *limit)
	if err != nil {
		diag.Error("episodes", 0, err)
		return exitAnyFail
	}
	for _, e := range episodes {
		fmt.Printf("%d\t%s\t%s\n", e.Index, e.Title, e.PubDate.Format("2006-01-02"))
	}
	return exitOK
}

func runTranscribe(ctx context.Context, diag diagnostics.Channel, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	model := fs.String("model", cfg.WhisperModel, "ASR model identifier")
	outputDir := fs.String("output-dir", cfg.OutputDir, "Markdown output root")
	paragraphSilence := fs.Float64("paragraph-silence", cfg.ParagraphSilenceS, "silence gap in seconds that starts a new paragraph")
	skipLanguageCheck := fs.Bool("skip-language-check", false, "skip the non-English warning check")
	overwrite := fs.Bool("overwrite", false, "overwrite an existing output file")
	if err := fs.Parse(args); err != nil || fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: podtext transcribe <feed_url> <index...> [--model M] [--output-dir D] [--skip-language-check]")
		return exitBadInput
	}

	feedURL := fs.Arg(0)
	indices := make([]int, 0, fs.NArg()-1)
	for _, raw := range fs.Args()[1:] {
		n, err := parsePositiveInt(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid episode index %q: %v\n", raw, err)
			return exitBadInput
		}
		indices = append(indices, n)
	}

	if cfg.AnthropicKey == "" {
		diag.Warn("config", 0, "no Anthropic API key configured; analysis will be degraded for every episode")
	}

	ing := feed.New(nil)
	fetcher := mediafetcher.New(0)
	cli := transcriber.NewCLIBackend("")
	llm := llmclient.New(cfg.AnthropicKey, cfg.ClaudeModel, 0)
	engine := analysis.NewEngine(llm, promptFilePath(), diag)

	orch := orchestrator.New(ing, fetcher, cli, engine, diag)

	results := orch.ProcessBatch(ctx, domain.FeedDescriptor{FeedURL: feedURL}, indices, orchestrator.Options{
		WhisperModel:          *model,
		MediaDir:              cfg.MediaDir,
		OutputDir:             *outputDir,
		TempStorage:           cfg.TempStorage,
		Overwrite:             *overwrite,
		SkipLanguageCheck:     *skipLanguageCheck,
		AdConfidenceThreshold: cfg.AdConfidenceThreshold,
		ParagraphSilenceS:     *paragraphSilence,
	})

	anyFailed := false
	for _, r := range results {
		if r.Success {
			fmt.Printf("episode %d: %s\n", r.Index, r.OutputPath)
			continue
		}
		anyFailed = true
		fmt.Printf("episode %d: failed: %v\n", r.Index, r.Err)
	}

	if anyFailed {
		return exitAnyFail
	}
	return exitOK
}

func promptFilePath() string {
	if p := os.Getenv("PODTEXT_PROMPT_FILE"); p != "" {
		return p
	}
	return ""
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, fmt.Errorf("empty index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a positive integer")
		}
		n = n*10 + int(r-'0')
	}
	if n < 1 {
		return 0, fmt.Errorf("index must be >= 1")
	}
	return n, nil
}
