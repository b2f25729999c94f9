package analysis

import (
	"bufio"
	"os"
	"strings"
)

// Prompt heading names recognized in the user-editable prompt file, per
// spec.md §4.4. Podtext uses a leading H1 (`# `) per spec.md's contract,
// while the Python original (services/analysis.py:PromptManager) used `## `
// — spec.md is authoritative here.
const (
	headingAdDetection   = "Advertisement Detection"
	headingSummary       = "Content Summary"
	headingTopics        = "Topic Extraction"
	headingKeywords      = "Keyword Extraction"
)

// prompts holds the four templates consumed by the AnalysisEngine.
type prompts struct {
	summary      string
	topics       string
	keywords     string
	adDetection  string
}

// defaultPrompts mirrors the Python original's _default_prompts fallback
// text, ported to the same intent: ask for exactly the structured content
// AnalysisEngine expects back.
func defaultPrompts() prompts {
	return prompts{
		summary:     "Summarize the following podcast transcript in 2-4 sentences. Respond with plain text only.\n\n{{text}}",
		topics:      "List the main topics discussed in the following podcast transcript, one per line. Respond with a plain list, no numbering.\n\n{{text}}",
		keywords:    "Extract the most relevant keywords from the following podcast transcript, one per line, no duplicates. Respond with a plain list.\n\n{{text}}",
		adDetection: "Identify advertisement segments in the following transcript. Respond with a JSON array of objects {\"start_char\": int, \"end_char\": int, \"confidence\": float}. Respond with JSON only, no prose.\n\n{{text}}",
	}
}

// loadPrompts reads path and parses its `# Heading` sections into a
// prompts value. On any failure (missing file, no recognized headings) it
// returns defaultPrompts() and ok=false so the caller can emit a warning
// on the diagnostics channel, per spec.md §4.4 / §7 (PromptFileMissing /
// PromptFileMalformed are recovered conditions).
func loadPrompts(path string) (prompts, bool) {
	f, err := os.Open(path)
	if err != nil {
		return defaultPrompts(), false
	}
	defer f.Close()

	sections := make(map[string]string)
	var currentHeading string
	var currentBody strings.Builder

	flush := func() {
		if currentHeading != "" {
			sections[currentHeading] = strings.TrimSpace(currentBody.String())
		}
		currentBody.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "# ") {
			flush()
			currentHeading = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			continue
		}
		currentBody.WriteString(line)
		currentBody.WriteString("\n")
	}
	flush()

	if err := scanner.Err(); err != nil || len(sections) == 0 {
		return defaultPrompts(), false
	}

	out := defaultPrompts()
	ok := false
	if v, present := sections[headingSummary]; present && v != "" {
		out.summary = v
		ok = true
	}
	if v, present := sections[headingTopics]; present && v != "" {
		out.topics = v
		ok = true
	}
	if v, present := sections[headingKeywords]; present && v != "" {
		out.keywords = v
		ok = true
	}
	if v, present := sections[headingAdDetection]; present && v != "" {
		out.adDetection = v
		ok = true
	}
	return out, ok
}

func renderPrompt(template, text string) string {
	return strings.ReplaceAll(template, "{{text}}", text)
}
