// Package pathsan turns arbitrary titles into filesystem-safe path
// components. It is a pure function with no dependency on the rest of the
// module, grounded on the sanitization routine in the Python original
// (core/processor.py:sanitize_path_component) and generalized so the
// word-boundary search scales with the configured max length instead of a
// fixed floor.
package pathsan

import "strings"

// forbidden holds the characters that are never allowed in a path component
// on the major filesystems podtext targets, plus ASCII control characters.
const forbidden = "/\\:*?\"<>|"

// Sanitize converts name into a filesystem-safe component of at most
// maxLength runes. If the result would be empty, fallback is returned
// instead (fallback is assumed to already be safe).
//
// Sanitize is idempotent: Sanitize(Sanitize(x, n, f), n, f) == Sanitize(x, n, f).
func Sanitize(name string, maxLength int, fallback string) string {
	replaced := replaceForbidden(name)
	collapsed := collapseUnderscores(replaced)
	trimmed := trimEdges(collapsed)

	if len([]rune(trimmed)) > maxLength {
		trimmed = truncate(trimmed, maxLength)
		trimmed = trimEdges(trimmed)
	}

	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func replaceForbidden(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(forbidden, r) || isControl(r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// collapseUnderscores replaces every run of two-or-more '_' with a single '_'.
func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runUnderscore := false
	for _, r := range s {
		if r == '_' {
			if runUnderscore {
				continue
			}
			runUnderscore = true
			b.WriteRune(r)
			continue
		}
		runUnderscore = false
		b.WriteRune(r)
	}
	return b.String()
}

func trimEdges(s string) string {
	return strings.Trim(s, " \t\n\r_")
}

// truncate cuts s to at most maxLength runes, preferring to break at a
// word boundary (space or '_') when one exists at a position p with
// maxLength/2 <= p <= maxLength.
func truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}

	hard := string(runes[:maxLength])
	floor := maxLength / 2

	best := -1
	for p := maxLength; p >= floor; p-- {
		if p > len(runes) {
			continue
		}
		if p == 0 {
			break
		}
		if runes[p-1] == ' ' || runes[p-1] == '_' {
			best = p - 1
			break
		}
	}

	if best >= 0 {
		return string(runes[:best])
	}
	return hard
}
