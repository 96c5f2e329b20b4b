// Package sanitize detects and strips placeholder boilerplate from text
// before it is sent to an LLM or accepted as final content. Detection is
// span-based: every rule contributes its match spans, overlapping spans are
// merged, and each merged span is removed exactly once, so a region matched
// by several rules never leaves stray characters behind.
package sanitize

import (
	"regexp"
	"sort"
	"strings"
)

// Pattern is a single ordered placeholder rule. Rules are static and
// compiled once at process start.
type Pattern struct {
	ID   string
	Warn bool // strip with a warning instead of silently
	re   *regexp.Regexp
}

// patterns is the fixed rule set, in reporting order.
var patterns = []Pattern{
	{ID: "bracket-placeholder", Warn: true, re: regexp.MustCompile(`\[[^\]\n]+\]`)},
	{ID: "brace-placeholder", Warn: true, re: regexp.MustCompile(`\{[^{}\n]+\}`)},
	{ID: "angle-placeholder", Warn: true, re: regexp.MustCompile(`<[^<>\n]+>`)},
	{ID: "sentinel-prefix", Warn: true, re: regexp.MustCompile(`\b(?:YOUR|REPLACE)_[A-Z0-9][A-Z0-9_]*\b`)},
	{ID: "todo-marker", Warn: true, re: regexp.MustCompile(`(?i)\b(?:TODO|FIXME)\b:?`)},
	{ID: "placeholder-phrase", Warn: true, re: regexp.MustCompile(`(?i)(?:\b(?:www\.)?example\.(?:com|org|net)\b|\blorem ipsum\b)`)},
	{ID: "shell-interpolation", Warn: true, re: regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)},
	{ID: "blank-run", Warn: false, re: regexp.MustCompile(`_{3,}|\.{3,}|…+`)},
}

// maxPasses bounds the detect-and-remove loop. A single pass is terminal for
// the rule set above; the loop guards against removals that splice a new
// match together out of the surrounding text.
const maxPasses = 4

// Result is the outcome of running all patterns over an input string.
type Result struct {
	CleanedText       string   `json:"cleanedText"`
	HadMatches        bool     `json:"hadMatches"`
	MatchedPatternIDs []string `json:"matchedPatternIds"`
}

// Patterns returns the configured rule set, in reporting order.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

type span struct {
	start, end int
}

// Detect runs every pattern against text and returns the cleaned text along
// with the IDs of the rules that matched. Each rule ID is reported at most
// once, in rule order, no matter how many spans it matched or how many rules
// shared a span.
func Detect(text string) Result {
	matched := make(map[string]bool)
	cleaned := text
	had := false

	for pass := 0; pass < maxPasses; pass++ {
		spans := collectSpans(cleaned, matched)
		if len(spans) == 0 {
			break
		}
		had = true
		cleaned = removeSpans(cleaned, spans)
	}

	ids := make([]string, 0, len(matched))
	for _, p := range patterns {
		if matched[p.ID] {
			ids = append(ids, p.ID)
		}
	}

	return Result{
		CleanedText:       cleaned,
		HadMatches:        had,
		MatchedPatternIDs: ids,
	}
}

// Clean applies Detect and returns only the cleaned text.
func Clean(text string) string {
	return Detect(text).CleanedText
}

// collectSpans gathers the match spans of every rule and records which rules
// matched. Spans may overlap across rules.
func collectSpans(text string, matched map[string]bool) []span {
	var spans []span
	for _, p := range patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		matched[p.ID] = true
		for _, loc := range locs {
			spans = append(spans, span{start: loc[0], end: loc[1]})
		}
	}
	return spans
}

// removeSpans deletes the union of the given spans from text. Overlapping
// spans are merged first so every region is removed exactly once.
func removeSpans(text string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, sp := range merged {
		b.WriteString(text[prev:sp.start])
		prev = sp.end
	}
	b.WriteString(text[prev:])
	return b.String()
}
