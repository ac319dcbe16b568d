package generator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// listItemRe matches "1. title", "1) title", "- title", "* title".
var listItemRe = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*])\s*(.+)$`)

// ParseTitleList extracts candidate titles from raw model output, one per
// line. Numbering and bullets are stripped, as are surrounding quotes.
// The contract is exactly 3 titles: extra lines are dropped, fewer than
// 3 is an error.
func ParseTitleList(raw string) ([]string, error) {
	var titles []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		line = StripQuotes(line)
		if line == "" {
			continue
		}
		titles = append(titles, line)
	}
	if len(titles) < 3 {
		return nil, fmt.Errorf("model returned %d titles, want 3", len(titles))
	}
	return titles[:3], nil
}

var segmentSepRe = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)

// SplitSegments splits raw model output into exactly n segments. The primary
// separator is a "---" line as requested by the prompt; when the model ignores
// that and returns blank-line paragraphs instead, those are used as a fallback.
func SplitSegments(raw string, n int) ([]string, error) {
	segs := collectSegments(segmentSepRe.Split(raw, -1))
	if len(segs) != n {
		if alt := collectSegments(strings.Split(raw, "\n\n")); len(alt) == n {
			segs = alt
		}
	}
	if len(segs) == 0 {
		return nil, errors.New("model returned no paragraphs")
	}
	if len(segs) != n {
		return nil, errors.New("model returned wrong paragraph count")
	}
	return segs, nil
}

func collectSegments(parts []string) []string {
	var segs []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

const quoteChars = `"'` + "`" + "“”‘’「」"

// StripQuotes removes surrounding quote characters, including curly and
// CJK corner quotes which models are fond of.
func StripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), quoteChars))
}

// FirstLine reduces raw model output to its first non-empty line, unquoted.
// Used for single-line answers (derived image prompts, translations).
func FirstLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		if line = StripQuotes(line); line != "" {
			return line
		}
	}
	return ""
}
