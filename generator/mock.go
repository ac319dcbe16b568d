package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

// MockLLM is a placeholder backend for local debugging without API calls.
// It sniffs the capability from the system prompt and returns output the
// post-processors can parse.
type MockLLM struct{}

var mockCountRe = regexp.MustCompile(`exactly (\d+)`)

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch {
	case strings.Contains(prompt.System, "candidate titles"):
		return "1. A Beginner's Field Guide\n2. Ten Lessons Learned the Hard Way\n3. What Nobody Tells You", nil
	case strings.Contains(prompt.System, "Split the given post"):
		n := 1
		if sub := mockCountRe.FindStringSubmatch(prompt.System); sub != nil {
			fmt.Sscanf(sub[1], "%d", &n)
		}
		return mockSplit(prompt.User, n), nil
	case strings.Contains(prompt.System, "illustration"):
		return "A simple flat illustration of a writing desk with a notebook", nil
	case strings.Contains(prompt.System, "Translate"):
		return prompt.User, nil
	case strings.Contains(prompt.System, "Rewrite the given post"):
		return prompt.User, nil
	default:
		var sb strings.Builder
		sb.WriteString("This is a locally generated placeholder post.\n\n")
		sb.WriteString("It exists so the workflow can be exercised without a model backend.\n\n")
		sb.WriteString(prompt.User)
		return sb.String(), nil
	}
}

// mockSplit chops text into n roughly even word chunks joined by --- lines.
func mockSplit(text string, n int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		words = []string{"(empty)"}
	}
	if n < 1 {
		n = 1
	}
	parts := make([]string, 0, n)
	per := (len(words) + n - 1) / n
	for i := 0; i < n; i++ {
		lo := i * per
		hi := lo + per
		if lo >= len(words) {
			parts = append(parts, fmt.Sprintf("Paragraph %d.", i+1))
			continue
		}
		if hi > len(words) {
			hi = len(words)
		}
		parts = append(parts, strings.Join(words[lo:hi], " "))
	}
	return strings.Join(parts, "\n---\n")
}

// mockPNG is a valid 1x1 transparent PNG.
var mockPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg==")

// MockImage returns a fixed tiny PNG for every request.
type MockImage struct{}

func (MockImage) Generate(_ context.Context, _ string) ([]byte, error) {
	return mockPNG, nil
}

func (MockImage) Edit(_ context.Context, _ []byte, _ string, _ string) ([]byte, error) {
	return mockPNG, nil
}
