package generator

import (
	"fmt"
	"strings"
)

// Prompt is the message pair sent to the LLM.
type Prompt struct {
	System string
	User   string
}

// maxReferenceTitles bounds the search context included in topic ideation.
const maxReferenceTitles = 10

// BuildTopicPrompt asks for exactly three candidate blog post titles.
func BuildTopicPrompt(keyword string, subKeywords, refTitles []string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an experienced blog editor who proposes post topics.\n")
	sb.WriteString("Output exactly 3 candidate titles, one per line, numbered 1. to 3.\n")
	sb.WriteString("No explanations, no extra lines. Write titles in the same language as the keyword.\n")

	var ub strings.Builder
	fmt.Fprintf(&ub, "Main keyword: %s\n", keyword)
	if len(subKeywords) > 0 {
		fmt.Fprintf(&ub, "Secondary keywords: %s\n", strings.Join(subKeywords, ", "))
	}
	if len(refTitles) > 0 {
		refs := refTitles
		if len(refs) > maxReferenceTitles {
			refs = refs[:maxReferenceTitles]
		}
		ub.WriteString("Recently published posts on this keyword, for reference:\n")
		for i, t := range refs {
			fmt.Fprintf(&ub, "%d. %s\n", i+1, t)
		}
		ub.WriteString("Propose titles that stand out against these.\n")
	}
	ub.WriteString("Propose 3 titles now.")

	return Prompt{System: sb.String(), User: ub.String()}
}

// BuildDraftPrompt asks for a full post body for the chosen title.
func BuildDraftPrompt(title string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a professional blog writer. Output only the post body as plain markdown,\n")
	sb.WriteString("no preamble and no closing remarks. Do not repeat the title as a heading.\n")
	sb.WriteString("Write in the same language as the title.\n")

	user := fmt.Sprintf("Title: %s\nWrite the complete post body.", title)
	return Prompt{System: sb.String(), User: user}
}

// BuildPersonalizePrompt rewrites an existing body to address the reader by name.
// This is deliberately a separate capability from BuildDraftPrompt: the input is
// a full body, not a title, and the instruction is a minimal rewrite.
func BuildPersonalizePrompt(body, name string) Prompt {
	var sb strings.Builder
	sb.WriteString("You are an editor. Rewrite the given post so it naturally addresses the reader\n")
	sb.WriteString("by name where it fits, keeping structure, language and length. Output only the\n")
	sb.WriteString("rewritten body, nothing else.\n")

	user := fmt.Sprintf("Reader name: %s\n\nPost:\n%s", name, body)
	return Prompt{System: sb.String(), User: user}
}

// BuildSegmentPrompt splits a body into exactly n paragraphs separated by "---" lines.
func BuildSegmentPrompt(body string, n int) Prompt {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Split the given post into exactly %d coherent paragraphs, preserving the\n", n)
	sb.WriteString("original order and wording as far as possible. Separate the paragraphs with a\n")
	sb.WriteString("line containing only --- and output nothing else.\n")

	return Prompt{System: sb.String(), User: body}
}

// BuildImagePrompt derives a short illustration prompt from one paragraph.
// The output language is fixed to English regardless of the input language,
// because the image model works best with English prompts.
func BuildImagePrompt(paragraph string) Prompt {
	var sb strings.Builder
	sb.WriteString("Derive one short English prompt (under 30 words) describing an illustration\n")
	sb.WriteString("for the given paragraph. Output the prompt on a single line, in English,\n")
	sb.WriteString("regardless of the paragraph's language. No quotes, no explanations.\n")

	return Prompt{System: sb.String(), User: paragraph}
}

// BuildTranslatePrompt translates free text to English.
func BuildTranslatePrompt(text string) Prompt {
	var sb strings.Builder
	sb.WriteString("Translate the given text to English. Output only the translation,\n")
	sb.WriteString("without surrounding quotes.\n")

	return Prompt{System: sb.String(), User: text}
}
