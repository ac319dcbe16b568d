package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Agent exposes one method per generation capability, building the prompt,
// calling the backend and post-processing the raw output.
type Agent struct {
	llm LLMClient
	img ImageClient
}

func NewAgent(llm LLMClient, img ImageClient) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if img == nil {
		return nil, errors.New("image client is required")
	}
	return &Agent{llm: llm, img: img}, nil
}

// TopicIdeas returns up to 3 candidate titles for the keyword. refTitles is
// optional search context; an empty slice selects the context-free prompt.
func (a *Agent) TopicIdeas(ctx context.Context, keyword string, subKeywords, refTitles []string) ([]string, error) {
	raw, err := a.llm.Complete(ctx, BuildTopicPrompt(keyword, subKeywords, refTitles))
	if err != nil {
		return nil, fmt.Errorf("topic ideation: %w", err)
	}
	titles, err := ParseTitleList(raw)
	if err != nil {
		return nil, fmt.Errorf("topic ideation: %w", err)
	}
	return titles, nil
}

// WriteDraft generates a full post body for the chosen title.
func (a *Agent) WriteDraft(ctx context.Context, title string) (Draft, error) {
	raw, err := a.llm.Complete(ctx, BuildDraftPrompt(title))
	if err != nil {
		return Draft{}, fmt.Errorf("draft generation: %w", err)
	}
	body := strings.TrimSpace(raw)
	if body == "" {
		return Draft{}, errors.New("draft generation: model returned empty body")
	}
	return Draft{Title: title, Body: body}, nil
}

// Personalize rewrites the body to address the reader by name.
func (a *Agent) Personalize(ctx context.Context, body, name string) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildPersonalizePrompt(body, name))
	if err != nil {
		return "", fmt.Errorf("personalization: %w", err)
	}
	out := strings.TrimSpace(raw)
	if out == "" {
		return "", errors.New("personalization: model returned empty body")
	}
	return out, nil
}

// SplitParagraphs segments the body into exactly n ordered paragraphs.
func (a *Agent) SplitParagraphs(ctx context.Context, body string, n int) ([]string, error) {
	raw, err := a.llm.Complete(ctx, BuildSegmentPrompt(body, n))
	if err != nil {
		return nil, fmt.Errorf("paragraph segmentation: %w", err)
	}
	segs, err := SplitSegments(raw, n)
	if err != nil {
		return nil, fmt.Errorf("paragraph segmentation: %w", err)
	}
	return segs, nil
}

// DerivePrompt turns one paragraph into a short English image prompt.
func (a *Agent) DerivePrompt(ctx context.Context, paragraph string) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildImagePrompt(paragraph))
	if err != nil {
		return "", fmt.Errorf("prompt derivation: %w", err)
	}
	p := FirstLine(raw)
	if p == "" {
		return "", errors.New("prompt derivation: model returned empty prompt")
	}
	return p, nil
}

// Translate translates free text to English, quotes stripped.
func (a *Agent) Translate(ctx context.Context, text string) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildTranslatePrompt(text))
	if err != nil {
		return "", fmt.Errorf("translation: %w", err)
	}
	out := StripQuotes(raw)
	if out == "" {
		return "", errors.New("translation: model returned empty text")
	}
	return out, nil
}

// GenerateImage synthesizes one image for the prompt.
func (a *Agent) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	img, err := a.img.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("image synthesis: %w", err)
	}
	return img, nil
}

// EditImage applies the directive to an uploaded image.
func (a *Agent) EditImage(ctx context.Context, image []byte, mimeType, directive string) ([]byte, error) {
	out, err := a.img.Edit(ctx, image, mimeType, directive)
	if err != nil {
		return nil, fmt.Errorf("image edit: %w", err)
	}
	return out, nil
}
