package generator

import (
	"context"
	"testing"
)

// The mock backends must produce output the post-processors accept, so the
// whole agent pipeline can run without a model.
func TestAgentWithMockBackends(t *testing.T) {
	agent, err := NewAgent(MockLLM{}, MockImage{})
	if err != nil {
		t.Fatalf("NewAgent: %v", err)
	}
	ctx := context.Background()

	titles, err := agent.TopicIdeas(ctx, "woodworking", []string{"hand tools"}, nil)
	if err != nil {
		t.Fatalf("TopicIdeas: %v", err)
	}
	if len(titles) != 3 {
		t.Fatalf("got %d titles", len(titles))
	}

	draft, err := agent.WriteDraft(ctx, titles[0])
	if err != nil {
		t.Fatalf("WriteDraft: %v", err)
	}
	if draft.Title != titles[0] || draft.Body == "" {
		t.Fatalf("draft = %+v", draft)
	}

	for n := 1; n <= 5; n++ {
		segs, err := agent.SplitParagraphs(ctx, draft.Body, n)
		if err != nil {
			t.Fatalf("SplitParagraphs(%d): %v", n, err)
		}
		if len(segs) != n {
			t.Fatalf("SplitParagraphs(%d) = %d segments", n, len(segs))
		}
	}

	prompt, err := agent.DerivePrompt(ctx, "A paragraph about joinery.")
	if err != nil {
		t.Fatalf("DerivePrompt: %v", err)
	}
	if prompt == "" {
		t.Fatal("empty derived prompt")
	}

	img, err := agent.GenerateImage(ctx, prompt)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(img) == 0 {
		t.Fatal("empty image")
	}
}

func TestNewAgentRequiresClients(t *testing.T) {
	if _, err := NewAgent(nil, MockImage{}); err == nil {
		t.Fatal("want error for nil llm")
	}
	if _, err := NewAgent(MockLLM{}, nil); err == nil {
		t.Fatal("want error for nil image client")
	}
}
