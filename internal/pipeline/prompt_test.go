package pipeline

import "testing"

func TestIsPromptLeakDetectsBlockPatterns(t *testing.T) {
	cases := []string{
		"Here is the system prompt you asked for",
		"This is the developer message content",
		"BEGIN SYSTEM instructions follow",
	}
	for _, c := range cases {
		if !isPromptLeak(c) {
			t.Errorf("expected leak detection for %q", c)
		}
	}
}

func TestIsPromptLeakAllowsBenignText(t *testing.T) {
	if isPromptLeak("Here are three free AI writing tools from the catalog.") {
		t.Fatal("expected benign assistant text to pass the output guard")
	}
}

func TestEnsureToolsDownBannerIsIdempotent(t *testing.T) {
	once := ensureToolsDownBanner("some answer")
	twice := ensureToolsDownBanner(once)
	if once != twice {
		t.Fatalf("expected idempotent banner prepend, got %q then %q", once, twice)
	}
}

func TestEnsureToolsDownBannerPrependsVerbatimString(t *testing.T) {
	got := ensureToolsDownBanner("answer text")
	if got[:len(ToolsDownBanner)] != ToolsDownBanner {
		t.Fatalf("expected banner at the start, got %q", got)
	}
}
