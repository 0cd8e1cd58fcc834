package cover

import (
	"strings"
	"testing"
)

func TestBuildPromptIncludesTitleAndStyle(t *testing.T) {
	p := BuildPrompt("Deep Oceans", "", "vintage")
	if !strings.Contains(p, "'Deep Oceans'") {
		t.Errorf("prompt missing title: %s", p)
	}
	if !strings.Contains(p, "vintage retro style") {
		t.Errorf("prompt missing style: %s", p)
	}
}

func TestBuildPromptUnknownStyleFallsBackToModern(t *testing.T) {
	p := BuildPrompt("Title", "", "steampunk")
	if !strings.Contains(p, "modern digital art") {
		t.Errorf("unknown style did not fall back: %s", p)
	}
}

func TestBuildPromptTruncatesDescription(t *testing.T) {
	desc := "one two three four five six seven eight nine ten eleven twelve"
	p := BuildPrompt("Title", desc, "modern")
	if strings.Contains(p, "eleven") {
		t.Errorf("description not truncated to ten words: %s", p)
	}
	if !strings.Contains(p, "themed around one two") {
		t.Errorf("description theme missing: %s", p)
	}
}
