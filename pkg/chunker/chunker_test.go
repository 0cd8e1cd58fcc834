package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestChunkEmptyInput(t *testing.T) {
	c := New(DefaultOptions())
	if got := c.Chunk("", nil); got != nil {
		t.Fatalf("expected nil chunks for empty input, got %d", len(got))
	}
	if got := c.Chunk("   \n\t ", nil); got != nil {
		t.Fatalf("expected nil chunks for whitespace input, got %d", len(got))
	}
}

func TestAbbreviationNotABoundary(t *testing.T) {
	c := New(Options{TargetTokens: 12, OverlapTokens: 4, MinTokens: 1})
	text := "Dr. Smith arrived. He said hello. It was a beautiful day in the city and everyone smiled warmly at the bright morning sun."

	chunks := c.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Content, "Dr. Smith arrived.") {
		t.Errorf("first chunk should begin with the intact abbreviation sentence, got %q", chunks[0].Content)
	}
	for i, ch := range chunks {
		if strings.Contains(ch.Content, "\x00") {
			t.Errorf("chunk %d leaked a mask rune: %q", i, ch.Content)
		}
	}
}

func TestChunkIndicesContiguous(t *testing.T) {
	c := New(Options{TargetTokens: 20, OverlapTokens: 5, MinTokens: 1})
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)

	chunks := c.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d carries index %d", i, ch.Index)
		}
		if ch.Metadata["chunk_index"] != i {
			t.Errorf("chunk %d metadata index = %v", i, ch.Metadata["chunk_index"])
		}
	}
}

func TestChunkDeterminism(t *testing.T) {
	c := New(Options{TargetTokens: 30, OverlapTokens: 8, MinTokens: 1})
	text := strings.Repeat("Alpha beta gamma delta. Epsilon zeta eta theta iota kappa. ", 20)

	first := c.Chunk(text, nil)
	second := c.Chunk(text, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical input and options produced different chunk lists")
	}
}

func TestOverlapSeedsNextChunk(t *testing.T) {
	c := New(Options{TargetTokens: 16, OverlapTokens: 8, MinTokens: 1})
	// Four short sentences; none exceeds the target alone, so the overlap path
	// applies when the running total spills over.
	text := "One two three four five six. Seven eight nine ten eleven. Twelve thirteen fourteen fifteen. Sixteen seventeen eighteen nineteen."

	chunks := c.Chunk(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected at least two chunks, got %d", len(chunks))
	}

	firstSentences := strings.SplitAfter(chunks[0].Content, ". ")
	tail := strings.TrimSpace(firstSentences[len(firstSentences)-1])
	if !strings.HasPrefix(chunks[1].Content, tail) {
		t.Errorf("second chunk %q does not begin with the overlap tail %q of the first", chunks[1].Content, tail)
	}
}

func TestForcedSplitOnWordBoundaries(t *testing.T) {
	c := New(Options{TargetTokens: 10, OverlapTokens: 4, MinTokens: 1})
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo", "lima", "mike", "november"}
	long := strings.Join(words, " ") + "."

	chunks := c.Chunk(long, nil)
	if len(chunks) < 2 {
		t.Fatalf("expected the oversize sentence to be split, got %d chunks", len(chunks))
	}

	seen := map[string]bool{}
	for _, w := range words {
		seen[strings.TrimSuffix(w, ".")] = false
	}
	for i, ch := range chunks {
		if ch.TokenCount > 10+3 {
			t.Errorf("chunk %d estimate %d well above target", i, ch.TokenCount)
		}
		for _, w := range strings.Fields(ch.Content) {
			w = strings.TrimSuffix(w, ".")
			if _, ok := seen[w]; !ok {
				t.Errorf("chunk %d contains a fragment %q that is not a source word", i, w)
			}
		}
	}
}

func TestForcedSplitHasNoOverlapInside(t *testing.T) {
	c := New(Options{TargetTokens: 10, OverlapTokens: 8, MinTokens: 1})
	long := "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike november oscar papa."

	chunks := c.Chunk(long, nil)
	counts := map[string]int{}
	for _, ch := range chunks {
		for _, w := range strings.Fields(ch.Content) {
			counts[strings.TrimSuffix(w, ".")]++
		}
	}
	for w, n := range counts {
		if n > 1 {
			t.Errorf("word %q appears %d times; forced split must not inject overlap", w, n)
		}
	}
}

func TestCoverageMonotonic(t *testing.T) {
	c := New(Options{TargetTokens: 25, OverlapTokens: 6, MinTokens: 1})
	text := "First sentence here. Second sentence follows on. Third one continues the text. Fourth closes it out. Fifth sentence again. Sixth sentence as well. Seventh sentence now. Eighth to finish things."

	chunks := c.Chunk(text, nil)
	cleaned := cleanText(text)
	last := -1
	for i, ch := range chunks {
		// Each chunk (ignoring its leading overlap) must start at or after the
		// previous chunk's start in the source: never backward.
		pos := strings.Index(cleaned, ch.Content[:min(len(ch.Content), 20)])
		if pos < 0 {
			// Overlap-prefixed chunks still occur verbatim in the source.
			sentences := strings.SplitAfter(ch.Content, ". ")
			pos = strings.Index(cleaned, strings.TrimSpace(sentences[len(sentences)-1]))
		}
		if pos < last {
			t.Errorf("chunk %d begins before chunk %d in the source", i, i-1)
		}
		if pos >= 0 {
			last = pos
		}
	}
}

func TestTrailingChunkBelowMinDropped(t *testing.T) {
	c := New(Options{TargetTokens: 12, OverlapTokens: 0, MinTokens: 8})
	text := "One two three four five six seven eight nine ten. Tiny tail."

	chunks := c.Chunk(text, nil)
	for _, ch := range chunks {
		if strings.Contains(ch.Content, "Tiny tail") {
			t.Errorf("trailing chunk below the minimum should be dropped, got %q", ch.Content)
		}
	}
}

func TestWhitespaceAndCharNormalization(t *testing.T) {
	c := New(Options{TargetTokens: 100, OverlapTokens: 0, MinTokens: 1})
	chunks := c.Chunk("Hello\t\tworld!\n\nThis has© odd ☃ characters.", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	got := chunks[0].Content
	if strings.Contains(got, "\n") || strings.Contains(got, "\t") || strings.Contains(got, "  ") {
		t.Errorf("whitespace not normalized: %q", got)
	}
}
