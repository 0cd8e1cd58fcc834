package chunker

import (
	"strings"
	"unicode"

	"github.com/podforge/podforge/pkg/tokenizer"
)

// Chunker splits text into token-budgeted, overlapping chunks suitable for
// embedding and retrieval.
type Chunker interface {
	Chunk(text string, meta map[string]interface{}) []Chunk
}

type Options struct {
	TargetTokens  int // target token count per chunk
	OverlapTokens int // tokens copied from the tail of the previous chunk
	MinTokens     int // chunks below this are dropped
}

type Chunk struct {
	Content    string
	Index      int
	TokenCount int
	Metadata   map[string]interface{}
}

func DefaultOptions() Options {
	return Options{
		TargetTokens:  512,
		OverlapTokens: 50,
		MinTokens:     100,
	}
}

// abbreviations whose trailing period must not end a sentence.
var abbreviations = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.", "vs.", "etc.",
	"Inc.", "Ltd.", "Corp.",
}

const dotMask = "\x00"

type sentenceChunker struct {
	opts Options
}

func New(opts Options) Chunker {
	if opts.TargetTokens <= 0 {
		opts.TargetTokens = 512
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.MinTokens < 0 {
		opts.MinTokens = 0
	}
	return &sentenceChunker{opts: opts}
}

func (c *sentenceChunker) Chunk(text string, meta map[string]interface{}) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	cleaned := cleanText(text)
	sentences := splitSentences(cleaned)
	grouped := c.groupSentences(sentences)

	// A trailing chunk under the minimum is dropped, not merged back. This can
	// lose content at document ends; accepted trade-off.
	if n := len(grouped); n > 0 && tokenizer.Estimate(grouped[n-1]) < c.opts.MinTokens {
		grouped = grouped[:n-1]
	}

	var chunks []Chunk
	for _, content := range grouped {
		tokens := tokenizer.Estimate(content)
		idx := len(chunks)
		md := map[string]interface{}{"chunk_index": idx}
		for k, v := range meta {
			md[k] = v
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			Index:      idx,
			TokenCount: tokens,
			Metadata:   md,
		})
	}
	return chunks
}

// cleanText normalizes whitespace and strips characters outside the
// word/punctuation whitelist.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case isWordRune(r) || strings.ContainsRune(`.,!?;:'"()-`, r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// splitSentences segments text on terminal punctuation followed by whitespace,
// masking abbreviation periods so they are not mistaken for boundaries.
func splitSentences(text string) []string {
	protected := text
	for _, abbr := range abbreviations {
		protected = strings.ReplaceAll(protected, abbr, strings.ReplaceAll(abbr, ".", dotMask))
	}

	var sentences []string
	var current strings.Builder
	runes := []rune(protected)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			// Consume any run of terminal punctuation.
			for i+1 < len(runes) && (runes[i+1] == '.' || runes[i+1] == '!' || runes[i+1] == '?') {
				i++
				current.WriteRune(runes[i])
			}
			if i+1 < len(runes) && runes[i+1] == ' ' {
				sentences = append(sentences, current.String())
				current.Reset()
				i++ // skip the boundary space
			}
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	out := sentences[:0]
	for _, s := range sentences {
		s = strings.TrimSpace(strings.ReplaceAll(s, dotMask, "."))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *sentenceChunker) groupSentences(sentences []string) []string {
	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
		}
		current = nil
		currentTokens = 0
	}

	for _, sentence := range sentences {
		tokens := tokenizer.Estimate(sentence)

		// A sentence that alone exceeds the target is hard-split on word
		// boundaries; no overlap is injected inside the forced split.
		if tokens > c.opts.TargetTokens {
			flush()
			pieces, tail, tailTokens := c.splitLongSentence(sentence)
			chunks = append(chunks, pieces...)
			current = tail
			currentTokens = tailTokens
			continue
		}

		if currentTokens+tokens > c.opts.TargetTokens {
			overlap := c.overlapTail(current)
			chunks = append(chunks, strings.Join(current, " "))
			current = append(overlap, sentence)
			currentTokens = 0
			for _, s := range current {
				currentTokens += tokenizer.Estimate(s)
			}
			continue
		}

		current = append(current, sentence)
		currentTokens += tokens
	}

	flush()
	return chunks
}

// splitLongSentence breaks an oversize sentence into target-size pieces on word
// boundaries. The last (partial) piece is returned as the seed of the next
// chunk rather than emitted, matching the greedy accumulation loop.
func (c *sentenceChunker) splitLongSentence(sentence string) (pieces []string, tail []string, tailTokens int) {
	var piece []string
	pieceTokens := 0
	for _, word := range strings.Fields(sentence) {
		wordTokens := tokenizer.Estimate(word) + 1
		if pieceTokens+wordTokens > c.opts.TargetTokens {
			if len(piece) > 0 {
				pieces = append(pieces, strings.Join(piece, " "))
			}
			piece = []string{word}
			pieceTokens = wordTokens
			continue
		}
		piece = append(piece, word)
		pieceTokens += wordTokens
	}
	return pieces, piece, pieceTokens
}

// overlapTail returns trailing sentences of the closed chunk whose cumulative
// token estimate stays within the overlap budget.
func (c *sentenceChunker) overlapTail(sentences []string) []string {
	if len(sentences) == 0 || c.opts.OverlapTokens == 0 {
		return nil
	}
	var tail []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		tokens := tokenizer.Estimate(sentences[i])
		if total+tokens > c.opts.OverlapTokens {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		total += tokens
	}
	return tail
}
