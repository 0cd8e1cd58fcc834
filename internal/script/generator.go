package script

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/llm"
	"github.com/podforge/podforge/internal/models"
)

const (
	// maxDurationMinutes caps how long an episode may run. Longer scripts
	// balloon TTS time and memory.
	maxDurationMinutes = 10
	// wordsPerMinute is the assumed speaking rate.
	wordsPerMinute = 150
	// maxCompletionTokens caps the LLM response size.
	maxCompletionTokens = 3000
)

const systemPrompt = `You are an expert podcast script writer. Your job is to create engaging, natural-sounding podcast dialogue based on provided content.

Guidelines:
- Write natural, conversational dialogue
- Include smooth transitions between topics
- Add personality through natural speech patterns
- Include occasional interruptions, agreements, and reactions
- Avoid being dry or overly formal
- Make complex topics accessible
- Include brief introductions and conclusions

Format each line as:
SPEAKER_NAME: Dialogue text here.

Always start with an introduction and end with a conclusion/outro.`

// Result is a generated, parsed script.
type Result struct {
	Script    string
	Segments  []models.DialogueSegment
	WordCount int
}

// Generator produces multi-persona podcast scripts. Failure here is fatal
// for a run: there is nothing to speak without a script.
type Generator struct {
	provider       llm.Provider
	model          string
	maxScriptBytes int
	logger         *slog.Logger
}

func NewGenerator(provider llm.Provider, model string, maxScriptBytes int, logger *slog.Logger) *Generator {
	return &Generator{provider: provider, model: model, maxScriptBytes: maxScriptBytes, logger: logger}
}

// Generate asks the LLM for a dialogue script grounded in contextText and
// parses it into per-speaker segments.
func (g *Generator) Generate(ctx context.Context, ep *models.Episode, contextText string, targetMinutes int) (*Result, error) {
	if targetMinutes <= 0 || targetMinutes > maxDurationMinutes {
		targetMinutes = maxDurationMinutes
	}
	targetWords := targetMinutes * wordsPerMinute

	maxTokens := maxCompletionTokens
	if t := targetWords + 500; t < maxTokens {
		maxTokens = t
	}

	resp, err := g.provider.ChatCompletion(ctx, llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(ep.Title, ep.Language, contextText, ep.Personas, targetWords)},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fault.Fatal(fault.KindScript, describeLLMError(err))
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, fault.Fatalf(fault.KindScript, "llm returned an empty script")
	}
	if g.maxScriptBytes > 0 && len(text) > g.maxScriptBytes {
		g.logger.Warn("script truncated", "episode_id", ep.ID, "bytes", len(text), "limit", g.maxScriptBytes)
		text = truncateScript(text, g.maxScriptBytes)
	}

	segments := Parse(text)
	if len(segments) == 0 {
		return nil, fault.Fatalf(fault.KindScript, "script has no speaker lines")
	}

	return &Result{
		Script:    text,
		Segments:  segments,
		WordCount: len(strings.Fields(text)),
	}, nil
}

func userPrompt(title, language, contextText string, personas []models.Persona, targetWords int) string {
	names := make([]string, len(personas))
	var desc strings.Builder
	for i, p := range personas {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Speaker%d", i)
		}
		names[i] = name

		role := p.Role
		if role == "" {
			role = "host"
		}
		personality := p.Personality
		if personality == "" {
			personality = "friendly and engaging"
		}
		fmt.Fprintf(&desc, "- %s (%s): %s\n", name, role, personality)
	}

	second := names[0]
	if len(names) > 1 {
		second = names[1]
	}

	languageLine := ""
	if language != "" && language != "en" {
		languageLine = fmt.Sprintf("\nLANGUAGE: Write the entire script in %q.\n", language)
	}

	return fmt.Sprintf(`Create a podcast script for an episode titled %q.

SPEAKERS:
%s
SOURCE CONTENT:
%s

TARGET LENGTH: Approximately %d words
%s
Write an engaging podcast script where the speakers discuss the key points from the source content. Make it conversational and interesting.

Remember to format as:
%s: [dialogue]
%s: [dialogue]
etc.

Begin the script now:`, title, desc.String(), contextText, targetWords, languageLine, names[0], second)
}

// truncateScript trims to the byte budget, backing up to the last line
// break so the cut does not land mid-dialogue.
func truncateScript(text string, limit int) string {
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// describeLLMError attaches an actionable hint based on the failure class.
func describeLLMError(err error) error {
	switch llm.KindOf(err) {
	case llm.ErrTimeout:
		return fmt.Errorf("script generation timed out, the provider took too long to respond, try again in a few minutes: %w", err)
	case llm.ErrRateLimit:
		return fmt.Errorf("script generation rate limited, the provider is busy, try again in a few minutes: %w", err)
	case llm.ErrAuth:
		return fmt.Errorf("script generation authentication failed, check the provider API key: %w", err)
	default:
		return fmt.Errorf("script generation failed: %w", err)
	}
}
