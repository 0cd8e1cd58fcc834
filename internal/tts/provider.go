package tts

import (
	"context"
	"fmt"

	"github.com/podforge/podforge/internal/config"
)

// Provider converts a piece of dialogue into audio bytes for a given voice
// and language. Format reports the container the bytes come in ("mp3" or
// "wav") so callers name and mix segment files correctly.
type Provider interface {
	Synthesize(ctx context.Context, text, voice, language string) ([]byte, error)
	Format() string
	Name() string
}

func New(cfg config.TTSConfig) (Provider, error) {
	switch cfg.Backend {
	case "openai", "":
		return NewOpenAI(cfg)
	case "local":
		return NewLocal(cfg)
	default:
		return nil, fmt.Errorf("unknown tts backend: %s", cfg.Backend)
	}
}
