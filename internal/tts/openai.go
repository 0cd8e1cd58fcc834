package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/fault"
)

// OpenAI synthesizes speech through the OpenAI audio API.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAI(cfg config.TTSConfig) (*OpenAI, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("openai tts requires an api key")
	}
	baseURL := cfg.OpenAIBaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = "tts-1"
	}
	return &OpenAI{
		apiKey:  cfg.OpenAIKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Format() string { return "mp3" }

// Synthesize returns MP3 bytes for the given text. The speech models are
// multilingual, so the language rides in the text itself and the argument
// is ignored. Rate limits, timeouts and server errors come back retryable
// so the caller can back off.
func (o *OpenAI) Synthesize(ctx context.Context, text, voice, _ string) ([]byte, error) {
	if voice == "" {
		voice = "alloy"
	}

	body, err := json.Marshal(map[string]any{
		"model":           o.model,
		"input":           text,
		"voice":           voice,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fault.Transient(fault.KindSpeech, fmt.Errorf("tts request timed out: %w", err))
		}
		return nil, fault.Transient(fault.KindSpeech, fmt.Errorf("tts request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("tts failed (status %d): %s", resp.StatusCode, respBody)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fault.Transient(fault.KindSpeech, err)
		}
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return audio, nil
}
