// Package cover generates episode cover art. Covers are decoration: any
// failure here degrades the episode, never fails it.
package cover

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/fault"
)

var stylePrompts = map[string]string{
	"modern":  "modern digital art, clean design, professional",
	"vintage": "vintage retro style, warm colors, nostalgic",
	"minimal": "minimalist design, simple shapes, clean lines",
	"vibrant": "vibrant colors, dynamic, energetic, bold",
	"tech":    "futuristic technology, digital, cyberpunk elements",
	"nature":  "natural elements, organic, earthy tones",
}

// Generator renders podcast cover art through the OpenAI images API.
type Generator struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGenerator(cfg config.ImageConfig) (*Generator, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("cover generation requires an openai api key")
	}
	model := cfg.Model
	if model == "" {
		model = "dall-e-3"
	}
	return &Generator{
		apiKey:  cfg.OpenAIKey,
		model:   model,
		baseURL: "https://api.openai.com/v1",
		client:  &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Generate writes a square PNG cover for the episode into outputPath.
func (g *Generator) Generate(ctx context.Context, title, description, style, outputPath string) error {
	prompt := BuildPrompt(title, description, style)

	image, err := g.generateImage(ctx, prompt)
	if err != nil {
		return fault.Degradable(fault.KindImage, err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fault.Degradable(fault.KindImage, fmt.Errorf("create cover dir: %w", err))
	}
	if err := os.WriteFile(outputPath, image, 0o644); err != nil {
		return fault.Degradable(fault.KindImage, fmt.Errorf("write cover: %w", err))
	}
	return nil
}

// BuildPrompt composes the image prompt from episode metadata. Unknown
// styles fall back to modern.
func BuildPrompt(title, description, style string) string {
	styleDesc, ok := stylePrompts[style]
	if !ok {
		styleDesc = stylePrompts["modern"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Podcast cover art, %s, abstract representation of '%s'", styleDesc, title)

	if description != "" {
		words := strings.Fields(description)
		if len(words) > 10 {
			words = words[:10]
		}
		fmt.Fprintf(&sb, ", themed around %s", strings.Join(words, " "))
	}

	sb.WriteString(", high quality, professional podcast artwork, square format, visually striking")
	return sb.String()
}

func (g *Generator) generateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model":           g.model,
		"prompt":          prompt,
		"size":            "1024x1024",
		"n":               1,
		"response_format": "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image generation failed (status %d): %s", resp.StatusCode, respBody)
	}

	var apiResp struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
			URL     string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}

	if b64 := apiResp.Data[0].B64JSON; b64 != "" {
		image, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		return image, nil
	}
	return g.download(ctx, apiResp.Data[0].URL)
}

func (g *Generator) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("image generation returned neither data nor url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
