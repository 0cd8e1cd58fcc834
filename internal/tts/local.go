package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/podforge/podforge/internal/config"
)

// Local synthesizes speech with a Piper binary via subprocess. The voice
// and language are baked into the model file, so both arguments are
// ignored.
type Local struct {
	binPath   string
	modelPath string
}

func NewLocal(cfg config.TTSConfig) (*Local, error) {
	binPath := cfg.LocalBinPath
	if binPath == "" {
		binPath = "piper"
	}
	if cfg.LocalModel == "" {
		return nil, fmt.Errorf("local tts requires a piper model path")
	}
	return &Local{binPath: binPath, modelPath: cfg.LocalModel}, nil
}

func (l *Local) Name() string { return "local" }

// Format reports WAV: piper writes a RIFF container, not MP3.
func (l *Local) Format() string { return "wav" }

func (l *Local) Synthesize(ctx context.Context, text, _, _ string) ([]byte, error) {
	out, err := os.CreateTemp("", "piper-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create piper output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, l.binPath, "--model", l.modelPath, "--output_file", outPath)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, stderr.String())
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read piper output: %w", err)
	}
	return audio, nil
}
