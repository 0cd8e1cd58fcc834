package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/podforge/podforge/internal/fault"
	"github.com/podforge/podforge/internal/models"
)

const maxAttempts = 3

// SegmentAudio is the synthesis outcome for one dialogue segment. Path is
// empty when synthesis failed for good; the mixer skips those.
type SegmentAudio struct {
	Index int
	Path  string
	Err   error
}

// Synthesizer voices a parsed script segment by segment, writing one audio
// file per segment into a working directory.
type Synthesizer struct {
	provider    Provider
	voiceMale   string
	voiceFemale string
	logger      *slog.Logger
	sleep       func(time.Duration)
}

func NewSynthesizer(provider Provider, voiceMale, voiceFemale string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		provider:    provider,
		voiceMale:   voiceMale,
		voiceFemale: voiceFemale,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// Synthesize voices every segment into dir in the episode's language.
// Individual segments may fail permanently without failing the call; the
// error is non-nil only when not a single segment produced audio.
func (s *Synthesizer) Synthesize(ctx context.Context, dir string, segments []models.DialogueSegment, personas []models.Persona, language string, progress func(done, total int)) ([]SegmentAudio, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fault.Degradable(fault.KindSpeech, fmt.Errorf("create segments dir: %w", err))
	}

	out := make([]SegmentAudio, len(segments))
	succeeded := 0

	for i, seg := range segments {
		voice := s.voiceFor(seg.Speaker, personas)
		path := filepath.Join(dir, fmt.Sprintf("segment_%04d.%s", seg.Index, s.provider.Format()))

		audio, err := s.synthesizeWithRetry(ctx, seg.Text, voice, language)
		if err != nil {
			s.logger.Warn("segment synthesis failed, skipping",
				"segment", seg.Index, "speaker", seg.Speaker, "error", err)
			out[i] = SegmentAudio{Index: seg.Index, Err: err}
		} else if err := os.WriteFile(path, audio, 0o644); err != nil {
			out[i] = SegmentAudio{Index: seg.Index, Err: fmt.Errorf("write segment audio: %w", err)}
		} else {
			out[i] = SegmentAudio{Index: seg.Index, Path: path}
			succeeded++
		}

		if progress != nil {
			progress(i+1, len(segments))
		}
	}

	if succeeded == 0 {
		return nil, fault.Degradablef(fault.KindSpeech, "speech synthesis failed for all %d segments", len(segments))
	}
	return out, nil
}

func (s *Synthesizer) synthesizeWithRetry(ctx context.Context, text, voice, language string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, err := s.provider.Synthesize(ctx, text, voice, language)
		if err == nil {
			return audio, nil
		}
		lastErr = err

		if !fault.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		backoff := time.Duration(attempt*attempt) * time.Second
		s.logger.Warn("tts attempt failed, retrying",
			"attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			s.sleep(backoff)
		}
	}
	return nil, lastErr
}

// voiceFor picks the voice for a speaker. An explicit persona voice id
// wins, then declared gender. Personas with neither round-robin over the
// two defaults by their position, so a speaker keeps the same voice for
// every line. Undeclared speakers get the male default.
func (s *Synthesizer) voiceFor(speaker string, personas []models.Persona) string {
	for i, p := range personas {
		if !strings.EqualFold(p.Name, speaker) {
			continue
		}
		if p.VoiceID != "" {
			return p.VoiceID
		}
		switch p.Gender {
		case "male":
			return s.voiceMale
		case "female":
			return s.voiceFemale
		}
		if i%2 == 0 {
			return s.voiceMale
		}
		return s.voiceFemale
	}
	return s.voiceMale
}
