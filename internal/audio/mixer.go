// Package audio assembles per-segment speech files into the final episode
// MP3. ffmpeg does the heavy lifting; a pure-Go decode path covers hosts
// without it.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/podforge/podforge/internal/config"
	"github.com/podforge/podforge/internal/fault"
)

const (
	outputBitrate = "192k"
	fadeOutSecs   = 0.5
)

// MixResult describes the assembled episode file.
type MixResult struct {
	Path            string
	DurationSeconds float64
	SegmentsMixed   int
}

// Mixer concatenates voiced segments with pauses, optional intro/outro and
// background music into a constant-bitrate MP3.
type Mixer struct {
	ffmpegBin   string
	ffprobeBin  string
	pauseMs     int
	musicVolume float64
	introPath   string
	outroPath   string
	musicPath   string
	logger      *slog.Logger
}

func NewMixer(cfg config.PipelineConfig, logger *slog.Logger) *Mixer {
	ffmpegBin := cfg.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	ffprobeBin := cfg.FFprobeBin
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &Mixer{
		ffmpegBin:   ffmpegBin,
		ffprobeBin:  ffprobeBin,
		pauseMs:     cfg.SegmentPauseMs,
		musicVolume: cfg.MusicVolume,
		introPath:   cfg.IntroPath,
		outroPath:   cfg.OutroPath,
		musicPath:   cfg.MusicPath,
		logger:      logger,
	}
}

// Mix combines segmentPaths in order into outputPath. Missing segment files
// are skipped. When ffmpeg is unavailable the pure-Go fallback produces a
// WAV next to outputPath instead.
func (m *Mixer) Mix(ctx context.Context, segmentPaths []string, outputPath string) (*MixResult, error) {
	paths := existingFiles(segmentPaths)
	if len(paths) == 0 {
		return nil, fault.Degradablef(fault.KindMixing, "no audio segments to mix")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fault.Degradable(fault.KindMixing, fmt.Errorf("create output dir: %w", err))
	}

	result, err := m.mixWithFFmpeg(ctx, paths, outputPath)
	if err == nil {
		return result, nil
	}
	m.logger.Warn("ffmpeg mix failed, falling back to pure-go concat", "error", err)

	result, fbErr := m.mixFallback(paths, outputPath)
	if fbErr != nil {
		return nil, fault.Degradable(fault.KindMixing, fmt.Errorf("mix failed (ffmpeg: %v): %w", err, fbErr))
	}
	return result, nil
}

func (m *Mixer) mixWithFFmpeg(ctx context.Context, paths []string, outputPath string) (*MixResult, error) {
	workDir, err := os.MkdirTemp(filepath.Dir(outputPath), "mix-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Segments arrive either as MP3 (hosted speech APIs) or WAV (local
	// engines). The concat demuxer needs every entry in one codec, so the
	// synthesized pause takes the segments' format and parameters.
	segExt := strings.ToLower(filepath.Ext(paths[0]))
	rate, channels, err := probeAudioParams(ctx, m.ffprobeBin, paths[0])
	if err != nil {
		m.logger.Warn("probe segment stream failed, assuming 44.1kHz stereo", "error", err)
		rate, channels = 44100, 2
	}

	gapPath := filepath.Join(workDir, "gap"+segExt)
	if err := runFFmpeg(ctx, m.ffmpegBin, m.gapArgs(gapPath, segExt, rate, channels)); err != nil {
		return nil, fmt.Errorf("generate pause: %w", err)
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(m.introPath, m.outroPath, gapPath, paths)), 0o644); err != nil {
		return nil, fmt.Errorf("write concat list: %w", err)
	}

	voicePath := filepath.Join(workDir, "voice.mp3")
	if err := runFFmpeg(ctx, m.ffmpegBin, concatArgs(listPath, voicePath)); err != nil {
		return nil, fmt.Errorf("concat segments: %w", err)
	}

	duration, err := probeDuration(ctx, m.ffprobeBin, voicePath)
	if err != nil {
		return nil, err
	}

	outroJoined := m.outroPath != "" && strings.EqualFold(filepath.Ext(m.outroPath), segExt)
	if outroJoined {
		if _, statErr := os.Stat(m.outroPath); statErr != nil {
			outroJoined = false
		}
	}
	if m.outroPath != "" && !outroJoined {
		m.logger.Warn("outro format differs from segments, skipping", "outro", m.outroPath)
	}
	if m.introPath != "" && !strings.EqualFold(filepath.Ext(m.introPath), segExt) {
		m.logger.Warn("intro format differs from segments, skipping", "intro", m.introPath)
	}

	current := voicePath
	if !outroJoined {
		faded := filepath.Join(workDir, "faded.mp3")
		if err := runFFmpeg(ctx, m.ffmpegBin, fadeArgs(current, faded, duration)); err != nil {
			return nil, fmt.Errorf("apply fade out: %w", err)
		}
		current = faded
	}

	if m.musicPath != "" {
		if _, err := os.Stat(m.musicPath); err == nil {
			mixed := filepath.Join(workDir, "music.mp3")
			if err := runFFmpeg(ctx, m.ffmpegBin, musicArgs(current, m.musicPath, mixed, m.musicVolume)); err != nil {
				// Music is decoration; keep the voice-only mix.
				m.logger.Warn("background music overlay failed", "error", err)
			} else {
				current = mixed
			}
		}
	}

	if err := os.Rename(current, outputPath); err != nil {
		if err := copyFile(current, outputPath); err != nil {
			return nil, fmt.Errorf("move output: %w", err)
		}
	}

	final, err := probeDuration(ctx, m.ffprobeBin, outputPath)
	if err != nil {
		final = duration
	}

	return &MixResult{Path: outputPath, DurationSeconds: final, SegmentsMixed: len(paths)}, nil
}

// gapArgs synthesizes the inter-segment pause in the segments' own format.
func (m *Mixer) gapArgs(dest, ext string, rate, channels int) []string {
	layout := "stereo"
	if channels == 1 {
		layout = "mono"
	}
	args := []string{
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=%s", rate, layout),
		"-t", fmt.Sprintf("%.3f", float64(m.pauseMs)/1000),
	}
	if ext == ".wav" {
		return append(args, "-c:a", "pcm_s16le", dest)
	}
	return append(args, "-c:a", "libmp3lame", "-b:a", outputBitrate, dest)
}

// concatList builds the ffmpeg concat demuxer input: intro, then each
// segment preceded by a pause, then the outro if present. Intro and outro
// join only when their container matches the segments'; the demuxer cannot
// splice across codecs.
func concatList(introPath, outroPath, gapPath string, paths []string) string {
	var sb strings.Builder
	entry := func(p string) {
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	matches := func(p string) bool {
		return strings.EqualFold(filepath.Ext(p), filepath.Ext(gapPath))
	}

	if introPath != "" && matches(introPath) {
		if _, err := os.Stat(introPath); err == nil {
			entry(introPath)
		}
	}
	for _, p := range paths {
		entry(gapPath)
		entry(p)
	}
	if outroPath != "" && matches(outroPath) {
		if _, err := os.Stat(outroPath); err == nil {
			entry(gapPath)
			entry(outroPath)
		}
	}
	return sb.String()
}

func concatArgs(listPath, dest string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "libmp3lame",
		"-b:a", outputBitrate,
		dest,
	}
}

// fadeArgs fades out the tail when no outro closes the episode.
func fadeArgs(src, dest string, duration float64) []string {
	start := duration - fadeOutSecs
	if start < 0 {
		start = 0
	}
	return []string{
		"-i", src,
		"-af", fmt.Sprintf("afade=t=out:st=%.3f:d=%.3f", start, fadeOutSecs),
		"-c:a", "libmp3lame",
		"-b:a", outputBitrate,
		dest,
	}
}

// musicArgs overlays looped background music under the voice track,
// truncated to the voice duration.
func musicArgs(voicePath, musicPath, dest string, volume float64) []string {
	return []string{
		"-i", voicePath,
		"-stream_loop", "-1",
		"-i", musicPath,
		"-filter_complex",
		fmt.Sprintf("[1:a]volume=%.3f[m];[0:a][m]amix=inputs=2:duration=first:dropout_transition=0", volume),
		"-c:a", "libmp3lame",
		"-b:a", outputBitrate,
		dest,
	}
}

func existingFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
