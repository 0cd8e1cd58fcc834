package audio

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// commandContext is swapped out in tests to capture arguments without
// running the real binaries.
var commandContext = exec.CommandContext

func runFFmpeg(ctx context.Context, ffmpegBin string, args []string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	cmd := commandContext(ctx, ffmpegBin, full...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// probeDuration returns the duration of an audio file in seconds.
func probeDuration(ctx context.Context, ffprobeBin, path string) (float64, error) {
	cmd := commandContext(ctx, ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return dur, nil
}

// probeAudioParams returns the sample rate and channel count of the first
// audio stream.
func probeAudioParams(ctx context.Context, ffprobeBin, path string) (int, int, error) {
	cmd := commandContext(ctx, ffprobeBin,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "csv=p=0",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe stream: %w", err)
	}

	fields := strings.Split(strings.TrimSpace(string(output)), ",")
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("parse ffprobe stream %q", strings.TrimSpace(string(output)))
	}
	rate, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse sample rate %q: %w", fields[0], err)
	}
	channels, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse channels %q: %w", fields[1], err)
	}
	return rate, channels, nil
}
