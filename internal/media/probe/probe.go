// Package probe invokes ffprobe to obtain authoritative media durations.
// Grounded on the other_examples ffprobe subprocess idiom (context-bound
// exec.Command, plain-text parse of `-show_entries format=duration` printed
// with `-of default=noprint_wrappers=1:nokey=1`) and on the
// original pipeline's align.py probe_duration_ms, which is the sole
// authority for an episode's audio_duration_ms — never a sum of utterance
// ends.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds how long a probe subprocess may run.
const DefaultTimeout = 30 * time.Second

// DurationMs runs `ffprobe -show_entries format=duration` against path and
// returns the duration in milliseconds.
func DurationMs(ctx context.Context, ffprobePath, path string) (int64, error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("probe: ffprobe %s: %s: %w", path, stderr.String(), err)
	}
	text := strings.TrimSpace(string(out))
	if text == "" || text == "N/A" {
		return 0, fmt.Errorf("probe: ffprobe %s: no duration reported", path)
	}
	seconds, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("probe: ffprobe %s: parse duration %q: %w", path, text, err)
	}
	return int64(seconds * 1000), nil
}

// AudioFormat runs `ffprobe -show_entries stream=sample_rate,channels`
// against path's first audio stream and returns its native sample rate
// and channel count, used by sep's ASR downmix step to resample whatever
// rate the separator emitted.
func AudioFormat(ctx context.Context, ffprobePath, path string) (sampleRate, channels int, err error) {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, execErr := cmd.Output()
	if execErr != nil {
		return 0, 0, fmt.Errorf("probe: ffprobe %s: %s: %w", path, stderr.String(), execErr)
	}

	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "sample_rate":
			sampleRate, _ = strconv.Atoi(value)
		case "channels":
			channels, _ = strconv.Atoi(value)
		}
	}
	if sampleRate == 0 || channels == 0 {
		return 0, 0, fmt.Errorf("probe: ffprobe %s: no audio stream format reported", path)
	}
	return sampleRate, channels, nil
}
