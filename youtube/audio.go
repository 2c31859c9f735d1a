package youtube

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/sirupsen/logrus"
)

// DownloadOptions limits an audio download.
type DownloadOptions struct {
	MaxDurationMinutes float64
	Quality            string
}

// AudioClient shells out to yt-dlp and ffmpeg.
type AudioClient struct {
	YtDlpPath  string
	FFmpegPath string
	// RunFunc executes a command and returns its combined output.
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)
	policy  retry.Policy
	logger  *logrus.Entry
}

func NewAudioClient(ytDlpPath, ffmpegPath string, policy retry.Policy, logger *logrus.Entry) *AudioClient {
	if ytDlpPath == "" {
		ytDlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	policy.Logger = logger
	return &AudioClient{
		YtDlpPath:  ytDlpPath,
		FFmpegPath: ffmpegPath,
		RunFunc:    runCommand,
		policy:     policy,
		logger:     logger,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s failed: %w, output: %s", filepath.Base(name), err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// Duration returns the length of the video in minutes without downloading it.
func (a *AudioClient) Duration(ctx context.Context, videoURL string) (float64, error) {
	const op = "youtube.Duration"

	out, err := a.run(ctx, op, a.YtDlpPath,
		"--skip-download", "--no-warnings", "--no-playlist",
		"--print", "duration", videoURL)
	if err != nil {
		return 0, err
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	seconds, err := strconv.ParseFloat(strings.TrimSpace(lines[len(lines)-1]), 64)
	if err != nil || seconds <= 0 {
		return 0, errors.E(errors.KindTranscriptionProviderError, op, err, "could not determine video duration")
	}
	return seconds / 60, nil
}

// Download extracts the audio track into dir and returns the file path.
func (a *AudioClient) Download(ctx context.Context, videoURL, dir string, opts DownloadOptions) (string, error) {
	const op = "youtube.Download"

	quality := opts.Quality
	if quality == "" {
		quality = "64K"
	}
	args := []string{
		"--no-warnings", "--no-playlist",
		"-x", "--audio-format", "mp3", "--audio-quality", quality,
		"-o", filepath.Join(dir, "audio.%(ext)s"),
	}
	if opts.MaxDurationMinutes > 0 {
		args = append(args, "--match-filter", fmt.Sprintf("duration <= %d", int(opts.MaxDurationMinutes*60)))
	}
	args = append(args, videoURL)

	if _, err := a.run(ctx, op, a.YtDlpPath, args...); err != nil {
		return "", err
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "audio.*"))
	if len(matches) == 0 {
		return "", errors.E(errors.KindTranscriptionProviderError, op, nil, "audio download produced no file")
	}
	sort.Strings(matches)
	return matches[0], nil
}

// Split cuts the audio file into segments of the given length and returns
// their paths in playback order.
func (a *AudioClient) Split(ctx context.Context, path, dir string, segmentSeconds int) ([]string, error) {
	const op = "youtube.Split"

	ext := filepath.Ext(path)
	pattern := filepath.Join(dir, "chunk_%03d"+ext)
	_, err := a.run(ctx, op, a.FFmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", path,
		"-f", "segment", "-segment_time", strconv.Itoa(segmentSeconds),
		"-c", "copy", "-reset_timestamps", "1",
		pattern)
	if err != nil {
		return nil, err
	}

	chunks, _ := filepath.Glob(filepath.Join(dir, "chunk_*"+ext))
	if len(chunks) == 0 {
		return nil, errors.E(errors.KindTranscriptionProviderError, op, nil, "audio split produced no chunks")
	}
	sort.Strings(chunks)
	return chunks, nil
}

func (a *AudioClient) run(ctx context.Context, op, name string, args ...string) ([]byte, error) {
	return retry.Do(ctx, a.policy, op, func(ctx context.Context) ([]byte, error) {
		out, err := a.RunFunc(ctx, name, args...)
		if err == nil {
			return out, nil
		}
		if classified := classifyToolError(op, string(out)+" "+err.Error()); classified != nil {
			return nil, classified
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, errors.E(errors.KindInternal, op, err, filepath.Base(name)+" is not installed")
		}
		a.logger.WithFields(logrus.Fields{
			"op":    op,
			"tool":  filepath.Base(name),
			"error": err,
		}).Warn("External tool failed")
		failure := errors.E(errors.KindTranscriptionProviderError, op, err, "external tool failed")
		if isNetworkFailure(string(out) + " " + err.Error()) {
			return nil, retry.Transient(failure)
		}
		return nil, failure
	})
}

// networkMarkers are output fragments from yt-dlp and ffmpeg that point at a
// failure worth retrying. Anything else (bad flags, unsupported formats) is permanent.
var networkMarkers = []string{
	"http error 5",
	"http error 429",
	"too many requests",
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure in name resolution",
	"network is unreachable",
	"unable to download webpage",
	"read error",
}

func isNetworkFailure(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range networkMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func classifyToolError(op, output string) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "private video"):
		return errors.E(errors.KindPrivateVideo, op, nil, "video is private")
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "has been removed"):
		return errors.E(errors.KindVideoUnavailable, op, nil, "video unavailable")
	case strings.Contains(lower, "does not pass filter"):
		return errors.E(errors.KindDurationBudgetExceeded, op, nil, "video longer than allowed duration")
	}
	return nil
}
