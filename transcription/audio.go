package transcription

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/youtube"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EstimateCost returns the transcription price for a video of the given length.
func EstimateCost(durationMinutes, ratePerMinute float64) float64 {
	return math.Round(durationMinutes*ratePerMinute*10000) / 10000
}

// checkBudget rejects a transcription whose estimated cost or duration is
// over the caller's limits. It runs before any paid call.
func checkBudget(durationMinutes, ratePerMinute float64, opts models.AcquireOptions) error {
	const op = "transcription.checkBudget"

	if opts.MaxDurationMinutes > 0 && durationMinutes > opts.MaxDurationMinutes {
		return errors.E(errors.KindDurationBudgetExceeded, op, nil,
			fmt.Sprintf("video is %.1f minutes, limit is %.1f minutes", durationMinutes, opts.MaxDurationMinutes))
	}
	cost := EstimateCost(durationMinutes, ratePerMinute)
	if cost > opts.MaxCostUSD {
		return errors.E(errors.KindCostBudgetExceeded, op, nil,
			fmt.Sprintf("estimated cost $%.4f exceeds budget $%.4f (%.1f minutes at $%.4f/minute)",
				cost, opts.MaxCostUSD, durationMinutes, ratePerMinute))
	}
	return nil
}

func (a *Acquirer) transcribeAudio(ctx context.Context, videoID, lang string, opts models.AcquireOptions, t *trail) (models.Transcript, error) {
	const op = "transcription.transcribeAudio"

	videoURL := youtube.CanonicalURL(videoID)
	log := a.logger.WithFields(logrus.Fields{"video_id": videoID, "language": lang})

	duration, err := a.audio.Duration(ctx, videoURL)
	if err != nil {
		t.addf("audio: duration lookup: %v", err)
		return models.Transcript{}, err
	}
	cost := EstimateCost(duration, a.audioCfg.RatePerMinute)
	if err := checkBudget(duration, a.audioCfg.RatePerMinute, opts); err != nil {
		a.metrics.Inc(metrics.AudioBudgetRejections)
		t.addf("audio: %v", err)
		return models.Transcript{}, err
	}
	t.addf("audio: %.1f minutes, estimated $%.4f", duration, cost)

	dir, err := os.MkdirTemp(a.tempDir, "audio-"+videoID+"-")
	if err != nil {
		return models.Transcript{}, errors.Internal(op, err, "failed to create temp directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warn("Failed to remove audio temp directory")
		}
	}()

	path, err := a.audio.Download(ctx, videoURL, dir, youtube.DownloadOptions{
		MaxDurationMinutes: opts.MaxDurationMinutes,
		Quality:            a.audioCfg.Quality,
	})
	if err != nil {
		t.addf("audio: download: %v", err)
		return models.Transcript{}, err
	}

	size, err := a.SizeFunc(path)
	if err != nil {
		return models.Transcript{}, errors.Internal(op, err, "failed to stat downloaded audio")
	}

	files := []string{path}
	if size > a.audioCfg.ChunkThresholdBytes {
		files, err = a.audio.Split(ctx, path, dir, a.audioCfg.ChunkSeconds)
		if err != nil {
			t.addf("audio: split: %v", err)
			return models.Transcript{}, err
		}
		t.addf("audio: split %d bytes into %d segments", size, len(files))
	}

	text, err := a.transcribeFiles(ctx, files, lang)
	if err != nil {
		t.addf("audio: transcribe: %v", err)
		return models.Transcript{}, err
	}
	if text == "" {
		return models.Transcript{}, errors.E(errors.KindTranscriptionProviderError, op, nil, "transcription returned no text")
	}
	t.add("audio: ok")

	return models.Transcript{
		Text:            text,
		Method:          models.MethodAudio,
		LanguageUsed:    lang,
		CostUSD:         cost,
		DurationMinutes: duration,
	}, nil
}

// transcribeFiles transcribes segments concurrently and joins them in their
// original order.
func (a *Acquirer) transcribeFiles(ctx context.Context, files []string, lang string) (string, error) {
	results := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.audioCfg.TranscribeConcurrency)
	for i, file := range files {
		g.Go(func() error {
			text, err := a.transcriber.Transcribe(gctx, file, lang)
			if err != nil {
				return err
			}
			a.metrics.Inc(metrics.AudioTranscriptions)
			results[i] = strings.TrimSpace(text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	parts := results[:0:0]
	for _, r := range results {
		if r != "" {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, " "), nil
}
