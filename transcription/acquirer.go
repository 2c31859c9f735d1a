// Package transcription obtains transcript text for a video, preferring free
// captions and falling back to budgeted audio transcription.
package transcription

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/youtube"
	"github.com/sirupsen/logrus"
)

// CaptionSource returns caption entries for one language of a video.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID, lang string) ([]models.CaptionEntry, error)
}

// AudioSource measures, downloads and splits the audio of a video.
type AudioSource interface {
	Duration(ctx context.Context, videoURL string) (float64, error)
	Download(ctx context.Context, videoURL, dir string, opts youtube.DownloadOptions) (string, error)
	Split(ctx context.Context, path, dir string, segmentSeconds int) ([]string, error)
}

// Transcriber converts an audio file to text. Each call is billed.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath, language string) (string, error)
}

type Acquirer struct {
	captions    CaptionSource
	audio       AudioSource
	transcriber Transcriber

	transcriptCfg config.TranscriptConfig
	audioCfg      config.AudioConfig
	tempDir       string

	// SizeFunc reports the size of a downloaded file.
	SizeFunc func(path string) (int64, error)

	metrics metrics.Collector
	logger  *logrus.Entry
}

type Option func(*Acquirer)

// WithAudio enables the paid audio fallback.
func WithAudio(audio AudioSource, transcriber Transcriber) Option {
	return func(a *Acquirer) {
		a.audio = audio
		a.transcriber = transcriber
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(a *Acquirer) {
		a.metrics = metrics.OrNoop(c)
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithTempDir(dir string) Option {
	return func(a *Acquirer) {
		a.tempDir = dir
	}
}

func NewAcquirer(captions CaptionSource, transcriptCfg config.TranscriptConfig, audioCfg config.AudioConfig, opts ...Option) *Acquirer {
	a := &Acquirer{
		captions:      captions,
		transcriptCfg: transcriptCfg,
		audioCfg:      audioCfg,
		tempDir:       os.TempDir(),
		SizeFunc:      fileSize,
		metrics:       metrics.Noop{},
		logger:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.transcriptCfg.RaceWidth <= 0 {
		a.transcriptCfg.RaceWidth = 4
	}
	if a.audioCfg.TranscribeConcurrency <= 0 {
		a.audioCfg.TranscribeConcurrency = 3
	}
	return a
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Acquire returns the transcript of a video. It never returns an error: any
// failure yields a transcript with method none, an error message and the
// debug trail of every attempt.
func (a *Acquirer) Acquire(ctx context.Context, videoID string, opts models.AcquireOptions) models.Transcript {
	lang := normalizeLanguage(opts.Language)
	if lang == "" {
		lang = normalizeLanguage(a.transcriptCfg.DefaultLanguage)
	}
	opts = a.withBudgetDefaults(opts)

	log := a.logger.WithFields(logrus.Fields{"video_id": videoID, "language": lang})
	t := &trail{}

	transcript, err := a.acquire(ctx, videoID, lang, opts, t)
	if err != nil {
		log.WithFields(logrus.Fields{
			"error": err,
			"kind":  errors.KindOf(err),
		}).Warn("Transcript acquisition failed")
		t.addf("acquire: failed: %v", err)
		kind := errors.KindOf(err)
		if kind == errors.KindUnknown {
			kind = errors.KindNoCaptionsAvailable
		}
		return models.Transcript{
			VideoID:    videoID,
			Method:     models.MethodNone,
			Error:      "transcript acquisition failed: " + err.Error(),
			ErrorKind:  string(kind),
			DebugTrail: t.items(),
		}
	}

	transcript.VideoID = videoID
	transcript.DebugTrail = t.items()
	log.WithFields(logrus.Fields{
		"method":        transcript.Method,
		"language_used": transcript.LanguageUsed,
		"cost_usd":      transcript.CostUSD,
		"chars":         len(transcript.Text),
	}).Info("Transcript acquired")
	return transcript
}

func (a *Acquirer) withBudgetDefaults(opts models.AcquireOptions) models.AcquireOptions {
	if opts.MaxCostUSD <= 0 {
		opts.MaxCostUSD = a.audioCfg.MaxCostUSD
	}
	if opts.MaxDurationMinutes <= 0 {
		opts.MaxDurationMinutes = a.audioCfg.MaxDurationMinutes
	}
	return opts
}

func (a *Acquirer) acquire(ctx context.Context, videoID, lang string, opts models.AcquireOptions, t *trail) (models.Transcript, error) {
	const op = "transcription.Acquire"

	text, duration, err := a.fetchCaptionText(ctx, videoID, lang)
	switch {
	case err == nil && text != "":
		t.addf("captions[%s]: ok", lang)
		return captionTranscript(text, lang, duration), nil
	case isFatalVideoError(err):
		t.addf("captions[%s]: %v", lang, err)
		return models.Transcript{}, err
	case err != nil:
		t.addf("captions[%s]: %v", lang, err)
	default:
		t.addf("captions[%s]: empty", lang)
	}

	fallbacks := a.fallbackLanguages(lang)
	raced, rest := fallbacks, []string(nil)
	if len(fallbacks) > a.transcriptCfg.RaceWidth {
		raced, rest = fallbacks[:a.transcriptCfg.RaceWidth], fallbacks[a.transcriptCfg.RaceWidth:]
	}

	if win, err := a.race(ctx, videoID, raced, t); err != nil {
		return models.Transcript{}, err
	} else if win != nil {
		return captionTranscript(win.text, win.lang, win.duration), nil
	}

	for _, l := range rest {
		if err := ctx.Err(); err != nil {
			return models.Transcript{}, err
		}
		text, duration, err := a.fetchCaptionText(ctx, videoID, l)
		switch {
		case err == nil && text != "":
			t.addf("captions[%s]: ok", l)
			return captionTranscript(text, l, duration), nil
		case isFatalVideoError(err):
			t.addf("captions[%s]: %v", l, err)
			return models.Transcript{}, err
		case err != nil:
			t.addf("captions[%s]: %v", l, err)
		default:
			t.addf("captions[%s]: empty", l)
		}
	}

	if !opts.AllowAudioFallback || !a.audioCfg.FallbackEnabled || a.audio == nil || a.transcriber == nil {
		t.add("audio: fallback disabled")
		return models.Transcript{}, errors.E(errors.KindNoCaptionsAvailable, op, nil, "no captions available in any language")
	}

	return a.transcribeAudio(ctx, videoID, lang, opts, t)
}

func (a *Acquirer) fetchCaptionText(ctx context.Context, videoID, lang string) (string, float64, error) {
	a.metrics.Inc(metrics.CaptionAttempts)
	entries, err := a.captions.FetchCaptions(ctx, videoID, lang)
	if err != nil {
		return "", 0, err
	}
	text, duration := joinCaptions(entries)
	return text, duration, nil
}

// joinCaptions concatenates trimmed entries with single spaces and returns the
// covered duration in minutes.
func joinCaptions(entries []models.CaptionEntry) (string, float64) {
	parts := make([]string, 0, len(entries))
	var end float64
	for _, e := range entries {
		if text := strings.TrimSpace(e.Text); text != "" {
			parts = append(parts, text)
		}
		if e.Start+e.Duration > end {
			end = e.Start + e.Duration
		}
	}
	return strings.Join(parts, " "), end / 60
}

func captionTranscript(text, lang string, durationMinutes float64) models.Transcript {
	return models.Transcript{
		Text:            text,
		Method:          models.MethodCaptions,
		LanguageUsed:    lang,
		CostUSD:         0,
		DurationMinutes: durationMinutes,
	}
}

func (a *Acquirer) fallbackLanguages(requested string) []string {
	out := make([]string, 0, len(a.transcriptCfg.FallbackLanguages))
	seen := map[string]bool{requested: true}
	for _, l := range a.transcriptCfg.FallbackLanguages {
		l = normalizeLanguage(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// normalizeLanguage reduces a regional tag to its base code so "en-US" and
// "en" are one caption attempt. Unparsable input is only lowercased.
func normalizeLanguage(tag string) string {
	if base := baseLanguage(tag); base != "" {
		return base
	}
	return strings.ToLower(strings.TrimSpace(tag))
}

func isFatalVideoError(err error) bool {
	return errors.IsKind(err, errors.KindVideoUnavailable) || errors.IsKind(err, errors.KindPrivateVideo)
}

// trail collects debug messages. It is safe for concurrent use.
type trail struct {
	mu  sync.Mutex
	buf []string
}

func (t *trail) add(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, msg)
}

func (t *trail) addf(format string, args ...any) {
	t.add(fmt.Sprintf(format, args...))
}

func (t *trail) items() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.buf...)
}
