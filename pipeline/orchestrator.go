// Package pipeline runs the stages that turn a video id into a persisted,
// bias-adjusted sentiment analysis.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/nijaru/yt-sentiment/analysis"
	"github.com/nijaru/yt-sentiment/bias"
	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/nijaru/yt-sentiment/storage"
	"github.com/nijaru/yt-sentiment/youtube"
	"github.com/sirupsen/logrus"
)

const (
	RationaleNoTranscript = "No bias adjustment was made: no transcript was available to analyze."

	streamBuffer = 16
)

type MetadataProvider interface {
	FetchMetadata(ctx context.Context, videoID string) (models.VideoMetadata, error)
}

type TranscriptAcquirer interface {
	Acquire(ctx context.Context, videoID string, opts models.AcquireOptions) models.Transcript
}

type SentimentAnalyzer interface {
	Run(ctx context.Context, text string, prompts analysis.PromptConfig) analysis.Report
}

// Options are the per-run inputs.
type Options struct {
	Language    string `json:"language,omitempty"`
	GeneralOnly bool   `json:"generalOnly,omitempty"`
	Preview     bool   `json:"preview,omitempty"`
	// MaxCostUSD and MaxDurationMinutes override the configured audio budget when positive.
	MaxCostUSD         float64 `json:"maxCostUSD,omitempty"`
	MaxDurationMinutes float64 `json:"maxDurationMinutes,omitempty"`
}

func (o Options) target() repository.Target {
	if o.Preview {
		return repository.TargetPreview
	}
	return repository.TargetLive
}

type Orchestrator struct {
	metadata MetadataProvider
	acquirer TranscriptAcquirer
	analyzer SentimentAnalyzer
	engine   *bias.Engine
	repo     repository.AnalysisRepository
	archiver storage.Archiver

	prompts        analysis.PromptConfig
	audio          config.AudioConfig
	defaultLang    string
	reuseUnchanged bool

	metrics metrics.Collector
	logger  *logrus.Entry
	now     func() time.Time
}

type Option func(*Orchestrator)

func WithArchiver(a storage.Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

func WithPrompts(p analysis.PromptConfig) Option {
	return func(o *Orchestrator) {
		o.prompts = p
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics.OrNoop(c)
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewOrchestrator(
	cfg *config.Config,
	metadata MetadataProvider,
	acquirer TranscriptAcquirer,
	analyzer SentimentAnalyzer,
	engine *bias.Engine,
	repo repository.AnalysisRepository,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		metadata:       metadata,
		acquirer:       acquirer,
		analyzer:       analyzer,
		engine:         engine,
		repo:           repo,
		prompts:        analysis.DefaultPrompts(),
		audio:          cfg.Audio,
		defaultLang:    cfg.Transcript.DefaultLanguage,
		reuseUnchanged: cfg.Pipeline.ReuseUnchanged,
		metrics:        metrics.Noop{},
		logger:         logrus.NewEntry(logrus.StandardLogger()),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.engine == nil {
		o.engine = bias.NewEngine(bias.WithEnabled(cfg.Bias.AdjustmentEnabled), bias.WithMetrics(o.metrics))
	}
	return o
}

// Run executes every stage and returns the persisted result, or an error
// tagged with the stage that failed.
func (o *Orchestrator) Run(ctx context.Context, videoID string, opts Options) (*models.PipelineResult, error) {
	result, err := o.run(ctx, videoID, opts, func(Event) {})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Stream executes a run in the background and reports each completed stage.
// The channel is closed after the final result or error event. Cancelling ctx
// stops delivery.
func (o *Orchestrator) Stream(ctx context.Context, videoID string, opts Options) <-chan Event {
	events := make(chan Event, streamBuffer)

	send := func(ev Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		result, err := o.run(ctx, videoID, opts, send)
		if err != nil {
			var appErr *errors.AppError
			if !errors.As(err, &appErr) {
				appErr = errors.WithStage("", err, nil)
			}
			send(Event{Type: EventError, Stage: Stage(appErr.Stage), Message: appErr.Error(), Err: appErr})
			return
		}
		send(Event{Type: EventResult, Stage: StageDone, Message: "Analysis complete", Result: result})
	}()

	return events
}

// runState carries the values that flow between stages.
type runState struct {
	videoID string
	url     string
	opts    Options
	lang    string
	trail   []string

	prior      *models.PipelineResult
	metadata   models.VideoMetadata
	context    models.CulturalContext
	transcript models.Transcript
	hash       string
	slug       string
	sentiment  models.SentimentResult
	detection  models.BiasDetection
	adjustment models.BiasAdjustment
	reused     bool
	degraded   bool
}

func (s *runState) note(format string, args ...any) {
	s.trail = append(s.trail, fmt.Sprintf(format, args...))
}

func (o *Orchestrator) run(ctx context.Context, videoID string, opts Options, emit func(Event)) (*models.PipelineResult, error) {
	o.metrics.Inc(metrics.PipelineRuns)

	st := &runState{
		videoID: videoID,
		url:     youtube.CanonicalURL(videoID),
		opts:    opts,
		lang:    opts.Language,
	}
	if st.lang == "" {
		st.lang = o.defaultLang
	}

	log := o.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"language": st.lang,
		"preview":  opts.Preview,
		"general":  opts.GeneralOnly,
	})
	log.Info("Starting pipeline run")

	o.lookupPrior(ctx, st, log)

	steps := []struct {
		stage Stage
		fn    func(context.Context, *runState) (string, error)
	}{
		{StageFetchMetadata, o.fetchMetadata},
		{StageExtractContext, o.extractContext},
		{StageAcquireTranscript, o.acquireTranscript},
		{StageNormalizeRecord, o.normalizeRecord},
		{StageAnalyzeAndAdjustBias, o.analyzeAndAdjustBias},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(log, step.stage, err, st)
		}
		msg, err := step.fn(ctx, st)
		if err != nil {
			if ctx.Err() != nil || errors.Fatal(errors.KindOf(err)) {
				return nil, o.fail(log, step.stage, err, st)
			}
			log.WithFields(logrus.Fields{
				"stage": step.stage,
				"kind":  errors.KindOf(err),
				"error": err,
			}).Warn("Stage degraded, continuing")
			st.note("%s: degraded: %v", step.stage, err)
		} else {
			st.note("%s: %s", step.stage, msg)
		}
		emit(Event{Type: EventProgress, Stage: step.stage, Message: msg})
	}

	record := o.buildResult(st)
	if err := o.repo.Save(ctx, opts.target(), record); err != nil {
		return nil, o.fail(log, StagePersist, persistenceError("pipeline.Persist", err, "failed to save analysis"), st)
	}
	st.note("%s: saved %s", StagePersist, st.url)
	emit(Event{Type: EventProgress, Stage: StagePersist, Message: "Analysis saved"})

	if o.archiver != nil {
		if err := o.archiver.ArchiveResult(ctx, opts.target(), record); err != nil {
			log.WithError(err).Warn("Failed to archive result")
			st.note("%s: archive failed: %v", StagePersist, err)
		}
	}

	persisted, err := o.repo.FindByURL(ctx, opts.target(), st.url)
	if err != nil {
		return nil, o.fail(log, StageFetchPersisted, persistenceError("pipeline.FetchPersisted", err, "persisted record missing"), st)
	}
	persisted.Reused = st.reused
	emit(Event{Type: EventProgress, Stage: StageFetchPersisted, Message: "Loaded saved analysis"})

	log.WithFields(logrus.Fields{
		"method":         persisted.Transcript.Method,
		"score":          persisted.Sentiment.SentimentScore,
		"adjusted_score": persisted.BiasAdjustment.BiasAdjustedScore,
		"reused":         st.reused,
	}).Info("Pipeline run complete")
	return persisted, nil
}

func (o *Orchestrator) fail(log *logrus.Entry, stage Stage, err error, st *runState) error {
	o.metrics.Inc(metrics.PipelineFailures)
	st.note("%s: failed: %v", stage, err)
	tagged := errors.WithStage(string(stage), err, st.trail)
	log.WithFields(logrus.Fields{
		"stage": stage,
		"kind":  errors.KindOf(tagged),
		"error": err,
		"trail": errors.Trail(st.trail),
	}).Error("Pipeline run failed")
	return tagged
}

// persistenceError classifies a store failure so it aborts the run. Errors
// that already carry a fatal kind pass through.
func persistenceError(op string, err error, msg string) error {
	if errors.Fatal(errors.KindOf(err)) {
		return err
	}
	return errors.E(errors.KindPersistenceError, op, err, msg)
}

// lookupPrior loads the previous record for slug and analysis reuse. A failed
// lookup only costs the reuse.
func (o *Orchestrator) lookupPrior(ctx context.Context, st *runState, log *logrus.Entry) {
	prior, err := o.repo.FindByURL(ctx, st.opts.target(), st.url)
	switch {
	case err == nil:
		st.prior = prior
		st.note("lookup: found prior record %s", prior.ID)
	case errors.IsKind(err, errors.KindNotFound):
		st.note("lookup: no prior record")
	default:
		log.WithError(err).Warn("Prior record lookup failed")
		st.note("lookup: failed: %v", err)
	}
}

func (o *Orchestrator) fetchMetadata(ctx context.Context, st *runState) (string, error) {
	meta, err := o.metadata.FetchMetadata(ctx, st.videoID)
	if err != nil {
		if !errors.IsKind(err, errors.KindMetadataFetchError) {
			err = errors.E(errors.KindMetadataFetchError, "pipeline.FetchMetadata", err, "metadata fetch failed")
		}
		return "", err
	}
	if meta.VideoID == "" {
		meta.VideoID = st.videoID
	}
	st.metadata = meta
	return fmt.Sprintf("Fetched metadata for %q", meta.Title), nil
}

func (o *Orchestrator) extractContext(_ context.Context, st *runState) (string, error) {
	st.context = ExtractContext(st.metadata, st.lang)
	return fmt.Sprintf("Context: channel %q, %d tags", st.context.Channel, len(st.context.Tags)), nil
}

func (o *Orchestrator) acquireTranscript(ctx context.Context, st *runState) (string, error) {
	st.transcript = o.acquirer.Acquire(ctx, st.videoID, models.AcquireOptions{
		Language:           st.lang,
		AllowAudioFallback: o.audio.FallbackEnabled,
		MaxCostUSD:         positiveOr(st.opts.MaxCostUSD, o.audio.MaxCostUSD),
		MaxDurationMinutes: positiveOr(st.opts.MaxDurationMinutes, o.audio.MaxDurationMinutes),
	})
	st.trail = append(st.trail, st.transcript.DebugTrail...)
	msg := progressForTranscript(st.transcript)
	if !st.transcript.Empty() {
		return msg, nil
	}
	kind := errors.Kind(st.transcript.ErrorKind)
	if kind == errors.KindUnknown {
		kind = errors.KindNoCaptionsAvailable
	}
	return msg, errors.E(kind, "pipeline.AcquireTranscript", nil, st.transcript.Error)
}

func (o *Orchestrator) normalizeRecord(_ context.Context, st *runState) (string, error) {
	st.transcript.VideoID = st.videoID
	st.transcript.Text = NormalizeText(st.transcript.Text)
	if st.transcript.DebugTrail == nil {
		st.transcript.DebugTrail = []string{}
	}
	st.hash = TranscriptHash(st.transcript.Text)
	st.context.CaptionLanguage = st.transcript.LanguageUsed

	if st.prior != nil && st.prior.Slug != "" {
		st.slug = st.prior.Slug
	} else {
		st.slug = Slugify(st.metadata.Title, st.videoID)
	}
	return fmt.Sprintf("Normalized record %s", st.slug), nil
}

func (o *Orchestrator) analyzeAndAdjustBias(ctx context.Context, st *runState) (string, error) {
	if o.canReuse(st) {
		o.metrics.Inc(metrics.AnalysisReused)
		st.reused = true
		st.sentiment = st.prior.Sentiment
		st.detection = st.prior.BiasDetection
		st.adjustment = st.prior.BiasAdjustment
		return "Transcript unchanged, reused previous analysis", nil
	}

	if st.transcript.Empty() {
		st.sentiment = models.DefaultSentiment()
		st.detection = emptyDetection()
		st.adjustment = bias.NoOp(st.sentiment.SentimentScore, RationaleNoTranscript)
		st.note("%s: empty transcript, default sentiment", StageAnalyzeAndAdjustBias)
		return "No transcript to analyze, using default sentiment", nil
	}

	prompts := o.prompts
	if st.opts.GeneralOnly {
		prompts = prompts.ForGeneralSummary()
	}
	report := o.analyzer.Run(ctx, st.transcript.Text, prompts)
	st.trail = append(st.trail, report.Trail...)
	st.sentiment = report.Sentiment
	st.degraded = report.Degraded

	if st.opts.GeneralOnly {
		st.sentiment.BiasIndicators = []string{}
		st.detection = emptyDetection()
		st.adjustment = bias.NoOp(st.sentiment.SentimentScore, bias.RationaleGeneralOnly)
		return "General summary generated", nil
	}

	known, unknown := splitLabels(o.engine.Canonicalize(st.sentiment.BiasIndicators))
	if len(unknown) > 0 {
		st.note("%s: dropped labels outside the vocabulary: %v", StageAnalyzeAndAdjustBias, unknown)
	}
	st.sentiment.BiasIndicators = known
	st.detection = models.BiasDetection{
		BiasesDetected: o.engine.ToImpactObjects(known, bias.Context{
			Title:   st.metadata.Title,
			Score:   st.sentiment.SentimentScore,
			Verdict: st.sentiment.Verdict,
		}),
		UnknownLabels: unknown,
	}
	st.adjustment = o.engine.Adjust(st.sentiment.SentimentScore, known, nil)

	return fmt.Sprintf("Sentiment %.1f adjusted to %.1f (%d biases)",
		st.adjustment.OriginalScore, st.adjustment.BiasAdjustedScore, len(known)), nil
}

// canReuse reports whether the prior analysis was made from the same
// transcript in the same mode and came from real model output.
func (o *Orchestrator) canReuse(st *runState) bool {
	return o.reuseUnchanged &&
		st.prior != nil &&
		!st.prior.Degraded &&
		!st.transcript.Empty() &&
		st.prior.TranscriptHash == st.hash &&
		st.prior.GeneralOnly == st.opts.GeneralOnly
}

func (o *Orchestrator) buildResult(st *runState) *models.PipelineResult {
	now := o.now().UTC()
	result := &models.PipelineResult{
		VideoID:           st.videoID,
		URL:               st.url,
		Slug:              st.slug,
		TranscriptHash:    st.hash,
		Transcript:        st.transcript,
		Sentiment:         st.sentiment,
		BiasDetection:     st.detection,
		BiasAdjustment:    st.adjustment,
		SentimentSnapshot: Snapshot(st.sentiment, st.adjustment, st.transcript.Method),
		CulturalContext:   st.context,
		Metadata:          st.metadata,
		GeneralOnly:       st.opts.GeneralOnly,
		Degraded:          st.degraded,
		Reused:            st.reused,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if st.prior != nil {
		result.ID = st.prior.ID
		result.CreatedAt = st.prior.CreatedAt
	}
	return result
}

func splitLabels(labels []string) (known, unknown []string) {
	known = []string{}
	for _, label := range labels {
		if bias.IsCanonical(label) {
			known = append(known, label)
		} else {
			unknown = append(unknown, label)
		}
	}
	return known, unknown
}

func emptyDetection() models.BiasDetection {
	return models.BiasDetection{BiasesDetected: []models.BiasImpact{}}
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}
