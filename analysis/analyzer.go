// Package analysis runs the model over transcript chunks and merges the
// per-chunk answers into one sentiment result.
package analysis

import (
	"context"
	"fmt"

	"github.com/nijaru/yt-sentiment/llm"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Report is the outcome of analyzing one transcript.
type Report struct {
	Sentiment models.SentimentResult
	Chunks    []models.AnalysisChunk
	Trail     []string
	// Parsed counts chunks whose model output was usable. Degraded is set
	// when none was and Sentiment holds only defaults.
	Parsed   int
	Degraded bool
}

type Analyzer struct {
	llm         llm.Completer
	chunkChars  int
	concurrency int
	metrics     metrics.Collector
	logger      *logrus.Entry
}

type Option func(*Analyzer)

func WithChunkChars(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.chunkChars = n
		}
	}
}

// WithConcurrency sets how many chunks are analyzed at once. Output does not
// depend on it.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(a *Analyzer) {
		a.metrics = metrics.OrNoop(c)
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAnalyzer(completer llm.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		llm:         completer,
		chunkChars:  DefaultChunkChars,
		concurrency: 1,
		metrics:     metrics.Noop{},
		logger:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze returns a fully populated sentiment result for text. Model failures
// degrade to defaults and are never returned as errors.
func (a *Analyzer) Analyze(ctx context.Context, text string, prompts PromptConfig) models.SentimentResult {
	return a.Run(ctx, text, prompts).Sentiment
}

// Run is Analyze with the per-chunk raw outputs and a debug trail.
func (a *Analyzer) Run(ctx context.Context, text string, prompts PromptConfig) Report {
	chunks := SplitChunks(text, a.chunkChars)
	if len(chunks) == 0 {
		return Report{
			Sentiment: models.DefaultSentiment(),
			Chunks:    []models.AnalysisChunk{},
			Trail:     []string{"analysis: empty transcript, using default sentiment"},
		}
	}

	results := make([]*chunkResult, len(chunks))
	trails := make([][]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range chunks {
		g.Go(func() error {
			res, raw, trail := a.analyzeChunk(gctx, chunks[i], len(chunks), prompts)
			results[i] = res
			chunks[i].RawLLMOutput = raw
			trails[i] = trail
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Sentiment: aggregate(results),
		Chunks:    chunks,
	}
	parsed := 0
	for i := range chunks {
		report.Trail = append(report.Trail, trails[i]...)
		if results[i] != nil {
			parsed++
		}
	}
	report.Parsed = parsed
	report.Degraded = parsed == 0
	report.Trail = append(report.Trail, fmt.Sprintf("analysis: %d of %d chunks parsed", parsed, len(chunks)))

	a.logger.WithFields(logrus.Fields{
		"chunks": len(chunks),
		"parsed":   parsed,
		"degraded": report.Degraded,
		"score":    report.Sentiment.SentimentScore,
	}).Info("Transcript analyzed")
	return report
}

func (a *Analyzer) analyzeChunk(ctx context.Context, chunk models.AnalysisChunk, total int, prompts PromptConfig) (*chunkResult, string, []string) {
	var trail []string
	label := fmt.Sprintf("analysis chunk %d/%d", chunk.Index+1, total)

	res, raw, err := a.attempt(ctx, prompts.System, prompts.Primary, chunk.Text)
	if err == nil {
		return res, raw, append(trail, label+": parsed")
	}
	trail = append(trail, fmt.Sprintf("%s: primary prompt failed: %v", label, err))

	if prompts.PrimaryIsFallback || prompts.Fallback == "" || ctx.Err() != nil {
		return nil, raw, append(trail, label+": using defaults")
	}

	a.metrics.Inc(metrics.LLMFallbacks)
	res, fallbackRaw, err := a.attempt(ctx, prompts.System, prompts.Fallback, chunk.Text)
	if fallbackRaw != "" {
		raw = fallbackRaw
	}
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"chunk": chunk.Index,
			"error": err,
		}).Warn("Chunk analysis failed after fallback prompt")
		return nil, raw, append(trail, fmt.Sprintf("%s: fallback prompt failed: %v; using defaults", label, err))
	}
	return res, raw, append(trail, label+": parsed with fallback prompt")
}

func (a *Analyzer) attempt(ctx context.Context, system, prompt, text string) (*chunkResult, string, error) {
	a.metrics.Inc(metrics.LLMCalls)
	raw, err := a.llm.Complete(ctx, system, prompt, text)
	if err != nil {
		a.metrics.Inc(metrics.LLMErrors)
		return nil, "", err
	}
	res, err := parseChunk(raw)
	if err != nil {
		a.metrics.Inc(metrics.LLMParseFailures)
		return nil, raw, err
	}
	return &res, raw, nil
}
