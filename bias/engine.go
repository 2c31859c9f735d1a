package bias

import (
	"fmt"
	"math"
	"strings"

	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
)

const (
	minScore = 0.0
	maxScore = 10.0

	RationaleNoAdjustment = "No bias adjustment was made: none of the detected biases shift the score."
	RationaleDisabled     = "No bias adjustment was made: bias adjustment is disabled."
	RationaleGeneralOnly  = "No bias adjustment was made: only a general summary was requested."
)

// Context describes the analysis the biases were found in.
type Context struct {
	Title   string
	Score   float64
	Verdict models.Verdict
}

// Engine turns canonical bias labels into impacts and an adjusted score.
type Engine struct {
	enabled bool
	metrics metrics.Collector
}

type Option func(*Engine)

// WithEnabled toggles score adjustment. Detection still runs when disabled.
func WithEnabled(enabled bool) Option {
	return func(e *Engine) {
		e.enabled = enabled
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = metrics.OrNoop(c)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{enabled: true, metrics: metrics.Noop{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Canonicalize(labels []string) []string {
	return Canonicalize(labels)
}

// ToImpactObjects builds one impact per vocabulary label. Labels outside the
// vocabulary carry no known influence and are skipped.
func (e *Engine) ToImpactObjects(labels []string, ctx Context) []models.BiasImpact {
	impacts := make([]models.BiasImpact, 0, len(labels))
	for _, label := range labels {
		entry, ok := Lookup(label)
		if !ok {
			continue
		}
		impacts = append(impacts, models.BiasImpact{
			Name:               entry.Label,
			Severity:           entry.Severity,
			ImpactOnExperience: entry.Impact,
			ScoreInfluence:     entry.Influence,
			Explanation:        explain(entry, ctx),
		})
	}
	return impacts
}

func explain(entry Entry, ctx Context) string {
	direction := "inflate"
	if entry.Influence < 0 {
		direction = "deflate"
	}
	subject := "the review"
	if title := strings.TrimSpace(ctx.Title); title != "" {
		subject = fmt.Sprintf("the review of %q", title)
	}
	return fmt.Sprintf("%s severity %s likely to %s %s (scored %.1f, %s) by about %.1f points.",
		capitalize(string(entry.Severity)), entry.Label, direction, subject, ctx.Score, verdictOrMixed(ctx.Verdict), math.Abs(entry.Influence))
}

// Adjust subtracts the summed influence of the labels from originalScore,
// clamps to [0,10] and rounds to one decimal. An upstream adjustment keeps its
// rationale unless it is empty or claims no change while the labels imply one.
// The returned rationale is never empty.
func (e *Engine) Adjust(originalScore float64, labels []string, upstream *models.BiasAdjustment) models.BiasAdjustment {
	original := clamp(round1(originalScore))

	if !e.enabled {
		return models.BiasAdjustment{
			OriginalScore:     original,
			BiasAdjustedScore: original,
			Rationale:         RationaleDisabled,
		}
	}

	var sum float64
	var contributors []Entry
	for _, label := range labels {
		entry, ok := Lookup(label)
		if !ok || entry.Influence == 0 {
			continue
		}
		sum += entry.Influence
		contributors = append(contributors, entry)
	}

	adjusted := round1(clamp(original - sum))
	adj := models.BiasAdjustment{
		OriginalScore:        original,
		BiasAdjustedScore:    adjusted,
		TotalScoreAdjustment: round1(adjusted - original),
	}

	if upstream != nil && keepUpstreamRationale(*upstream, adj.TotalScoreAdjustment) {
		adj.Rationale = strings.TrimSpace(upstream.Rationale)
	} else {
		adj.Rationale = rationale(contributors, round1(sum), adj)
	}

	if adj.TotalScoreAdjustment != 0 {
		e.metrics.Inc(metrics.BiasAdjustments)
	}
	return adj
}

// NoOp returns an adjustment that leaves score untouched with the given reason.
func NoOp(score float64, reason string) models.BiasAdjustment {
	score = clamp(round1(score))
	if strings.TrimSpace(reason) == "" {
		reason = RationaleNoAdjustment
	}
	return models.BiasAdjustment{
		OriginalScore:     score,
		BiasAdjustedScore: score,
		Rationale:         reason,
	}
}

func keepUpstreamRationale(upstream models.BiasAdjustment, total float64) bool {
	if strings.TrimSpace(upstream.Rationale) == "" {
		return false
	}
	upstreamNoOp := upstream.TotalScoreAdjustment == 0
	return !upstreamNoOp || total == 0
}

func rationale(contributors []Entry, sum float64, adj models.BiasAdjustment) string {
	if len(contributors) == 0 || sum == 0 {
		return RationaleNoAdjustment
	}
	parts := make([]string, 0, len(contributors))
	for _, c := range contributors {
		parts = append(parts, fmt.Sprintf("%s (%+.1f)", c.Label, c.Influence))
	}
	return fmt.Sprintf("Detected %s with a combined influence of %+.1f; score moved from %.1f to %.1f.",
		joinList(parts), sum, adj.OriginalScore, adj.BiasAdjustedScore)
}

func joinList(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func clamp(score float64) float64 {
	if math.IsNaN(score) {
		return models.DefaultScore
	}
	return math.Max(minScore, math.Min(maxScore, score))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func verdictOrMixed(v models.Verdict) models.Verdict {
	if v == "" {
		return models.VerdictMixed
	}
	return v
}
