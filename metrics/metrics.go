// Package metrics provides an injectable counter collector for pipeline components.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counter names recorded by the pipeline.
const (
	CaptionAttempts       = "caption_attempts"
	CaptionRaceWins       = "caption_race_wins"
	AudioTranscriptions   = "audio_transcriptions"
	AudioBudgetRejections = "audio_budget_rejections"
	LLMCalls              = "llm_calls"
	LLMFallbacks          = "llm_fallbacks"
	LLMErrors             = "llm_errors"
	LLMParseFailures      = "llm_parse_failures"
	BiasAdjustments       = "bias_adjustments"
	PipelineRuns          = "pipeline_runs"
	PipelineFailures      = "pipeline_failures"
	AnalysisReused        = "analysis_reused"
)

// Collector receives counter increments. Components take one at construction
// time instead of touching process-wide state.
type Collector interface {
	Inc(name string)
}

// Noop discards every increment.
type Noop struct{}

func (Noop) Inc(string) {}

// Counters is an in-memory Collector safe for concurrent use.
type Counters struct {
	mu     sync.RWMutex
	values map[string]*atomic.Int64
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]*atomic.Int64)}
}

func (c *Counters) Inc(name string) {
	c.counter(name).Add(1)
}

// Get returns the current value of a counter, zero when it was never incremented.
func (c *Counters) Get(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[name]; ok {
		return v.Load()
	}
	return 0
}

// Snapshot copies all counters.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.values))
	for k, v := range c.values {
		out[k] = v.Load()
	}
	return out
}

// Format renders counters as "name value" lines sorted by name.
func (c *Counters) Format() string {
	snap := c.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, snap[k])
	}
	return sb.String()
}

func (c *Counters) counter(name string) *atomic.Int64 {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok = c.values[name]; ok {
		return v
	}
	v = new(atomic.Int64)
	c.values[name] = v
	return v
}

// OrNoop returns c, or a Noop collector when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}
