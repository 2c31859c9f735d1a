package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountersConcurrentInc(t *testing.T) {
	c := NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc(LLMCalls)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Get(LLMCalls))
	assert.Equal(t, int64(0), c.Get(LLMErrors))
}

func TestCountersFormat(t *testing.T) {
	c := NewCounters()
	c.Inc(PipelineRuns)
	c.Inc(LLMFallbacks)
	c.Inc(LLMFallbacks)

	assert.Equal(t, "llm_fallbacks 2\npipeline_runs 1\n", c.Format())
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, Noop{}, OrNoop(nil))

	c := NewCounters()
	assert.Same(t, c, OrNoop(c))
}
