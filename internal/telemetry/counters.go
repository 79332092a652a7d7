// Package telemetry implements spec.md §4.13: a 500ms OS-stat poller, a set
// of lock-free global counters, and the InteractionLog/Trace ring buffers.
// Ring buffers are new code grounded on the bounded-deque bookkeeping shape
// of the teacher's jobs.Runner queue; counters use go.uber.org/atomic
// (present in the teacher's indirect requires, promoted to direct use
// here) and are exported via github.com/prometheus/client_golang.
package telemetry

import "go.uber.org/atomic"

// Counters holds the lock-free global atomics §4.13 names.
type Counters struct {
	VectorLatencyMs    atomic.Int64
	EmbeddingLatencyMs atomic.Int64
	LLMGenerationMs    atomic.Int64
	OutputTokens       atomic.Int64
	GraphNodesScanned  atomic.Int64
}

// NewCounters returns a zeroed Counters set.
func NewCounters() *Counters {
	return &Counters{}
}

// AddVectorLatencyMs accumulates vector-search latency.
func (c *Counters) AddVectorLatencyMs(ms int64) { c.VectorLatencyMs.Add(ms) }

// AddEmbeddingLatencyMs accumulates embedding-call latency.
func (c *Counters) AddEmbeddingLatencyMs(ms int64) { c.EmbeddingLatencyMs.Add(ms) }

// AddLLMGenerationMs accumulates generation latency.
func (c *Counters) AddLLMGenerationMs(ms int64) { c.LLMGenerationMs.Add(ms) }

// AddOutputTokens accumulates completion tokens across calls.
func (c *Counters) AddOutputTokens(n int64) { c.OutputTokens.Add(n) }

// AddGraphNodesScanned accumulates the BFS expansion's scanned-node count
// (implements retrieval.ScanCounter).
func (c *Counters) AddGraphNodesScanned(n int64) { c.GraphNodesScanned.Add(n) }

// TokensPerSecond derives tps = output_tokens / llm_generation_ms * 1000,
// returning 0 when the denominator is 0 per spec.md §4.13.
func (c *Counters) TokensPerSecond() float64 {
	ms := c.LLMGenerationMs.Load()
	if ms <= 0 {
		return 0
	}
	return float64(c.OutputTokens.Load()) / float64(ms) * 1000
}
