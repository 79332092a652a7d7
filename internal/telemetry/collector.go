package telemetry

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

const pollInterval = 500 * time.Millisecond

// Snapshot is one polled reading of process + derived metrics.
type Snapshot struct {
	CPUPercent         float64
	RSSBytes           uint64
	VectorLatencyMs    int64
	EmbeddingLatencyMs int64
	LLMGenerationMs    int64
	OutputTokens       int64
	GraphNodesScanned  int64
	TokensPerSecond    float64
}

// Collector polls process stats every 500ms on a dedicated goroutine
// (spec.md §4.13), exposing the latest Snapshot and Prometheus gauges.
type Collector struct {
	counters *Counters
	proc     *process.Process
	latest   atomicSnapshot

	cpuGauge    prometheus.Gauge
	rssGauge    prometheus.Gauge
	tpsGauge    prometheus.Gauge
	scansGauge  prometheus.Gauge
	tokensGauge prometheus.Gauge
}

// NewCollector builds a Collector for the current process.
func NewCollector(counters *Counters, registerer prometheus.Registerer) (*Collector, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	c := &Collector{
		counters: counters,
		proc:     proc,
		cpuGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeintel_process_cpu_percent", Help: "Process CPU utilization percent.",
		}),
		rssGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeintel_process_rss_bytes", Help: "Process resident set size in bytes.",
		}),
		tpsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeintel_llm_tokens_per_second", Help: "Derived output tokens per second.",
		}),
		scansGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeintel_graph_nodes_scanned_total", Help: "Cumulative graph nodes scanned during retrieval expansion.",
		}),
		tokensGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeintel_llm_output_tokens_total", Help: "Cumulative LLM output tokens.",
		}),
	}
	if registerer != nil {
		for _, g := range []prometheus.Gauge{c.cpuGauge, c.rssGauge, c.tpsGauge, c.scansGauge, c.tokensGauge} {
			if err := registerer.Register(g); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Run polls on a 500ms cadence until ctx is canceled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

func (c *Collector) poll() {
	cpuPercent, _ := c.proc.CPUPercent()
	memInfo, err := c.proc.MemoryInfo()
	var rss uint64
	if err == nil && memInfo != nil {
		rss = memInfo.RSS
	}

	snap := Snapshot{
		CPUPercent:         cpuPercent,
		RSSBytes:           rss,
		VectorLatencyMs:    c.counters.VectorLatencyMs.Load(),
		EmbeddingLatencyMs: c.counters.EmbeddingLatencyMs.Load(),
		LLMGenerationMs:    c.counters.LLMGenerationMs.Load(),
		OutputTokens:       c.counters.OutputTokens.Load(),
		GraphNodesScanned:  c.counters.GraphNodesScanned.Load(),
		TokensPerSecond:    c.counters.TokensPerSecond(),
	}
	c.latest.store(snap)

	c.cpuGauge.Set(snap.CPUPercent)
	c.rssGauge.Set(float64(snap.RSSBytes))
	c.tpsGauge.Set(snap.TokensPerSecond)
	c.scansGauge.Set(float64(snap.GraphNodesScanned))
	c.tokensGauge.Set(float64(snap.OutputTokens))
}

// Latest returns the most recently polled snapshot.
func (c *Collector) Latest() Snapshot {
	return c.latest.load()
}
