package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codeintel/internal/codegraph"
)

func TestCounters_TokensPerSecond(t *testing.T) {
	c := NewCounters()
	require.Equal(t, float64(0), c.TokensPerSecond())

	c.AddLLMGenerationMs(2000)
	c.AddOutputTokens(100)
	require.InDelta(t, 50.0, c.TokensPerSecond(), 1e-9)
}

func TestCounters_AddGraphNodesScanned(t *testing.T) {
	c := NewCounters()
	c.AddGraphNodesScanned(3)
	c.AddGraphNodesScanned(4)
	require.Equal(t, int64(7), c.GraphNodesScanned.Load())
}

func TestRing_CapsAtCapacityFIFO(t *testing.T) {
	r := newRing[int]()
	for i := 0; i < ringBufferCapacity+10; i++ {
		r.append(i)
	}
	require.Equal(t, ringBufferCapacity, r.len())

	snap := r.snapshot()
	require.Equal(t, ringBufferCapacity+9, snap[0], "newest entry first")
}

func TestInteractionLog_SnapshotNewestFirst(t *testing.T) {
	log := NewInteractionLog()
	log.Append(codegraph.MissionLog{Timestamp: 1})
	log.Append(codegraph.MissionLog{Timestamp: 2})

	snap := log.Snapshot()
	require.Equal(t, int64(2), snap[0].Timestamp)
	require.Equal(t, int64(1), snap[1].Timestamp)
}

func TestTrace_AppendAndSnapshot(t *testing.T) {
	trace := NewTrace()
	trace.Append(TraceEntry{Kind: TraceKindToolExec, Name: "read_file", DurationMs: 12})
	snap := trace.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "read_file", snap[0].Name)
}
