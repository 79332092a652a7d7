package telemetry

import "codeintel/internal/codegraph"

// TraceEntry is one recorded event: a tool dispatch ({TOOL_EXEC, name,
// duration_ms}) or an agent-loop phase event ({phase, payload}), per
// spec.md §4.9/§4.11's observability contract.
type TraceEntry struct {
	Kind       string      `json:"kind"`
	Name       string      `json:"name,omitempty"`
	Phase      string      `json:"phase,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	DurationMs int64       `json:"duration_ms,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

const TraceKindToolExec = "TOOL_EXEC"

// InteractionLog is the append-only ring buffer of completed missions.
type InteractionLog struct {
	ring *ring[codegraph.MissionLog]
}

// NewInteractionLog creates an empty InteractionLog.
func NewInteractionLog() *InteractionLog {
	return &InteractionLog{ring: newRing[codegraph.MissionLog]()}
}

// Append records one completed mission.
func (l *InteractionLog) Append(entry codegraph.MissionLog) {
	l.ring.append(entry)
}

// Snapshot returns every entry, newest first.
func (l *InteractionLog) Snapshot() []codegraph.MissionLog {
	return l.ring.snapshot()
}

// Len reports the number of retained entries.
func (l *InteractionLog) Len() int {
	return l.ring.len()
}

// Trace is the append-only ring buffer of tool/agent events.
type Trace struct {
	ring *ring[TraceEntry]
}

// NewTrace creates an empty Trace.
func NewTrace() *Trace {
	return &Trace{ring: newRing[TraceEntry]()}
}

// Append records one trace event.
func (t *Trace) Append(entry TraceEntry) {
	t.ring.append(entry)
}

// Snapshot returns every entry, newest first.
func (t *Trace) Snapshot() []TraceEntry {
	return t.ring.snapshot()
}

// Len reports the number of retained entries.
func (t *Trace) Len() int {
	return t.ring.len()
}
