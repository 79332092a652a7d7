package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeintel/internal/codegraph"
	"codeintel/internal/llm"
	"codeintel/internal/symbols"
	"codeintel/internal/telemetry"
	"codeintel/internal/tools"
)

const defaultMaxSteps = 10

// Event is one {phase, payload} item streamed to the caller and recorded
// in the trace ring buffer (spec.md §4.11).
type Event struct {
	Phase   string      `json:"phase"`
	Payload interface{} `json:"payload"`
}

const (
	PhaseStartup = "STARTUP"
	PhaseThought = "THOUGHT"
	PhaseError   = "ERROR"
	PhaseFinal   = "FINAL"
	PhaseTool    = "TOOL_EXEC"
	PhaseAST     = "AST_SCAN"
)

// EventWriter streams events to the mission's caller, in happens-before
// emission order.
type EventWriter interface {
	Write(Event)
}

// Loop executes the bounded ReAct state machine of spec.md §4.11. The
// context block is assembled by the caller (internal/api) via
// internal/retrieval before Run is invoked, keeping the loop itself
// independent of VectorIndex/GraphStore wiring.
type Loop struct {
	LLM        *llm.Client
	Tools      *tools.Registry
	Log        *telemetry.InteractionLog
	Trace      *telemetry.Trace
	MaxSteps   int
}

// NewLoop builds a Loop with spec defaults (max_steps = 10).
func NewLoop(client *llm.Client, registry *tools.Registry, log *telemetry.InteractionLog, trace *telemetry.Trace) *Loop {
	return &Loop{LLM: client, Tools: registry, Log: log, Trace: trace, MaxSteps: defaultMaxSteps}
}

// Run executes one mission: project_id, the user prompt, a context block
// already assembled by the caller's RetrievalEngine call, and an event
// writer. It returns the final answer text.
func (l *Loop) Run(ctx context.Context, projectID, prompt, contextBlock string, writer EventWriter) string {
	maxSteps := l.MaxSteps
	if maxSteps == 0 {
		maxSteps = defaultMaxSteps
	}

	start := time.Now()
	var monologue strings.Builder
	visited := make(map[string]bool)

	var lastResult llm.GenerateResult
	finalAnswer := ""

	l.emit(writer, Event{Phase: PhaseStartup, Payload: projectID})

	for step := 1; step <= maxSteps; step++ {
		systemPrompt := assemblePrompt(l.Tools, contextBlock, prompt, monologue.String())

		result, err := l.LLM.GenerateTextElite(ctx, systemPrompt)
		if err != nil {
			l.emit(writer, Event{Phase: PhaseError, Payload: err.Error()})
			finalAnswer = "ERROR: " + err.Error()
			break
		}
		lastResult = result

		action := ExtractJSON(result.Text)
		l.emit(writer, Event{Phase: PhaseThought, Payload: result.Text})

		switch action.Kind {
		case codegraph.ActionInvalid:
			monologue.WriteString("[SYSTEM: invalid JSON]\n")
			continue
		case codegraph.ActionFinal:
			l.emit(writer, Event{Phase: PhaseFinal, Payload: action.Answer})
			finalAnswer = action.Answer
			goto done
		}

		hash := HashAction(action)
		if visited[hash] {
			monologue.WriteString("[SYSTEM: loop detected — change strategy]\n")
			continue
		}
		visited[hash] = true

		observation := l.executeTool(projectID, action)
		l.emit(writer, Event{Phase: PhaseTool, Payload: action.ToolName})
		monologue.WriteString(fmt.Sprintf("[STEP %d RESULT FROM %s]\n%s\n", step, action.ToolName, observation))

		if action.ToolName == "read_file" && !strings.HasPrefix(observation, "ERROR") {
			if count := countExtractedSymbols(action, observation); count >= 0 {
				monologue.WriteString(fmt.Sprintf("[AST DATA: %d symbols]\n", count))
				l.emit(writer, Event{Phase: PhaseAST, Payload: count})
			}
		}
	}

	if finalAnswer == "" {
		finalAnswer = "TIMEOUT: step limit reached without a final answer"
		l.emit(writer, Event{Phase: PhaseFinal, Payload: finalAnswer})
	}

done:
	if l.Log != nil {
		l.Log.Append(codegraph.MissionLog{
			ProjectID:        projectID,
			Type:             codegraph.MissionAgent,
			UserQuery:        prompt,
			FullPrompt:       prompt,
			AIResponse:       finalAnswer,
			DurationMs:       time.Since(start).Milliseconds(),
			PromptTokens:     lastResult.PromptTokens,
			CompletionTokens: lastResult.CompletionTokens,
			TotalTokens:      lastResult.TotalTokens,
		})
	}
	return finalAnswer
}

func (l *Loop) executeTool(projectID string, action codegraph.AgentAction) string {
	argsJSON, _ := jsonMarshalParams(action.Parameters)
	start := time.Now()
	out, err := l.Tools.Dispatch(action.ToolName, argsJSON, projectID)
	duration := time.Since(start).Milliseconds()
	if l.Trace != nil {
		l.Trace.Append(telemetry.TraceEntry{
			Kind: telemetry.TraceKindToolExec, Name: action.ToolName, DurationMs: duration,
		})
	}
	if err != nil {
		return "ERROR: " + err.Error()
	}
	return out
}

func (l *Loop) emit(writer EventWriter, ev Event) {
	if writer != nil {
		writer.Write(ev)
	}
	if l.Trace != nil {
		l.Trace.Append(telemetry.TraceEntry{Kind: "EVENT", Phase: ev.Phase, Payload: ev.Payload})
	}
}

func countExtractedSymbols(action codegraph.AgentAction, observation string) int {
	path, _ := action.Parameters["path"].(string)
	ext := extOf(path)
	if !symbols.SupportedExtension(ext) {
		return -1
	}
	return len(symbols.ExtractSymbols(path, observation))
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx+1:])
}

func assemblePrompt(registry *tools.Registry, contextBlock, mission, monologue string) string {
	var b strings.Builder
	b.WriteString("You are an autonomous code-intelligence agent. Use the available tools to accomplish the mission, then respond with FINAL_ANSWER once you have sufficient information.\n\n")
	b.WriteString("TOOLS:\n")
	manifestJSON, _ := jsonMarshalManifest(registry)
	b.WriteString(manifestJSON)
	b.WriteString("\n\nMISSION:\n")
	b.WriteString(mission)
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nPROTOCOL: respond as JSON {\"tool\": ..., \"parameters\": {...}}. Use FINAL_ANSWER with {\"answer\": ...} when you have enough information. Do not repeat an identical action.\n\n")
	if monologue != "" {
		b.WriteString("OBSERVATIONS SO FAR:\n")
		b.WriteString(monologue)
	}
	return b.String()
}
