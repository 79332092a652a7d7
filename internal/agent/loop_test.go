package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codeintel/internal/tools"
)

func TestAssemblePrompt_IncludesManifestMissionAndContext(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(&tools.Tool{Metadata: tools.Metadata{Name: "read_file", Description: "reads a file"}})

	prompt := assemblePrompt(registry, "some context block", "find the bug", "[STEP 1 RESULT FROM read_file]\nhello\n")
	require.Contains(t, prompt, "read_file")
	require.Contains(t, prompt, "find the bug")
	require.Contains(t, prompt, "some context block")
	require.Contains(t, prompt, "FINAL_ANSWER")
	require.Contains(t, prompt, "STEP 1 RESULT")
}

func TestExtOf_ExtractsLowercaseExtension(t *testing.T) {
	require.Equal(t, "go", extOf("a/b/c.GO"))
	require.Equal(t, "", extOf("no_extension"))
}

type recordingWriter struct {
	phases []string
}

func (w *recordingWriter) Write(ev Event) {
	w.phases = append(w.phases, ev.Phase)
}

// TestEmit_PhaseVocabulary pins the exact streaming phase names the agent
// mission RPC surface promises callers (STARTUP once, then one phase per
// emit call down the loop).
func TestEmit_PhaseVocabulary(t *testing.T) {
	loop := &Loop{}
	writer := &recordingWriter{}

	loop.emit(writer, Event{Phase: PhaseStartup})
	loop.emit(writer, Event{Phase: PhaseThought})
	loop.emit(writer, Event{Phase: PhaseTool})
	loop.emit(writer, Event{Phase: PhaseThought})
	loop.emit(writer, Event{Phase: PhaseFinal})

	require.Equal(t, []string{
		PhaseStartup, PhaseThought, PhaseTool, PhaseThought, PhaseFinal,
	}, writer.phases)
}
