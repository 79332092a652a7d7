package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"codeintel/internal/codegraph"
)

func TestExtractJSON_ParsesToolCall(t *testing.T) {
	text := `I will call a tool. {"tool": "read_file", "parameters": {"path": "a.go"}} done.`
	action := ExtractJSON(text)
	require.Equal(t, codegraph.ActionToolCall, action.Kind)
	require.Equal(t, "read_file", action.ToolName)
	require.Equal(t, "a.go", action.Parameters["path"])
}

func TestExtractJSON_NestedBraces(t *testing.T) {
	text := `{"tool": "apply_edit", "parameters": {"path": "a.go", "new_content": "func f() { return }"}}`
	action := ExtractJSON(text)
	require.Equal(t, codegraph.ActionToolCall, action.Kind)
	require.Contains(t, action.Parameters["new_content"], "return")
}

func TestExtractJSON_BracesInsideString(t *testing.T) {
	text := `{"tool": "apply_edit", "parameters": {"new_content": "if (x) { y(); }"}}`
	action := ExtractJSON(text)
	require.Equal(t, codegraph.ActionToolCall, action.Kind)
}

func TestExtractJSON_FinalAnswerTool(t *testing.T) {
	text := `{"tool": "FINAL_ANSWER", "parameters": {"answer": "done here"}}`
	action := ExtractJSON(text)
	require.Equal(t, codegraph.ActionFinal, action.Kind)
	require.Equal(t, "done here", action.Answer)
}

func TestExtractJSON_InvalidJSONWithFinalAnswerKeyword(t *testing.T) {
	text := "I think I should use FINAL_ANSWER but forgot the JSON"
	action := ExtractJSON(text)
	require.Equal(t, codegraph.ActionFinal, action.Kind)
}

func TestExtractJSON_InvalidJSONReturnsInvalid(t *testing.T) {
	action := ExtractJSON("no json here at all")
	require.Equal(t, codegraph.ActionInvalid, action.Kind)
}

func TestExtractJSON_MissingToolFieldIsInvalid(t *testing.T) {
	action := ExtractJSON(`{"parameters": {"path": "a.go"}}`)
	require.Equal(t, codegraph.ActionInvalid, action.Kind)
}

func TestCanonicalizeAction_OrdersParamKeys(t *testing.T) {
	a1 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"b": 1, "a": 2}}
	a2 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"a": 2, "b": 1}}
	require.Equal(t, CanonicalizeAction(a1), CanonicalizeAction(a2))
}

func TestHashAction_DifferentParamsDifferentHash(t *testing.T) {
	a1 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"path": "a.go"}}
	a2 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"path": "b.go"}}
	require.NotEqual(t, HashAction(a1), HashAction(a2))
}

func TestHashAction_SameActionSameHash(t *testing.T) {
	a1 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"path": "a.go"}}
	a2 := codegraph.AgentAction{ToolName: "read_file", Parameters: map[string]interface{}{"path": "a.go"}}
	require.Equal(t, HashAction(a1), HashAction(a2))
}
