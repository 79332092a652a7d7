// Package agent implements the bounded ReAct state machine of spec.md
// §4.11, new code (the teacher has no agent loop of its own to adapt).
package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"codeintel/internal/codegraph"
)

// ExtractJSON locates the first balanced {...} block in text using a
// bracket stack and parses it into an AgentAction, per spec.md §4.11 step 3.
// If no JSON parses but text contains "FINAL_ANSWER", the raw text is
// returned as a final action.
func ExtractJSON(text string) codegraph.AgentAction {
	block, ok := firstBalancedBraces(text)
	if ok {
		var parsed struct {
			Tool       string                 `json:"tool"`
			Parameters map[string]interface{} `json:"parameters"`
		}
		if err := json.Unmarshal([]byte(block), &parsed); err == nil && parsed.Tool != "" {
			if parsed.Tool == finalAnswerToolName {
				answer, _ := parsed.Parameters["answer"].(string)
				return codegraph.AgentAction{Kind: codegraph.ActionFinal, Answer: answer}
			}
			return codegraph.AgentAction{
				Kind:       codegraph.ActionToolCall,
				ToolName:   parsed.Tool,
				Parameters: parsed.Parameters,
			}
		}
	}

	if strings.Contains(text, finalAnswerToolName) {
		return codegraph.AgentAction{Kind: codegraph.ActionFinal, Answer: text}
	}
	return codegraph.AgentAction{Kind: codegraph.ActionInvalid}
}

const finalAnswerToolName = "FINAL_ANSWER"

// firstBalancedBraces scans text with a bracket-depth counter and returns
// the first fully-balanced {...} substring.
func firstBalancedBraces(text string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// CanonicalizeAction formats an action as "name + params.json_dump" with
// keys sorted for stable hashing, per spec.md §4.11 step 4.
func CanonicalizeAction(action codegraph.AgentAction) string {
	keys := make([]string, 0, len(action.Parameters))
	for k := range action.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		ordered[k] = action.Parameters[k]
	}
	paramsJSON, _ := json.Marshal(ordered)
	return action.ToolName + string(paramsJSON)
}

// HashAction returns a stable hex digest of an action's canonical form, for
// the loop-detection visited set.
func HashAction(action codegraph.AgentAction) string {
	sum := sha256.Sum256([]byte(CanonicalizeAction(action)))
	return hex.EncodeToString(sum[:])
}
