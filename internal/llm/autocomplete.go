package llm

import (
	"context"
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

var mainFuncRe = regexp.MustCompile(`(?m)^\s*func\s+main\s*\(\s*\)`)

// GenerateAutocomplete implements spec.md §4.12's generate_autocomplete:
// one GenerateTextElite call under a single 3.5s timeout that covers all of
// that call's retry attempts (there is no separate per-attempt timeout and
// no walk over every (model, key) pair), stripping Markdown fences, and
// rejecting responses that hallucinate a main() block. Errors and rejected
// responses both return empty so the caller falls through to its own
// default.
func (c *Client) GenerateAutocomplete(ctx context.Context, prefix string) string {
	attemptCtx, cancel := context.WithTimeout(ctx, autocompleteTimeout)
	defer cancel()

	result, err := c.GenerateTextElite(attemptCtx, autocompletePrompt(prefix))
	if err != nil || !result.Success {
		return ""
	}

	text := stripFences(result.Text)
	if mainFuncRe.MatchString(text) {
		return ""
	}
	return text
}

func autocompletePrompt(prefix string) string {
	return "Continue the following code. Return only the completion, no explanation:\n" + prefix
}

func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}
