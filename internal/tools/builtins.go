package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"codeintel/internal/pathfilter"
	"codeintel/internal/paths"
	"codeintel/internal/symbols"
)

// FinalAnswerTool is the pseudo-tool name the agent loop recognizes to
// terminate a mission (spec.md §4.9's FINAL_ANSWER).
const FinalAnswerTool = "FINAL_ANSWER"

const readFileSizeCap = 512 * 1024 // 512 KiB

// ProjectContext resolves tool arguments against one project's source root
// and path filter.
type ProjectContext struct {
	SourceRoot string
	Filter     *pathfilter.Trie
}

func (p *ProjectContext) resolve(relPath string) (string, error) {
	abs := paths.JoinRepoPath(p.SourceRoot, relPath)
	if !paths.IsWithinRepo(abs, p.SourceRoot) {
		return "", fmt.Errorf("path %q escapes project root", relPath)
	}
	return abs, nil
}

// NewListDirTool builds the list_dir tool (§4.9): depth-limited directory
// listing with [DIR]/[FILE] markers and file sizes, filtered by the
// project's PathFilter, rejecting traversal outside the source root.
func NewListDirTool(ctx *ProjectContext) *Tool {
	return &Tool{
		Metadata: Metadata{
			Name:        "list_dir",
			Description: "List files and directories under a path within the project, optionally limited to a depth.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"depth":{"type":"integer"}},"required":["path"]}`),
		},
		Execute: func(argsJSON string) string {
			var args struct {
				Path  string `json:"path"`
				Depth int    `json:"depth"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "ERROR: invalid arguments: " + err.Error()
			}
			if args.Depth <= 0 {
				args.Depth = 1
			}
			abs, err := ctx.resolve(args.Path)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			listing, err := listDir(ctx, abs, args.Path, args.Depth)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			return listing
		},
	}
}

func listDir(ctx *ProjectContext, absPath, relBase string, depth int) (string, error) {
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	for _, e := range entries {
		rel := filepath.ToSlash(filepath.Join(relBase, e.Name()))
		if e.IsDir() {
			if ctx.Filter != nil && !ctx.Filter.ShouldDescendDir(rel) {
				continue
			}
			b.WriteString(fmt.Sprintf("[DIR]  %s\n", rel))
			if depth > 1 {
				sub, err := listDir(ctx, filepath.Join(absPath, e.Name()), rel, depth-1)
				if err == nil {
					b.WriteString(sub)
				}
			}
			continue
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		if ctx.Filter != nil && !ctx.Filter.ShouldIndexFile(rel, ext) {
			continue
		}
		info, err := e.Info()
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		b.WriteString(fmt.Sprintf("[FILE] %s (%d bytes)\n", rel, size))
	}
	return b.String(), nil
}

// NewReadFileTool builds the read_file tool (§4.9): returns content or an
// ERROR: string, capped at 512 KiB, rejecting paths outside the root.
func NewReadFileTool(ctx *ProjectContext) *Tool {
	return &Tool{
		Metadata: Metadata{
			Name:        "read_file",
			Description: "Read the contents of a file within the project.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		},
		Execute: func(argsJSON string) string {
			var args struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "ERROR: invalid arguments: " + err.Error()
			}
			abs, err := ctx.resolve(args.Path)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			info, err := os.Stat(abs)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			if info.Size() > readFileSizeCap {
				return fmt.Sprintf("ERROR: file exceeds %d byte cap", readFileSizeCap)
			}
			content, err := os.ReadFile(abs)
			if err != nil {
				return "ERROR: " + err.Error()
			}
			return string(content)
		},
	}
}

const journalSuffix = ".synapse_journal"

// ApplyEdit implements the atomic journal of spec.md §4.10. Exported so
// internal/agent's post-hook and internal/tools' apply_edit tool share one
// implementation.
func ApplyEdit(ctx *ProjectContext, relPath, newContent string) string {
	abs, err := ctx.resolve(relPath)
	if err != nil {
		return "ERROR: " + err.Error()
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	if symbols.SupportedExtension(ext) && !symbols.ValidateSyntax(newContent, ext) {
		return "ERROR: AST REJECTION: new content fails syntax validation for ." + ext
	}
	if ext != "txt" && len(newContent) < 10 {
		return "ERROR: new content too short"
	}

	journalPath := abs + journalSuffix
	existed := false
	if original, err := os.ReadFile(abs); err == nil {
		existed = true
		if err := os.WriteFile(journalPath, original, 0o644); err != nil {
			return "ERROR: failed to back up original: " + err.Error()
		}
	} else if !os.IsNotExist(err) {
		return "ERROR: " + err.Error()
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return rollback(abs, journalPath, existed, "mkdir failed: "+err.Error())
	}
	if err := os.WriteFile(abs, []byte(newContent), 0o644); err != nil {
		return rollback(abs, journalPath, existed, "write failed: "+err.Error())
	}

	if existed {
		os.Remove(journalPath)
	}
	return fmt.Sprintf("OK: wrote %d bytes to %s", len(newContent), relPath)
}

func rollback(abs, journalPath string, existed bool, reason string) string {
	if existed {
		if original, err := os.ReadFile(journalPath); err == nil {
			os.WriteFile(abs, original, 0o644)
		}
		os.Remove(journalPath)
	}
	return "ERROR: " + reason
}

// NewApplyEditTool builds the apply_edit tool (§4.9/§4.10).
func NewApplyEditTool(ctx *ProjectContext) *Tool {
	return &Tool{
		Metadata: Metadata{
			Name:        "apply_edit",
			Description: "Overwrite a file's contents within the project, validated against its language grammar and protected by an atomic backup journal.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"new_content":{"type":"string"}},"required":["path","new_content"]}`),
		},
		Execute: func(argsJSON string) string {
			var args struct {
				Path       string `json:"path"`
				NewContent string `json:"new_content"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "ERROR: invalid arguments: " + err.Error()
			}
			return ApplyEdit(ctx, args.Path, args.NewContent)
		},
	}
}

const webSearchTimeout = 10 * time.Second

// NewWebSearchTool builds the optional web_search tool (§4.9), forwarding
// queries to Serper.dev over HTTPS. No corpus library wraps this kind of
// generic search API, so it is a thin stdlib net/http client.
func NewWebSearchTool(apiKey string) *Tool {
	client := &http.Client{Timeout: webSearchTimeout}
	return &Tool{
		Metadata: Metadata{
			Name:        "web_search",
			Description: "Search the web for information relevant to the mission.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		},
		Execute: func(argsJSON string) string {
			if apiKey == "" {
				return "ERROR: no web search key configured"
			}
			var args struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "ERROR: invalid arguments: " + err.Error()
			}
			return serperSearch(client, apiKey, args.Query)
		},
	}
}

func serperSearch(client *http.Client, apiKey, query string) string {
	body, err := json.Marshal(map[string]string{"q": query})
	if err != nil {
		return "ERROR: " + err.Error()
	}
	req, err := http.NewRequest(http.MethodPost, "https://google.serper.dev/search", strings.NewReader(string(body)))
	if err != nil {
		return "ERROR: " + err.Error()
	}
	req.Header.Set("X-API-KEY", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "ERROR: " + err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("ERROR: search request failed with status %d", resp.StatusCode)
	}

	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "ERROR: " + err.Error()
	}

	var b strings.Builder
	for _, r := range parsed.Organic {
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n", r.Title, r.Link, r.Snippet))
	}
	if b.Len() == 0 {
		return "No results found."
	}
	return b.String()
}
