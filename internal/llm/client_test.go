package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"codeintel/internal/cache"
	"codeintel/internal/credentials"
	"codeintel/internal/telemetry"
)

type fakeBackend struct {
	generateResp *genai.GenerateContentResponse
	generateErr  error
	embedResp    *genai.EmbedContentResponse
	embedErr     error
	generateCalls int
	embedCalls    int
}

func (f *fakeBackend) GenerateContent(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error) {
	f.generateCalls++
	return f.generateResp, f.generateErr
}

func (f *fakeBackend) EmbedContent(ctx context.Context, model, text string) (*genai.EmbedContentResponse, error) {
	f.embedCalls++
	return f.embedResp, f.embedErr
}

func newTestPool(t *testing.T) *credentials.Pool {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keys":["k1"],"models":["m1"]}`), 0o644))
	pool, err := credentials.Load(path, nil)
	require.NoError(t, err)
	return pool
}

func successResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15,
		},
	}
}

func TestGenerateTextElite_SuccessPopulatesFields(t *testing.T) {
	pool := newTestPool(t)
	client := New(pool, nil, telemetry.NewCounters(), nil)
	fb := &fakeBackend{generateResp: successResponse("hello")}
	client.newBackend = func(ctx context.Context, apiKey string) (backend, error) { return fb, nil }

	result, err := client.GenerateTextElite(context.Background(), "prompt")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "hello", result.Text)
	require.Equal(t, 15, result.TotalTokens)
}

func TestGenerateTextElite_EmptyCandidatesReportsFailureNotError(t *testing.T) {
	pool := newTestPool(t)
	client := New(pool, nil, telemetry.NewCounters(), nil)
	fb := &fakeBackend{generateResp: &genai.GenerateContentResponse{}}
	client.newBackend = func(ctx context.Context, apiKey string) (backend, error) { return fb, nil }

	result, err := client.GenerateTextElite(context.Background(), "prompt")
	require.NoError(t, err)
	require.False(t, result.Success)
}

func TestGenerateTextElite_RetriesOnRetryableError(t *testing.T) {
	pool := newTestPool(t)
	client := New(pool, nil, telemetry.NewCounters(), nil)
	attempts := 0
	fb := &fakeBackend{}
	client.newBackend = func(ctx context.Context, apiKey string) (backend, error) {
		attempts++
		if attempts < 2 {
			return &fakeBackend{generateErr: errors.New("503 service unavailable")}, nil
		}
		return &fakeBackend{generateResp: successResponse("ok")}, nil
	}

	result, err := client.GenerateTextElite(context.Background(), "prompt")
	require.NoError(t, err)
	require.True(t, result.Success)
	_ = fb
}

func TestGenerateEmbedding_CachesOnSuccess(t *testing.T) {
	pool := newTestPool(t)
	embedCache := cache.NewEmbeddingCache()
	client := New(pool, embedCache, telemetry.NewCounters(), nil)

	vec := make([]float32, 768)
	vec[0] = 1
	fb := &fakeBackend{embedResp: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: vec}},
	}}
	client.newBackend = func(ctx context.Context, apiKey string) (backend, error) { return fb, nil }

	got, err := client.GenerateEmbedding(context.Background(), "some text")
	require.NoError(t, err)
	require.Len(t, got, 768)
	require.Equal(t, 1, fb.embedCalls)

	_, err = client.GenerateEmbedding(context.Background(), "some text")
	require.NoError(t, err)
	require.Equal(t, 1, fb.embedCalls, "second call served from cache")
}

func TestStripFences_RemovesMarkdownFence(t *testing.T) {
	out := stripFences("```go\nfunc Foo() {}\n```")
	require.Equal(t, "func Foo() {}", out)
}

func TestGenerateAutocomplete_RejectsHallucinatedMain(t *testing.T) {
	pool := newTestPool(t)
	client := New(pool, nil, telemetry.NewCounters(), nil)
	fb := &fakeBackend{generateResp: successResponse("func main() {\n  fmt.Println(\"hi\")\n}")}
	client.newBackend = func(ctx context.Context, apiKey string) (backend, error) { return fb, nil }

	out := client.GenerateAutocomplete(context.Background(), "prefix")
	require.Empty(t, out)
}
