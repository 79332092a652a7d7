// Package llm wraps google.golang.org/genai for spec.md §4.12's generation
// contract, grounded on codenerd's internal/embedding/genai.go pattern
// (genai.NewClient, EmbedContent, error wrapping, 768-dim embeddings)
// extended with GenerateContent for text and the CredentialPool retry
// policy of §4.1.
package llm

import (
	"context"
	"strings"
	"time"

	"google.golang.org/genai"

	"codeintel/internal/cache"
	"codeintel/internal/credentials"
	"codeintel/internal/errors"
	"codeintel/internal/logging"
	"codeintel/internal/telemetry"
)

const (
	maxAttempts          = 5
	autocompleteTimeout  = 3500 * time.Millisecond
	finishReasonSafety   = "SAFETY"
)

// GenerateResult is generate_text_elite's return shape.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Success          bool
	Reason           string
}

// backend is the slice of the genai SDK this client depends on, narrowed to
// an interface so tests can substitute a fake instead of hitting the
// network (the default implementation wraps *genai.Client per-key).
type backend interface {
	GenerateContent(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model, text string) (*genai.EmbedContentResponse, error)
}

// Client wraps the genai SDK with CredentialPool-driven retry/rotation.
type Client struct {
	pool        *credentials.Pool
	embedCache  *cache.Cache[[]float32]
	counters    *telemetry.Counters
	logger      *logging.Logger
	newBackend  func(ctx context.Context, apiKey string) (backend, error)
}

// New builds an llm.Client. embedCache and counters may be nil (embedding
// caching and telemetry updates become no-ops).
func New(pool *credentials.Pool, embedCache *cache.Cache[[]float32], counters *telemetry.Counters, logger *logging.Logger) *Client {
	return &Client{
		pool:       pool,
		embedCache: embedCache,
		counters:   counters,
		logger:     logger,
		newBackend: func(ctx context.Context, apiKey string) (backend, error) {
			client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
			if err != nil {
				return nil, err
			}
			return realBackend{client: client}, nil
		},
	}
}

// realBackend forwards to a live genai.Client.
type realBackend struct {
	client *genai.Client
}

func (b realBackend) GenerateContent(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error) {
	return b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
}

func (b realBackend) EmbedContent(ctx context.Context, model, text string) (*genai.EmbedContentResponse, error) {
	return b.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
}

// withRetry walks (key, model) pairs per the §4.1 retry policy: up to 5
// attempts, 429/5xx reports failure and rotates, backoff is near-zero while
// unused keys remain then exponential, 4xx (non-429) is fatal.
func (c *Client) withRetry(ctx context.Context, attempt func(pair credentials.Pair) (interface{}, error, bool)) (interface{}, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		pair, ok := c.pool.CurrentPair()
		if !ok {
			return nil, errors.New(errors.RemoteUnavailable, "no active credentials remain", lastErr)
		}

		result, err, retryable := attempt(pair)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		c.pool.ReportFailure(credentials.FailureServerError)
		if i < maxAttempts-1 {
			delay := credentials.BackoffDelay(i, c.pool.ActiveKeyCount())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, errors.New(errors.RemoteUnavailable, "exhausted retry attempts", lastErr)
}

// GenerateTextElite implements spec.md §4.12's generate_text_elite.
func (c *Client) GenerateTextElite(ctx context.Context, prompt string) (GenerateResult, error) {
	start := time.Now()
	raw, err := c.withRetry(ctx, func(pair credentials.Pair) (interface{}, error, bool) {
		b, cerr := c.newBackend(ctx, pair.Key)
		if cerr != nil {
			return nil, cerr, true
		}
		resp, gerr := b.GenerateContent(ctx, pair.Model, prompt)
		if gerr != nil {
			return nil, gerr, isRetryable(gerr)
		}
		return resp, nil, false
	})
	elapsed := time.Since(start).Milliseconds()
	if c.counters != nil {
		c.counters.AddLLMGenerationMs(elapsed)
	}
	if err != nil {
		return GenerateResult{Success: false, Reason: err.Error()}, err
	}

	resp := raw.(*genai.GenerateContentResponse)
	result := parseGenerateResponse(resp)
	if c.counters != nil {
		c.counters.AddOutputTokens(int64(result.CompletionTokens))
	}
	return result, nil
}

func parseGenerateResponse(resp *genai.GenerateContentResponse) GenerateResult {
	if resp == nil || len(resp.Candidates) == 0 {
		return GenerateResult{Success: false, Reason: "empty candidates"}
	}
	cand := resp.Candidates[0]
	if string(cand.FinishReason) == finishReasonSafety {
		return GenerateResult{Success: false, Reason: "finish_reason SAFETY"}
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return GenerateResult{Success: false, Reason: "no text parts"}
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		text.WriteString(part.Text)
	}

	result := GenerateResult{Text: text.String(), Success: true}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return result
}

// GenerateEmbedding implements spec.md §4.12's generate_embedding: cache
// check, embed on miss, cache on success, typed failure after retries.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if c.embedCache != nil {
		if v, ok := c.embedCache.Get(text); ok {
			return v, nil
		}
	}

	start := time.Now()
	raw, err := c.withRetry(ctx, func(pair credentials.Pair) (interface{}, error, bool) {
		b, cerr := c.newBackend(ctx, pair.Key)
		if cerr != nil {
			return nil, cerr, true
		}
		resp, eerr := b.EmbedContent(ctx, pair.Model, text)
		if eerr != nil {
			return nil, eerr, isRetryable(eerr)
		}
		return resp, nil, false
	})
	if c.counters != nil {
		c.counters.AddEmbeddingLatencyMs(time.Since(start).Milliseconds())
	}
	if err != nil {
		return nil, errors.New(errors.RemoteUnavailable, "embedding generation failed", err)
	}

	resp := raw.(*genai.EmbedContentResponse)
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New(errors.MalformedResponse, "embedding response had no vectors", nil)
	}
	vec := resp.Embeddings[0].Values

	if c.embedCache != nil {
		c.embedCache.Set(text, vec)
	}
	return vec, nil
}

// EmbedBatch implements internal/sync's Embedder interface, embedding
// sequentially (the cache absorbs repeat calls across batches/files).
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var firstErr error
	for i, text := range texts {
		vec, err := c.GenerateEmbedding(ctx, text)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = vec
	}
	return out, firstErr
}

func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
