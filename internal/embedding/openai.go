package embedding

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. With base_url set it
// targets local servers (LM Studio, llama.cpp, vLLM) that speak the same API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	hasKey     bool
	custom     bool
}

// NewOpenAIEmbedder creates a client. An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAIEmbedder(apiKey, model, baseURL string, dimensions int) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: dimensions,
		hasKey:     apiKey != "",
		custom:     baseURL != "",
	}
}

// Embed returns the embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("openai returned %d embeddings, expected 1", len(resp.Data))
	}
	emb := resp.Data[0].Embedding
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("model %s returned %d dimensions, configured %d", e.model, len(emb), e.dimensions)
	}
	return emb, nil
}

// Available requires an API key for the hosted API and a reachable models endpoint.
func (e *OpenAIEmbedder) Available(ctx context.Context) error {
	if !e.hasKey && !e.custom {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Unload is a no-op for remote models.
func (e *OpenAIEmbedder) Unload() error {
	return nil
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
