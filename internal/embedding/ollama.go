package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
// The server loads the model on demand; Unload asks it to evict the model.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaEmbedder returns an embedder for model. baseURL defaults to http://localhost:11434.
func NewOllamaEmbedder(model string, dimensions int, baseURL string, logger *zap.Logger) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaUnloadRequest struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

// Embed returns the embedding for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var result ollamaEmbedResponse
	if err := e.post(ctx, "/api/embed", ollamaEmbedRequest{Model: e.model, Input: text}, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}
	emb := result.Embeddings[0]
	if e.dimensions > 0 && len(emb) != e.dimensions {
		return nil, fmt.Errorf("ollama model %s returned %d dimensions, configured %d", e.model, len(emb), e.dimensions)
	}
	return emb, nil
}

// Available pings the server's version endpoint.
func (e *OllamaEmbedder) Available(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama at %s: %v", ErrUnavailable, e.baseURL, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama at %s returned status %d", ErrUnavailable, e.baseURL, resp.StatusCode)
	}
	return nil
}

// Unload asks Ollama to drop the model from memory.
func (e *OllamaEmbedder) Unload() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.post(ctx, "/api/generate", ollamaUnloadRequest{Model: e.model}, nil); err != nil {
		e.logger.Debug("ollama unload failed", zap.String("model", e.model), zap.Error(err))
		return err
	}
	return nil
}

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the server owns the model.
func (e *OllamaEmbedder) Close() error {
	return nil
}

func (e *OllamaEmbedder) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ollama response: %w", err)
	}
	return nil
}
