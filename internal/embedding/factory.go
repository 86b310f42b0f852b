package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/semindex/internal/config"
)

// NewProvider builds the provider named by cfg.Provider. Construction failures do not
// surface as errors: the result is an Unavailable provider carrying the reason, so
// automatic paths can skip quietly and manual ones can report it.
func NewProvider(cfg config.EmbeddingConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "onnx", "":
		p, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, logger)
		if err != nil {
			logger.Warn("onnx embedder unavailable", zap.Error(err))
			return NewUnavailable(err, cfg.Dimensions)
		}
		return p
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.Dimensions, cfg.BaseURL, logger)
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions)
	case "mock":
		return NewMockEmbedder(cfg.Dimensions)
	default:
		return NewUnavailable(fmt.Errorf("unknown embedding provider %q (supported: onnx, ollama, openai, mock)", cfg.Provider), cfg.Dimensions)
	}
}
