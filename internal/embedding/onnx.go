//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/hyperjump/semindex/pkg/utils"
)

// ONNXEmbedder runs a BERT-style sentence model through ONNX Runtime. The session is
// created on first use and destroyed by Unload. Requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	modelPath  string
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	logger     *zap.Logger

	mu      sync.Mutex
	session *onnxSession
}

// onnxSession bundles a session with its pre-allocated tensors; Run reads inputs and writes output in place.
type onnxSession struct {
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNXEmbedder returns an embedder for modelPath. Nothing is loaded until Embed.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int, logger *zap.Logger) (*ONNXEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: onnx model_path is empty", ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ONNXEmbedder{
		modelPath:  modelPath,
		dimensions: dimensions,
		maxTokens:  maxTokens,
		tokenizer:  &SimpleTokenizer{},
		logger:     logger,
	}, nil
}

// Available checks that the model file exists and the runtime can be initialized.
func (e *ONNXEmbedder) Available(context.Context) error {
	if _, err := os.Stat(e.modelPath); err != nil {
		return fmt.Errorf("%w: onnx model %s: %v", ErrUnavailable, e.modelPath, err)
	}
	if err := initRuntime(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Embed tokenizes text, runs the model and returns the L2-normalized output.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		s, err := e.load()
		if err != nil {
			return nil, err
		}
		e.session = s
	}

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.session.inputIDs.GetData(), inputIDs)
	copy(e.session.attentionMask.GetData(), attentionMask)
	copy(e.session.tokenTypeIDs.GetData(), tokenTypeIDs)

	if err := e.session.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.session.output.GetData())
	utils.NormalizeL2(embedding)
	return embedding, nil
}

func (e *ONNXEmbedder) load() (*onnxSession, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	shape := ort.NewShape(1, int64(e.maxTokens))
	s := &onnxSession{}
	var err error
	if s.inputIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if s.attentionMask, err = ort.NewEmptyTensor[int64](shape); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if s.tokenTypeIDs, err = ort.NewEmptyTensor[int64](shape); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(e.dimensions))); err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	s.session, err = ort.NewAdvancedSession(
		e.modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{s.inputIDs, s.attentionMask, s.tokenTypeIDs},
		[]ort.ArbitraryTensor{s.output},
		nil,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.logger.Info("onnx model loaded", zap.String("model", e.modelPath))
	return s, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Unload destroys the session and tensors. The next Embed reloads the model.
func (e *ONNXEmbedder) Unload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.destroy()
	e.session = nil
	e.logger.Debug("onnx model unloaded", zap.String("model", e.modelPath))
	return err
}

// Close is Unload; the process-wide runtime environment is left initialized.
func (e *ONNXEmbedder) Close() error {
	return e.Unload()
}

func (s *onnxSession) destroy() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	if s.inputIDs != nil {
		_ = s.inputIDs.Destroy()
	}
	if s.attentionMask != nil {
		_ = s.attentionMask.Destroy()
	}
	if s.tokenTypeIDs != nil {
		_ = s.tokenTypeIDs.Destroy()
	}
	if s.output != nil {
		_ = s.output.Destroy()
	}
	return err
}

var runtimeOnce struct {
	sync.Mutex
	done bool
}

// initRuntime initializes the onnxruntime environment once per process.
// ONNXRUNTIME_LIB overrides the shared library location.
func initRuntime() error {
	runtimeOnce.Lock()
	defer runtimeOnce.Unlock()
	if runtimeOnce.done || ort.IsInitialized() {
		runtimeOnce.done = true
		return nil
	}
	if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}
	runtimeOnce.done = true
	return nil
}
