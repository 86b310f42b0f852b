package embedding

import (
	"context"
	"math"
	"sync"

	"github.com/hyperjump/semindex/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always yields the
// same unit vector. It counts Embed calls and tracks load state.
type MockEmbedder struct {
	dimensions int

	mu          sync.Mutex
	calls       int
	loaded      bool
	unloads     int
	unavailable error
	failOn      map[string]error
}

// NewMockEmbedder returns a mock producing vectors of the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, failOn: make(map[string]error)}
}

// Embed returns a deterministic vector derived from a hash of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls++
	if e.unavailable != nil {
		err := e.unavailable
		e.mu.Unlock()
		return nil, err
	}
	if err, ok := e.failOn[text]; ok {
		e.mu.Unlock()
		return nil, err
	}
	e.loaded = true
	e.mu.Unlock()

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h%100003)*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Available returns the error set by SetUnavailable, if any.
func (e *MockEmbedder) Available(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unavailable
}

// Unload marks the model as released.
func (e *MockEmbedder) Unload() error {
	e.mu.Lock()
	if e.loaded {
		e.unloads++
	}
	e.loaded = false
	e.mu.Unlock()
	return nil
}

// Close is Unload.
func (e *MockEmbedder) Close() error {
	return e.Unload()
}

// Calls returns how many times Embed was invoked.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Loaded reports whether an Embed succeeded since the last Unload.
func (e *MockEmbedder) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Unloads returns how many times a loaded model was released.
func (e *MockEmbedder) Unloads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unloads
}

// SetUnavailable makes Available and Embed fail with ErrUnavailable. A nil reason restores the mock.
func (e *MockEmbedder) SetUnavailable(reason error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if reason == nil {
		e.unavailable = nil
		return
	}
	e.unavailable = NewUnavailable(reason, e.dimensions).reason
}

// FailOn makes Embed return err for exactly text.
func (e *MockEmbedder) FailOn(text string, err error) {
	e.mu.Lock()
	e.failOn[text] = err
	e.mu.Unlock()
}
