// Package embedding turns text into vectors via ONNX Runtime, Ollama or an OpenAI-compatible API.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable reports that a backend cannot serve embeddings right now
// (missing model file, runtime not built in, server unreachable).
var ErrUnavailable = errors.New("embedding backend unavailable")

// Provider produces fixed-size embeddings for text.
//
// Implementations load their model lazily on the first Embed call; Unload releases
// it and the next Embed loads it again.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// Available returns nil when Embed can be expected to succeed, otherwise an
	// error wrapping ErrUnavailable.
	Available(ctx context.Context) error
	Unload() error
	Close() error
}

// Unavailable is a Provider that always fails with the reason it was created with.
type Unavailable struct {
	reason     error
	dimensions int
}

// NewUnavailable returns a Provider that reports reason on every call.
func NewUnavailable(reason error, dimensions int) *Unavailable {
	if !errors.Is(reason, ErrUnavailable) {
		reason = errors.Join(ErrUnavailable, reason)
	}
	return &Unavailable{reason: reason, dimensions: dimensions}
}

// Embed returns the unavailability reason.
func (u *Unavailable) Embed(context.Context, string) ([]float32, error) { return nil, u.reason }

// Dimensions returns the configured dimension.
func (u *Unavailable) Dimensions() int { return u.dimensions }

// Available returns the unavailability reason.
func (u *Unavailable) Available(context.Context) error { return u.reason }

// Unload is a no-op.
func (u *Unavailable) Unload() error { return nil }

// Close is a no-op.
func (u *Unavailable) Close() error { return nil }
