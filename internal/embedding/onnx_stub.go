//go:build !cgo
// +build !cgo

package embedding

import (
	"fmt"

	"go.uber.org/zap"
)

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct {
	Unavailable
}

// NewONNXEmbedder fails when built without CGO; the factory turns this into an Unavailable provider.
func NewONNXEmbedder(_ string, _, _ int, _ *zap.Logger) (*ONNXEmbedder, error) {
	return nil, fmt.Errorf("%w: ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime", ErrUnavailable)
}
