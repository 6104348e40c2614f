package model

import (
	"context"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

// Source supplies the serialized model and its label table. How the bytes
// are located (disk, embedded, object storage) is up to the implementation.
type Source interface {
	ModelBytes(ctx context.Context) ([]byte, error)
	LabelBytes(ctx context.Context) ([]byte, error)
}

// Graph is a compiled model with a single (1, 3, H, W) float32 input and a
// single float32 output. Run must be safe for concurrent use.
type Graph interface {
	// Run executes one forward pass over an NCHW input and returns the output
	// flattened to per-class scores.
	Run(input []float32) ([]float32, error)
	Close() error
}

// Compiler builds a Graph for a fixed input shape. Errors should be
// domain.LoadError values naming the failing stage.
type Compiler interface {
	Compile(model []byte, shape domain.InputShape) (Graph, error)
}
