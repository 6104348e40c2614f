// Package source provides the places a model and its label table can be
// loaded from. Every type here implements model.Source.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/Brownie44l1/vision-api/internal/model"
)

var (
	_ model.Source = (*Files)(nil)
	_ model.Source = (*Embedded)(nil)
	_ model.Source = (*GCS)(nil)
	_ model.Source = (*Blobserver)(nil)
)

// Files reads the model and labels from the local filesystem.
type Files struct {
	ModelPath  string
	LabelsPath string
}

func (f *Files) ModelBytes(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model file: %w", err)
	}
	return data, nil
}

func (f *Files) LabelBytes(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("reading labels file: %w", err)
	}
	return data, nil
}

func (f *Files) String() string {
	return "file://" + f.ModelPath
}

// Embedded serves model and label bytes held in memory, typically from a
// go:embed directive in the binary.
type Embedded struct {
	Model  []byte
	Labels []byte
}

func (e *Embedded) ModelBytes(ctx context.Context) ([]byte, error) {
	if len(e.Model) == 0 {
		return nil, fmt.Errorf("no embedded model: %w", os.ErrNotExist)
	}
	return e.Model, nil
}

func (e *Embedded) LabelBytes(ctx context.Context) ([]byte, error) {
	if e.Labels == nil {
		return nil, fmt.Errorf("no embedded labels: %w", os.ErrNotExist)
	}
	return e.Labels, nil
}

func (e *Embedded) String() string {
	return fmt.Sprintf("embedded (%d bytes)", len(e.Model))
}
