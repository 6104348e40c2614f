package domain

import "fmt"

const (
	// DefaultImageSize is the square input edge most ImageNet models expect.
	DefaultImageSize = 224

	// DefaultTopK is the number of ranked labels returned per request.
	DefaultTopK = 5

	// Channels is the number of color channels fed to the model (RGB).
	Channels = 3
)

// Prediction is one ranked class label.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

// InputShape is the static spatial size a model is compiled for. The full
// tensor shape is (1, Channels, Height, Width).
type InputShape struct {
	Width  int
	Height int
}

// Len is the number of floats in a normalized tensor of this shape.
func (s InputShape) Len() int {
	return s.Width * s.Height * Channels
}

// Dims returns the NCHW dimensions.
func (s InputShape) Dims() []int64 {
	return []int64{1, Channels, int64(s.Height), int64(s.Width)}
}

// Validate rejects non-positive dimensions.
func (s InputShape) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("input shape must be positive (got %dx%d)", s.Width, s.Height)
	}
	return nil
}

// String formats the full tensor shape, e.g. "(1, 3, 224, 224)".
func (s InputShape) String() string {
	return fmt.Sprintf("(1, %d, %d, %d)", Channels, s.Height, s.Width)
}
