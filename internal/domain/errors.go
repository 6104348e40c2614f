package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode marks malformed or unreadable image input, including tensors
	// of the wrong length.
	ErrDecode = errors.New("decode error")

	// ErrLoad marks a model or label source that could not be loaded.
	ErrLoad = errors.New("failed to load model")

	// ErrNotInitialized is returned by classification before a model is loaded.
	ErrNotInitialized = errors.New("model not initialized")

	// ErrInference marks a graph execution or output shape failure.
	ErrInference = errors.New("inference error")
)

// LoadError describes the stage of model initialization that failed.
type LoadError struct {
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model: %s: %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

// NewLoadError wraps err with the failing stage.
func NewLoadError(stage string, err error) error {
	return &LoadError{Stage: stage, Err: err}
}

// Decodef formats a decode error.
func Decodef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// Inferencef formats an inference error.
func Inferencef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInference, fmt.Sprintf(format, args...))
}
