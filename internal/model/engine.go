package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

// Engine owns the loaded compute graph and its label table. It starts
// uninitialized; Initialize publishes a model and label table together.
//
// Classify calls may run in parallel with each other. Initialize excludes
// every Classify call, so no call observes a half-replaced model.
type Engine struct {
	compiler Compiler
	shape    domain.InputShape
	topK     int
	logger   *zap.Logger

	mu     sync.RWMutex
	loaded *loadedModel
}

type loadedModel struct {
	graph    Graph
	labels   LabelTable
	source   string
	loadedAt time.Time
}

// Status describes the engine state for health reporting.
type Status struct {
	Ready      bool      `json:"ready"`
	Source     string    `json:"source,omitempty"`
	Labels     int       `json:"labels"`
	InputShape string    `json:"input_shape"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithInputShape sets the spatial input size the model is compiled for.
func WithInputShape(shape domain.InputShape) Option {
	return func(e *Engine) {
		e.shape = shape
	}
}

// WithTopK sets how many ranked labels Classify returns.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an uninitialized engine that compiles models with compiler.
func NewEngine(compiler Compiler, opts ...Option) (*Engine, error) {
	if compiler == nil {
		return nil, errors.New("compiler is nil")
	}
	e := &Engine{
		compiler: compiler,
		shape:    domain.InputShape{Width: domain.DefaultImageSize, Height: domain.DefaultImageSize},
		topK:     domain.DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.shape.Validate(); err != nil {
		return nil, err
	}
	if e.topK <= 0 {
		return nil, fmt.Errorf("top-k must be > 0 (got %d)", e.topK)
	}
	return e, nil
}

// InputShape returns the shape models are compiled for.
func (e *Engine) InputShape() domain.InputShape {
	return e.shape
}

// Initialize loads, validates and compiles the model from src and parses its
// labels. On success the new model and labels replace any previous ones in a
// single step. On failure the engine keeps whatever it held before.
//
// Labels that cannot be read or parsed are logged and replaced by an empty
// table; they never prevent the model from becoming ready.
func (e *Engine) Initialize(ctx context.Context, src Source) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := describe(src)
	log := e.logger.With(zap.String("source", name))
	startedAt := time.Now()

	log.Info("Loading model", zap.Stringer("input_shape", e.shape))

	data, err := src.ModelBytes(ctx)
	if err != nil {
		return domain.NewLoadError("reading model", err)
	}
	if len(data) == 0 {
		return domain.NewLoadError("reading model", errors.New("model is empty"))
	}

	graph, err := e.compiler.Compile(data, e.shape)
	if err != nil {
		var loadErr *domain.LoadError
		if errors.As(err, &loadErr) {
			return err
		}
		return domain.NewLoadError("compiling model", err)
	}

	labels, err := e.loadLabels(ctx, src)
	if err != nil {
		log.Warn("Failed to load labels, class names will be synthesized", zap.Error(err))
	}

	previous := e.loaded
	e.loaded = &loadedModel{
		graph:    graph,
		labels:   labels,
		source:   name,
		loadedAt: time.Now(),
	}

	if previous != nil {
		if err := previous.graph.Close(); err != nil {
			log.Warn("Failed to release previous model", zap.Error(err))
		}
	}

	log.Info("Model initialized",
		zap.Int("labels", len(labels)),
		zap.Duration("duration", time.Since(startedAt)))

	return nil
}

func (e *Engine) loadLabels(ctx context.Context, src Source) (LabelTable, error) {
	data, err := src.LabelBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	return ParseLabels(data)
}

// Classify runs one forward pass over a normalized HWC tensor and returns the
// top-k labels, highest score first.
func (e *Engine) Classify(tensor []float32) ([]domain.Prediction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.loaded == nil {
		return nil, domain.ErrNotInitialized
	}
	if len(tensor) != e.shape.Len() {
		return nil, domain.Decodef("tensor has %d values, want %d for input %s", len(tensor), e.shape.Len(), e.shape)
	}

	startedAt := time.Now()

	scores, err := e.loaded.graph.Run(toCHW(tensor, e.shape))
	if err != nil {
		if errors.Is(err, domain.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}
	if len(scores) == 0 {
		return nil, domain.Inferencef("model produced no class scores")
	}

	predictions := rank(scores, e.loaded.labels, e.topK)

	e.logger.Debug("Inference completed",
		zap.Int("classes", len(scores)),
		zap.Duration("duration", time.Since(startedAt)))

	return predictions, nil
}

// Ready reports whether a model is loaded.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded != nil
}

// Status reports the loaded model, if any.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{InputShape: e.shape.String()}
	if e.loaded != nil {
		s.Ready = true
		s.Source = e.loaded.source
		s.Labels = len(e.loaded.labels)
		s.LoadedAt = e.loaded.loadedAt
	}
	return s
}

// Close releases the loaded model and returns the engine to uninitialized.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded == nil {
		return nil
	}
	err := e.loaded.graph.Close()
	e.loaded = nil
	return err
}

// toCHW repacks an HWC tensor into the NCHW order the graph expects.
func toCHW(hwc []float32, shape domain.InputShape) []float32 {
	w, h := shape.Width, shape.Height
	plane := w * h
	chw := make([]float32, len(hwc))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixel := y*w + x
			for c := 0; c < domain.Channels; c++ {
				chw[c*plane+pixel] = hwc[pixel*domain.Channels+c]
			}
		}
	}
	return chw
}

func describe(src Source) string {
	if s, ok := src.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", src)
}
