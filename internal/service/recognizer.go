// Package service exposes the recognition pipeline as the calls an outer
// command layer invokes: initialize the model, then recognize images from a
// path, encoded text, a raw camera frame, an upload or a prepared tensor.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/domain"
	"github.com/Brownie44l1/vision-api/internal/metrics"
	"github.com/Brownie44l1/vision-api/internal/model"
	"github.com/Brownie44l1/vision-api/internal/preprocess"
)

// Input kinds recorded in metrics.
const (
	InputPath    = "path"
	InputEncoded = "encoded"
	InputFrame   = "frame"
	InputUpload  = "upload"
	InputTensor  = "tensor"
)

var errNoSources = errors.New("no model sources configured")

// Recognizer composes a Preprocessor and an Engine. Each guards itself, so
// preprocessing one request never waits on inference for another.
type Recognizer struct {
	pre     *preprocess.Preprocessor
	engine  *model.Engine
	sources []model.Source
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecognizer checks that pre produces tensors of the shape engine expects.
// sources are tried in order by InitModel.
func NewRecognizer(pre *preprocess.Preprocessor, engine *model.Engine, sources []model.Source, m *metrics.Metrics, logger *zap.Logger) (*Recognizer, error) {
	width, height := pre.TargetDimensions()
	if shape := engine.InputShape(); shape.Width != width || shape.Height != height {
		return nil, fmt.Errorf("preprocessor targets %dx%d but engine expects %dx%d", width, height, shape.Width, shape.Height)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{
		pre:     pre,
		engine:  engine,
		sources: sources,
		metrics: m,
		logger:  logger,
	}, nil
}

// InitModel initializes the engine from the first source that loads
// successfully and returns a human-readable success message. When every
// source fails, the errors of all attempts are returned together.
func (r *Recognizer) InitModel(ctx context.Context) (string, error) {
	if len(r.sources) == 0 {
		return "", domain.NewLoadError("resolving sources", errNoSources)
	}

	var errs []error
	for i, src := range r.sources {
		name := fmt.Sprint(src)
		startedAt := time.Now()

		err := r.engine.Initialize(ctx, src)
		r.observe("model_load", startedAt)
		if err == nil {
			r.recordLoad(name, metrics.OutcomeSuccess)
			return fmt.Sprintf("Model initialized successfully from %s", name), nil
		}

		r.recordLoad(name, metrics.OutcomeLoadError)
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
		if i < len(r.sources)-1 {
			r.logger.Warn("Model initialization failed, trying next source",
				zap.String("source", name), zap.Error(err))
		} else {
			r.logger.Error("Model initialization failed", zap.String("source", name), zap.Error(err))
		}
	}
	return "", errors.Join(errs...)
}

// RecognizeFromPath classifies the image file at path.
func (r *Recognizer) RecognizeFromPath(path string) ([]domain.Prediction, error) {
	return r.recognize(InputPath, func() ([]float32, error) {
		return r.pre.FromPath(path)
	})
}

// RecognizeFromEncoded classifies base64 or data URL image text.
func (r *Recognizer) RecognizeFromEncoded(data string) ([]domain.Prediction, error) {
	return r.recognize(InputEncoded, func() ([]float32, error) {
		return r.pre.FromEncoded(data)
	})
}

// RecognizeFromRawFrame classifies a packed RGBA camera frame.
func (r *Recognizer) RecognizeFromRawFrame(width, height uint32, rgba []byte) ([]domain.Prediction, error) {
	return r.recognize(InputFrame, func() ([]float32, error) {
		return r.pre.FromRawPixels(int(width), int(height), rgba)
	})
}

// RecognizeFromReader classifies an encoded image read from rd.
func (r *Recognizer) RecognizeFromReader(rd io.Reader) ([]domain.Prediction, error) {
	return r.recognize(InputUpload, func() ([]float32, error) {
		return r.pre.FromReader(rd)
	})
}

// RecognizeTensor classifies an already normalized HWC tensor.
func (r *Recognizer) RecognizeTensor(values []float32) ([]domain.Prediction, error) {
	return r.recognize(InputTensor, func() ([]float32, error) {
		return values, nil
	})
}

// Status reports the engine state.
func (r *Recognizer) Status() model.Status {
	return r.engine.Status()
}

func (r *Recognizer) recognize(input string, prepare func() ([]float32, error)) ([]domain.Prediction, error) {
	startedAt := time.Now()
	tensor, err := prepare()
	r.observe("preprocess", startedAt)
	if err != nil {
		r.recordRecognition(input, err)
		return nil, err
	}

	startedAt = time.Now()
	predictions, err := r.engine.Classify(tensor)
	r.observe("inference", startedAt)
	r.recordRecognition(input, err)
	if err != nil {
		return nil, err
	}
	return predictions, nil
}

func (r *Recognizer) observe(stage string, startedAt time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveStage(stage, startedAt)
	}
}

func (r *Recognizer) recordLoad(source, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordModelLoad(source, outcome, r.engine.Ready())
	}
}

func (r *Recognizer) recordRecognition(input string, err error) {
	if r.metrics != nil {
		r.metrics.RecordRecognition(input, Outcome(err))
	}
}

// Outcome names the error kind of err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrDecode):
		return metrics.OutcomeDecodeError
	case errors.Is(err, domain.ErrNotInitialized):
		return metrics.OutcomeNotInitialized
	case errors.Is(err, domain.ErrInference):
		return metrics.OutcomeInferenceError
	case errors.Is(err, domain.ErrLoad):
		return metrics.OutcomeLoadError
	default:
		return metrics.OutcomeError
	}
}
