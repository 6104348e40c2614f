package model

import (
	"errors"
	"fmt"
	"slices"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

// ONNXConfig configures the ONNX Runtime backend.
type ONNXConfig struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search.
	LibraryPath string
	// IntraOpThreads caps threads used inside one operator; 0 lets the runtime decide.
	IntraOpThreads int
	// InputName and OutputName select graph endpoints when a model has
	// more than one. Empty means "the only one".
	InputName  string
	OutputName string
}

// ONNXCompiler compiles ONNX models into sessions on the ONNX Runtime.
type ONNXCompiler struct {
	cfg ONNXConfig
}

var _ Compiler = (*ONNXCompiler)(nil)

// NewONNXCompiler initializes the ONNX Runtime environment.
func NewONNXCompiler(cfg ONNXConfig) (*ONNXCompiler, error) {
	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	return &ONNXCompiler{cfg: cfg}, nil
}

// Close tears down the ONNX Runtime environment. Compiled graphs must be
// closed first.
func (c *ONNXCompiler) Close() error {
	return ort.DestroyEnvironment()
}

// Compile validates that the model takes one float32 (1, 3, H, W) input and
// produces float32 scores, applies all graph optimizations and creates a
// session.
func (c *ONNXCompiler) Compile(data []byte, shape domain.InputShape) (Graph, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, domain.NewLoadError("parsing model", err)
	}

	input, err := selectEndpoint(inputs, c.cfg.InputName, "input")
	if err != nil {
		return nil, domain.NewLoadError("declaring input", err)
	}
	if err := checkInput(input, shape); err != nil {
		return nil, domain.NewLoadError("declaring input", err)
	}

	output, err := selectEndpoint(outputs, c.cfg.OutputName, "output")
	if err != nil {
		return nil, domain.NewLoadError("declaring output", err)
	}
	if err := checkFloatTensor(output); err != nil {
		return nil, domain.NewLoadError("declaring output", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, domain.NewLoadError("creating session options", err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, domain.NewLoadError("optimizing model", err)
	}
	if c.cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(c.cfg.IntraOpThreads); err != nil {
			return nil, domain.NewLoadError("creating session options", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data,
		[]string{input.Name}, []string{output.Name}, options)
	if err != nil {
		return nil, domain.NewLoadError("creating session", err)
	}

	return &onnxGraph{
		session: session,
		shape:   ort.NewShape(shape.Dims()...),
	}, nil
}

func selectEndpoint(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	if name != "" {
		for _, info := range infos {
			if info.Name == name {
				return info, nil
			}
		}
		return ort.InputOutputInfo{}, fmt.Errorf("model has no %s named %q", kind, name)
	}
	if len(infos) != 1 {
		return ort.InputOutputInfo{}, fmt.Errorf("model has %d %ss, want exactly 1", len(infos), kind)
	}
	return infos[0], nil
}

func checkFloatTensor(info ort.InputOutputInfo) error {
	if info.OrtValueType != ort.ONNXTypeTensor {
		return fmt.Errorf("%q is a %v, want a tensor", info.Name, info.OrtValueType)
	}
	if info.DataType != ort.TensorElementDataTypeFloat {
		return fmt.Errorf("%q has element type %v, want float32", info.Name, info.DataType)
	}
	return nil
}

// checkInput accepts a declared input of (1, 3, H, W) where any dimension may
// be symbolic (negative).
func checkInput(info ort.InputOutputInfo, shape domain.InputShape) error {
	if err := checkFloatTensor(info); err != nil {
		return err
	}
	want := shape.Dims()
	if len(info.Dimensions) != len(want) {
		return fmt.Errorf("input %q has shape %v, want %v", info.Name, info.Dimensions, want)
	}
	for i, dim := range info.Dimensions {
		if dim >= 0 && dim != want[i] {
			return fmt.Errorf("input %q has shape %v, want %v", info.Name, info.Dimensions, want)
		}
	}
	return nil
}

type onnxGraph struct {
	session *ort.DynamicAdvancedSession
	shape   ort.Shape
}

func (g *onnxGraph) Run(input []float32) ([]float32, error) {
	inputTensor, err := ort.NewTensor(g.shape, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := g.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, domain.Inferencef("unexpected output type %T", outputs[0])
	}
	if err := checkScoresShape(outputTensor.GetShape()); err != nil {
		return nil, err
	}

	// The tensor's memory is released by Destroy.
	return slices.Clone(outputTensor.GetData()), nil
}

// checkScoresShape accepts shapes with at most one dimension larger than 1,
// such as (N), (1, N) or (1, N, 1, 1).
func checkScoresShape(shape ort.Shape) error {
	if len(shape) == 0 {
		return domain.Inferencef("output is a scalar, want per-class scores")
	}
	wide := 0
	for _, dim := range shape {
		if dim > 1 {
			wide++
		}
	}
	if wide > 1 {
		return domain.Inferencef("unexpected output shape %v", shape)
	}
	return nil
}

func (g *onnxGraph) Close() error {
	if g.session == nil {
		return errors.New("session already closed")
	}
	err := g.session.Destroy()
	g.session = nil
	return err
}
