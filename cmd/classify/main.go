// Command classify runs a single image through the recognition pipeline and
// prints the ranked predictions as JSON.
//
//	classify -model mobilenet_v2.onnx -labels labels.txt -image cat.jpg
//	classify -model mobilenet_v2.onnx -data "data:image/png;base64,..."
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/config"
	"github.com/Brownie44l1/vision-api/internal/domain"
	"github.com/Brownie44l1/vision-api/internal/logger"
	"github.com/Brownie44l1/vision-api/internal/metrics"
	"github.com/Brownie44l1/vision-api/internal/model"
	"github.com/Brownie44l1/vision-api/internal/preprocess"
	"github.com/Brownie44l1/vision-api/internal/service"
	"github.com/Brownie44l1/vision-api/internal/source"
)

type output struct {
	Model       string              `json:"model"`
	Input       string              `json:"input"`
	Predictions []domain.Prediction `json:"predictions"`
	ElapsedMS   int64               `json:"elapsed_ms"`
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "path to a YAML config file")
	modelPath := flag.String("model", "", "ONNX model file (overrides config sources)")
	labelsPath := flag.String("labels", "", "newline-delimited label file")
	imagePath := flag.String("image", "", "image file to classify")
	data := flag.String("data", "", "base64 image or data URL to classify")
	libPath := flag.String("ort-lib", "", "onnxruntime shared library")
	verbose := flag.Bool("v", false, "log debug output to stderr")
	flag.Parse()

	if (*imagePath == "") == (*data == "") {
		return errors.New("exactly one of -image or -data is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *modelPath != "" {
		cfg.Model.Sources = []string{config.SourceFile}
		cfg.Sources.File = config.FileSourceConfig{ModelPath: *modelPath, LabelsPath: *labelsPath}
	}
	if *libPath != "" {
		cfg.ONNX.LibraryPath = *libPath
	}

	cfg.Log.Output = "stderr"
	cfg.Log.Format = "console"
	cfg.Log.Level = "warn"
	if *verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	compiler, err := model.NewONNXCompiler(model.ONNXConfig{
		LibraryPath:    cfg.ONNX.LibraryPath,
		IntraOpThreads: cfg.ONNX.IntraOpThreads,
		InputName:      cfg.ONNX.InputName,
		OutputName:     cfg.ONNX.OutputName,
	})
	if err != nil {
		return err
	}
	defer func() { _ = compiler.Close() }()

	shape := domain.InputShape{Width: cfg.Model.InputWidth, Height: cfg.Model.InputHeight}
	engine, err := model.NewEngine(compiler,
		model.WithInputShape(shape),
		model.WithTopK(cfg.Model.TopK),
		model.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	pre, err := preprocess.New(shape.Width, shape.Height, log)
	if err != nil {
		return err
	}
	sources, err := source.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	recognizer, err := service.NewRecognizer(pre, engine, sources, metrics.New(prometheus.NewRegistry()), log)
	if err != nil {
		return err
	}

	msg, err := recognizer.InitModel(ctx)
	if err != nil {
		return err
	}
	log.Debug(msg)

	startedAt := time.Now()
	out := output{Model: recognizer.Status().Source}
	if *imagePath != "" {
		out.Input = *imagePath
		out.Predictions, err = recognizer.RecognizeFromPath(*imagePath)
	} else {
		out.Input = "data"
		out.Predictions, err = recognizer.RecognizeFromEncoded(*data)
	}
	if err != nil {
		return err
	}
	out.ElapsedMS = time.Since(startedAt).Milliseconds()
	log.Debug("Classified", zap.Duration("elapsed", time.Since(startedAt)))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
