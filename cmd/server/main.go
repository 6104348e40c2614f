package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/config"
	"github.com/Brownie44l1/vision-api/internal/domain"
	"github.com/Brownie44l1/vision-api/internal/handlers"
	"github.com/Brownie44l1/vision-api/internal/logger"
	"github.com/Brownie44l1/vision-api/internal/metrics"
	"github.com/Brownie44l1/vision-api/internal/model"
	"github.com/Brownie44l1/vision-api/internal/preprocess"
	"github.com/Brownie44l1/vision-api/internal/router"
	"github.com/Brownie44l1/vision-api/internal/service"
	"github.com/Brownie44l1/vision-api/internal/source"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)

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
		model.WithLogger(log.Named("engine")))
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	pre, err := preprocess.New(shape.Width, shape.Height, log.Named("preprocess"))
	if err != nil {
		return err
	}

	sources, err := source.FromConfig(cfg, log.Named("source"))
	if err != nil {
		return err
	}

	recognizer, err := service.NewRecognizer(pre, engine, sources, metrics.New(prometheus.DefaultRegisterer), log)
	if err != nil {
		return err
	}

	if cfg.Model.LoadOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		msg, err := recognizer.InitModel(ctx)
		cancel()
		if err != nil {
			// Serve anyway; POST /api/v1/model/init can retry.
			log.Warn("Model not loaded at startup", zap.Error(err))
		} else {
			log.Info(msg, zap.Int("labels", recognizer.Status().Labels))
		}
	}

	h := handlers.NewHandler(recognizer, handlers.Options{
		MaxUploadBytes: cfg.Images.MaxUploadBytes,
		RootDir:        cfg.Images.RootDir,
	}, log)
	r := router.Setup(h, nil, log)

	addr := cfg.Server.Address()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
