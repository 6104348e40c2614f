package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/domain"
	"github.com/Brownie44l1/vision-api/internal/model"
)

// Recognizer is the recognition pipeline the handlers drive.
type Recognizer interface {
	InitModel(ctx context.Context) (string, error)
	RecognizeFromPath(path string) ([]domain.Prediction, error)
	RecognizeFromEncoded(data string) ([]domain.Prediction, error)
	RecognizeFromRawFrame(width, height uint32, rgba []byte) ([]domain.Prediction, error)
	RecognizeFromReader(r io.Reader) ([]domain.Prediction, error)
	RecognizeTensor(values []float32) ([]domain.Prediction, error)
	Status() model.Status
}

type Options struct {
	// MaxUploadBytes bounds multipart uploads.
	MaxUploadBytes int64
	// RootDir confines path recognition when non-empty.
	RootDir string
}

type Handler struct {
	recognizer Recognizer
	opts       Options
	logger     *zap.Logger
}

func NewHandler(recognizer Recognizer, opts Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		recognizer: recognizer,
		opts:       opts,
		logger:     logger,
	}
}

// Health handles GET /health. The process is healthy whether or not a model
// is loaded; readiness is reported separately.
func (h *Handler) Health(c *gin.Context) {
	status := h.recognizer.Status()
	modelState := "not loaded"
	if status.Ready {
		modelState = "ok"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"components": gin.H{"model": modelState},
	})
}

// Ready handles GET /ready.
func (h *Handler) Ready(c *gin.Context) {
	status := h.recognizer.Status()
	if !status.Ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "model not initialized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "model": status})
}

// InitModel handles POST /api/v1/model/init.
func (h *Handler) InitModel(c *gin.Context) {
	msg, err := h.recognizer.InitModel(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	h.logger.Info(msg)
	h.ok(c, InitResponse{
		Message: msg,
		Labels:  h.recognizer.Status().Labels,
	})
}

// RecognizePath handles POST /api/v1/recognize/path.
func (h *Handler) RecognizePath(c *gin.Context) {
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleInvalidRequest(c, "path is required")
		return
	}

	path, err := confine(h.opts.RootDir, req.Path)
	if err != nil {
		fail(c, http.StatusForbidden, CodeForbiddenPath, err.Error())
		return
	}

	h.respond(c, func() ([]domain.Prediction, error) {
		return h.recognizer.RecognizeFromPath(path)
	})
}

// RecognizeData handles POST /api/v1/recognize/data.
func (h *Handler) RecognizeData(c *gin.Context) {
	var req DataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleInvalidRequest(c, "data is required")
		return
	}

	h.respond(c, func() ([]domain.Prediction, error) {
		return h.recognizer.RecognizeFromEncoded(req.Data)
	})
}

// RecognizeFrame handles POST /api/v1/recognize/frame.
func (h *Handler) RecognizeFrame(c *gin.Context) {
	var req FrameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleInvalidRequest(c, "width, height and rgba are required")
		return
	}

	h.respond(c, func() ([]domain.Prediction, error) {
		return h.recognizer.RecognizeFromRawFrame(req.Width, req.Height, req.RGBA)
	})
}

// RecognizeImage handles POST /api/v1/recognize/image with a multipart
// "image" field.
func (h *Handler) RecognizeImage(c *gin.Context) {
	if c.Request.ContentLength > h.opts.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadTooLarge(c)
			return
		}
		handleInvalidRequest(c, "no image file provided, use 'image' as the form field name")
		return
	}
	defer file.Close()

	h.logger.Debug("Received upload",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))

	h.respond(c, func() ([]domain.Prediction, error) {
		return h.recognizer.RecognizeFromReader(file)
	})
}

// RecognizeTensor handles POST /api/v1/recognize/tensor.
func (h *Handler) RecognizeTensor(c *gin.Context) {
	var req TensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleInvalidRequest(c, "values are required")
		return
	}

	h.respond(c, func() ([]domain.Prediction, error) {
		return h.recognizer.RecognizeTensor(req.Values)
	})
}

func (h *Handler) uploadTooLarge(c *gin.Context) {
	fail(c, http.StatusRequestEntityTooLarge, CodeTooLarge,
		fmt.Sprintf("upload exceeds %d bytes", h.opts.MaxUploadBytes))
}

func (h *Handler) respond(c *gin.Context, recognize func() ([]domain.Prediction, error)) {
	predictions, err := recognize()
	if err != nil {
		handleError(c, err)
		return
	}
	h.ok(c, RecognitionResponse{Predictions: predictions})
}

var errOutsideRoot = errors.New("path is outside the image root")

// confine resolves path against root and rejects anything that escapes it.
// An empty root allows any path.
func confine(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving image root: %w", err)
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absRoot, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return resolved, nil
}
