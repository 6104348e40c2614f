package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

// Error codes returned in the response envelope.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidImage   = "INVALID_IMAGE"
	CodeTooLarge       = "PAYLOAD_TOO_LARGE"
	CodeForbiddenPath  = "FORBIDDEN_PATH"
	CodeNotInitialized = "MODEL_NOT_INITIALIZED"
	CodeLoadFailed     = "MODEL_LOAD_FAILED"
	CodeInferenceError = "INFERENCE_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the HTTP rendering of a pipeline error.
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps pipeline errors onto HTTP responses. The message is the
// error's own description so callers see which stage failed.
func MapError(err error) ErrorResponse {
	switch {
	case errors.Is(err, domain.ErrDecode):
		return ErrorResponse{StatusCode: http.StatusBadRequest, Code: CodeInvalidImage, Message: err.Error()}
	case errors.Is(err, domain.ErrNotInitialized):
		return ErrorResponse{StatusCode: http.StatusServiceUnavailable, Code: CodeNotInitialized, Message: err.Error()}
	case errors.Is(err, domain.ErrLoad):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeLoadFailed, Message: err.Error()}
	case errors.Is(err, domain.ErrInference):
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeInferenceError, Message: err.Error()}
	default:
		return ErrorResponse{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error"}
	}
}

func handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	resp := MapError(err)
	fail(c, resp.StatusCode, resp.Code, resp.Message)
}

func handleInvalidRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, CodeInvalidRequest, message)
}
