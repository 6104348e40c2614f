package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/vision-api/internal/middleware"
)

// Envelope wraps every API response. Exactly one of Data and Error is set.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    Meta       `json:"meta"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta describes how a request was served. Model names the source of the
// model that produced a successful answer.
type Meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	ElapsedMS float64   `json:"elapsed_ms"`
	Model     string    `json:"model,omitempty"`
}

func meta(c *gin.Context) Meta {
	now := time.Now().UTC()
	m := Meta{
		RequestID: c.GetString(middleware.RequestIDKey),
		Timestamp: now,
	}
	if startedAt, ok := c.Get(middleware.RequestStartKey); ok {
		if t, ok := startedAt.(time.Time); ok {
			m.ElapsedMS = float64(now.Sub(t).Microseconds()) / 1000
		}
	}
	return m
}

func (h *Handler) ok(c *gin.Context, data any) {
	m := meta(c)
	if status := h.recognizer.Status(); status.Ready {
		m.Model = status.Source
	}
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Meta: m})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, Envelope{
		Error: &ErrorInfo{Code: code, Message: message},
		Meta:  meta(c),
	})
}
