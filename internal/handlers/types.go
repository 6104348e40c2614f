package handlers

import "github.com/Brownie44l1/vision-api/internal/domain"

type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// DataRequest carries base64 image text, optionally as a data URL.
type DataRequest struct {
	Data string `json:"data" binding:"required"`
}

// FrameRequest carries a packed RGBA frame; RGBA is base64 in JSON.
type FrameRequest struct {
	Width  uint32 `json:"width" binding:"required"`
	Height uint32 `json:"height" binding:"required"`
	RGBA   []byte `json:"rgba" binding:"required"`
}

// TensorRequest carries an already normalized HWC tensor.
type TensorRequest struct {
	Values []float32 `json:"values" binding:"required"`
}

type RecognitionResponse struct {
	Predictions []domain.Prediction `json:"predictions"`
}

type InitResponse struct {
	Message string `json:"message"`
	Labels  int    `json:"labels"`
}
