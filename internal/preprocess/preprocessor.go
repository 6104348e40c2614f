// Package preprocess converts images of arbitrary size and color layout into
// the flat normalized tensors consumed by the inference engine.
//
// Tensors are laid out row-major and channel-interleaved (HWC): for pixel
// (x, y) the red, green and blue values sit at (y*width+x)*3 + {0,1,2}. Every
// value is an 8-bit channel divided by 255.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

// DataURLMarker separates a data URL header from its base64 payload.
const DataURLMarker = "base64,"

// Preprocessor turns image sources into normalized tensors of a fixed target
// size. All conversions are serialized on an internal lock.
type Preprocessor struct {
	mu     sync.Mutex
	width  int
	height int
	logger *zap.Logger
}

// New creates a Preprocessor targeting width x height.
func New(width, height int, logger *zap.Logger) (*Preprocessor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Preprocessor{logger: logger}
	if err := p.SetTargetDimensions(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

// SetTargetDimensions changes the output size. Callers must not change the
// size while classifications that depend on it are in flight.
func (p *Preprocessor) SetTargetDimensions(width, height int) error {
	if err := (domain.InputShape{Width: width, Height: height}).Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.width = width
	p.height = height
	return nil
}

// TargetDimensions returns the current output width and height.
func (p *Preprocessor) TargetDimensions() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// FromPath decodes the image file at path.
func (p *Preprocessor) FromPath(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open image from path %q: %w", domain.ErrDecode, path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image %q: %w", domain.ErrDecode, path, err)
	}
	return p.normalize(img)
}

// FromReader decodes an encoded image container read from r.
func (p *Preprocessor) FromReader(r io.Reader) ([]float32, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load image from data: %w", domain.ErrDecode, err)
	}
	return p.normalize(img)
}

// FromEncoded decodes base64 image data, optionally prefixed with a data URL
// header such as "data:image/png;base64,".
func (p *Preprocessor) FromEncoded(text string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(StripDataURL(text))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 image data: %w", domain.ErrDecode, err)
	}
	return p.FromReader(bytes.NewReader(data))
}

// FromRawPixels wraps a tightly packed RGBA buffer of width*height*4 bytes.
func (p *Preprocessor) FromRawPixels(width, height int, rgba []byte) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, domain.Decodef("invalid frame dimensions %dx%d", width, height)
	}
	if width > math.MaxInt/4/height {
		return nil, domain.Decodef("frame dimensions %dx%d overflow the pixel buffer size", width, height)
	}
	want := width * height * 4
	if len(rgba) != want {
		return nil, domain.Decodef("frame buffer has %d bytes, want %d for %dx%d RGBA", len(rgba), want, width, height)
	}

	img := &image.NRGBA{
		Pix:    rgba,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	return p.normalize(img)
}

// StripDataURL removes everything up to and including the first data URL
// marker. Input without a marker is returned unchanged.
func StripDataURL(text string) string {
	if _, payload, found := strings.Cut(text, DataURLMarker); found {
		return payload
	}
	return text
}

func (p *Preprocessor) normalize(img image.Image) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, domain.Decodef("image has no pixels")
	}

	p.logger.Debug("Preprocessing image",
		zap.Int("source_width", bounds.Dx()),
		zap.Int("source_height", bounds.Dy()),
		zap.Int("target_width", p.width),
		zap.Int("target_height", p.height))

	// Alpha is dropped before resampling so color channels are interpolated
	// unpremultiplied.
	opaque := imaging.Clone(img)
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}

	resized := imaging.Clone(resize.Resize(uint(p.width), uint(p.height), opaque, resize.Bilinear))
	width, height := resized.Bounds().Dx(), resized.Bounds().Dy()
	if width != p.width || height != p.height {
		return nil, domain.Decodef("resized image is %dx%d, want %dx%d", width, height, p.width, p.height)
	}

	inputData := make([]float32, 0, width*height*domain.Channels)
	for y := 0; y < height; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+width*4]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+3]
			inputData = append(inputData,
				float32(px[0])/255.0,
				float32(px[1])/255.0,
				float32(px[2])/255.0)
		}
	}

	p.logger.Debug("Preprocessed image", zap.Int("values", len(inputData)))

	return inputData, nil
}
