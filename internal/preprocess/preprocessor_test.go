package preprocess

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/internal/domain"
)

func newTestPreprocessor(t *testing.T, width, height int) *Preprocessor {
	t.Helper()
	p, err := New(width, height, zap.NewNop())
	require.NoError(t, err)
	return p
}

func solidImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func assertTensor(t *testing.T, values []float32, width, height int) {
	t.Helper()
	require.Len(t, values, 3*width*height)
	for i, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("value %d out of range: %v", i, v)
		}
	}
}

func TestNew(t *testing.T) {
	p := newTestPreprocessor(t, 224, 224)
	w, h := p.TargetDimensions()
	assert.Equal(t, 224, w)
	assert.Equal(t, 224, h)

	_, err := New(0, 224, nil)
	assert.Error(t, err)
}

func TestFromEncoded_OutputShapeAcrossSourceSizes(t *testing.T) {
	p := newTestPreprocessor(t, 32, 24)

	sizes := []image.Point{{1, 1}, {7, 3}, {32, 24}, {100, 10}, {300, 301}}
	for _, size := range sizes {
		img := solidImage(size.X, size.Y, color.NRGBA{R: 10, G: 200, B: 90, A: 255})
		encoded := base64.StdEncoding.EncodeToString(encodePNG(t, img))

		values, err := p.FromEncoded(encoded)
		require.NoError(t, err, "size %v", size)
		assertTensor(t, values, 32, 24)
	}
}

func TestFromEncoded_ChannelOrder(t *testing.T) {
	p := newTestPreprocessor(t, 4, 4)
	img := solidImage(8, 8, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	encoded := base64.StdEncoding.EncodeToString(encodePNG(t, img))

	values, err := p.FromEncoded(encoded)
	require.NoError(t, err)
	assertTensor(t, values, 4, 4)

	for i := 0; i < len(values); i += 3 {
		assert.InDelta(t, 1.0, values[i], 1e-6)
		assert.InDelta(t, 0.0, values[i+1], 1e-6)
		assert.InDelta(t, 0.2, values[i+2], 1e-6)
	}
}

func TestFromEncoded_DataURL(t *testing.T) {
	p := newTestPreprocessor(t, 8, 8)
	payload := base64.StdEncoding.EncodeToString(encodePNG(t, solidImage(5, 5, color.Gray{Y: 128})))

	plain, err := p.FromEncoded(payload)
	require.NoError(t, err)

	withHeader, err := p.FromEncoded("data:image/png;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, plain, withHeader)
}

func TestStripDataURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain base64", input: "aGVsbG8=", want: "aGVsbG8="},
		{name: "data url", input: "data:image/jpeg;base64,aGVsbG8=", want: "aGVsbG8="},
		{name: "marker only", input: "base64,aGVsbG8=", want: "aGVsbG8="},
		{name: "empty payload", input: "data:image/png;base64,", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := StripDataURL(tt.input)
			assert.Equal(t, tt.want, once)
			assert.Equal(t, once, StripDataURL(once))
		})
	}
}

func TestFromEncoded_Errors(t *testing.T) {
	p := newTestPreprocessor(t, 8, 8)

	t.Run("invalid base64", func(t *testing.T) {
		_, err := p.FromEncoded("data:image/png;base64,!!!not base64!!!")
		assert.ErrorIs(t, err, domain.ErrDecode)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := p.FromEncoded(base64.StdEncoding.EncodeToString([]byte("plain text, no pixels")))
		assert.ErrorIs(t, err, domain.ErrDecode)
	})
}

func TestFromPath(t *testing.T) {
	p := newTestPreprocessor(t, 16, 16)
	dir := t.TempDir()

	t.Run("png", func(t *testing.T) {
		path := filepath.Join(dir, "gray.png")
		require.NoError(t, os.WriteFile(path, encodePNG(t, solidImage(40, 20, color.Gray{Y: 128})), 0o644))

		values, err := p.FromPath(path)
		require.NoError(t, err)
		assertTensor(t, values, 16, 16)
		for _, v := range values {
			assert.InDelta(t, 128.0/255.0, v, 1e-6)
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, solidImage(30, 50, color.White), nil))
		path := filepath.Join(dir, "white.jpg")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		values, err := p.FromPath(path)
		require.NoError(t, err)
		assertTensor(t, values, 16, 16)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.FromPath(filepath.Join(dir, "missing.png"))
		assert.ErrorIs(t, err, domain.ErrDecode)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unrecognized format", func(t *testing.T) {
		path := filepath.Join(dir, "labels.txt")
		require.NoError(t, os.WriteFile(path, []byte("cat\ndog\n"), 0o644))

		_, err := p.FromPath(path)
		assert.ErrorIs(t, err, domain.ErrDecode)
	})
}

func TestFromRawPixels(t *testing.T) {
	p := newTestPreprocessor(t, 4, 4)

	t.Run("drops alpha", func(t *testing.T) {
		frame := bytes.Repeat([]byte{0, 255, 0, 10}, 6*2)

		values, err := p.FromRawPixels(6, 2, frame)
		require.NoError(t, err)
		assertTensor(t, values, 4, 4)
		for i := 0; i < len(values); i += 3 {
			assert.InDelta(t, 0.0, values[i], 1e-6)
			assert.InDelta(t, 1.0, values[i+1], 1e-6)
			assert.InDelta(t, 0.0, values[i+2], 1e-6)
		}
	})

	t.Run("does not modify the frame", func(t *testing.T) {
		frame := bytes.Repeat([]byte{1, 2, 3, 4}, 4)
		_, err := p.FromRawPixels(2, 2, frame)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{1, 2, 3, 4}, 4), frame)
	})

	t.Run("rejects wrong buffer length", func(t *testing.T) {
		_, err := p.FromRawPixels(4, 4, make([]byte, 4*4*3))
		assert.ErrorIs(t, err, domain.ErrDecode)
	})

	t.Run("rejects empty dimensions", func(t *testing.T) {
		_, err := p.FromRawPixels(0, 4, nil)
		assert.ErrorIs(t, err, domain.ErrDecode)
	})

	t.Run("rejects dimensions whose byte size overflows", func(t *testing.T) {
		var err error
		assert.NotPanics(t, func() {
			_, err = p.FromRawPixels(math.MaxInt32, math.MaxInt32, []byte{})
		})
		assert.ErrorIs(t, err, domain.ErrDecode)
	})
}

func TestSetTargetDimensions(t *testing.T) {
	p := newTestPreprocessor(t, 224, 224)
	require.NoError(t, p.SetTargetDimensions(10, 6))

	values, err := p.FromRawPixels(3, 3, bytes.Repeat([]byte{9, 9, 9, 255}, 9))
	require.NoError(t, err)
	assertTensor(t, values, 10, 6)

	assert.Error(t, p.SetTargetDimensions(-1, 6))
	w, h := p.TargetDimensions()
	assert.Equal(t, 10, w)
	assert.Equal(t, 6, h)
}
