package domain

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadError(t *testing.T) {
	err := NewLoadError("reading model", fs.ErrNotExist)

	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, ErrInference)
	assert.Equal(t, "failed to load model: reading model: file does not exist", err.Error())

	var loadErr *LoadError
	assert.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "reading model", loadErr.Stage)
}

func TestFormattedErrors(t *testing.T) {
	t.Run("decode", func(t *testing.T) {
		err := Decodef("buffer has %d bytes", 3)
		assert.ErrorIs(t, err, ErrDecode)
		assert.Equal(t, "decode error: buffer has 3 bytes", err.Error())
	})

	t.Run("inference", func(t *testing.T) {
		err := Inferencef("empty output")
		assert.ErrorIs(t, err, ErrInference)
		assert.NotErrorIs(t, err, ErrDecode)
	})
}

func TestInputShape(t *testing.T) {
	s := InputShape{Width: 224, Height: 224}
	assert.Equal(t, 3*224*224, s.Len())
	assert.Equal(t, []int64{1, 3, 224, 224}, s.Dims())
	assert.NoError(t, s.Validate())
	assert.Equal(t, "(1, 3, 224, 224)", s.String())

	assert.Error(t, InputShape{Width: 0, Height: 10}.Validate())
}
