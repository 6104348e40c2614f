package assets

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBundle(t *testing.T) {
	_, err := fs.Stat(files, "model/README.md")
	assert.NoError(t, err)

	// Present or not, a missing artifact reads as nil rather than failing.
	if _, err := fs.Stat(files, ModelFile); err != nil {
		assert.Nil(t, Model())
	} else {
		assert.NotEmpty(t, Model())
	}
	assert.Nil(t, read("model/missing.bin"))
}
