// Package assets holds the model and labels compiled into the binary.
package assets

import (
	"embed"
	"io/fs"
)

// Paths inside the embedded filesystem.
const (
	ModelFile  = "model/mobilenet_v2.onnx"
	LabelsFile = "model/labels.txt"
)

//go:embed model
var files embed.FS

// Model returns the bundled model, or nil when none was built in.
func Model() []byte {
	return read(ModelFile)
}

// Labels returns the bundled label file, or nil when none was built in.
func Labels() []byte {
	return read(LabelsFile)
}

func read(name string) []byte {
	data, err := fs.ReadFile(files, name)
	if err != nil {
		return nil
	}
	return data
}
