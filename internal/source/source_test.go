package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/vision-api/assets"
	"github.com/Brownie44l1/vision-api/internal/config"
)

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "mobilenet_v2.onnx")
	labelsPath := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(modelPath, []byte("model-bytes"), 0o644))
	require.NoError(t, os.WriteFile(labelsPath, []byte("cat\ndog\n"), 0o644))

	src := &Files{ModelPath: modelPath, LabelsPath: labelsPath}
	ctx := context.Background()

	data, err := src.ModelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(data))

	data, err = src.LabelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cat\ndog\n", string(data))

	assert.Equal(t, "file://"+modelPath, src.String())

	missing := &Files{ModelPath: filepath.Join(dir, "nope.onnx"), LabelsPath: filepath.Join(dir, "nope.txt")}
	_, err = missing.ModelBytes(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = missing.LabelBytes(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEmbedded(t *testing.T) {
	ctx := context.Background()

	src := &Embedded{Model: []byte{1, 2, 3}, Labels: []byte("a\n")}
	data, err := src.ModelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "embedded (3 bytes)", src.String())

	empty := &Embedded{}
	_, err = empty.ModelBytes(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = empty.LabelBytes(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBlobserver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/blobs/abc123":
			w.Write([]byte("onnx"))
		case "/blobs/def456":
			w.Write([]byte("cat\n"))
		case "/blobs/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	base, err := url.Parse(server.URL + "/blobs")
	require.NoError(t, err)
	ctx := context.Background()

	src := &Blobserver{BaseURL: base, ModelHash: "abc123", LabelsHash: "def456", Client: server.Client()}

	data, err := src.ModelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "onnx", string(data))

	data, err = src.LabelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cat\n", string(data))

	assert.Equal(t, server.URL+"/blobs/abc123", src.String())

	t.Run("not found", func(t *testing.T) {
		missing := &Blobserver{BaseURL: base, ModelHash: "zzz"}
		_, err := missing.ModelBytes(ctx)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no hash", func(t *testing.T) {
		_, err := (&Blobserver{BaseURL: base, ModelHash: "abc123"}).LabelBytes(ctx)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("server error", func(t *testing.T) {
		broken := &Blobserver{BaseURL: base, ModelHash: "broken"}
		_, err := broken.ModelBytes(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, os.ErrNotExist)
	})
}

func TestGCS_String(t *testing.T) {
	src := &GCS{Bucket: "models", ModelObject: "mobilenet/v2.onnx", LabelsObject: "mobilenet/labels.txt"}
	assert.Equal(t, "gs://models/mobilenet/v2.onnx", src.String())
}

func TestGCS_NoLabelsObject(t *testing.T) {
	src := &GCS{Bucket: "models", ModelObject: "mobilenet/v2.onnx"}
	_, err := src.LabelBytes(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGCS_Download(t *testing.T) {
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	objects := map[string]string{
		"models/mobilenet/v2.onnx":    "onnx-bytes",
		"models/mobilenet/labels.txt": "cat\ndog\n",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, body := range objects {
			if strings.HasSuffix(r.URL.Path, "/"+name) || strings.HasSuffix(r.URL.Path, strings.Replace(name, "/", "/o/", 1)) {
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Header().Set("Content-Length", strconv.Itoa(len(body)))
				w.Header().Set("X-Goog-Generation", "1")
				w.Header().Set("X-Goog-Metageneration", "1")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	ctx := context.Background()
	src := &GCS{
		Bucket:       "models",
		ModelObject:  "mobilenet/v2.onnx",
		LabelsObject: "mobilenet/labels.txt",
		Endpoint:     server.URL + "/storage/v1/",
	}

	data, err := src.ModelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))

	data, err = src.LabelBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cat\ndog\n", string(data))

	t.Run("missing object", func(t *testing.T) {
		missing := &GCS{Bucket: "models", ModelObject: "mobilenet/v3.onnx", Endpoint: src.Endpoint}
		_, err := missing.ModelBytes(ctx)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Model.Sources = []string{config.SourceEmbedded, config.SourceBlobserver, config.SourceGCS, config.SourceFile}
	cfg.Sources.File = config.FileSourceConfig{ModelPath: "m.onnx", LabelsPath: "l.txt"}
	cfg.Sources.GCS = config.GCSSourceConfig{Bucket: "models", ModelObject: "v2/model.onnx"}
	cfg.Sources.Blobserver = config.BlobserverSourceConfig{URL: "http://blobserver", ModelHash: "abc"}

	sources, err := FromConfig(cfg, nil)
	require.NoError(t, err)
	require.Len(t, sources, 4)

	assert.IsType(t, &Embedded{}, sources[0])
	assert.IsType(t, &Blobserver{}, sources[1])
	assert.IsType(t, &GCS{}, sources[2])
	assert.IsType(t, &Files{}, sources[3])
	assert.Equal(t, assets.Model(), sources[0].(*Embedded).Model)
	assert.Equal(t, "http://blobserver/abc", sources[1].(*Blobserver).String())
	assert.Equal(t, "gs://models/v2/model.onnx", sources[2].(*GCS).String())
	assert.Equal(t, "file://m.onnx", sources[3].(*Files).String())

	cfg.Model.Sources = []string{"ftp"}
	_, err = FromConfig(cfg, nil)
	assert.Error(t, err)
}
