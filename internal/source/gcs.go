package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCS reads the model and labels from objects in a Google Cloud Storage bucket.
type GCS struct {
	Bucket       string
	ModelObject  string
	LabelsObject string

	// Endpoint overrides the storage API endpoint, e.g. for an emulator.
	// Requests to a custom endpoint are sent without credentials.
	Endpoint string

	Logger *zap.Logger
}

func (g *GCS) ModelBytes(ctx context.Context) ([]byte, error) {
	return g.download(ctx, g.ModelObject)
}

func (g *GCS) LabelBytes(ctx context.Context) ([]byte, error) {
	return g.download(ctx, g.LabelsObject)
}

func (g *GCS) String() string {
	return "gs://" + g.Bucket + "/" + g.ModelObject
}

func (g *GCS) download(ctx context.Context, objectKey string) ([]byte, error) {
	log := g.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if objectKey == "" {
		return nil, fmt.Errorf("no object configured in bucket %q: %w", g.Bucket, os.ErrNotExist)
	}

	gcsURL := "gs://" + g.Bucket + "/" + objectKey

	var opts []option.ClientOption
	if g.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}
	defer client.Close()

	log.Info("downloading blob from GCS", zap.String("source", gcsURL))

	startedAt := time.Now()
	r, err := client.Bucket(g.Bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("object %q not found: %w", gcsURL, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("downloading from GCS: %w", err)
	}

	log.Info("downloaded blob from GCS",
		zap.String("source", gcsURL),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(startedAt)))

	return data, nil
}
