package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
)

// Blobserver fetches content-addressed blobs over HTTP: each artifact is
// served at <BaseURL>/<hash>.
type Blobserver struct {
	// BaseURL is the base URL to the blobserver, typically http://blobserver
	BaseURL    *url.URL
	ModelHash  string
	LabelsHash string

	Client *http.Client
	Logger *zap.Logger
}

func (b *Blobserver) ModelBytes(ctx context.Context) ([]byte, error) {
	return b.fetch(ctx, b.ModelHash)
}

func (b *Blobserver) LabelBytes(ctx context.Context) ([]byte, error) {
	return b.fetch(ctx, b.LabelsHash)
}

func (b *Blobserver) String() string {
	return b.BaseURL.JoinPath(b.ModelHash).String()
}

func (b *Blobserver) fetch(ctx context.Context, hash string) ([]byte, error) {
	log := b.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if hash == "" {
		return nil, fmt.Errorf("no blob hash configured: %w", os.ErrNotExist)
	}

	u := b.BaseURL.JoinPath(hash).String()
	log.Info("downloading from url", zap.String("url", u))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	startedAt := time.Now()

	httpClient := b.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("blob %q not found: %w", hash, os.ErrNotExist)
		}
		return nil, fmt.Errorf("unexpected status downloading from upstream source: %v", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading from upstream source: %w", err)
	}

	log.Info("downloaded blob",
		zap.String("url", u),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(startedAt)))

	return data, nil
}
