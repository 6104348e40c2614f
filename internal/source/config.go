package source

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Brownie44l1/vision-api/assets"
	"github.com/Brownie44l1/vision-api/internal/config"
	"github.com/Brownie44l1/vision-api/internal/model"
)

// FromConfig builds the sources named in cfg.Model.Sources, in order.
func FromConfig(cfg *config.Config, logger *zap.Logger) ([]model.Source, error) {
	var sources []model.Source
	for _, kind := range cfg.Model.Sources {
		switch kind {
		case config.SourceEmbedded:
			sources = append(sources, &Embedded{
				Model:  assets.Model(),
				Labels: assets.Labels(),
			})
		case config.SourceFile:
			sources = append(sources, &Files{
				ModelPath:  cfg.Sources.File.ModelPath,
				LabelsPath: cfg.Sources.File.LabelsPath,
			})
		case config.SourceGCS:
			sources = append(sources, &GCS{
				Bucket:       cfg.Sources.GCS.Bucket,
				ModelObject:  cfg.Sources.GCS.ModelObject,
				LabelsObject: cfg.Sources.GCS.LabelsObject,
				Endpoint:     cfg.Sources.GCS.Endpoint,
				Logger:       logger,
			})
		case config.SourceBlobserver:
			baseURL, err := url.Parse(cfg.Sources.Blobserver.URL)
			if err != nil {
				return nil, fmt.Errorf("parsing blobserver url %q: %w", cfg.Sources.Blobserver.URL, err)
			}
			sources = append(sources, &Blobserver{
				BaseURL:    baseURL,
				ModelHash:  cfg.Sources.Blobserver.ModelHash,
				LabelsHash: cfg.Sources.Blobserver.LabelsHash,
				Client:     &http.Client{Timeout: 5 * time.Minute},
				Logger:     logger,
			})
		default:
			return nil, fmt.Errorf("unknown model source %q", kind)
		}
	}
	return sources, nil
}
