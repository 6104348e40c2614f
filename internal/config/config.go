package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source kinds accepted in model.sources.
const (
	SourceEmbedded   = "embedded"
	SourceFile       = "file"
	SourceGCS        = "gcs"
	SourceBlobserver = "blobserver"
)

// Config holds all configuration for the service.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Model   ModelConfig   `mapstructure:"model"`
	Sources SourcesConfig `mapstructure:"sources"`
	ONNX    ONNXConfig    `mapstructure:"onnx"`
	Images  ImagesConfig  `mapstructure:"images"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Output is "stdout" or "stderr".
	Output string `mapstructure:"output"`
}

// ModelConfig describes the model the engine is compiled for.
type ModelConfig struct {
	InputWidth  int  `mapstructure:"input_width"`
	InputHeight int  `mapstructure:"input_height"`
	TopK        int  `mapstructure:"top_k"`
	LoadOnStart bool `mapstructure:"load_on_start"`
	// Sources are tried in order until one initializes the engine.
	Sources []string `mapstructure:"sources"`
}

// SourcesConfig locates model artifacts for each source kind.
type SourcesConfig struct {
	File       FileSourceConfig       `mapstructure:"file"`
	GCS        GCSSourceConfig        `mapstructure:"gcs"`
	Blobserver BlobserverSourceConfig `mapstructure:"blobserver"`
}

type FileSourceConfig struct {
	ModelPath  string `mapstructure:"model_path"`
	LabelsPath string `mapstructure:"labels_path"`
}

type GCSSourceConfig struct {
	Bucket       string `mapstructure:"bucket"`
	ModelObject  string `mapstructure:"model_object"`
	LabelsObject string `mapstructure:"labels_object"`
	Endpoint     string `mapstructure:"endpoint"`
}

type BlobserverSourceConfig struct {
	URL        string `mapstructure:"url"`
	ModelHash  string `mapstructure:"model_hash"`
	LabelsHash string `mapstructure:"labels_hash"`
}

// ONNXConfig configures the ONNX Runtime backend.
type ONNXConfig struct {
	LibraryPath    string `mapstructure:"library_path"`
	IntraOpThreads int    `mapstructure:"intra_op_threads"`
	InputName      string `mapstructure:"input_name"`
	OutputName     string `mapstructure:"output_name"`
}

// ImagesConfig limits image input.
type ImagesConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	// RootDir confines path-based recognition to one directory tree when set.
	RootDir string `mapstructure:"root_dir"`
}

// Load reads configuration from an optional file and VISION_* environment
// variables, in that order of precedence after defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 && paths[0] != "" {
		v.SetConfigFile(paths[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("model.input_width", 224)
	v.SetDefault("model.input_height", 224)
	v.SetDefault("model.top_k", 5)
	v.SetDefault("model.load_on_start", true)
	v.SetDefault("model.sources", []string{SourceEmbedded, SourceFile})

	v.SetDefault("sources.file.model_path", "assets/model/mobilenet_v2.onnx")
	v.SetDefault("sources.file.labels_path", "assets/model/labels.txt")
	v.SetDefault("sources.gcs.bucket", "")
	v.SetDefault("sources.gcs.model_object", "")
	v.SetDefault("sources.gcs.labels_object", "")
	v.SetDefault("sources.gcs.endpoint", "")
	v.SetDefault("sources.blobserver.url", "")
	v.SetDefault("sources.blobserver.model_hash", "")
	v.SetDefault("sources.blobserver.labels_hash", "")

	v.SetDefault("onnx.library_path", "")
	v.SetDefault("onnx.intra_op_threads", 0)
	v.SetDefault("onnx.input_name", "")
	v.SetDefault("onnx.output_name", "")

	v.SetDefault("images.max_upload_bytes", 10<<20)
	v.SetDefault("images.root_dir", "")
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be > 0 (got %dx%d)", c.Model.InputWidth, c.Model.InputHeight)
	}
	if c.Model.TopK <= 0 {
		return fmt.Errorf("model.top_k must be > 0 (got %d)", c.Model.TopK)
	}
	if len(c.Model.Sources) == 0 {
		return errors.New("model.sources must name at least one source")
	}
	for _, kind := range c.Model.Sources {
		switch kind {
		case SourceEmbedded:
		case SourceFile:
			if c.Sources.File.ModelPath == "" {
				return errors.New("sources.file.model_path must be set")
			}
		case SourceGCS:
			if c.Sources.GCS.Bucket == "" || c.Sources.GCS.ModelObject == "" {
				return errors.New("sources.gcs.bucket and sources.gcs.model_object must be set")
			}
		case SourceBlobserver:
			if c.Sources.Blobserver.URL == "" || c.Sources.Blobserver.ModelHash == "" {
				return errors.New("sources.blobserver.url and sources.blobserver.model_hash must be set")
			}
		default:
			return fmt.Errorf("unknown model source %q", kind)
		}
	}
	if c.Images.MaxUploadBytes <= 0 {
		return fmt.Errorf("images.max_upload_bytes must be > 0 (got %d)", c.Images.MaxUploadBytes)
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
