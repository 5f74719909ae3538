// Package config handles service configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Default returns the default configuration.
func Default() *Config {
	dataDir := filepath.Join(os.TempDir(), "photo-inference")

	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeoutSec:  60,
			WriteTimeoutSec: 60,
			MaxUploadMB:     10,
		},
		Runtime: RuntimeConfig{
			IntraOpThreads: 0,
			PoolSize:       1,
		},
		Model: ModelConfig{
			Kind:           ModelKindClassifier,
			Dir:            "models",
			Version:        2,
			Alpha:          1.0,
			TopK:           3,
			Name:           "ssdlite_mobilenet_v2",
			ScoreThreshold: 0.5,
			IoUThreshold:   0.5,
			MaxDetections:  20,
		},
		Storage: StorageConfig{
			CaptureDir: filepath.Join(dataDir, "captures"),
			ImageDir:   filepath.Join(dataDir, "images"),
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load loads the configuration from the given path and applies environment
// overrides. A missing file yields defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnv("LISTEN_ADDR", cfg.Server.Addr)
	cfg.Runtime.LibraryPath = getEnv("ORT_LIBRARY_PATH", cfg.Runtime.LibraryPath)
	cfg.Runtime.PoolSize = getEnvInt("ORT_POOL_SIZE", cfg.Runtime.PoolSize)
	cfg.Model.Kind = ModelKind(getEnv("MODEL_KIND", string(cfg.Model.Kind)))
	cfg.Model.Dir = getEnv("MODEL_DIR", cfg.Model.Dir)
	cfg.Model.Name = getEnv("MODEL_NAME", cfg.Model.Name)
	cfg.Storage.CaptureDir = getEnv("CAPTURE_DIR", cfg.Storage.CaptureDir)
	cfg.Storage.ImageDir = getEnv("IMAGE_DIR", cfg.Storage.ImageDir)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	if v, ok := os.LookupEnv("DEBUG"); ok {
		cfg.Log.Debug = v == "true"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Model.Kind {
	case ModelKindClassifier:
		if c.Model.TopK <= 0 {
			return fmt.Errorf("model.top_k must be positive, got %d", c.Model.TopK)
		}
	case ModelKindDetector:
		if c.Model.Name == "" {
			return fmt.Errorf("model.name is required for detector models")
		}
		if c.Model.MaxDetections <= 0 {
			return fmt.Errorf("model.max_detections must be positive, got %d", c.Model.MaxDetections)
		}
	default:
		return fmt.Errorf("unknown model.kind %q", c.Model.Kind)
	}
	if c.Storage.CaptureDir == "" || c.Storage.ImageDir == "" {
		return fmt.Errorf("storage directories must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
