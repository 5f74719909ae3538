// Package config provides configuration types for the inference service.
package config

// Config represents the main service configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Runtime RuntimeConfig `toml:"runtime"`
	Model   ModelConfig   `toml:"model"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig configures the local presentation endpoint.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	ReadTimeoutSec  int    `toml:"read_timeout_sec"`
	WriteTimeoutSec int    `toml:"write_timeout_sec"`
	MaxUploadMB     int    `toml:"max_upload_mb"`
}

// RuntimeConfig configures the ONNX Runtime backend.
type RuntimeConfig struct {
	LibraryPath    string `toml:"library_path"`
	IntraOpThreads int    `toml:"intra_op_threads"`
	PoolSize       int    `toml:"pool_size"`
}

// ModelKind selects the single model variant active for the process.
type ModelKind string

const (
	ModelKindClassifier ModelKind = "classifier"
	ModelKindDetector   ModelKind = "detector"
)

// ModelConfig holds the fixed load parameters.
type ModelConfig struct {
	Kind ModelKind `toml:"kind"`
	Dir  string    `toml:"dir"`

	// Classifier
	Version int     `toml:"version"`
	Alpha   float64 `toml:"alpha"`
	TopK    int     `toml:"top_k"`

	// Detector
	Name           string  `toml:"name"`
	ScoreThreshold float64 `toml:"score_threshold"`
	IoUThreshold   float64 `toml:"iou_threshold"`
	MaxDetections  int     `toml:"max_detections"`
}

// StorageConfig locates transient images.
type StorageConfig struct {
	CaptureDir string `toml:"capture_dir"`
	ImageDir   string `toml:"image_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Debug      bool   `toml:"debug"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}
