package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, ModelKindClassifier, cfg.Model.Kind)
	assert.Equal(t, 2, cfg.Model.Version)
	assert.Equal(t, 1.0, cfg.Model.Alpha)
	assert.Equal(t, 3, cfg.Model.TopK)
	assert.Equal(t, 1, cfg.Runtime.PoolSize)
}

func TestLoadParsesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[model]
kind = "detector"
name = "yolo11n"
score_threshold = 0.4
max_detections = 10

[log]
debug = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModelKindDetector, cfg.Model.Kind)
	assert.Equal(t, "yolo11n", cfg.Model.Name)
	assert.Equal(t, 0.4, cfg.Model.ScoreThreshold)
	assert.Equal(t, 10, cfg.Model.MaxDetections)
	assert.Equal(t, 0.5, cfg.Model.IoUThreshold, "unset keys keep defaults")
	assert.True(t, cfg.Log.Debug)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MODEL_KIND", "detector")
	t.Setenv("ORT_POOL_SIZE", "4")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModelKindDetector, cfg.Model.Kind)
	assert.Equal(t, 4, cfg.Runtime.PoolSize)
	assert.True(t, cfg.Log.Debug)
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	t.Setenv("MODEL_KIND", "segmenter")

	_, err := Load("")
	assert.ErrorContains(t, err, "unknown model.kind")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[model\nkind="), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
