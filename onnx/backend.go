// Package onnx runs classifier and detector models on ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Tutortoise/photo-inference-service/diag"
	"github.com/Tutortoise/photo-inference-service/inference"
)

type Config struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath    string
	ModelDir       string
	IntraOpThreads int
	PoolSize       int
	// Diagnostics receives detector warnings. Nil uses diag.Default().
	Diagnostics    *diag.Channel
}

// Backend implements lifecycle.Backend on ONNX Runtime.
type Backend struct {
	cfg Config

	mu          sync.Mutex
	initialized bool
	caps        Capabilities
	pool        *sessionPool
}

func NewBackend(cfg Config) *Backend {
	return &Backend{cfg: cfg}
}

// Stats is what the backend reports for monitoring.
type Stats struct {
	Capabilities Capabilities `json:"capabilities"`
	Pool         *PoolStats   `json:"pool,omitempty"`
}

func (b *Backend) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}

	if b.cfg.LibraryPath != "" {
		if _, err := os.Stat(b.cfg.LibraryPath); err != nil {
			return fmt.Errorf("onnxruntime library: %w", err)
		}
		ort.SetSharedLibraryPath(b.cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	b.caps = DetectCapabilities()
	b.initialized = true
	log.Printf("ONNX Runtime initialized (%s)", b.caps)
	return nil
}

func (b *Backend) Load(ctx context.Context, params inference.LoadParams) (*inference.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}
	if b.pool != nil {
		return nil, fmt.Errorf("model already loaded")
	}

	base, err := modelBaseName(params)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(b.cfg.ModelDir, base+".onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	meta, err := LoadMetadata(filepath.Join(b.cfg.ModelDir, base+".json"), params.Kind)
	if err != nil {
		return nil, err
	}

	threads := b.cfg.IntraOpThreads
	if threads <= 0 {
		threads = b.caps.Workers
	}
	log.Printf("Loading %s model from: %s", params.Kind, modelPath)
	pool, err := newSessionPool(b.cfg.PoolSize, func() (*ModelSession, error) {
		return newSession(modelPath, meta, threads)
	})
	if err != nil {
		return nil, err
	}
	b.pool = pool

	switch params.Kind {
	case inference.KindClassifier:
		return inference.NewClassifierModel(&Classifier{
			pool: pool,
			meta: meta,
			topK: params.TopK,
		}), nil
	default:
		return inference.NewDetectorModel(&Detector{
			pool:           pool,
			meta:           meta,
			scoreThreshold: float32(params.ScoreThreshold),
			iouThreshold:   params.IoUThreshold,
			maxDetections:  params.MaxDetections,
			diag:           b.diagnostics(),
		}), nil
	}
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{Capabilities: b.caps}
	if b.pool != nil {
		ps := b.pool.Stats()
		st.Pool = &ps
	}
	return st
}

// Close releases every session and the ONNX environment.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pool != nil {
		b.pool.Destroy()
	}
	if b.initialized {
		ort.DestroyEnvironment()
		b.initialized = false
	}
}

func (b *Backend) diagnostics() *diag.Channel {
	if b.cfg.Diagnostics != nil {
		return b.cfg.Diagnostics
	}
	return diag.Default()
}

// modelBaseName maps load parameters to a file name without extension, e.g.
// mobilenet_v2_1.0_224 for a version 2, alpha 1.0 classifier.
func modelBaseName(params inference.LoadParams) (string, error) {
	switch params.Kind {
	case inference.KindClassifier:
		if params.Version <= 0 || params.Alpha <= 0 {
			return "", fmt.Errorf("classifier needs positive version and alpha, got %d and %v", params.Version, params.Alpha)
		}
		alpha := strconv.FormatFloat(params.Alpha, 'f', -1, 64)
		if !strings.Contains(alpha, ".") {
			alpha += ".0"
		}
		return fmt.Sprintf("mobilenet_v%d_%s_224", params.Version, alpha), nil
	case inference.KindDetector:
		if params.Name == "" {
			return "", fmt.Errorf("detector needs a model name")
		}
		return params.Name, nil
	default:
		return "", fmt.Errorf("unsupported model kind %v", params.Kind)
	}
}
