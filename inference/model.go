// Package inference holds the model handle and runs it against decoded tensors.
package inference

import (
	"context"
	"fmt"

	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

// Kind tags which model variant a handle or result carries.
type Kind int

const (
	KindClassifier Kind = iota + 1
	KindDetector
)

func (k Kind) String() string {
	switch k {
	case KindClassifier:
		return "classifier"
	case KindDetector:
		return "detector"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Classifier returns whole-image labels ordered by descending probability.
type Classifier interface {
	Classify(ctx context.Context, t *tensor.PixelTensor) ([]models.Classification, error)
}

// Detector returns labeled boxes in no particular order.
type Detector interface {
	Detect(ctx context.Context, t *tensor.PixelTensor) ([]models.Detection, error)
}

// Model is the ready model handle. Exactly one variant is set.
type Model struct {
	kind       Kind
	classifier Classifier
	detector   Detector
}

func NewClassifierModel(c Classifier) *Model {
	return &Model{kind: KindClassifier, classifier: c}
}

func NewDetectorModel(d Detector) *Model {
	return &Model{kind: KindDetector, detector: d}
}

func (m *Model) Kind() Kind { return m.kind }

// LoadParams are the fixed parameters a backend loads a model with.
type LoadParams struct {
	Kind Kind

	// Classifier architecture version and width multiplier.
	Version int
	Alpha   float64
	TopK    int

	Name           string
	ScoreThreshold float64
	IoUThreshold   float64
	MaxDetections  int
}

// Result is the raw output of one inference call, tagged by variant.
type Result struct {
	Kind            Kind
	Classifications []models.Classification
	Detections      []models.Detection
}
