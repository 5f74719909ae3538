package onnx

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Tutortoise/photo-inference-service/inference"
)

// Metadata is the JSON sidecar shipped next to each model file.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	// Softmax is set when a classifier emits logits rather than probabilities.
	Softmax bool `json:"softmax"`
	// NormalizedBoxes is set when detector boxes are in [0,1] instead of
	// input pixels.
	NormalizedBoxes bool `json:"normalized_boxes"`
}

// LoadMetadata reads and validates the sidecar at path for the given kind.
func LoadMetadata(path string, kind inference.Kind) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := meta.normalize(kind); err != nil {
		return nil, fmt.Errorf("invalid metadata %s: %w", path, err)
	}
	return &meta, nil
}

func (m *Metadata) normalize(kind inference.Kind) error {
	if m.InputName == "" {
		m.InputName = DefaultInputName
	}
	if m.OutputName == "" {
		m.OutputName = DefaultOutputName
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("no classes")
	}
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 3 {
		return fmt.Errorf("input shape %v is not [1 3 H W]", m.InputShape)
	}
	if m.InputShape[2] != m.InputShape[3] {
		return fmt.Errorf("input shape %v is not square", m.InputShape)
	}
	if m.ImageSize == 0 {
		m.ImageSize = int(m.InputShape[2])
	}
	if int64(m.ImageSize) != m.InputShape[2] {
		return fmt.Errorf("image size %d disagrees with input shape %v", m.ImageSize, m.InputShape)
	}

	switch kind {
	case inference.KindClassifier:
		if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 {
			return fmt.Errorf("classifier output shape %v is not [1 N]", m.OutputShape)
		}
		if int(m.OutputShape[1]) < len(m.Classes) {
			return fmt.Errorf("output has %d scores for %d classes", m.OutputShape[1], len(m.Classes))
		}
	case inference.KindDetector:
		if len(m.OutputShape) != 3 || m.OutputShape[0] != 1 {
			return fmt.Errorf("detector output shape %v is not [1 4+C N]", m.OutputShape)
		}
		if int(m.OutputShape[1]) != boxValues+len(m.Classes) {
			return fmt.Errorf("output rows %d do not match 4 + %d classes", m.OutputShape[1], len(m.Classes))
		}
	default:
		return fmt.Errorf("unsupported model kind %v", kind)
	}
	return nil
}

// numAnchors is the candidate count of a detector output.
func (m *Metadata) numAnchors() int {
	return int(m.OutputShape[2])
}
