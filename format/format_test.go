package format

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Tutortoise/photo-inference-service/inference"
	"github.com/Tutortoise/photo-inference-service/models"
)

func TestClassificationFormatting(t *testing.T) {
	got := Classifications([]models.Classification{
		{Label: "cat", Probability: 0.8234},
		{Label: "Egyptian cat", Probability: 0.1},
	})

	assert.Equal(t, []string{"cat (0.823)", "Egyptian cat (0.100)"}, got)
}

func TestDetectionFormatting(t *testing.T) {
	got := Detections([]models.Detection{
		{Label: "dog", Confidence: 0.5, BBox: [4]float64{1.005, 2.014, 3.02, 4.0}},
	})

	assert.Equal(t, []string{"dog: (1.00, 2.01) - (3.02, 4.00): (0.500)"}, got)
}

func TestEmptyResults(t *testing.T) {
	assert.Equal(t, []string{NoObjectsDetected}, Detections(nil))
	assert.Equal(t, []string{NoObjectsDetected}, Detections([]models.Detection{}))

	got := Classifications(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResultDispatchesOnKind(t *testing.T) {
	classified := &inference.Result{
		Kind:            inference.KindClassifier,
		Classifications: []models.Classification{{Label: "cat", Probability: 0.8234}},
		// Ignored: the tag decides, not field presence.
		Detections: []models.Detection{{Label: "dog"}},
	}
	assert.Equal(t, []string{"cat (0.823)"}, Result(classified))

	detected := &inference.Result{Kind: inference.KindDetector}
	assert.Equal(t, []string{NoObjectsDetected}, Result(detected))

	assert.Nil(t, Result(nil))
}

func TestFormattingIsIdempotent(t *testing.T) {
	r := &inference.Result{
		Kind: inference.KindDetector,
		Detections: []models.Detection{
			{Label: "person", Confidence: 0.98765, BBox: [4]float64{10.555, 20.5, 100.125, 200}},
			{Label: "bicycle", Confidence: 0.51, BBox: [4]float64{0, 0, 1, 1}},
		},
	}

	first := Result(r)
	second := Result(r)
	assert.Equal(t, first, second)
}
