// Package format renders raw inference output as display strings.
package format

import (
	"fmt"
	"strconv"

	"github.com/Tutortoise/photo-inference-service/inference"
	"github.com/Tutortoise/photo-inference-service/models"
)

// NoObjectsDetected stands in for an empty detector result.
const NoObjectsDetected = "no objects detected"

// Result formats r according to its variant. A nil result yields nil.
func Result(r *inference.Result) []string {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case inference.KindClassifier:
		return Classifications(r.Classifications)
	case inference.KindDetector:
		return Detections(r.Detections)
	default:
		return nil
	}
}

// Classifications renders "label (0.823)" per prediction, keeping order.
func Classifications(preds []models.Classification) []string {
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		out = append(out, fmt.Sprintf("%s (%s)", p.Label, fixed(p.Probability, 3)))
	}
	return out
}

// Detections renders "label: (x1, y1) - (x2, y2): (score)" per detection.
func Detections(dets []models.Detection) []string {
	if len(dets) == 0 {
		return []string{NoObjectsDetected}
	}
	out := make([]string, 0, len(dets))
	for _, d := range dets {
		out = append(out, fmt.Sprintf("%s: (%s, %s) - (%s, %s): (%s)",
			d.Label,
			fixed(d.BBox[0], 2), fixed(d.BBox[1], 2),
			fixed(d.BBox[2], 2), fixed(d.BBox[3], 2),
			fixed(d.Confidence, 3)))
	}
	return out
}

func fixed(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
