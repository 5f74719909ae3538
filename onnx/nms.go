package onnx

import (
	"math"
	"sort"

	"github.com/Tutortoise/photo-inference-service/diag"
)

// candidate is a pre-NMS box in x1, y1, x2, y2 order.
type candidate struct {
	box   [4]float64
	score float32
	class int
}

// nonMaxSuppression keeps the highest-scoring box of every overlapping group
// of the same class, up to maxOut boxes. Dropped boxes are reported on warn.
func nonMaxSuppression(cands []candidate, iouThreshold float64, maxOut int, warn *diag.Channel) []candidate {
	if len(cands) == 0 {
		return nil
	}

	sorted := append([]candidate(nil), cands...)
	sortCandidatesByScore(sorted)

	kept := make([]candidate, 0, maxOut)
	for i, c := range sorted {
		if c.box[2] <= c.box[0] || c.box[3] <= c.box[1] {
			warn.Warnf("nms: dropping degenerate box %v (class %d)", c.box, c.class)
			continue
		}

		suppressed := false
		for _, k := range kept {
			if k.class == c.class && calculateIOU(k.box, c.box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}

		kept = append(kept, c)
		if len(kept) == maxOut {
			if rest := len(sorted) - i - 1; rest > 0 {
				warn.Warnf("nms: max output %d reached, %d candidates not considered", maxOut, rest)
			}
			break
		}
	}
	return kept
}

func calculateIOU(box1, box2 [4]float64) float64 {
	x1 := math.Max(box1[0], box2[0])
	y1 := math.Max(box1[1], box2[1])
	x2 := math.Min(box1[2], box2[2])
	y2 := math.Min(box1[3], box2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0.0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := (box1[2] - box1[0]) * (box1[3] - box1[1])
	area2 := (box2[2] - box2[0]) * (box2[3] - box2[1])
	union := area1 + area2 - intersection

	return intersection / union
}

func sortCandidatesByScore(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
}
