package onnx

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/Tutortoise/photo-inference-service/diag"
	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

// Detector runs a single-stage object detector whose output is laid out as
// [1, 4+classes, anchors].
type Detector struct {
	pool           *sessionPool
	meta           *Metadata
	scoreThreshold float32
	iouThreshold   float64
	maxDetections  int
	diag           *diag.Channel
}

// Detect returns labeled boxes in the pixel space of t.
func (d *Detector) Detect(ctx context.Context, t *tensor.PixelTensor) ([]models.Detection, error) {
	session, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer d.pool.Release(session)

	if err := fillInput(session.Input.GetData(), t, d.meta.ImageSize); err != nil {
		return nil, fmt.Errorf("prepare input buffer: %w", err)
	}
	if err := session.Session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	cands, err := processPredictions(session.Output.GetData(), d.meta, d.scoreThreshold, t.Width, t.Height)
	if err != nil {
		return nil, fmt.Errorf("process predictions: %w", err)
	}
	kept := nonMaxSuppression(cands, d.iouThreshold, d.maxDetections, d.diag)

	out := make([]models.Detection, 0, len(kept))
	for _, c := range kept {
		out = append(out, models.Detection{
			Label:      d.meta.Classes[c.class],
			Confidence: float64(c.score),
			BBox:       c.box,
		})
	}
	return out, nil
}

// processPredictions picks the best class per anchor and keeps anchors
// scoring at least threshold, with boxes scaled to width x height.
func processPredictions(predictions []float32, meta *Metadata, threshold float32, width, height int) ([]candidate, error) {
	numClasses := len(meta.Classes)
	numPredictions := meta.numAnchors()

	expectedSize := (boxValues + numClasses) * numPredictions
	if len(predictions) != expectedSize {
		return nil, fmt.Errorf("unexpected predictions length: got %d, want %d", len(predictions), expectedSize)
	}

	const chunkSize = 512
	numWorkers := runtime.NumCPU()
	jobs := make(chan int, numWorkers)
	results := make(chan []candidate, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []candidate

			for start := range jobs {
				end := start + chunkSize
				if end > numPredictions {
					end = numPredictions
				}

				for i := start; i < end; i++ {
					best, bestScore := -1, threshold
					for c := 0; c < numClasses; c++ {
						if s := predictions[(boxValues+c)*numPredictions+i]; s >= bestScore {
							best, bestScore = c, s
						}
					}
					if best < 0 {
						continue
					}
					local = append(local, candidate{
						box: calculateBBox(
							[4]float32{
								predictions[i],                  // cx
								predictions[numPredictions+i],   // cy
								predictions[2*numPredictions+i], // w
								predictions[3*numPredictions+i], // h
							},
							meta,
							float64(width),
							float64(height),
						),
						score: bestScore,
						class: best,
					})
				}
			}

			if len(local) > 0 {
				results <- local
			}
		}()
	}

	go func() {
		for i := 0; i < numPredictions; i += chunkSize {
			jobs <- i
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var cands []candidate
	for chunk := range results {
		cands = append(cands, chunk...)
	}

	if len(cands) > 0 {
		sortCandidatesByScore(cands)
	}
	return cands, nil
}

func calculateBBox(coords [4]float32, meta *Metadata, width, height float64) [4]float64 {
	inputSize := float64(meta.ImageSize)
	centerX, centerY := float64(coords[0]), float64(coords[1])
	boxW, boxH := float64(coords[2]), float64(coords[3])
	if meta.NormalizedBoxes {
		centerX *= inputSize
		centerY *= inputSize
		boxW *= inputSize
		boxH *= inputSize
	}

	scaleX := width / inputSize
	scaleY := height / inputSize

	x1 := (centerX - boxW/2) * scaleX
	y1 := (centerY - boxH/2) * scaleY
	x2 := (centerX + boxW/2) * scaleX
	y2 := (centerY + boxH/2) * scaleY

	return [4]float64{
		clamp(x1, 0, width),
		clamp(y1, 0, height),
		clamp(x2, 0, width),
		clamp(y2, 0, height),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
