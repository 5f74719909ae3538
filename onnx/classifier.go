package onnx

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

// Classifier runs an image classification model such as MobileNet.
type Classifier struct {
	pool *sessionPool
	meta *Metadata
	topK int
}

// Classify returns the topK labels ordered by descending probability.
func (c *Classifier) Classify(ctx context.Context, t *tensor.PixelTensor) ([]models.Classification, error) {
	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer c.pool.Release(session)

	if err := fillInput(session.Input.GetData(), t, c.meta.ImageSize); err != nil {
		return nil, fmt.Errorf("prepare input buffer: %w", err)
	}
	if err := session.Session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	return rankClasses(session.Output.GetData(), c.meta.Classes, c.meta.Softmax, c.topK), nil
}

func rankClasses(scores []float32, classes []string, logits bool, k int) []models.Classification {
	if len(scores) > len(classes) {
		scores = scores[:len(classes)]
	}

	probs := make([]float64, len(scores))
	if logits {
		probs = softmax(scores)
	} else {
		for i, s := range scores {
			probs[i] = float64(s)
		}
	}

	ranked := make([]models.Classification, len(probs))
	for i, p := range probs {
		ranked[i] = models.Classification{Label: classes[i], Probability: p}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Probability > ranked[j].Probability
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxLogit := float64(logits[0])
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
