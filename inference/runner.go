package inference

import (
	"context"
	"fmt"
	"log"

	"github.com/Tutortoise/photo-inference-service/diag"
	"github.com/Tutortoise/photo-inference-service/errs"
	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

// ModelSource hands out the model once it is ready.
type ModelSource interface {
	Model() (*Model, bool)
}

type Runner struct {
	source ModelSource
	diag   *diag.Channel
}

func NewRunner(source ModelSource) *Runner {
	return &Runner{source: source, diag: diag.Default()}
}

// WithDiagnostics swaps the warning channel silenced during detection.
func (r *Runner) WithDiagnostics(c *diag.Channel) *Runner {
	r.diag = c
	return r
}

// Run invokes the ready model on t. Before the model is ready it returns
// errs.ErrModelNotReady and no result.
func (r *Runner) Run(ctx context.Context, t *tensor.PixelTensor) (res *Result, err error) {
	model, ok := r.source.Model()
	if !ok || model == nil {
		log.Printf("Model not loaded")
		return nil, errs.ErrModelNotReady
	}
	if t == nil {
		return nil, errs.New(errs.CodeInference, "run model", fmt.Errorf("nil tensor"))
	}

	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = errs.New(errs.CodeInference, "model panicked", fmt.Errorf("%v", p))
		}
	}()

	switch model.kind {
	case KindClassifier:
		return r.classify(ctx, model.classifier, t)
	case KindDetector:
		return r.detect(ctx, model.detector, t)
	default:
		return nil, errs.New(errs.CodeInference, "run model", fmt.Errorf("unknown model kind %v", model.kind))
	}
}

func (r *Runner) classify(ctx context.Context, c Classifier, t *tensor.PixelTensor) (*Result, error) {
	predictions, err := c.Classify(ctx, t)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInference, err)
	}
	if predictions == nil {
		predictions = []models.Classification{}
	}
	return &Result{Kind: KindClassifier, Classifications: predictions}, nil
}

func (r *Runner) detect(ctx context.Context, d Detector, t *tensor.PixelTensor) (*Result, error) {
	// NMS warnings are noise for a single still.
	restore := r.diag.Suppress()
	defer restore()

	detections, err := d.Detect(ctx, t)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInference, err)
	}
	if detections == nil {
		detections = []models.Detection{}
	}
	return &Result{Kind: KindDetector, Detections: detections}, nil
}
