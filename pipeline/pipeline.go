// Package pipeline drives one captured still through normalization, tensor
// decoding, inference and formatting, and publishes the resulting state.
package pipeline

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tutortoise/photo-inference-service/errs"
	"github.com/Tutortoise/photo-inference-service/format"
	"github.com/Tutortoise/photo-inference-service/inference"
	"github.com/Tutortoise/photo-inference-service/lifecycle"
	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/normalize"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

type Normalizer interface {
	Normalize(ctx context.Context, capturedPath string) (*normalize.NormalizedImage, error)
}

type Runner interface {
	Run(ctx context.Context, t *tensor.PixelTensor) (*inference.Result, error)
}

// StatusSource reports model readiness.
type StatusSource interface {
	Status() lifecycle.Status
}

type Pipeline struct {
	normalizer Normalizer
	runner     Runner
	models     StatusSource
	debug      bool

	busy atomic.Bool

	// emitMu orders transitions so subscribers see them in sequence.
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	captured    string
	normalized  *normalize.NormalizedImage
	subscribers []func(State)
}

func New(n Normalizer, r Runner, models StatusSource, debug bool) *Pipeline {
	st := models.Status()
	return &Pipeline{
		normalizer: n,
		runner:     r,
		models:     models,
		debug:      debug,
		state: State{
			Model:      modelPhaseOf(st.State),
			ModelStage: st.Stage,
			Phase:      PhaseIdle,
		},
	}
}

// Subscribe registers fn for every state transition. fn must not call
// Capture, Analyze or ObserveModel.
func (p *Pipeline) Subscribe(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.clone()
}

// ObserveModel mirrors a lifecycle transition into the pipeline state.
func (p *Pipeline) ObserveModel(s lifecycle.Status) {
	p.update(func(st *State) {
		st.Model = modelPhaseOf(s.State)
		st.ModelStage = s.Stage
	})
}

// Capture hands a freshly captured image to the pipeline. A previous capture
// that was never normalized is deleted.
func (p *Pipeline) Capture(path string) error {
	if path == "" {
		return errs.ErrNoImage
	}

	// busy is checked under the same lock Analyze reads the capture under.
	var stale string
	accepted := p.apply(func(st *State) bool {
		if p.busy.Load() {
			return false
		}
		stale = p.captured
		p.captured = path
		st.ImagePath = path
		st.Phase = PhaseImageCaptured
		return true
	})
	if !accepted {
		return errs.ErrAnalysisInProgress
	}

	if stale != "" && stale != path {
		if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to delete superseded capture %s: %v", stale, err)
		}
	}
	return nil
}

// Analyze runs the current image through the pipeline. Overlapping calls are
// rejected with errs.ErrAnalysisInProgress, calls before the model is ready
// with errs.ErrModelNotReady; neither touches the state. Any other failure
// moves the phase to PhaseAnalysisFailed and leaves prior results in place.
func (p *Pipeline) Analyze(ctx context.Context) error {
	if !p.busy.CompareAndSwap(false, true) {
		return errs.ErrAnalysisInProgress
	}
	defer p.busy.Store(false)

	if st := p.models.Status(); st.State != lifecycle.StateModelReady {
		log.Printf("Analyze rejected: model not loaded (%s)", st.Stage)
		return errs.ErrModelNotReady
	}

	p.mu.Lock()
	raw, current := p.captured, p.normalized
	p.mu.Unlock()
	if raw == "" && current == nil {
		return errs.ErrNoImage
	}

	start := time.Now()
	timings := &models.ProcessingTimings{RequestID: uuid.NewString()}
	p.update(func(st *State) { st.Phase = PhaseAnalyzing })

	if raw != "" {
		normStart := time.Now()
		norm, err := p.normalizer.Normalize(ctx, raw)
		timings.Normalize = time.Since(normStart)
		if err != nil {
			return p.fail(timings.RequestID, err)
		}

		var replaced *normalize.NormalizedImage
		p.update(func(st *State) {
			replaced = p.normalized
			p.normalized = norm
			if p.captured == raw {
				p.captured = ""
			}
			st.ImagePath = norm.Path
		})
		if replaced != nil {
			if err := os.Remove(replaced.Path); err != nil && !os.IsNotExist(err) {
				log.Printf("Failed to delete previous normalized image %s: %v", replaced.Path, err)
			}
		}
		current = norm
	}

	decodeStart := time.Now()
	pixels, err := tensor.Decode(current.Base64)
	timings.Decode = time.Since(decodeStart)
	if err != nil {
		return p.fail(timings.RequestID, err)
	}

	inferStart := time.Now()
	result, err := p.runner.Run(ctx, pixels)
	timings.Inference = time.Since(inferStart)
	if err != nil {
		return p.fail(timings.RequestID, err)
	}

	formatStart := time.Now()
	lines := format.Result(result)
	if lines == nil {
		lines = []string{}
	}
	timings.Format = time.Since(formatStart)

	p.update(func(st *State) {
		st.Results = lines
		st.Analyzed = true
		st.Phase = PhaseResultReady
	})

	timings.Total = time.Since(start)
	p.logTimings(timings)
	return nil
}

func (p *Pipeline) fail(requestID string, err error) error {
	log.Printf("Analysis %s failed: %v", requestID, err)
	p.update(func(st *State) { st.Phase = PhaseAnalysisFailed })
	return err
}

func (p *Pipeline) update(fn func(*State)) {
	p.apply(func(st *State) bool {
		fn(st)
		return true
	})
}

// apply runs fn under the state lock and notifies subscribers only when fn
// reports a change.
func (p *Pipeline) apply(fn func(*State) bool) bool {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	if !fn(&p.state) {
		p.mu.Unlock()
		return false
	}
	snapshot := p.state.clone()
	subscribers := append([]func(State){}, p.subscribers...)
	p.mu.Unlock()

	for _, sub := range subscribers {
		sub(snapshot)
	}
	return true
}

func (p *Pipeline) logTimings(t *models.ProcessingTimings) {
	if p.debug {
		log.Printf("[DEBUG] RequestID: %s - Processing times:\n"+
			"\tNormalize: %v\n"+
			"\tDecode:    %v\n"+
			"\tInference: %v\n"+
			"\tFormat:    %v\n"+
			"\tTotal:     %v",
			t.RequestID,
			t.Normalize,
			t.Decode,
			t.Inference,
			t.Format,
			t.Total)
	}
}
