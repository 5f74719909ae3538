// Package lifecycle owns the one-time asynchronous load of the inference
// backend and model, and publishes readiness.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tutortoise/photo-inference-service/errs"
	"github.com/Tutortoise/photo-inference-service/inference"
)

// State is the position in the load state machine.
type State int

const (
	StateUninitialized State = iota
	StateBackendReady
	StateModelReady
	StateLoadFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBackendReady:
		return "backend_ready"
	case StateModelReady:
		return "model_ready"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

const (
	StageInitializing = "Initializing inference backend..."
	StageBackendReady = "Backend ready!"
	StageLoadingModel = "Loading model..."
	StageModelReady   = "Model ready!"
	stageFailedPrefix = "Model load failed: "
)

// Backend initializes the numeric runtime and loads a model on it.
type Backend interface {
	Init(ctx context.Context) error
	Load(ctx context.Context, params inference.LoadParams) (*inference.Model, error)
}

// Status is a snapshot of the manager.
type Status struct {
	State State
	Stage string
	Err   error
}

type Manager struct {
	backend Backend
	params  inference.LoadParams

	once sync.Once
	done chan struct{}

	mu        sync.RWMutex
	status    Status
	model     *inference.Model
	listeners []func(Status)
}

func NewManager(backend Backend, params inference.LoadParams) *Manager {
	return &Manager{
		backend: backend,
		params:  params,
		done:    make(chan struct{}),
		status:  Status{State: StateUninitialized},
	}
}

// OnTransition registers fn to be called after every state or stage change.
// Listeners run on the loading goroutine and must not block.
func (m *Manager) OnTransition(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Start begins loading in the background. Only the first call has any effect.
func (m *Manager) Start(ctx context.Context) {
	m.once.Do(func() {
		go m.load(ctx)
	})
}

// Model returns the loaded model once the manager reached StateModelReady.
func (m *Manager) Model() (*inference.Model, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status.State != StateModelReady {
		return nil, false
	}
	return m.model, true
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Done is closed once loading reached a terminal state.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) load(ctx context.Context) {
	defer close(m.done)
	start := time.Now()

	m.transition(StateUninitialized, StageInitializing, nil, nil)
	log.Printf("Initializing inference backend...")
	if err := m.backend.Init(ctx); err != nil {
		m.fail(errs.Wrap(errs.ErrBackendInit, err))
		return
	}
	m.transition(StateBackendReady, StageBackendReady, nil, nil)
	log.Printf("Inference backend ready")

	m.transition(StateBackendReady, StageLoadingModel, nil, nil)
	model, err := m.backend.Load(ctx, m.params)
	if err != nil {
		m.fail(errs.Wrap(errs.ErrModelLoad, err))
		return
	}
	if model == nil {
		m.fail(errs.Wrap(errs.ErrModelLoad, fmt.Errorf("backend returned no model")))
		return
	}
	if model.Kind() != m.params.Kind {
		m.fail(errs.Wrap(errs.ErrModelLoad, fmt.Errorf("backend loaded a %s model, want %s", model.Kind(), m.params.Kind)))
		return
	}
	m.transition(StateModelReady, StageModelReady, nil, model)
	log.Printf("%s model ready in %v", model.Kind(), time.Since(start))
}

func (m *Manager) fail(err error) {
	log.Printf("Model lifecycle failed permanently: %v", err)
	m.transition(StateLoadFailed, stageFailedPrefix+err.Error(), err, nil)
}

func (m *Manager) transition(state State, stage string, err error, model *inference.Model) {
	m.mu.Lock()
	m.status = Status{State: state, Stage: stage, Err: err}
	if model != nil {
		m.model = model
	}
	snapshot := m.status
	listeners := append([]func(Status){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
