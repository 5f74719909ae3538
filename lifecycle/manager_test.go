package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Tutortoise/photo-inference-service/errs"
	"github.com/Tutortoise/photo-inference-service/inference"
	"github.com/Tutortoise/photo-inference-service/models"
	"github.com/Tutortoise/photo-inference-service/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type nopClassifier struct{}

func (nopClassifier) Classify(context.Context, *tensor.PixelTensor) ([]models.Classification, error) {
	return nil, nil
}

type fakeBackend struct {
	initErr  error
	loadErr  error
	release  chan struct{}
	inits    atomic.Int32
	loads    atomic.Int32
	gotParam inference.LoadParams
}

func (b *fakeBackend) Init(context.Context) error {
	b.inits.Add(1)
	return b.initErr
}

func (b *fakeBackend) Load(_ context.Context, p inference.LoadParams) (*inference.Model, error) {
	b.loads.Add(1)
	b.gotParam = p
	if b.release != nil {
		<-b.release
	}
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return inference.NewClassifierModel(nopClassifier{}), nil
}

func waitDone(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("load did not finish")
	}
}

func TestSuccessfulLoadPublishesEveryStage(t *testing.T) {
	backend := &fakeBackend{}
	params := inference.LoadParams{Kind: inference.KindClassifier, Version: 2, Alpha: 1.0, TopK: 3}
	m := NewManager(backend, params)

	var mu sync.Mutex
	var stages []string
	m.OnTransition(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, s.Stage)
	})

	m.Start(context.Background())
	waitDone(t, m)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{StageInitializing, StageBackendReady, StageLoadingModel, StageModelReady}, stages)

	model, ok := m.Model()
	require.True(t, ok)
	assert.Equal(t, inference.KindClassifier, model.Kind())
	assert.Equal(t, StateModelReady, m.Status().State)
	assert.Equal(t, params, backend.gotParam)
}

func TestModelUnavailableWhileLoading(t *testing.T) {
	backend := &fakeBackend{release: make(chan struct{})}
	m := NewManager(backend, inference.LoadParams{Kind: inference.KindClassifier})

	_, ok := m.Model()
	assert.False(t, ok, "before start")

	m.Start(context.Background())
	assert.Eventually(t, func() bool { return m.Status().Stage == StageLoadingModel }, time.Second, time.Millisecond)

	_, ok = m.Model()
	assert.False(t, ok, "while loading")
	assert.Equal(t, StateBackendReady, m.Status().State)

	close(backend.release)
	waitDone(t, m)
	_, ok = m.Model()
	assert.True(t, ok)
}

func TestStartLoadsOnlyOnce(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, inference.LoadParams{Kind: inference.KindClassifier})

	m.Start(context.Background())
	m.Start(context.Background())
	waitDone(t, m)
	m.Start(context.Background())

	assert.Equal(t, int32(1), backend.inits.Load())
	assert.Equal(t, int32(1), backend.loads.Load())
}

func TestBackendInitFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{initErr: errors.New("no shared library")}
	m := NewManager(backend, inference.LoadParams{Kind: inference.KindClassifier})

	m.Start(context.Background())
	waitDone(t, m)

	st := m.Status()
	assert.Equal(t, StateLoadFailed, st.State)
	assert.ErrorIs(t, st.Err, errs.ErrBackendInit)
	assert.True(t, errs.IsPermanent(st.Err))
	assert.Contains(t, st.Stage, "no shared library")
	assert.Equal(t, int32(0), backend.loads.Load())

	m.Start(context.Background())
	_, ok := m.Model()
	assert.False(t, ok)
	assert.Equal(t, int32(1), backend.inits.Load(), "no retry")
}

func TestModelLoadFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{loadErr: errors.New("model file missing")}
	m := NewManager(backend, inference.LoadParams{Kind: inference.KindClassifier})

	m.Start(context.Background())
	waitDone(t, m)

	st := m.Status()
	assert.Equal(t, StateLoadFailed, st.State)
	assert.ErrorIs(t, st.Err, errs.ErrModelLoad)
	_, ok := m.Model()
	assert.False(t, ok)
}

func TestModelKindMismatchIsLoadFailure(t *testing.T) {
	backend := &fakeBackend{}
	m := NewManager(backend, inference.LoadParams{Kind: inference.KindDetector, Name: "ssdlite_mobilenet_v2"})

	m.Start(context.Background())
	waitDone(t, m)

	st := m.Status()
	assert.Equal(t, StateLoadFailed, st.State)
	assert.ErrorIs(t, st.Err, errs.ErrModelLoad)
	assert.Contains(t, st.Stage, "backend loaded a classifier model, want detector")
	_, ok := m.Model()
	assert.False(t, ok)
}
