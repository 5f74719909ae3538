package pipeline

import "github.com/Tutortoise/photo-inference-service/lifecycle"

// ModelPhase is the model half of the pipeline state.
type ModelPhase int

const (
	ModelLoading ModelPhase = iota
	ModelReady
	ModelLoadFailed
)

func (p ModelPhase) String() string {
	switch p {
	case ModelLoading:
		return "model_loading"
	case ModelReady:
		return "model_ready"
	case ModelLoadFailed:
		return "model_load_failed"
	default:
		return "unknown"
	}
}

func modelPhaseOf(s lifecycle.State) ModelPhase {
	switch s {
	case lifecycle.StateModelReady:
		return ModelReady
	case lifecycle.StateLoadFailed:
		return ModelLoadFailed
	default:
		return ModelLoading
	}
}

// Phase is the image/analysis half of the pipeline state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseImageCaptured
	PhaseAnalyzing
	PhaseResultReady
	PhaseAnalysisFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseImageCaptured:
		return "image_captured"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseResultReady:
		return "result_ready"
	case PhaseAnalysisFailed:
		return "analysis_failed"
	default:
		return "unknown"
	}
}

// State is what the presentation layer renders. Snapshots are copies.
type State struct {
	Model      ModelPhase
	ModelStage string
	Phase      Phase

	// ImagePath is the image currently on display: the raw capture until it
	// is normalized, the normalized image afterwards.
	ImagePath string

	// Results is nil until an analysis succeeds. An empty non-nil slice is a
	// finished analysis with nothing to show.
	Results  []string
	Analyzed bool
}

func (s State) clone() State {
	if s.Results != nil {
		s.Results = append([]string{}, s.Results...)
	}
	return s
}
