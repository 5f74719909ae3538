package main

import "github.com/Tutortoise/photo-inference-service/pipeline"

const (
	MsgModelLoading = "The model is still loading. You can capture a photo in the meantime."

	MsgModelLoadFailed = "The model could not be loaded, so photos can't be analyzed right now. Restart the service to try again."

	MsgIdle = "Capture a photo to get started."

	MsgImageCaptured = "Photo captured. Run an analysis to see what the model finds in it."

	MsgAnalyzing = "Analyzing your photo..."

	MsgResultReady = "Analysis complete."

	MsgAnalysisFailed = "We couldn't analyze that photo. Please capture a new one and try again."
)

func getStateMessage(st pipeline.State) string {
	switch {
	case st.Model == pipeline.ModelLoadFailed:
		return MsgModelLoadFailed
	case st.Phase == pipeline.PhaseAnalyzing:
		return MsgAnalyzing
	case st.Phase == pipeline.PhaseResultReady:
		return MsgResultReady
	case st.Phase == pipeline.PhaseAnalysisFailed:
		return MsgAnalysisFailed
	case st.Model == pipeline.ModelLoading:
		return MsgModelLoading
	case st.Phase == pipeline.PhaseImageCaptured:
		return MsgImageCaptured
	default:
		return MsgIdle
	}
}
