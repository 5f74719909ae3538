package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Tutortoise/photo-inference-service/diag"
	"github.com/Tutortoise/photo-inference-service/errs"
	"github.com/Tutortoise/photo-inference-service/onnx"
	"github.com/Tutortoise/photo-inference-service/pipeline"
)

// Analyzer is the part of the pipeline the HTTP surface drives.
type Analyzer interface {
	Capture(path string) error
	Analyze(ctx context.Context) error
	State() pipeline.State
}

type StatsSource interface {
	Stats() onnx.Stats
}

type AppState struct {
	Pipeline   Analyzer
	Backend    StatsSource
	Diag       *diag.Channel
	CaptureDir string
	MaxUpload  int64
}

type StateResponse struct {
	Model      string   `json:"model"`
	ModelStage string   `json:"model_stage"`
	Phase      string   `json:"phase"`
	HasImage   bool     `json:"has_image"`
	Analyzed   bool     `json:"analyzed"`
	Results    []string `json:"results"`
	Message    string   `json:"message"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newStateResponse(st pipeline.State) StateResponse {
	return StateResponse{
		Model:      st.Model.String(),
		ModelStage: st.ModelStage,
		Phase:      st.Phase.String(),
		HasImage:   st.ImagePath != "",
		Analyzed:   st.Analyzed,
		Results:    st.Results,
		Message:    getStateMessage(st),
	}
}

func (s *AppState) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/capture", s.handleCapture).Methods("POST")
	r.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	r.HandleFunc("/state", s.handleState).Methods("GET")
	r.HandleFunc("/image", s.handleImage).Methods("GET")
	s.addMonitoringRoutes(r)
	return r
}

func (s *AppState) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var imgBytes []byte
	var err error

	switch mediaType {
	case "application/json":
		imgBytes, err = handleJSONRequest(r)
	case "multipart/form-data":
		imgBytes, err = handleMultipartRequest(r, s.MaxUpload)
	default:
		imgBytes, err = handleRawRequest(r)
	}

	if err != nil {
		sendErrorResponse(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	if len(imgBytes) == 0 {
		sendErrorResponse(w, "invalid_request", "empty image", http.StatusBadRequest)
		return
	}

	path, err := s.storeCapture(imgBytes)
	if err != nil {
		log.Printf("Failed to store capture: %v", err)
		sendErrorResponse(w, "storage_error", "Failed to store image", http.StatusInternalServerError)
		return
	}

	if err := s.Pipeline.Capture(path); err != nil {
		os.Remove(path)
		sendPipelineError(w, err)
		return
	}

	sendJSON(w, http.StatusAccepted, newStateResponse(s.Pipeline.State()))
}

// handleAnalyze runs to completion even if the client goes away; the result
// is still published to /state.
func (s *AppState) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := s.Pipeline.Analyze(context.WithoutCancel(r.Context())); err != nil {
		sendPipelineError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, newStateResponse(s.Pipeline.State()))
}

func (s *AppState) handleState(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, newStateResponse(s.Pipeline.State()))
}

func (s *AppState) handleImage(w http.ResponseWriter, r *http.Request) {
	path := s.Pipeline.State().ImagePath
	if path == "" {
		sendErrorResponse(w, string(errs.CodeNoImage), "No image to display", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(path); err != nil {
		sendErrorResponse(w, string(errs.CodeImageNotFound), "Image is no longer available", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *AppState) addMonitoringRoutes(r *mux.Router) {
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
}

func (s *AppState) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	stats := s.Backend.Stats()
	response := map[string]interface{}{
		"capabilities":           stats.Capabilities,
		"diagnostics_dropped":    s.Diag.Dropped(),
		"diagnostics_suppressed": s.Diag.Suppressed(),
	}
	if stats.Pool != nil {
		response["pool"] = stats.Pool
	}

	sendJSON(w, http.StatusOK, response)
}

func (s *AppState) storeCapture(data []byte) (string, error) {
	if err := os.MkdirAll(s.CaptureDir, 0755); err != nil {
		return "", fmt.Errorf("create capture directory: %w", err)
	}
	path := filepath.Join(s.CaptureDir, uuid.NewString()+".capture")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(req.Image)
}

func handleMultipartRequest(r *http.Request, maxMemory int64) ([]byte, error) {
	if maxMemory <= 0 {
		maxMemory = 10 << 20
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func handleRawRequest(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func statusForError(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeAnalysisInProgress:
		return http.StatusConflict
	case errs.CodeModelNotReady:
		return http.StatusServiceUnavailable
	case errs.CodeNoImage:
		return http.StatusBadRequest
	case errs.CodeImageNotFound, errs.CodeTransform, errs.CodeEncode, errs.CodeDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func sendPipelineError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	if code == "" {
		code = errs.CodeInference
	}
	sendErrorResponse(w, string(code), err.Error(), statusForError(err))
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode %d response: %v", status, err)
	}
}
