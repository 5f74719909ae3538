// Package errs defines the pipeline error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Code identifies a class of pipeline failure.
type Code string

const (
	CodeImageNotFound      Code = "image_not_found"
	CodeNoImage            Code = "no_image"
	CodeTransform          Code = "transform_error"
	CodeEncode             Code = "encode_error"
	CodeDecode             Code = "decode_error"
	CodeModelNotReady      Code = "model_not_ready"
	CodeBackendInit        Code = "backend_init_error"
	CodeModelLoad          Code = "model_load_error"
	CodeInference          Code = "inference_error"
	CodeAnalysisInProgress Code = "analysis_in_progress"
)

// Sentinels for errors.Is. Any ProcessingError with the same Code matches.
var (
	ErrImageNotFound      = &ProcessingError{Code: CodeImageNotFound, Message: "image not found"}
	ErrNoImage            = &ProcessingError{Code: CodeNoImage, Message: "no image captured"}
	ErrTransform          = &ProcessingError{Code: CodeTransform, Message: "image transform failed"}
	ErrEncode             = &ProcessingError{Code: CodeEncode, Message: "encoded payload missing"}
	ErrDecode             = &ProcessingError{Code: CodeDecode, Message: "tensor decode failed"}
	ErrModelNotReady      = &ProcessingError{Code: CodeModelNotReady, Message: "model not loaded"}
	ErrBackendInit        = &ProcessingError{Code: CodeBackendInit, Message: "backend init failed"}
	ErrModelLoad          = &ProcessingError{Code: CodeModelLoad, Message: "model load failed"}
	ErrInference          = &ProcessingError{Code: CodeInference, Message: "inference failed"}
	ErrAnalysisInProgress = &ProcessingError{Code: CodeAnalysisInProgress, Message: "analysis already in progress"}
)

type ProcessingError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ProcessingError carrying the same code.
func (e *ProcessingError) Is(target error) bool {
	t, ok := target.(*ProcessingError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Permanent reports whether the failure lasts for the rest of the process.
func (e *ProcessingError) Permanent() bool {
	return e.Code == CodeBackendInit || e.Code == CodeModelLoad
}

// New builds a ProcessingError with the given code.
func New(code Code, message string, cause error) *ProcessingError {
	return &ProcessingError{Code: code, Message: message, Cause: cause}
}

// Wrap attaches a cause to the sentinel's code and message.
func Wrap(sentinel *ProcessingError, cause error) *ProcessingError {
	return &ProcessingError{Code: sentinel.Code, Message: sentinel.Message, Cause: cause}
}

// CodeOf returns the code of the first ProcessingError in err's chain, or "".
func CodeOf(err error) Code {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsPermanent reports whether err carries a permanent failure code.
func IsPermanent(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe) && pe.Permanent()
}
