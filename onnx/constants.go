package onnx

import "time"

const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
	DefaultPoolSize   = 1
	AcquireTimeout    = 5 * time.Second

	// boxValues is cx, cy, w, h ahead of the class scores in detector output.
	boxValues = 4
)
