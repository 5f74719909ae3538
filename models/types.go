package models

import "time"

// Classification is one ranked whole-image label.
type Classification struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Detection is one labeled region. BBox holds x1, y1, x2, y2 in the pixel
// space of the analyzed tensor.
type Detection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

type ProcessingTimings struct {
	RequestID string
	Normalize time.Duration
	Decode    time.Duration
	Inference time.Duration
	Format    time.Duration
	Total     time.Duration
}
