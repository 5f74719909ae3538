package onnx

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"
)

// Capabilities records the SIMD features ONNX Runtime can use on this host.
type Capabilities struct {
	AVX512  bool `json:"avx512"`
	AVX2    bool `json:"avx2"`
	SSE41   bool `json:"sse41"`
	NEON    bool `json:"neon"`
	Workers int  `json:"workers"`
}

func DetectCapabilities() Capabilities {
	return Capabilities{
		AVX512:  cpu.X86.HasAVX512,
		AVX2:    cpu.X86.HasAVX2,
		SSE41:   cpu.X86.HasSSE41,
		NEON:    cpu.ARM64.HasASIMD,
		Workers: runtime.GOMAXPROCS(0),
	}
}

func (c Capabilities) String() string {
	best := "generic"
	switch {
	case c.AVX512:
		best = "avx512"
	case c.AVX2:
		best = "avx2"
	case c.SSE41:
		best = "sse4.1"
	case c.NEON:
		best = "neon"
	}
	return fmt.Sprintf("%s/%s simd=%s workers=%d", runtime.GOOS, runtime.GOARCH, best, c.Workers)
}
