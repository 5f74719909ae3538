package onnx

import (
	"fmt"
	"sync"

	"github.com/nfnt/resize"

	"github.com/Tutortoise/photo-inference-service/tensor"
)

// channelProcessor converts an HWC pixel tensor in [0,255] into the planar
// CHW [0,1] layout the models take.
type channelProcessor struct {
	width, height int
	channelSize   int
}

func newChannelProcessor(width, height int) *channelProcessor {
	return &channelProcessor{
		width:       width,
		height:      height,
		channelSize: width * height,
	}
}

func (cp *channelProcessor) processChannels(src *tensor.PixelTensor, dst []float32) {
	var wg sync.WaitGroup
	wg.Add(tensor.Channels)

	// Each goroutine owns one output plane.
	for c := 0; c < tensor.Channels; c++ {
		go func(channel int) {
			defer wg.Done()
			offset := channel * cp.channelSize
			for i := 0; i < cp.channelSize; i++ {
				dst[offset+i] = src.Data[i*tensor.Channels+channel] / 255.0
			}
		}(c)
	}

	wg.Wait()
}

// fillInput writes t into dst at size x size, resampling when the tensor
// does not already match the model's input size.
func fillInput(dst []float32, t *tensor.PixelTensor, size int) error {
	if want := tensor.Channels * size * size; len(dst) != want {
		return fmt.Errorf("input buffer holds %d values, want %d", len(dst), want)
	}
	if t.Channels != tensor.Channels {
		return fmt.Errorf("tensor has %d channels, want %d", t.Channels, tensor.Channels)
	}

	src := t
	if t.Width != size || t.Height != size {
		resized := resize.Resize(uint(size), uint(size), t.Image(), resize.Bilinear)
		src = tensor.FromImage(resized)
	}

	newChannelProcessor(size, size).processChannels(src, dst)
	return nil
}
