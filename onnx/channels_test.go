package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tutortoise/photo-inference-service/tensor"
)

func uniformTensor(size int, r, g, b float32) *tensor.PixelTensor {
	t := &tensor.PixelTensor{Height: size, Width: size, Channels: 3, Data: make([]float32, size*size*3)}
	for i := 0; i < size*size; i++ {
		t.Data[i*3], t.Data[i*3+1], t.Data[i*3+2] = r, g, b
	}
	return t
}

func TestFillInputWritesPlanarChannels(t *testing.T) {
	dst := make([]float32, 3*4*4)

	require.NoError(t, fillInput(dst, uniformTensor(4, 255, 51, 0), 4))

	assert.InDelta(t, 1.0, dst[0], 1e-6)
	assert.InDelta(t, 1.0, dst[15], 1e-6)
	assert.InDelta(t, 0.2, dst[16], 1e-6)
	assert.InDelta(t, 0.2, dst[31], 1e-6)
	assert.InDelta(t, 0.0, dst[32], 1e-6)
	assert.InDelta(t, 0.0, dst[47], 1e-6)
}

func TestFillInputKeepsPixelOrder(t *testing.T) {
	src := &tensor.PixelTensor{Height: 2, Width: 2, Channels: 3, Data: []float32{
		0, 10, 20, 30, 40, 50,
		60, 70, 80, 90, 100, 110,
	}}
	dst := make([]float32, 12)

	require.NoError(t, fillInput(dst, src, 2))

	want := []float32{0, 30, 60, 90, 10, 40, 70, 100, 20, 50, 80, 110}
	for i := range want {
		assert.InDelta(t, want[i]/255, dst[i], 1e-6, "index %d", i)
	}
}

func TestFillInputResamplesToModelSize(t *testing.T) {
	dst := make([]float32, 3*8*8)

	require.NoError(t, fillInput(dst, uniformTensor(16, 255, 255, 255), 8))

	for i, v := range dst {
		assert.InDelta(t, 1.0, v, 0.01, "index %d", i)
	}
}

func TestFillInputRejectsWrongBuffer(t *testing.T) {
	assert.Error(t, fillInput(make([]float32, 5), uniformTensor(2, 0, 0, 0), 2))

	gray := &tensor.PixelTensor{Height: 2, Width: 2, Channels: 1, Data: make([]float32, 4)}
	assert.Error(t, fillInput(make([]float32, 12), gray, 2))
}
