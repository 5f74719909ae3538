// Package tensor decodes a normalized JPEG payload into a dense pixel tensor.
package tensor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"

	"github.com/Tutortoise/photo-inference-service/errs"
)

const Channels = 3

// PixelTensor is an HWC RGB tensor with values in [0, 255].
type PixelTensor struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// Shape returns [height, width, channels].
func (t *PixelTensor) Shape() [3]int {
	return [3]int{t.Height, t.Width, t.Channels}
}

func (t *PixelTensor) At(y, x, c int) float32 {
	return t.Data[(y*t.Width+x)*t.Channels+c]
}

// Image converts the tensor back to an opaque NRGBA image.
func (t *PixelTensor) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, t.Width, t.Height))
	for i, p := 0, 0; i < t.Width*t.Height; i++ {
		src := i * t.Channels
		img.Pix[p] = clampByte(t.Data[src])
		img.Pix[p+1] = clampByte(t.Data[src+1])
		img.Pix[p+2] = clampByte(t.Data[src+2])
		img.Pix[p+3] = 0xff
		p += 4
	}
	return img
}

// Decode base64-decodes payload and decodes the JPEG bitstream it holds.
// Any other image format is rejected.
func Decode(payload string) (*PixelTensor, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, fmt.Errorf("base64: %w", err))
	}
	if len(raw) == 0 {
		return nil, errs.Wrap(errs.ErrDecode, fmt.Errorf("empty payload"))
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, err)
	}
	if format != "jpeg" {
		return nil, errs.Wrap(errs.ErrDecode, fmt.Errorf("expected jpeg bitstream, got %s", format))
	}

	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Wrap(errs.ErrDecode, err)
	}
	return FromImage(img), nil
}

// FromImage copies img into a new HWC tensor, dropping alpha.
func FromImage(img image.Image) *PixelTensor {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()

	t := &PixelTensor{
		Height:   h,
		Width:    w,
		Channels: Channels,
		Data:     make([]float32, w*h*Channels),
	}
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		base := y * w * Channels
		for x := 0; x < w; x++ {
			t.Data[base+x*Channels] = float32(row[x*4])
			t.Data[base+x*Channels+1] = float32(row[x*4+1])
			t.Data[base+x*Channels+2] = float32(row[x*4+2])
		}
	}
	return t
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
