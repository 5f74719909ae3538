// Package normalize turns a captured photo into the fixed-size JPEG the
// tensor decoder expects.
package normalize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Tutortoise/photo-inference-service/errs"
)

const (
	TargetSize = 224
	// JPEGQuality is 0.6 on a 0-1 compression scale.
	JPEGQuality = 60
)

// NormalizedImage is a 224x224 JPEG on disk plus its base64 payload.
type NormalizedImage struct {
	Path   string
	Base64 string
	Width  int
	Height int
}

type Normalizer struct {
	outDir string
	encode func(io.Writer, image.Image) error
	remove func(string) error
}

// New returns a Normalizer writing into outDir.
func New(outDir string) *Normalizer {
	return &Normalizer{
		outDir: outDir,
		encode: encodeJPEG,
		remove: os.Remove,
	}
}

// Normalize stretches the captured image to TargetSize x TargetSize,
// re-encodes it as JPEG and deletes the captured file. The captured file is
// only deleted once the normalized image has been written.
func (n *Normalizer) Normalize(ctx context.Context, capturedPath string) (*NormalizedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := openImage(capturedPath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrImageNotFound, err)
	}

	resized := imaging.Resize(img, TargetSize, TargetSize, imaging.Linear)
	if b := resized.Bounds(); b.Dx() != TargetSize || b.Dy() != TargetSize {
		return nil, errs.New(errs.CodeTransform, "resize",
			fmt.Errorf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), TargetSize, TargetSize))
	}

	var buf bytes.Buffer
	if err := n.encode(&buf, resized); err != nil {
		return nil, errs.New(errs.CodeTransform, "encode jpeg", err)
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	if payload == "" {
		return nil, errs.Wrap(errs.ErrEncode, fmt.Errorf("empty payload for %s", capturedPath))
	}

	if err := os.MkdirAll(n.outDir, 0755); err != nil {
		return nil, errs.New(errs.CodeTransform, "create image dir", err)
	}
	outPath := filepath.Join(n.outDir, uuid.NewString()+".jpg")
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		os.Remove(outPath)
		return nil, errs.New(errs.CodeTransform, "write normalized image", err)
	}

	if err := n.remove(capturedPath); err != nil {
		log.Printf("Failed to delete captured image %s: %v", capturedPath, err)
	}

	return &NormalizedImage{
		Path:   outPath,
		Base64: payload,
		Width:  TargetSize,
		Height: TargetSize,
	}, nil
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
}

func openImage(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("empty image path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
