// Package vision contains the image-side stages of the attendance
// pipeline: canonical RGB normalization, face detection with the
// empirically tuned rejection policy, and embedding extraction.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

const (
	// DefaultMaxWidth and DefaultMaxHeight bound the canonical frame
	// buffer. Larger inputs are downscaled; smaller ones are never
	// upscaled.
	DefaultMaxWidth  = 640
	DefaultMaxHeight = 480
)

// Normalizer decodes and resizes incoming frames into a canonical RGBA
// buffer.
type Normalizer struct {
	maxWidth  int
	maxHeight int
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		maxWidth:  DefaultMaxWidth,
		maxHeight: DefaultMaxHeight,
	}
}

// Normalize decodes raw image bytes (JPEG, PNG or BMP) and fits the
// result inside the configured bounds, preserving aspect ratio.
// Returns domain.ErrInvalidImage on malformed input.
func (n *Normalizer) Normalize(data []byte) (*image.RGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("decode image: %w", err))
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= n.maxWidth && height <= n.maxHeight {
		// Already within bounds; copy into RGBA without scaling.
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Copy(rgba, image.Point{}, img, bounds, draw.Src, nil)
		return rgba, nil
	}

	scale := float64(n.maxWidth) / float64(width)
	if s := float64(n.maxHeight) / float64(height); s < scale {
		scale = s
	}

	newWidth := int(math.Round(float64(width) * scale))
	newHeight := int(math.Round(float64(height) * scale))
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Src, nil)

	return resized, nil
}
