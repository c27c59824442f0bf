package vision

import (
	"context"
	"fmt"
	"image"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
)

const (
	// minImageDim: frames smaller than this on either axis produce an
	// empty result rather than an error.
	minImageDim = 50
	// minConfidence and minBoxSize reject low-resolution or partial
	// faces that would otherwise produce noisy embeddings.
	minConfidence = 0.85
	minBoxSize    = 40
)

// Face is one surviving detection with its crop, ready for embedding
// extraction. The crop shares pixels with the source frame.
type Face struct {
	Box        domain.BoundingBox
	Confidence float64
	Crop       image.Image
}

// Detector locates faces via the model backend and applies the
// confidence/size rejection policy. Output order follows backend order,
// which keeps per-frame results deterministic.
type Detector struct {
	model provider.FaceModel
}

func NewDetector(model provider.FaceModel) *Detector {
	return &Detector{model: model}
}

func (d *Detector) Detect(ctx context.Context, img *image.RGBA) ([]Face, error) {
	bounds := img.Bounds()
	if bounds.Dx() < minImageDim || bounds.Dy() < minImageDim {
		return nil, nil
	}

	detections, err := d.model.DetectFaces(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		if det.Confidence <= minConfidence {
			continue
		}

		box := clampBox(det.Box, bounds)
		if box.Width <= minBoxSize || box.Height <= minBoxSize {
			continue
		}

		crop := img.SubImage(image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
		faces = append(faces, Face{
			Box:        box,
			Confidence: det.Confidence,
			Crop:       crop,
		})
	}

	return faces, nil
}

// clampBox clips a detection box to the image bounds; backends can
// report slightly negative origins on edge faces.
func clampBox(b provider.BoundingBox, bounds image.Rectangle) domain.BoundingBox {
	rect := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Intersect(bounds)
	if rect.Empty() {
		return domain.BoundingBox{}
	}

	return domain.BoundingBox{
		X:      rect.Min.X,
		Y:      rect.Min.Y,
		Width:  rect.Dx(),
		Height: rect.Dy(),
	}
}
