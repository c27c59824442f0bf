package vision

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
)

// modelInputSize is the fixed input size of the embedding model.
const modelInputSize = 160

// minCropDim guards against degenerate crops; anything smaller yields
// no embedding instead of a garbage vector.
const minCropDim = 40

// Extractor resizes face crops to the model's input size and extracts
// the embedding vector. A nil vector with nil error means the crop was
// degenerate; callers skip that face and keep processing siblings.
type Extractor struct {
	model provider.FaceModel
}

func NewExtractor(model provider.FaceModel) *Extractor {
	return &Extractor{model: model}
}

func (e *Extractor) Extract(ctx context.Context, face image.Image) ([]float64, error) {
	bounds := face.Bounds()
	if bounds.Dx() < minCropDim || bounds.Dy() < minCropDim {
		return nil, nil
	}

	resized := image.NewRGBA(image.Rect(0, 0, modelInputSize, modelInputSize))
	draw.CatmullRom.Scale(resized, resized.Bounds(), face, bounds, draw.Src, nil)

	embedding, err := e.model.ExtractEmbedding(ctx, resized)
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}

	return embedding, nil
}
