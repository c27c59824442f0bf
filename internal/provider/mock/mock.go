// Package mock provides a deterministic in-process FaceModel for
// development and tests: one full-frame detection per image and an
// embedding derived from the pixel content, so the same face crop
// always produces the same vector.
package mock

import (
	"context"
	"crypto/sha256"
	"image"
	"math"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

// DetectFaces reports a single face covering most of the frame.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.Detection, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 50 || h < 50 {
		return nil, nil
	}

	return []provider.Detection{
		{
			Box: provider.BoundingBox{
				X:      b.Min.X + w/10,
				Y:      b.Min.Y + h/10,
				Width:  w * 8 / 10,
				Height: h * 8 / 10,
			},
			Confidence: 0.99,
		},
	}, nil
}

// ExtractEmbedding hashes the crop's pixels into a unit-length vector.
func (p *Provider) ExtractEmbedding(ctx context.Context, face image.Image) ([]float64, error) {
	return generateEmbedding(face), nil
}

func (p *Provider) Ready(ctx context.Context) error {
	return nil
}

func (p *Provider) Name() string {
	return "mock"
}

func generateEmbedding(img image.Image) []float64 {
	hash := sha256.Sum256(pixelBytes(img))
	embedding := make([]float64, domain.EmbeddingDimension)
	hashLen := len(hash)

	for i := 0; i < domain.EmbeddingDimension; i++ {
		idx := i % hashLen
		embedding[i] = (float64(hash[idx])/255.0)*2 - 1
	}

	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	for i := range embedding {
		embedding[i] /= norm
	}

	return embedding
}

// pixelBytes samples the image on a coarse grid; enough to make
// distinct crops hash differently without walking every pixel.
func pixelBytes(img image.Image) []byte {
	b := img.Bounds()
	step := b.Dx() / 32
	if step < 1 {
		step = 1
	}

	out := make([]byte, 0, 4096)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}

var _ provider.FaceModel = (*Provider)(nil)
