package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
)

const (
	// minFaceArea is the minimum face area (in pixels²) used for the
	// confidence estimate when the backend omits one
	minFaceArea = 2500 // 50x50 pixels
	// maxFaceArea is used for confidence scaling
	maxFaceArea = 250000 // 500x500 pixels

	jpegQuality = 90
)

// Provider implements provider.FaceModel against a DeepFace API server.
type Provider struct {
	client *Client
}

// NewProvider creates a new DeepFace-backed face model
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// DetectFaces runs detection on the full image. The embedding returned
// alongside each facial area is discarded here; extraction happens per
// crop so that the detector's filtering policy applies first.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.Detection, error) {
	imageBase64, err := encodeImage(img)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	resp, err := p.client.Represent(ctx, imageBase64, "")
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	detections := make([]provider.Detection, 0, len(resp.Results))
	for _, result := range resp.Results {
		confidence := result.Confidence
		if confidence == 0 {
			faceArea := float64(result.FacialArea.W * result.FacialArea.H)
			confidence = estimateConfidence(faceArea)
		}

		detections = append(detections, provider.Detection{
			Box: provider.BoundingBox{
				X:      result.FacialArea.X,
				Y:      result.FacialArea.Y,
				Width:  result.FacialArea.W,
				Height: result.FacialArea.H,
			},
			Confidence: confidence,
		})
	}

	return detections, nil
}

// ExtractEmbedding embeds a pre-cropped face. Detection is skipped on
// the backend since the crop already went through the detector.
func (p *Provider) ExtractEmbedding(ctx context.Context, face image.Image) ([]float64, error) {
	imageBase64, err := encodeImage(face)
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}

	resp, err := p.client.Represent(ctx, imageBase64, "skip")
	if err != nil {
		return nil, fmt.Errorf("extract embedding: %w", err)
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, ErrNoFaceInResponse
	}

	return resp.Results[0].Embedding, nil
}

// Ready pings the DeepFace service.
func (p *Provider) Ready(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Provider) Name() string {
	return "deepface/" + p.client.config.Model
}

// estimateConfidence scales confidence by face area; larger faces are
// more likely to be accurately detected.
func estimateConfidence(faceArea float64) float64 {
	if faceArea < minFaceArea {
		return 0.5
	}
	normalized := math.Min(1.0, (faceArea-minFaceArea)/(maxFaceArea-minFaceArea))
	return 0.7 + (normalized * 0.29)
}

// encodeImage encodes the image as base64 JPEG for the wire.
func encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Ensure Provider implements provider.FaceModel
var _ provider.FaceModel = (*Provider)(nil)
