package provider

import (
	"context"
	"image"
)

// FaceModel is the opaque pretrained detection + embedding backend.
// Implementations are constructed once at process start and injected
// into the engine; Ready reports whether the backend can serve.
type FaceModel interface {
	// DetectFaces locates faces in the image and returns one detection
	// per face, in backend order. No filtering is applied here; the
	// detector wrapper owns the confidence/size rejection policy.
	DetectFaces(ctx context.Context, img image.Image) ([]Detection, error)

	// ExtractEmbedding converts an already-cropped, already-resized
	// face into a fixed-length vector.
	ExtractEmbedding(ctx context.Context, face image.Image) ([]float64, error)

	// Ready returns nil when the backend is initialized and reachable.
	Ready(ctx context.Context) error

	// Name identifies the backend for logs and status endpoints.
	Name() string
}

// Detection is one face located by the backend.
type Detection struct {
	Box        BoundingBox
	Confidence float64
}

// BoundingBox is the face area in pixel coordinates of the input image.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
