package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizer_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{"within bounds passes through", 320, 240, 320, 240},
		{"exact bounds pass through", 640, 480, 640, 480},
		{"small image is never upscaled", 30, 30, 30, 30},
		{"wide image scales to width", 1280, 720, 640, 360},
		{"tall image scales to height", 600, 960, 300, 480},
		{"both oversized scales to tighter axis", 1920, 1440, 640, 480},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodePNG(t, tt.width, tt.height)

			got, err := n.Normalize(data)
			require.NoError(t, err)

			assert.Equal(t, tt.wantWidth, got.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, got.Bounds().Dy())
		})
	}
}

func TestNormalizer_NormalizeInvalidInput(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name string
		data []byte
	}{
		{"garbage bytes", []byte("definitely not an image")},
		{"empty input", nil},
		{"truncated png", encodePNG(t, 100, 100)[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.data)

			var appErr *domain.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "DECODE_ERROR", appErr.Code)
		})
	}
}

func TestNormalizer_NormalizeKeepsAspectRatio(t *testing.T) {
	n := NewNormalizer()
	data := encodePNG(t, 1000, 500)

	got, err := n.Normalize(data)
	require.NoError(t, err)

	// 2:1 input must stay 2:1 after scaling
	assert.Equal(t, 640, got.Bounds().Dx())
	assert.Equal(t, 320, got.Bounds().Dy())
}
