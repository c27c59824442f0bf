// Package model constructs the configured face model backend.
package model

import (
	"fmt"

	"github.com/saturnino-fabrica-de-software/presenca/internal/config"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider/mock"
)

// ProviderType defines supported face model backends
type ProviderType string

const (
	// ProviderTypeDeepFace talks to a DeepFace API server
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeMock is the deterministic in-process backend for
	// development and tests
	ProviderTypeMock ProviderType = "mock"
)

// NewFaceModel creates a FaceModel instance based on configuration.
//
// Environment variables:
//   - FACE_MODEL: "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL: DeepFace API URL (default: "http://localhost:5005")
func NewFaceModel(cfg *config.Config) (provider.FaceModel, error) {
	switch ProviderType(cfg.ModelProvider) {
	case ProviderTypeDeepFace, "":
		dfConfig := deepface.DefaultConfig()
		if cfg.DeepFaceURL != "" {
			dfConfig.BaseURL = cfg.DeepFaceURL
		}
		return deepface.NewProvider(dfConfig), nil

	case ProviderTypeMock:
		return mock.New(), nil

	default:
		return nil, fmt.Errorf("unknown face model backend: %s (supported: %s, %s)",
			cfg.ModelProvider, ProviderTypeDeepFace, ProviderTypeMock)
	}
}
