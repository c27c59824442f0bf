package handler

import (
	"github.com/gofiber/fiber/v2"
)

// ModelHandler exposes face model status
type ModelHandler struct {
	model     ModelChecker
	threshold float64
}

func NewModelHandler(model ModelChecker, threshold float64) *ModelHandler {
	return &ModelHandler{model: model, threshold: threshold}
}

type ModelStatusResponse struct {
	Model     string  `json:"model"`
	Ready     bool    `json:"ready"`
	Threshold float64 `json:"threshold"`
	Error     string  `json:"error,omitempty"`
}

// Status GET /v1/models/status
func (h *ModelHandler) Status(c *fiber.Ctx) error {
	resp := ModelStatusResponse{
		Model:     h.model.Name(),
		Ready:     true,
		Threshold: h.threshold,
	}

	if err := h.model.Ready(c.Context()); err != nil {
		resp.Ready = false
		resp.Error = err.Error()
	}

	return c.JSON(resp)
}
