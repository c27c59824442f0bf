package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker reports whether the face model can serve requests.
type ModelChecker interface {
	Ready(ctx context.Context) error
	Name() string
}

type HealthHandler struct {
	db    Pinger
	model ModelChecker
}

func NewHealthHandler(db Pinger, model ModelChecker) *HealthHandler {
	return &HealthHandler{db: db, model: model}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ReadyResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Model    string `json:"model"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	resp := ReadyResponse{Status: "ready", Database: "ok", Model: "ok"}
	status := fiber.StatusOK

	if err := h.db.Ping(c.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	if err := h.model.Ready(c.Context()); err != nil {
		resp.Status = "degraded"
		resp.Model = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(resp)
}
