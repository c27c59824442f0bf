package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// SessionService interface for the session ledger
type SessionService interface {
	CreateSession(ctx context.Context, filter domain.PartitionFilter, subject, date string) (*domain.AttendanceSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error)
	Finalize(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error)
}

// FrameProcessor runs the recognition pipeline for one frame
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, sessionID uuid.UUID, imageData []byte) (*domain.FrameResult, error)
}

// SessionHandler handles attendance session requests
type SessionHandler struct {
	service SessionService
	engine  FrameProcessor
	logger  *slog.Logger
}

func NewSessionHandler(service SessionService, engine FrameProcessor, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{service: service, engine: engine, logger: logger}
}

// CreateSessionRequest body for session creation
type CreateSessionRequest struct {
	Subject    string `json:"subject"`
	Date       string `json:"date"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Division   string `json:"division"`
}

// FrameRequest body for JSON frame submissions. The image field accepts
// raw base64 or a data URI.
type FrameRequest struct {
	Image string `json:"image"`
}

// FrameResponse wraps the per-face results plus session counters
type FrameResponse struct {
	Faces        []domain.FaceResult `json:"faces"`
	SessionInfo  SessionInfo         `json:"session_info"`
	ProcessingMs int64               `json:"processing_time_ms"`
}

// SessionInfo carries running counters for the live session
type SessionInfo struct {
	TotalPresentNow     int `json:"total_present_now"`
	FacesDetected       int `json:"faces_detected"`
	DuplicatesPrevented int `json:"duplicates_prevented"`
}

// Create POST /v1/sessions - start an attendance session
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadRequest.WithError(err)
	}

	req.Subject = strings.TrimSpace(req.Subject)
	req.Date = strings.TrimSpace(req.Date)
	if req.Subject == "" || req.Date == "" {
		return domain.ErrValidationFailed.WithError(errors.New("subject and date are required"))
	}

	session, err := h.service.CreateSession(c.Context(), domain.PartitionFilter{
		Department: strings.TrimSpace(req.Department),
		Year:       strings.TrimSpace(req.Year),
		Division:   strings.TrimSpace(req.Division),
	}, req.Subject, req.Date)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// Get GET /v1/sessions/:id - session with full roster state
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	session, err := h.service.GetSession(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

// ProcessFrame POST /v1/sessions/:id/frames - run recognition on one frame
func (h *SessionHandler) ProcessFrame(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	imageData, err := extractFrame(c)
	if err != nil {
		return err
	}

	result, err := h.engine.ProcessFrame(c.Context(), id, imageData)
	if err != nil {
		return err
	}

	return c.JSON(FrameResponse{
		Faces: result.Faces,
		SessionInfo: SessionInfo{
			TotalPresentNow:     result.TotalPresentNow,
			FacesDetected:       result.FacesDetected,
			DuplicatesPrevented: result.DuplicatesPrevented,
		},
		ProcessingMs: result.ProcessingMs,
	})
}

// Finalize POST /v1/sessions/:id/finalize - close the session
func (h *SessionHandler) Finalize(c *fiber.Ctx) error {
	id, err := parseSessionID(c)
	if err != nil {
		return err
	}

	summary, err := h.service.Finalize(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(summary)
}

func parseSessionID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.ErrValidationFailed.WithError(errors.New("invalid session id"))
	}
	return id, nil
}

// extractFrame accepts either a multipart "image" file or a JSON body
// with a base64 image, data URI prefix tolerated.
func extractFrame(c *fiber.Ctx) ([]byte, error) {
	if file, err := c.FormFile("image"); err == nil {
		return readImageFile(file)
	}

	var req FrameRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}
	if req.Image == "" {
		return nil, domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	payload := req.Image
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	if len(data) == 0 || len(data) > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	return data, nil
}
