package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/enroll"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
}

// EnrollService interface for the enrollment service
type EnrollService interface {
	Register(ctx context.Context, input enroll.RegisterInput) (*domain.StudentProfile, error)
	AddEmbeddings(ctx context.Context, studentID string, images [][]byte) (int, error)
	Get(ctx context.Context, studentID string) (*domain.StudentProfile, error)
	List(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error)
	Delete(ctx context.Context, studentID string) error
}

// StudentHandler handles student enrollment requests
type StudentHandler struct {
	service EnrollService
	logger  *slog.Logger
}

func NewStudentHandler(service EnrollService, logger *slog.Logger) *StudentHandler {
	return &StudentHandler{service: service, logger: logger}
}

// StudentResponse is the public view of a student profile
type StudentResponse struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"student_name"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Division   string `json:"division"`
	Embeddings int    `json:"embeddings"`
	CreatedAt  string `json:"created_at"`
}

func studentResponse(s *domain.StudentProfile) StudentResponse {
	return StudentResponse{
		StudentID:  s.StudentID,
		Name:       s.Name,
		Department: s.Department,
		Year:       s.Year,
		Division:   s.Division,
		Embeddings: len(s.Embeddings),
		CreatedAt:  s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Register POST /v1/students - enroll a new student
func (h *StudentHandler) Register(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.FormValue("student_id"))
	name := strings.TrimSpace(c.FormValue("student_name"))
	if studentID == "" || name == "" {
		return domain.ErrValidationFailed.WithError(errors.New("student_id and student_name are required"))
	}

	images, err := extractImages(c)
	if err != nil {
		return err
	}

	student, err := h.service.Register(c.Context(), enroll.RegisterInput{
		StudentID:  studentID,
		Name:       name,
		Department: strings.TrimSpace(c.FormValue("department")),
		Year:       strings.TrimSpace(c.FormValue("year")),
		Division:   strings.TrimSpace(c.FormValue("division")),
		Images:     images,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(studentResponse(student))
}

// Get GET /v1/students/:student_id
func (h *StudentHandler) Get(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("student_id"))
	if studentID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("student_id is required"))
	}

	student, err := h.service.Get(c.Context(), studentID)
	if err != nil {
		return err
	}

	return c.JSON(studentResponse(student))
}

// List GET /v1/students - list students, optionally filtered
func (h *StudentHandler) List(c *fiber.Ctx) error {
	filter := domain.PartitionFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Year:       strings.TrimSpace(c.Query("year")),
		Division:   strings.TrimSpace(c.Query("division")),
	}

	students, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}

	resp := make([]StudentResponse, 0, len(students))
	for i := range students {
		resp = append(resp, studentResponse(&students[i]))
	}

	return c.JSON(fiber.Map{"students": resp, "count": len(resp)})
}

// AddEmbeddings POST /v1/students/:student_id/embeddings
func (h *StudentHandler) AddEmbeddings(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("student_id"))
	if studentID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("student_id is required"))
	}

	images, err := extractImages(c)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("at least one image is required"))
	}

	added, err := h.service.AddEmbeddings(c.Context(), studentID, images)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"student_id": studentID, "embeddings_added": added})
}

// Delete DELETE /v1/students/:student_id
func (h *StudentHandler) Delete(c *fiber.Ctx) error {
	studentID := strings.TrimSpace(c.Params("student_id"))
	if studentID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("student_id is required"))
	}

	if err := h.service.Delete(c.Context(), studentID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// extractImages reads every "images" file from the multipart form.
func extractImages(c *fiber.Ctx) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}

	files := form.File["images"]
	images := make([][]byte, 0, len(files))
	for _, file := range files {
		data, err := readImageFile(file)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}

	return images, nil
}

func readImageFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size == 0 || file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(nil)
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return data, nil
}
