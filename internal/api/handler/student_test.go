package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/enroll"
)

// MockEnrollService is a mock implementation of EnrollService
type MockEnrollService struct {
	mock.Mock
}

func (m *MockEnrollService) Register(ctx context.Context, input enroll.RegisterInput) (*domain.StudentProfile, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StudentProfile), args.Error(1)
}

func (m *MockEnrollService) AddEmbeddings(ctx context.Context, studentID string, images [][]byte) (int, error) {
	args := m.Called(ctx, studentID, images)
	return args.Int(0), args.Error(1)
}

func (m *MockEnrollService) Get(ctx context.Context, studentID string) (*domain.StudentProfile, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StudentProfile), args.Error(1)
}

func (m *MockEnrollService) List(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StudentProfile), args.Error(1)
}

func (m *MockEnrollService) Delete(ctx context.Context, studentID string) error {
	args := m.Called(ctx, studentID)
	return args.Error(0)
}

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandlerApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
}

// createEnrollForm builds a multipart body with student fields and image files
func createEnrollForm(fields map[string]string, images [][]byte, contentType string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		_ = writer.WriteField(key, value)
	}

	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="face.jpg"`)
		h.Set("Content-Type", contentType)

		part, _ := writer.CreatePart(h)
		_, _ = part.Write(img)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func sampleStudent() *domain.StudentProfile {
	return &domain.StudentProfile{
		StudentID:  "S1",
		Name:       "Alice",
		Department: "CS",
		Year:       "3",
		Division:   "A",
		Embeddings: [][]float64{make([]float64, domain.EmbeddingDimension)},
		CreatedAt:  time.Now(),
	}
}

func TestStudentHandler_Register(t *testing.T) {
	service := new(MockEnrollService)
	service.On("Register", mock.Anything, mock.MatchedBy(func(input enroll.RegisterInput) bool {
		return input.StudentID == "S1" && input.Name == "Alice" && len(input.Images) == 1
	})).Return(sampleStudent(), nil)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Post("/v1/students", handler.Register)

	body, contentType := createEnrollForm(map[string]string{
		"student_id":   "S1",
		"student_name": "Alice",
		"department":   "CS",
	}, [][]byte{[]byte("fake-jpeg-bytes")}, "image/jpeg")

	req := httptest.NewRequest("POST", "/v1/students", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result StudentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "S1", result.StudentID)
	assert.Equal(t, 1, result.Embeddings)

	service.AssertExpectations(t)
}

func TestStudentHandler_RegisterMissingFields(t *testing.T) {
	service := new(MockEnrollService)
	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Post("/v1/students", handler.Register)

	body, contentType := createEnrollForm(map[string]string{
		"student_id": "S1",
	}, nil, "image/jpeg")

	req := httptest.NewRequest("POST", "/v1/students", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	service.AssertNotCalled(t, "Register")
}

func TestStudentHandler_RegisterRejectsWrongContentType(t *testing.T) {
	service := new(MockEnrollService)
	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Post("/v1/students", handler.Register)

	body, contentType := createEnrollForm(map[string]string{
		"student_id":   "S1",
		"student_name": "Alice",
	}, [][]byte{[]byte("<svg/>")}, "image/svg+xml")

	req := httptest.NewRequest("POST", "/v1/students", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	service.AssertNotCalled(t, "Register")
}

func TestStudentHandler_Get(t *testing.T) {
	service := new(MockEnrollService)
	service.On("Get", mock.Anything, "S1").Return(sampleStudent(), nil)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Get("/v1/students/:student_id", handler.Get)

	req := httptest.NewRequest("GET", "/v1/students/S1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStudentHandler_GetNotFound(t *testing.T) {
	service := new(MockEnrollService)
	service.On("Get", mock.Anything, "S9").Return(nil, domain.ErrStudentNotFound)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Get("/v1/students/:student_id", handler.Get)

	req := httptest.NewRequest("GET", "/v1/students/S9", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestStudentHandler_ListAppliesFilter(t *testing.T) {
	service := new(MockEnrollService)
	service.On("List", mock.Anything, domain.PartitionFilter{Department: "CS", Year: "3"}).
		Return([]domain.StudentProfile{*sampleStudent()}, nil)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Get("/v1/students", handler.List)

	req := httptest.NewRequest("GET", "/v1/students?department=CS&year=3", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Students []StudentResponse `json:"students"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Count)

	service.AssertExpectations(t)
}

func TestStudentHandler_AddEmbeddings(t *testing.T) {
	service := new(MockEnrollService)
	service.On("AddEmbeddings", mock.Anything, "S1", mock.Anything).Return(2, nil)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Post("/v1/students/:student_id/embeddings", handler.AddEmbeddings)

	body, contentType := createEnrollForm(nil, [][]byte{
		[]byte("img-one"),
		[]byte("img-two"),
	}, "image/png")

	req := httptest.NewRequest("POST", "/v1/students/S1/embeddings", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, float64(2), result["embeddings_added"])
}

func TestStudentHandler_AddEmbeddingsRequiresImages(t *testing.T) {
	service := new(MockEnrollService)
	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Post("/v1/students/:student_id/embeddings", handler.AddEmbeddings)

	body, contentType := createEnrollForm(map[string]string{"noop": "1"}, nil, "image/png")

	req := httptest.NewRequest("POST", "/v1/students/S1/embeddings", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	service.AssertNotCalled(t, "AddEmbeddings")
}

func TestStudentHandler_Delete(t *testing.T) {
	service := new(MockEnrollService)
	service.On("Delete", mock.Anything, "S1").Return(nil)

	app := newHandlerApp()
	handler := NewStudentHandler(service, testLogger())
	app.Delete("/v1/students/:student_id", handler.Delete)

	req := httptest.NewRequest("DELETE", "/v1/students/S1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	service.AssertExpectations(t)
}
