// Package docs builds the OpenAPI document served at /swagger.
package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// StudentResponse represents an enrolled student
type StudentResponse struct {
	StudentID  string `json:"student_id" example:"CS2021001"`
	Name       string `json:"student_name" example:"Ana Souza"`
	Department string `json:"department" example:"CS"`
	Year       string `json:"year" example:"3"`
	Division   string `json:"division" example:"A"`
	Embeddings int    `json:"embeddings" example:"3"`
	CreatedAt  string `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// SessionResponse represents an attendance session with roster state
type SessionResponse struct {
	ID        string                `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Subject   string                `json:"subject" example:"Operating Systems"`
	Date      string                `json:"date" example:"2024-01-15"`
	Finalized bool                  `json:"finalized" example:"false"`
	Students  []SessionStudentEntry `json:"students"`
}

// SessionStudentEntry is one roster record
type SessionStudentEntry struct {
	StudentID   string `json:"student_id" example:"CS2021001"`
	StudentName string `json:"student_name" example:"Ana Souza"`
	Present     bool   `json:"present" example:"true"`
	MarkedAt    string `json:"marked_at,omitempty" example:"2024-01-15T10:03:00Z"`
}

// FrameResultResponse represents the result of processing one frame
type FrameResultResponse struct {
	Faces        []FaceEntry     `json:"faces"`
	SessionInfo  SessionInfoData `json:"session_info"`
	ProcessingMs int64           `json:"processing_time_ms" example:"240"`
}

// FaceEntry is the outcome for one detected face
type FaceEntry struct {
	StudentID  string  `json:"student_id,omitempty" example:"CS2021001"`
	Status     string  `json:"status" example:"marked_present"`
	Distance   float64 `json:"distance,omitempty" example:"0.31"`
	Confidence float64 `json:"confidence,omitempty" example:"69.0"`
	Message    string  `json:"message" example:"Ana Souza marked present"`
}

// SessionInfoData carries running session counters
type SessionInfoData struct {
	TotalPresentNow     int `json:"total_present_now" example:"12"`
	FacesDetected       int `json:"faces_detected" example:"3"`
	DuplicatesPrevented int `json:"duplicates_prevented" example:"1"`
}

// SummaryResponse is the finalize result
type SummaryResponse struct {
	PresentCount  int `json:"present_count" example:"12"`
	AbsentCount   int `json:"absent_count" example:"8"`
	TotalStudents int `json:"total_students" example:"20"`
}

// ModelStatusData reports face model availability
type ModelStatusData struct {
	Model     string  `json:"model" example:"deepface/Facenet512"`
	Ready     bool    `json:"ready" example:"true"`
	Threshold float64 `json:"threshold" example:"0.6"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Presenca Attendance API",
		Version:     "v1.0.0",
		Description: "Face recognition attendance tracking for classroom sessions",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/students - Register Student
		endpoint.New(
			endpoint.POST,
			"/students",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Enroll a new student"),
			endpoint.WithDescription("Registers a student profile and extracts one face embedding per uploaded image."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "201", "Student enrolled successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Invalid request"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No usable face found in enrollment images"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "STUDENT_ALREADY_EXISTS", Message: "Student already registered"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// GET /v1/students
		endpoint.New(
			endpoint.GET,
			"/students",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("List students"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("department", parameter.Query, parameter.WithDescription("Filter by department")),
				parameter.StrParam("year", parameter.Query, parameter.WithDescription("Filter by year")),
				parameter.StrParam("division", parameter.Query, parameter.WithDescription("Filter by division")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New([]StudentResponse{}, "200", "Students listed"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// GET /v1/students/:student_id
		endpoint.New(
			endpoint.GET,
			"/students/{student_id}",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Get a student"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("student_id", parameter.Path, parameter.WithDescription("Student identifier")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "200", "Student retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "STUDENT_NOT_FOUND", Message: "Student not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// POST /v1/students/:student_id/embeddings
		endpoint.New(
			endpoint.POST,
			"/students/{student_id}/embeddings",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Add face embeddings"),
			endpoint.WithDescription("Extracts embeddings from additional capture images and appends them to the student."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("student_id", parameter.Path, parameter.WithDescription("Student identifier")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(StudentResponse{}, "200", "Embeddings added"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "STUDENT_NOT_FOUND", Message: "Student not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No usable face found"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// DELETE /v1/students/:student_id
		endpoint.New(
			endpoint.DELETE,
			"/students/{student_id}",
			endpoint.WithTags("Students"),
			endpoint.WithSummary("Delete a student"),
			endpoint.WithDescription("Removes the student and their embeddings; cached galleries referencing them are invalidated."),
			endpoint.WithParams(
				parameter.StrParam("student_id", parameter.Path, parameter.WithDescription("Student identifier")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(struct{}{}, "204", "Student deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "STUDENT_NOT_FOUND", Message: "Student not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// POST /v1/sessions
		endpoint.New(
			endpoint.POST,
			"/sessions",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Start an attendance session"),
			endpoint.WithDescription("Creates a session for one subject and date with the matching roster pre-seeded as absent."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "201", "Session created"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "subject and date are required"}, "422", "Unprocessable Entity"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// GET /v1/sessions/:id
		endpoint.New(
			endpoint.GET,
			"/sessions/{id}",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Get session state"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SessionResponse{}, "200", "Session retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Attendance session not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// POST /v1/sessions/:id/frames
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/frames",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Process a camera frame"),
			endpoint.WithDescription("Runs detection, embedding and matching on the frame, marking recognized students present. Accepts a multipart image or a JSON base64 payload."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data"), mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(FrameResultResponse{}, "200", "Frame processed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Attendance session not found"}, "404", "Not Found"),
				response.New(ErrorResponse{Code: "SESSION_FINALIZED", Message: "Attendance session already finalized"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "DECODE_ERROR", Message: "Image could not be decoded"}, "422", "Unprocessable Entity"),
				response.New(ErrorResponse{Code: "MODEL_UNAVAILABLE", Message: "Face recognition model not initialized"}, "503", "Service Unavailable"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// POST /v1/sessions/:id/finalize
		endpoint.New(
			endpoint.POST,
			"/sessions/{id}/finalize",
			endpoint.WithTags("Sessions"),
			endpoint.WithSummary("Finalize a session"),
			endpoint.WithDescription("Closes the session and returns present/absent counts. Finalizing twice is safe."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("id", parameter.Path, parameter.WithDescription("Session id")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SummaryResponse{}, "200", "Session finalized"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "SESSION_NOT_FOUND", Message: "Attendance session not found"}, "404", "Not Found"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),

		// GET /v1/models/status
		endpoint.New(
			endpoint.GET,
			"/models/status",
			endpoint.WithTags("Models"),
			endpoint.WithSummary("Face model status"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ModelStatusData{}, "200", "Model status"),
			}),
			endpoint.WithSecurity([]map[string][]string{{"BearerAuth": {}}}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
