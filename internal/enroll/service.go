// Package enroll registers students and their face embeddings.
package enroll

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/engine"
)

// StudentRepositoryInterface defines operations for student data access
type StudentRepositoryInterface interface {
	Create(ctx context.Context, student *domain.StudentProfile) error
	GetByStudentID(ctx context.Context, studentID string) (*domain.StudentProfile, error)
	AddEmbeddings(ctx context.Context, studentID string, embeddings [][]float64) error
	Delete(ctx context.Context, studentID string) error
	ListByFilter(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error)
}

// GalleryInvalidator drops cached galleries that may reference a
// deleted student.
type GalleryInvalidator interface {
	Invalidate(filter domain.PartitionFilter)
}

type RegisterInput struct {
	StudentID  string
	Name       string
	Department string
	Year       string
	Division   string
	Images     [][]byte
}

type Service struct {
	repo       StudentRepositoryInterface
	normalizer engine.NormalizerInterface
	detector   engine.DetectorInterface
	extractor  engine.ExtractorInterface
	gallery    GalleryInvalidator
	logger     *slog.Logger
}

func NewService(
	repo StudentRepositoryInterface,
	normalizer engine.NormalizerInterface,
	detector engine.DetectorInterface,
	extractor engine.ExtractorInterface,
	gallery GalleryInvalidator,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		detector:   detector,
		extractor:  extractor,
		gallery:    gallery,
		logger:     logger,
	}
}

// Register creates a student profile with one embedding per usable
// enrollment image. At least one image must yield a face.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.StudentProfile, error) {
	if input.StudentID == "" || input.Name == "" {
		return nil, domain.ErrValidationFailed
	}

	embeddings, err := s.embeddingsFromImages(ctx, input.Images)
	if err != nil {
		return nil, err
	}
	if len(input.Images) > 0 && len(embeddings) == 0 {
		return nil, &domain.AppError{
			Code:       "NO_FACE_DETECTED",
			Message:    "No usable face found in enrollment images",
			StatusCode: 422,
		}
	}

	student := &domain.StudentProfile{
		StudentID:  input.StudentID,
		Name:       input.Name,
		Department: input.Department,
		Year:       input.Year,
		Division:   input.Division,
		Embeddings: embeddings,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, err
	}

	s.logger.Info("student registered",
		slog.String("student_id", student.StudentID),
		slog.Int("embeddings", len(embeddings)),
	)

	return student, nil
}

// AddEmbeddings extracts embeddings from additional capture images and
// appends them to an existing student.
func (s *Service) AddEmbeddings(ctx context.Context, studentID string, images [][]byte) (int, error) {
	embeddings, err := s.embeddingsFromImages(ctx, images)
	if err != nil {
		return 0, err
	}
	if len(embeddings) == 0 {
		return 0, &domain.AppError{
			Code:       "NO_FACE_DETECTED",
			Message:    "No usable face found in enrollment images",
			StatusCode: 422,
		}
	}

	if err := s.repo.AddEmbeddings(ctx, studentID, embeddings); err != nil {
		return 0, err
	}

	s.logger.Info("embeddings added",
		slog.String("student_id", studentID),
		slog.Int("embeddings", len(embeddings)),
	)

	return len(embeddings), nil
}

func (s *Service) Get(ctx context.Context, studentID string) (*domain.StudentProfile, error) {
	return s.repo.GetByStudentID(ctx, studentID)
}

func (s *Service) List(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error) {
	return s.repo.ListByFilter(ctx, filter)
}

// Delete removes the student and eagerly invalidates any gallery that
// could still match them.
func (s *Service) Delete(ctx context.Context, studentID string) error {
	student, err := s.repo.GetByStudentID(ctx, studentID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, studentID); err != nil {
		return err
	}

	s.gallery.Invalidate(domain.PartitionFilter{
		Department: student.Department,
		Year:       student.Year,
		Division:   student.Division,
	})

	s.logger.Info("student deleted", slog.String("student_id", studentID))

	return nil
}

// embeddingsFromImages runs each image through the recognition pipeline
// and collects one embedding per best face. Images where detection
// finds nothing are skipped, not fatal.
func (s *Service) embeddingsFromImages(ctx context.Context, images [][]byte) ([][]float64, error) {
	var embeddings [][]float64

	for i, data := range images {
		frame, err := s.normalizer.Normalize(data)
		if err != nil {
			return nil, err
		}

		faces, err := s.detector.Detect(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("enroll image %d: %w", i, err)
		}
		if len(faces) == 0 {
			continue
		}

		// Largest face wins when the capture contains bystanders.
		best := 0
		for j := 1; j < len(faces); j++ {
			if area(faces[j].Box) > area(faces[best].Box) {
				best = j
			}
		}

		embedding, err := s.extractor.Extract(ctx, faces[best].Crop)
		if err != nil {
			return nil, fmt.Errorf("enroll image %d: %w", i, err)
		}
		if len(embedding) == 0 {
			continue
		}

		embeddings = append(embeddings, embedding)
	}

	return embeddings, nil
}

func area(b domain.BoundingBox) int {
	return b.Width * b.Height
}
