// Package engine orchestrates frame processing: normalize, detect,
// embed, match, commit. One engine instance serves all sessions.
package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/ledger"
	"github.com/saturnino-fabrica-de-software/presenca/internal/matcher"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
	"github.com/saturnino-fabrica-de-software/presenca/internal/vision"
)

type NormalizerInterface interface {
	Normalize(data []byte) (*image.RGBA, error)
}

type DetectorInterface interface {
	Detect(ctx context.Context, img *image.RGBA) ([]vision.Face, error)
}

type ExtractorInterface interface {
	Extract(ctx context.Context, face image.Image) ([]float64, error)
}

type GalleryInterface interface {
	Snapshot(ctx context.Context, filter domain.PartitionFilter) ([]domain.GalleryEntry, error)
}

type LedgerInterface interface {
	GetSession(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error)
	MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (ledger.MarkOutcome, error)
}

type Engine struct {
	model      provider.FaceModel
	normalizer NormalizerInterface
	detector   DetectorInterface
	extractor  ExtractorInterface
	gallery    GalleryInterface
	matcher    *matcher.Matcher
	ledger     LedgerInterface
	logger     *slog.Logger
	now        func() time.Time
}

func New(
	model provider.FaceModel,
	normalizer NormalizerInterface,
	detector DetectorInterface,
	extractor ExtractorInterface,
	gallery GalleryInterface,
	m *matcher.Matcher,
	l LedgerInterface,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		model:      model,
		normalizer: normalizer,
		detector:   detector,
		extractor:  extractor,
		gallery:    gallery,
		matcher:    m,
		ledger:     l,
		logger:     logger,
		now:        time.Now,
	}
}

// ProcessFrame runs the full pipeline for one frame. Session and model
// validation abort the whole call; a failed embedding only skips its
// own face. Faces are processed in detector output order.
func (e *Engine) ProcessFrame(ctx context.Context, sessionID uuid.UUID, imageData []byte) (*domain.FrameResult, error) {
	start := e.now()

	if err := e.model.Ready(ctx); err != nil {
		return nil, domain.ErrModelUnavailable.WithError(err)
	}

	// Validate session before touching the image
	session, err := e.ledger.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finalized {
		return nil, domain.ErrSessionFinalized
	}

	frame, err := e.normalizer.Normalize(imageData)
	if err != nil {
		return nil, err
	}

	faces, err := e.detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	result := &domain.FrameResult{
		Faces:           make([]domain.FaceResult, 0, len(faces)),
		FacesDetected:   len(faces),
		TotalPresentNow: session.PresentCount(),
	}

	if len(faces) == 0 {
		result.ProcessingMs = e.now().Sub(start).Milliseconds()
		return result, nil
	}

	gallery, err := e.gallery.Snapshot(ctx, session.Filter)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}

	for i := range faces {
		result.Faces = append(result.Faces, e.processFace(ctx, sessionID, &faces[i], gallery, result))
	}

	result.ProcessingMs = e.now().Sub(start).Milliseconds()

	e.logger.Info("frame processed",
		slog.String("session_id", sessionID.String()),
		slog.Int("faces_detected", result.FacesDetected),
		slog.Int("total_present_now", result.TotalPresentNow),
		slog.Int64("processing_ms", result.ProcessingMs),
	)

	return result, nil
}

// processFace handles a single detection end to end. Errors here are
// isolated: the face gets an error tag and siblings keep going.
func (e *Engine) processFace(ctx context.Context, sessionID uuid.UUID, face *vision.Face, gallery []domain.GalleryEntry, frame *domain.FrameResult) domain.FaceResult {
	embedding, err := e.extractor.Extract(ctx, face.Crop)
	if err != nil || len(embedding) == 0 {
		if err != nil {
			e.logger.Error("embedding extraction failed",
				slog.String("session_id", sessionID.String()),
				slog.Any("error", err),
			)
		}
		return domain.FaceResult{
			Box:     face.Box,
			Status:  domain.StatusError,
			Message: "Failed to extract embedding",
		}
	}

	match := e.matcher.Match(embedding, gallery)
	distance := match.Distance
	confidence := matcher.Confidence(distance)

	if !match.Matched() {
		return domain.FaceResult{
			Box:        face.Box,
			Distance:   &distance,
			Confidence: &confidence,
			Status:     domain.StatusNoMatch,
			Message:    "Face not recognized",
		}
	}

	entry := match.Entry
	outcome, err := e.ledger.MarkPresent(ctx, sessionID, entry.StudentID, entry.StudentName, e.now())
	if err != nil {
		e.logger.Error("mark present failed",
			slog.String("session_id", sessionID.String()),
			slog.String("student_id", entry.StudentID),
			slog.Any("error", err),
		)
		return domain.FaceResult{
			Box:        face.Box,
			Match:      &domain.FaceMatch{StudentID: entry.StudentID, StudentName: entry.StudentName},
			Distance:   &distance,
			Confidence: &confidence,
			Status:     domain.StatusError,
			Message:    "Failed to record attendance",
		}
	}

	fr := domain.FaceResult{
		Box:        face.Box,
		Match:      &domain.FaceMatch{StudentID: entry.StudentID, StudentName: entry.StudentName},
		Distance:   &distance,
		Confidence: &confidence,
	}

	switch outcome {
	case ledger.OutcomeMarked:
		frame.TotalPresentNow++
		fr.Status = domain.StatusMarkedPresent
		fr.Message = fmt.Sprintf("%s marked present", entry.StudentName)
	case ledger.OutcomeMarkedNew:
		frame.TotalPresentNow++
		fr.Status = domain.StatusMarkedPresentNew
		fr.Message = fmt.Sprintf("%s added to session and marked present", entry.StudentName)
	case ledger.OutcomeDuplicate:
		frame.DuplicatesPrevented++
		fr.Status = domain.StatusDuplicate
		fr.Message = fmt.Sprintf("%s is already marked present", entry.StudentName)
	}

	return fr
}
