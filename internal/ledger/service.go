// Package ledger owns per-session presence state: roster pre-seeding,
// the at-most-once present transition, and finalization.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// MarkOutcome is the result of a markPresent attempt.
type MarkOutcome string

const (
	// OutcomeMarked: absent -> present transition happened.
	OutcomeMarked MarkOutcome = "marked"
	// OutcomeMarkedNew: student was outside the original roster; a new
	// record was appended as present.
	OutcomeMarkedNew MarkOutcome = "marked_new"
	// OutcomeDuplicate: already present, marked_at untouched.
	OutcomeDuplicate MarkOutcome = "duplicate"
)

// SessionRepositoryInterface is the storage boundary. MarkPresent must
// be atomic per (session, student): a conditional update that flips
// present only when currently false and the session is open.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, session *domain.AttendanceSession) error
	Get(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error)
	MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (MarkOutcome, error)
	Finalize(ctx context.Context, sessionID uuid.UUID, at time.Time) error
}

// RosterSource lists every student matching a partition filter,
// enrolled or not, for roster pre-seeding.
type RosterSource interface {
	ListByFilter(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error)
}

type Service struct {
	repo     SessionRepositoryInterface
	students RosterSource
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo SessionRepositoryInterface, students RosterSource, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		students: students,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSession builds a session with every student matching the filter
// pre-seeded as absent.
func (s *Service) CreateSession(ctx context.Context, filter domain.PartitionFilter, subject, date string) (*domain.AttendanceSession, error) {
	roster, err := s.students.ListByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("create session: load roster: %w", err)
	}

	session := &domain.AttendanceSession{
		ID:       uuid.New(),
		Subject:  subject,
		Date:     date,
		Filter:   filter,
		Students: make([]domain.SessionStudentRecord, 0, len(roster)),
	}
	for i := range roster {
		session.Students = append(session.Students, domain.SessionStudentRecord{
			StudentID:   roster[i].StudentID,
			StudentName: roster[i].Name,
			Present:     false,
		})
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("attendance session created",
		slog.String("session_id", session.ID.String()),
		slog.String("subject", subject),
		slog.String("partition", filter.Key()),
		slog.Int("roster_size", len(session.Students)),
	)

	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error) {
	return s.repo.Get(ctx, id)
}

// MarkPresent transitions a student to present at most once. Repeat
// recognitions return OutcomeDuplicate without re-timestamping.
// Recognized students outside the original roster are appended rather
// than rejected.
func (s *Service) MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (MarkOutcome, error) {
	outcome, err := s.repo.MarkPresent(ctx, sessionID, studentID, studentName, at)
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeMarked, OutcomeMarkedNew:
		s.logger.Info("student marked present",
			slog.String("session_id", sessionID.String()),
			slog.String("student_id", studentID),
			slog.String("outcome", string(outcome)),
		)
	case OutcomeDuplicate:
		s.logger.Debug("duplicate recognition ignored",
			slog.String("session_id", sessionID.String()),
			slog.String("student_id", studentID),
		)
	}

	return outcome, nil
}

// Finalize closes the session and returns the count summary. Absent
// roster members stay absent; present students are never un-marked.
// Finalizing an already-finalized session is a no-op that re-returns
// the summary.
func (s *Service) Finalize(ctx context.Context, sessionID uuid.UUID) (*domain.SessionSummary, error) {
	session, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.Finalized {
		if err := s.repo.Finalize(ctx, sessionID, s.now()); err != nil {
			return nil, fmt.Errorf("finalize session: %w", err)
		}
		// Marks can land between the read above and the finalize update.
		// Recount from the closed session so the summary matches what was
		// stored.
		session, err = s.repo.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("finalize session: reload: %w", err)
		}
	}

	present := session.PresentCount()
	summary := &domain.SessionSummary{
		PresentCount:  present,
		AbsentCount:   len(session.Students) - present,
		TotalStudents: len(session.Students),
	}

	s.logger.Info("attendance session finalized",
		slog.String("session_id", sessionID.String()),
		slog.Int("present", summary.PresentCount),
		slog.Int("absent", summary.AbsentCount),
	)

	return summary, nil
}
