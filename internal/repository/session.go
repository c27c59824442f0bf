package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/ledger"
)

type SessionRepository struct {
	pool PgxPool
}

func NewSessionRepository(pool PgxPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

var _ ledger.SessionRepositoryInterface = (*SessionRepository)(nil)

// Create inserts the session and its pre-seeded roster in one
// transaction.
func (r *SessionRepository) Create(ctx context.Context, session *domain.AttendanceSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO sessions (id, subject, date, department, year, division, finalized, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NOW())
		RETURNING created_at
	`

	err = tx.QueryRow(ctx, query,
		session.ID,
		session.Subject,
		session.Date,
		session.Filter.Department,
		session.Filter.Year,
		session.Filter.Division,
	).Scan(&session.CreatedAt)

	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	rosterQuery := `
		INSERT INTO session_students (session_id, student_id, student_name, present)
		VALUES ($1, $2, $3, FALSE)
	`
	for i := range session.Students {
		rec := &session.Students[i]
		if _, err := tx.Exec(ctx, rosterQuery, session.ID, rec.StudentID, rec.StudentName); err != nil {
			return fmt.Errorf("create session: seed roster: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create session: commit: %w", err)
	}

	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error) {
	query := `
		SELECT id, subject, date, department, year, division, finalized, ended_at, created_at
		FROM sessions
		WHERE id = $1
	`

	var session domain.AttendanceSession
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.Subject,
		&session.Date,
		&session.Filter.Department,
		&session.Filter.Year,
		&session.Filter.Division,
		&session.Finalized,
		&session.EndedAt,
		&session.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	students, err := r.roster(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Students = students

	return &session, nil
}

// MarkPresent flips a roster record to present exactly once. The update
// is conditional on present being false and the session being open, so
// concurrent recognitions of the same student race safely: one wins,
// the rest observe a duplicate.
func (r *SessionRepository) MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (ledger.MarkOutcome, error) {
	query := `
		UPDATE session_students ss
		SET present = TRUE, marked_at = $3
		FROM sessions s
		WHERE s.id = ss.session_id
		  AND ss.session_id = $1
		  AND ss.student_id = $2
		  AND ss.present = FALSE
		  AND s.finalized = FALSE
	`

	result, err := r.pool.Exec(ctx, query, sessionID, studentID, at)
	if err != nil {
		return "", fmt.Errorf("mark present: %w", err)
	}
	if result.RowsAffected() == 1 {
		return ledger.OutcomeMarked, nil
	}

	// Nothing updated. Distinguish missing session, finalized session,
	// already-present and off-roster student.
	diag := `
		SELECT s.finalized, ss.present
		FROM sessions s
		LEFT JOIN session_students ss
		  ON ss.session_id = s.id AND ss.student_id = $2
		WHERE s.id = $1
	`

	var finalized bool
	var present *bool
	err = r.pool.QueryRow(ctx, diag, sessionID, studentID).Scan(&finalized, &present)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("mark present: diagnose: %w", err)
	}

	if finalized {
		return "", domain.ErrSessionFinalized
	}
	if present != nil {
		if *present {
			return ledger.OutcomeDuplicate, nil
		}
		// Raced a concurrent finalize or lost the update some other
		// way; report duplicate-safe failure.
		return "", fmt.Errorf("mark present: record for %s not updated", studentID)
	}

	// Recognized student outside the pre-seeded roster. Append as
	// present; ON CONFLICT covers the race where two frames insert the
	// same student at once.
	insert := `
		INSERT INTO session_students (session_id, student_id, student_name, present, marked_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`

	result, err = r.pool.Exec(ctx, insert, sessionID, studentID, studentName, at)
	if err != nil {
		return "", fmt.Errorf("mark present: insert roster record: %w", err)
	}
	if result.RowsAffected() == 1 {
		return ledger.OutcomeMarkedNew, nil
	}

	// Lost the insert race; the winner already marked them.
	return ledger.OutcomeDuplicate, nil
}

// Finalize closes the session. Finalizing twice is a no-op as long as
// the session exists.
func (r *SessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	query := `
		UPDATE sessions
		SET finalized = TRUE, ended_at = $2
		WHERE id = $1 AND finalized = FALSE
	`

	result, err := r.pool.Exec(ctx, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if !exists {
		return domain.ErrSessionNotFound
	}

	return nil
}

func (r *SessionRepository) roster(ctx context.Context, sessionID uuid.UUID) ([]domain.SessionStudentRecord, error) {
	query := `
		SELECT student_id, student_name, present, marked_at
		FROM session_students
		WHERE session_id = $1
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session roster: %w", err)
	}
	defer rows.Close()

	var records []domain.SessionStudentRecord
	for rows.Next() {
		var rec domain.SessionStudentRecord
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &rec.Present, &rec.MarkedAt); err != nil {
			return nil, fmt.Errorf("load session roster: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session roster: %w", err)
	}

	return records, nil
}
