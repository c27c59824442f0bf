package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

type StudentRepository struct {
	pool PgxPool
}

func NewStudentRepository(pool PgxPool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// Create inserts the student profile and its embedding rows in one
// transaction.
func (r *StudentRepository) Create(ctx context.Context, student *domain.StudentProfile) error {
	if student.ID == uuid.Nil {
		student.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create student: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO students (id, student_id, name, department, year, division, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		student.ID,
		student.StudentID,
		student.Name,
		student.Department,
		student.Year,
		student.Division,
	).Scan(&student.CreatedAt, &student.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrStudentExists
		}
		return fmt.Errorf("create student: %w", err)
	}

	for _, emb := range student.Embeddings {
		if err := insertEmbedding(ctx, tx, student.ID, emb); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create student: commit: %w", err)
	}

	return nil
}

func (r *StudentRepository) GetByStudentID(ctx context.Context, studentID string) (*domain.StudentProfile, error) {
	query := `
		SELECT id, student_id, name, department, year, division, created_at, updated_at
		FROM students
		WHERE student_id = $1
	`

	var student domain.StudentProfile
	err := r.pool.QueryRow(ctx, query, studentID).Scan(
		&student.ID,
		&student.StudentID,
		&student.Name,
		&student.Department,
		&student.Year,
		&student.Division,
		&student.CreatedAt,
		&student.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStudentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student by student_id: %w", err)
	}

	embeddings, err := r.embeddingsFor(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	student.Embeddings = embeddings

	return &student, nil
}

// AddEmbeddings appends extra embedding vectors to an existing student.
func (r *StudentRepository) AddEmbeddings(ctx context.Context, studentID string, embeddings [][]float64) error {
	query := `SELECT id FROM students WHERE student_id = $1`

	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, studentID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStudentNotFound
	}
	if err != nil {
		return fmt.Errorf("add embeddings: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("add embeddings: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, emb := range embeddings {
		if err := insertEmbedding(ctx, tx, id, emb); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE students SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("add embeddings: touch student: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("add embeddings: commit: %w", err)
	}

	return nil
}

// Delete removes the student; embedding rows go with it via cascade.
func (r *StudentRepository) Delete(ctx context.Context, studentID string) error {
	query := `
		DELETE FROM students
		WHERE student_id = $1
	`

	result, err := r.pool.Exec(ctx, query, studentID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrStudentNotFound
	}

	return nil
}

// ListByFilter returns every student inside the partition, with or
// without stored embeddings. Empty filter fields are wildcards.
func (r *StudentRepository) ListByFilter(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error) {
	query := `
		SELECT id, student_id, name, department, year, division, created_at, updated_at
		FROM students
		WHERE ($1 = '' OR department = $1)
		  AND ($2 = '' OR year = $2)
		  AND ($3 = '' OR division = $3)
		ORDER BY student_id
	`

	rows, err := r.pool.Query(ctx, query, filter.Department, filter.Year, filter.Division)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []domain.StudentProfile
	for rows.Next() {
		var s domain.StudentProfile
		err := rows.Scan(
			&s.ID,
			&s.StudentID,
			&s.Name,
			&s.Department,
			&s.Year,
			&s.Division,
			&s.CreatedAt,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("list students: scan: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	return students, nil
}

// ListEnrolled returns students inside the partition that have at least
// one stored embedding, embeddings attached, ordered by student_id so
// downstream gallery builds are deterministic.
func (r *StudentRepository) ListEnrolled(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error) {
	query := `
		SELECT s.id, s.student_id, s.name, s.department, s.year, s.division,
		       s.created_at, s.updated_at, e.embedding
		FROM students s
		INNER JOIN student_embeddings e ON e.student_id = s.id
		WHERE ($1 = '' OR s.department = $1)
		  AND ($2 = '' OR s.year = $2)
		  AND ($3 = '' OR s.division = $3)
		ORDER BY s.student_id, e.created_at
	`

	rows, err := r.pool.Query(ctx, query, filter.Department, filter.Year, filter.Division)
	if err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	defer rows.Close()

	var students []domain.StudentProfile
	for rows.Next() {
		var s domain.StudentProfile
		var embedding pgvector.Vector

		err := rows.Scan(
			&s.ID,
			&s.StudentID,
			&s.Name,
			&s.Department,
			&s.Year,
			&s.Division,
			&s.CreatedAt,
			&s.UpdatedAt,
			&embedding,
		)
		if err != nil {
			return nil, fmt.Errorf("list enrolled students: scan: %w", err)
		}

		// Rows are grouped by student; fold embedding rows into the
		// previous profile when the id repeats.
		if n := len(students); n > 0 && students[n-1].ID == s.ID {
			students[n-1].Embeddings = append(students[n-1].Embeddings, vectorToFloat64(embedding))
			continue
		}

		s.Embeddings = [][]float64{vectorToFloat64(embedding)}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}

	return students, nil
}

func insertEmbedding(ctx context.Context, tx pgx.Tx, studentID uuid.UUID, embedding []float64) error {
	if len(embedding) != domain.EmbeddingDimension {
		return domain.ErrEmbeddingDimension
	}

	query := `
		INSERT INTO student_embeddings (id, student_id, embedding, created_at)
		VALUES ($1, $2, $3, NOW())
	`

	_, err := tx.Exec(ctx, query, uuid.New(), studentID, float64ToVector(embedding))
	if err != nil {
		return fmt.Errorf("insert embedding: %w", err)
	}

	return nil
}

func (r *StudentRepository) embeddingsFor(ctx context.Context, id uuid.UUID) ([][]float64, error) {
	query := `
		SELECT embedding
		FROM student_embeddings
		WHERE student_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("load embeddings: scan: %w", err)
		}
		embeddings = append(embeddings, vectorToFloat64(vec))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	return embeddings, nil
}

func float64ToVector(embedding []float64) pgvector.Vector {
	floats := make([]float32, len(embedding))
	for i, v := range embedding {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

func vectorToFloat64(vec pgvector.Vector) []float64 {
	slice := vec.Slice()
	out := make([]float64, len(slice))
	for i, v := range slice {
		out[i] = float64(v)
	}
	return out
}
