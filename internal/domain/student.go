package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmbeddingDimension is the fixed length of every stored face embedding
// (Facenet512 output).
const EmbeddingDimension = 512

// StudentProfile represents an enrolled student. A student may carry
// multiple embedding vectors (captured from different angles); the
// gallery averages them into one representative vector before matching.
type StudentProfile struct {
	ID         uuid.UUID   `json:"id"`
	StudentID  string      `json:"student_id"`
	Name       string      `json:"student_name"`
	Department string      `json:"department"`
	Year       string      `json:"year"`
	Division   string      `json:"division"`
	Embeddings [][]float64 `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// PartitionFilter narrows which students belong to a session's roster.
// Empty fields are wildcards; the zero value matches every student.
type PartitionFilter struct {
	Department string `json:"department"`
	Year       string `json:"year"`
	Division   string `json:"division"`
}

func (f PartitionFilter) IsEmpty() bool {
	return f.Department == "" && f.Year == "" && f.Division == ""
}

// Key returns the normalized cache key for this filter. Equal filters
// always produce the same key; the empty filter maps to "all".
func (f PartitionFilter) Key() string {
	if f.IsEmpty() {
		return "all"
	}

	var b strings.Builder
	b.WriteString("dept=")
	b.WriteString(f.Department)
	b.WriteString("|year=")
	b.WriteString(f.Year)
	b.WriteString("|div=")
	b.WriteString(f.Division)
	return b.String()
}

// Matches reports whether a student profile falls inside the partition.
func (f PartitionFilter) Matches(s *StudentProfile) bool {
	if f.Department != "" && f.Department != s.Department {
		return false
	}
	if f.Year != "" && f.Year != s.Year {
		return false
	}
	if f.Division != "" && f.Division != s.Division {
		return false
	}
	return true
}

// GalleryEntry is a cached, match-ready view of one enrolled student:
// their stored embeddings averaged into a single vector. Owned by the
// gallery cache, never persisted.
type GalleryEntry struct {
	StudentID   string
	StudentName string
	Embedding   []float64
	Partition   PartitionFilter
}
