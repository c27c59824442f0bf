package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceSession is one attendance-taking event for one subject and
// date. The roster is pre-seeded as absent at creation; presence is
// monotonic within a session (absent -> present, never back). Once
// finalized no further presence mutation is permitted.
type AttendanceSession struct {
	ID        uuid.UUID              `json:"id"`
	Subject   string                 `json:"subject"`
	Date      string                 `json:"date"`
	Filter    PartitionFilter        `json:"filter"`
	CreatedAt time.Time              `json:"created_at"`
	Finalized bool                   `json:"finalized"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
	Students  []SessionStudentRecord `json:"students"`
}

// SessionStudentRecord is one student's presence state within a
// session. At most one record exists per (session, student).
type SessionStudentRecord struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Present     bool       `json:"present"`
	MarkedAt    *time.Time `json:"marked_at,omitempty"`
}

// PresentCount counts records currently marked present.
func (s *AttendanceSession) PresentCount() int {
	n := 0
	for _, r := range s.Students {
		if r.Present {
			n++
		}
	}
	return n
}

// SessionSummary is returned by finalize.
type SessionSummary struct {
	PresentCount  int `json:"present_count"`
	AbsentCount   int `json:"absent_count"`
	TotalStudents int `json:"total_students"`
}
