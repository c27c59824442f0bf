package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// fakeSessionRepo implements the storage CAS contract in memory.
type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.AttendanceSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*domain.AttendanceSession)}
}

func (f *fakeSessionRepo) Create(ctx context.Context, session *domain.AttendanceSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *session
	cp.Students = append([]domain.SessionStudentRecord(nil), session.Students...)
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	cp := *s
	cp.Students = append([]domain.SessionStudentRecord(nil), s.Students...)
	return &cp, nil
}

func (f *fakeSessionRepo) MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (MarkOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[sessionID]
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if s.Finalized {
		return "", domain.ErrSessionFinalized
	}

	for i := range s.Students {
		if s.Students[i].StudentID == studentID {
			if s.Students[i].Present {
				return OutcomeDuplicate, nil
			}
			s.Students[i].Present = true
			s.Students[i].MarkedAt = &at
			return OutcomeMarked, nil
		}
	}

	s.Students = append(s.Students, domain.SessionStudentRecord{
		StudentID:   studentID,
		StudentName: studentName,
		Present:     true,
		MarkedAt:    &at,
	})
	return OutcomeMarkedNew, nil
}

func (f *fakeSessionRepo) Finalize(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Finalized = true
	s.EndedAt = &at
	return nil
}

type fakeRoster struct {
	students []domain.StudentProfile
}

func (f *fakeRoster) ListByFilter(ctx context.Context, filter domain.PartitionFilter) ([]domain.StudentProfile, error) {
	var out []domain.StudentProfile
	for i := range f.students {
		if filter.Matches(&f.students[i]) {
			out = append(out, f.students[i])
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() (*Service, *fakeSessionRepo) {
	repo := newFakeSessionRepo()
	roster := &fakeRoster{students: []domain.StudentProfile{
		{StudentID: "S1", Name: "Alice", Department: "CS"},
		{StudentID: "S2", Name: "Bob", Department: "CS"},
		{StudentID: "S3", Name: "Carol", Department: "EE"},
	}}
	return NewService(repo, roster, testLogger()), repo
}

func TestService_CreateSessionSeedsRosterAbsent(t *testing.T) {
	svc, _ := newTestService()

	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{Department: "CS"}, "Operating Systems", "2024-01-15")
	require.NoError(t, err)

	require.Len(t, session.Students, 2)
	for _, rec := range session.Students {
		assert.False(t, rec.Present)
		assert.Nil(t, rec.MarkedAt)
	}
	assert.Equal(t, 0, session.PresentCount())
}

func TestService_MarkPresentTransitionsOnce(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	at := time.Now()
	outcome, err := svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", at)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMarked, outcome)

	// Second recognition is a duplicate and keeps the first timestamp
	outcome, err = svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", at.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	got, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PresentCount())

	for _, rec := range got.Students {
		if rec.StudentID == "S1" {
			require.NotNil(t, rec.MarkedAt)
			assert.True(t, rec.MarkedAt.Equal(at))
		}
	}
}

func TestService_MarkPresentAppendsOffRosterStudent(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{Department: "CS"}, "OS", "2024-01-15")
	require.NoError(t, err)

	outcome, err := svc.MarkPresent(context.Background(), session.ID, "S9", "Dave", time.Now())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMarkedNew, outcome)

	got, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Students, 3)
	assert.Equal(t, 1, got.PresentCount())
}

func TestService_MarkPresentUnknownSession(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.MarkPresent(context.Background(), uuid.New(), "S1", "Alice", time.Now())

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestService_FinalizeSummary(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", time.Now())
	require.NoError(t, err)

	summary, err := svc.Finalize(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PresentCount)
	assert.Equal(t, 2, summary.AbsentCount)
	assert.Equal(t, 3, summary.TotalStudents)
}

// markDuringFinalizeRepo lands one extra mark between the service's
// roster read and the finalize update, the way a late frame would.
type markDuringFinalizeRepo struct {
	*fakeSessionRepo
	studentID   string
	studentName string
}

func (r *markDuringFinalizeRepo) Finalize(ctx context.Context, sessionID uuid.UUID, at time.Time) error {
	if _, err := r.fakeSessionRepo.MarkPresent(ctx, sessionID, r.studentID, r.studentName, at); err != nil {
		return err
	}
	return r.fakeSessionRepo.Finalize(ctx, sessionID, at)
}

func TestService_FinalizeSummaryIncludesLateMarks(t *testing.T) {
	base := newFakeSessionRepo()
	repo := &markDuringFinalizeRepo{fakeSessionRepo: base, studentID: "S2", studentName: "Bob"}
	roster := &fakeRoster{students: []domain.StudentProfile{
		{StudentID: "S1", Name: "Alice"},
		{StudentID: "S2", Name: "Bob"},
		{StudentID: "S3", Name: "Carol"},
	}}
	svc := NewService(repo, roster, testLogger())

	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", time.Now())
	require.NoError(t, err)

	summary, err := svc.Finalize(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PresentCount)
	assert.Equal(t, 1, summary.AbsentCount)
	assert.Equal(t, 3, summary.TotalStudents)
}

func TestService_FinalizeBlocksFurtherMarks(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), session.ID)
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", time.Now())
	assert.ErrorIs(t, err, domain.ErrSessionFinalized)
}

func TestService_FinalizeTwiceIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	_, err = svc.MarkPresent(context.Background(), session.ID, "S2", "Bob", time.Now())
	require.NoError(t, err)

	first, err := svc.Finalize(context.Background(), session.ID)
	require.NoError(t, err)

	second, err := svc.Finalize(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_ConcurrentMarksSameStudent(t *testing.T) {
	svc, _ := newTestService()
	session, err := svc.CreateSession(context.Background(), domain.PartitionFilter{}, "OS", "2024-01-15")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var marked, duplicates int32
	var mu sync.Mutex

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.MarkPresent(context.Background(), session.ID, "S1", "Alice", time.Now())
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeMarked:
				marked++
			case OutcomeDuplicate:
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), marked)
	assert.Equal(t, int32(9), duplicates)

	got, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PresentCount())
}
