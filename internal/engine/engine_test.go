package engine

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/ledger"
	"github.com/saturnino-fabrica-de-software/presenca/internal/matcher"
	"github.com/saturnino-fabrica-de-software/presenca/internal/provider"
	"github.com/saturnino-fabrica-de-software/presenca/internal/vision"
)

type MockModel struct {
	mock.Mock
}

func (m *MockModel) DetectFaces(ctx context.Context, img image.Image) ([]provider.Detection, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Detection), args.Error(1)
}

func (m *MockModel) ExtractEmbedding(ctx context.Context, img image.Image) ([]float64, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *MockModel) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockModel) Name() string {
	return "mock"
}

type MockNormalizer struct {
	mock.Mock
}

func (m *MockNormalizer) Normalize(data []byte) (*image.RGBA, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*image.RGBA), args.Error(1)
}

type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context, img *image.RGBA) ([]vision.Face, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vision.Face), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, face image.Image) ([]float64, error) {
	args := m.Called(ctx, face)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

type MockGallery struct {
	mock.Mock
}

func (m *MockGallery) Snapshot(ctx context.Context, filter domain.PartitionFilter) ([]domain.GalleryEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.GalleryEntry), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetSession(ctx context.Context, id uuid.UUID) (*domain.AttendanceSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AttendanceSession), args.Error(1)
}

func (m *MockLedger) MarkPresent(ctx context.Context, sessionID uuid.UUID, studentID, studentName string, at time.Time) (ledger.MarkOutcome, error) {
	args := m.Called(ctx, sessionID, studentID, studentName, at)
	return args.Get(0).(ledger.MarkOutcome), args.Error(1)
}

type engineMocks struct {
	model      *MockModel
	normalizer *MockNormalizer
	detector   *MockDetector
	extractor  *MockExtractor
	gallery    *MockGallery
	ledger     *MockLedger
}

func newTestEngine() (*Engine, *engineMocks) {
	m := &engineMocks{
		model:      &MockModel{},
		normalizer: &MockNormalizer{},
		detector:   &MockDetector{},
		extractor:  &MockExtractor{},
		gallery:    &MockGallery{},
		ledger:     &MockLedger{},
	}

	e := New(
		m.model,
		m.normalizer,
		m.detector,
		m.extractor,
		m.gallery,
		matcher.New(0.6),
		m.ledger,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return e, m
}

func testFrame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func testFace(x int) vision.Face {
	return vision.Face{
		Box:        domain.BoundingBox{X: x, Y: 10, Width: 100, Height: 100},
		Confidence: 0.95,
		Crop:       image.NewRGBA(image.Rect(x, 10, x+100, 110)),
	}
}

func openSession(id uuid.UUID) *domain.AttendanceSession {
	return &domain.AttendanceSession{
		ID:      id,
		Subject: "OS",
		Date:    "2024-01-15",
		Students: []domain.SessionStudentRecord{
			{StudentID: "S1", StudentName: "Alice"},
			{StudentID: "S2", StudentName: "Bob", Present: true},
		},
	}
}

func TestEngine_ProcessFrameModelUnavailable(t *testing.T) {
	e, m := newTestEngine()
	m.model.On("Ready", mock.Anything).Return(errors.New("connection refused"))

	_, err := e.ProcessFrame(context.Background(), uuid.New(), []byte("jpeg"))

	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "MODEL_UNAVAILABLE", appErr.Code)
	m.ledger.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestEngine_ProcessFrameUnknownSession(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()
	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(nil, domain.ErrSessionNotFound)

	_, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	// Session is validated before any image work
	m.normalizer.AssertNotCalled(t, "Normalize", mock.Anything)
}

func TestEngine_ProcessFrameFinalizedSession(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()
	session := openSession(sessionID)
	session.Finalized = true

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(session, nil)

	_, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))

	assert.ErrorIs(t, err, domain.ErrSessionFinalized)
	m.normalizer.AssertNotCalled(t, "Normalize", mock.Anything)
}

func TestEngine_ProcessFrameDecodeErrorLeavesSessionUntouched(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(nil, domain.ErrInvalidImage)

	_, err := e.ProcessFrame(context.Background(), sessionID, []byte("not an image"))

	assert.ErrorIs(t, err, domain.ErrInvalidImage)
	m.ledger.AssertNotCalled(t, "MarkPresent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_ProcessFrameNoFaces(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(testFrame(), nil)
	m.detector.On("Detect", mock.Anything, mock.Anything).Return([]vision.Face{}, nil)

	result, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))
	require.NoError(t, err)

	assert.Empty(t, result.Faces)
	assert.Equal(t, 0, result.FacesDetected)
	assert.Equal(t, 1, result.TotalPresentNow)
	m.gallery.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
}

func TestEngine_ProcessFrameMarksRecognizedStudent(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(testFrame(), nil)
	m.detector.On("Detect", mock.Anything, mock.Anything).Return([]vision.Face{testFace(10), testFace(200)}, nil)

	gallery := []domain.GalleryEntry{
		{StudentID: "S1", StudentName: "Alice", Embedding: []float64{1, 0, 0}},
	}
	m.gallery.On("Snapshot", mock.Anything, mock.Anything).Return(gallery, nil)

	// First face matches Alice, second matches nothing
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return([]float64{0.99, 0.01, 0}, nil).Once()
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return([]float64{0, 0, 1}, nil).Once()
	m.ledger.On("MarkPresent", mock.Anything, sessionID, "S1", "Alice", mock.Anything).Return(ledger.OutcomeMarked, nil)

	result, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))
	require.NoError(t, err)

	require.Len(t, result.Faces, 2)
	assert.Equal(t, domain.StatusMarkedPresent, result.Faces[0].Status)
	require.NotNil(t, result.Faces[0].Match)
	assert.Equal(t, "S1", result.Faces[0].Match.StudentID)
	assert.Equal(t, domain.StatusNoMatch, result.Faces[1].Status)
	assert.NotNil(t, result.Faces[1].Distance)

	assert.Equal(t, 2, result.FacesDetected)
	assert.Equal(t, 2, result.TotalPresentNow)
	assert.Equal(t, 0, result.DuplicatesPrevented)
}

func TestEngine_ProcessFrameDuplicateRecognition(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(testFrame(), nil)
	m.detector.On("Detect", mock.Anything, mock.Anything).Return([]vision.Face{testFace(10)}, nil)
	m.gallery.On("Snapshot", mock.Anything, mock.Anything).Return([]domain.GalleryEntry{
		{StudentID: "S2", StudentName: "Bob", Embedding: []float64{1, 0, 0}},
	}, nil)
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return([]float64{1, 0, 0}, nil)
	m.ledger.On("MarkPresent", mock.Anything, sessionID, "S2", "Bob", mock.Anything).Return(ledger.OutcomeDuplicate, nil)

	result, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))
	require.NoError(t, err)

	require.Len(t, result.Faces, 1)
	assert.Equal(t, domain.StatusDuplicate, result.Faces[0].Status)
	assert.Equal(t, 1, result.DuplicatesPrevented)
	assert.Equal(t, 1, result.TotalPresentNow)
}

func TestEngine_ProcessFrameExtractionFailureIsIsolated(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(testFrame(), nil)
	m.detector.On("Detect", mock.Anything, mock.Anything).Return([]vision.Face{testFace(10), testFace(200)}, nil)
	m.gallery.On("Snapshot", mock.Anything, mock.Anything).Return([]domain.GalleryEntry{
		{StudentID: "S1", StudentName: "Alice", Embedding: []float64{1, 0, 0}},
	}, nil)

	m.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("backend timeout")).Once()
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return([]float64{1, 0, 0}, nil).Once()
	m.ledger.On("MarkPresent", mock.Anything, sessionID, "S1", "Alice", mock.Anything).Return(ledger.OutcomeMarked, nil)

	result, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))
	require.NoError(t, err)

	require.Len(t, result.Faces, 2)
	assert.Equal(t, domain.StatusError, result.Faces[0].Status)
	assert.Equal(t, domain.StatusMarkedPresent, result.Faces[1].Status)
}

func TestEngine_ProcessFrameNewRosterStudent(t *testing.T) {
	e, m := newTestEngine()
	sessionID := uuid.New()

	m.model.On("Ready", mock.Anything).Return(nil)
	m.ledger.On("GetSession", mock.Anything, sessionID).Return(openSession(sessionID), nil)
	m.normalizer.On("Normalize", mock.Anything).Return(testFrame(), nil)
	m.detector.On("Detect", mock.Anything, mock.Anything).Return([]vision.Face{testFace(10)}, nil)
	m.gallery.On("Snapshot", mock.Anything, mock.Anything).Return([]domain.GalleryEntry{
		{StudentID: "S9", StudentName: "Dave", Embedding: []float64{1, 0, 0}},
	}, nil)
	m.extractor.On("Extract", mock.Anything, mock.Anything).Return([]float64{1, 0, 0}, nil)
	m.ledger.On("MarkPresent", mock.Anything, sessionID, "S9", "Dave", mock.Anything).Return(ledger.OutcomeMarkedNew, nil)

	result, err := e.ProcessFrame(context.Background(), sessionID, []byte("jpeg"))
	require.NoError(t, err)

	require.Len(t, result.Faces, 1)
	assert.Equal(t, domain.StatusMarkedPresentNew, result.Faces[0].Status)
	assert.Equal(t, 2, result.TotalPresentNow)
}
