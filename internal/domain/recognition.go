package domain

// FaceStatus tags the outcome of processing one detected face.
type FaceStatus string

const (
	// StatusMarkedPresent means the student was recognized and
	// transitioned absent -> present.
	StatusMarkedPresent FaceStatus = "marked_present"
	// StatusMarkedPresentNew means a recognized student outside the
	// session's original roster was appended and marked present.
	StatusMarkedPresentNew FaceStatus = "marked_present_new"
	// StatusDuplicate means the student was already present; the
	// original marked_at timestamp is left untouched.
	StatusDuplicate FaceStatus = "duplicate"
	// StatusNoMatch means no gallery entry fell under the distance
	// threshold.
	StatusNoMatch FaceStatus = "no_match"
	// StatusError means embedding extraction failed for this face;
	// sibling faces in the same frame are unaffected.
	StatusError FaceStatus = "error"
)

// BoundingBox is a face area in pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FaceMatch identifies the matched student.
type FaceMatch struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
}

// FaceResult is the per-face outcome of a processed frame. Distance and
// Confidence are populated whenever a comparison took place, including
// on no-match, for threshold tuning.
type FaceResult struct {
	Box        BoundingBox `json:"box"`
	Match      *FaceMatch  `json:"match,omitempty"`
	Distance   *float64    `json:"distance,omitempty"`
	Confidence *float64    `json:"confidence,omitempty"`
	Status     FaceStatus  `json:"status"`
	Message    string      `json:"message,omitempty"`
}

// FrameResult aggregates every face of one processed frame plus
// frame-level metadata.
type FrameResult struct {
	Faces               []FaceResult `json:"faces"`
	FacesDetected       int          `json:"faces_detected"`
	TotalPresentNow     int          `json:"total_present_now"`
	DuplicatesPrevented int          `json:"duplicates_prevented"`
	ProcessingMs        int64        `json:"processing_ms"`
}
