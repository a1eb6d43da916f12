package domain

import "time"

// EnrollmentStatus enumerates the lifecycle state of a learner's progress
// against a single course.
type EnrollmentStatus string

const (
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
	EnrollmentStatusOverdue    EnrollmentStatus = "overdue"
)

// Enrollment is the join between a Learner and a Course, carrying the
// learner's observed progress and the free-form attributes echoed from
// the ingest row (telefono, raw_total_time, access timestamps).
type Enrollment struct {
	id             string
	learnerID      string
	courseID       string
	progressHours  float64
	status         EnrollmentStatus
	lastNotifiedAt *time.Time
	attributes     map[string]any
}

// NewEnrollment constructs a new Enrollment, validating its invariants.
func NewEnrollment(id, learnerID, courseID string, progressHours float64, status EnrollmentStatus, attributes map[string]any) (Enrollment, error) {
	if progressHours < 0 {
		return Enrollment{}, NewValidationError("progress_hours", "progress_hours must be >= 0")
	}
	if attributes == nil {
		attributes = map[string]any{}
	}
	return Enrollment{
		id:            id,
		learnerID:     learnerID,
		courseID:      courseID,
		progressHours: progressHours,
		status:        status,
		attributes:    attributes,
	}, nil
}

// ReconstructEnrollment rehydrates an Enrollment from storage.
func ReconstructEnrollment(id, learnerID, courseID string, progressHours float64, status EnrollmentStatus, lastNotifiedAt *time.Time, attributes map[string]any) Enrollment {
	if attributes == nil {
		attributes = map[string]any{}
	}
	return Enrollment{
		id:             id,
		learnerID:      learnerID,
		courseID:       courseID,
		progressHours:  progressHours,
		status:         status,
		lastNotifiedAt: lastNotifiedAt,
		attributes:     attributes,
	}
}

func (e Enrollment) ID() string                    { return e.id }
func (e Enrollment) LearnerID() string             { return e.learnerID }
func (e Enrollment) CourseID() string              { return e.courseID }
func (e Enrollment) ProgressHours() float64        { return e.progressHours }
func (e Enrollment) Status() EnrollmentStatus       { return e.status }
func (e Enrollment) LastNotifiedAt() *time.Time     { return e.lastNotifiedAt }
func (e Enrollment) Attributes() map[string]any {
	out := make(map[string]any, len(e.attributes))
	for k, v := range e.attributes {
		out[k] = v
	}
	return out
}

// WithNotified returns a copy of the enrollment with lastNotifiedAt set.
func (e Enrollment) WithNotified(at time.Time) Enrollment {
	merged := e
	merged.lastNotifiedAt = &at
	return merged
}

// MergeIngest applies a later ingest's observed progress/attributes.
func (e Enrollment) MergeIngest(progressHours float64, status EnrollmentStatus, attributes map[string]any) Enrollment {
	merged := e
	merged.progressHours = progressHours
	merged.status = status
	merged.attributes = attributes
	return merged
}
