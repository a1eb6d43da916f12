package domain

import (
	"context"
	"time"
)

// CourseRepository persists Course aggregates. Courses are never
// deleted by the ingest (invariant 1); UpsertByName applies the
// monotonic merge described on Course.MergeIngest.
type CourseRepository interface {
	UpsertByName(ctx context.Context, name string, hoursRequired int, deadlineDate time.Time, sourceTag string) (Course, error)
	GetByName(ctx context.Context, name string) (Course, error)
}

// LearnerRepository persists Learner aggregates, keyed by unique email.
type LearnerRepository interface {
	UpsertByEmail(ctx context.Context, fullName, email string, certificateExpiresAt time.Time) (Learner, error)
	GetByEmail(ctx context.Context, email string) (Learner, error)
}

// EnrollmentRepository persists the (learner, course) join, unique per pair.
type EnrollmentRepository interface {
	UpsertByLearnerAndCourse(ctx context.Context, learnerID, courseID string, progressHours float64, status EnrollmentStatus, attributes map[string]any) (Enrollment, error)
	Get(ctx context.Context, learnerID, courseID string) (Enrollment, error)
	MarkNotified(ctx context.Context, learnerID, courseID string, at time.Time) error
}

// AuditRepository implements the Audit Repository contract (C9): Add is
// atomic, upserts the associated Job by job_id when present, and
// appends a JobEvent recording the transition.
type AuditRepository interface {
	Add(ctx context.Context, audit NotificationAudit) (NotificationAudit, error)
}

// JobRepository exposes read access to Job/JobEvent rows for operational
// inspection; writes happen only through AuditRepository.Add.
type JobRepository interface {
	GetJob(ctx context.Context, id string) (Job, error)
	ListEvents(ctx context.Context, jobID string) ([]JobEvent, error)
}
