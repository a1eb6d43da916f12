// Package storage implements the persistence side of the Course,
// Learner, Enrollment, and Audit repositories, backed by bun over
// Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/eloym/formasur/internal/domain"
)

// BunStore is the shared connection backing every repository
// implementation in this package.
type BunStore struct {
	db *bun.DB
}

// NewBunStore opens a pgdriver connection against dsn.
func NewBunStore(dsn string) *BunStore {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}
}

// DB exposes the underlying *bun.DB for callers that need raw access
// (migrations, health checks).
func (s *BunStore) DB() *bun.DB { return s.db }

// InitSchema creates every table this package owns, if absent.
func (s *BunStore) InitSchema(ctx context.Context) error {
	models := []any{
		(*CourseModel)(nil),
		(*LearnerModel)(nil),
		(*EnrollmentModel)(nil),
		(*NotificationAuditModel)(nil),
		(*JobModel)(nil),
		(*JobEventModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("creating table for %T: %w", model, err)
		}
	}
	return nil
}

// CourseStore implements domain.CourseRepository.
type CourseStore struct {
	db *bun.DB
}

// NewCourseStore constructs a CourseStore over store's connection.
func NewCourseStore(store *BunStore) *CourseStore { return &CourseStore{db: store.db} }

// UpsertByName implements invariant 1's monotonic merge: insert on
// first sighting, merge hours/deadline/source on subsequent ones.
func (s *CourseStore) UpsertByName(ctx context.Context, name string, hoursRequired int, deadlineDate time.Time, sourceTag string) (domain.Course, error) {
	var result domain.Course
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(CourseModel)
		err := tx.NewSelect().Model(existing).Where("name = ?", name).Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			course, verr := domain.NewCourse(uuid.NewString(), name, hoursRequired, deadlineDate, sourceTag)
			if verr != nil {
				return verr
			}
			model := newCourseModel(course)
			if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
				return fmt.Errorf("inserting course: %w", err)
			}
			result = course
			return nil
		case err != nil:
			return fmt.Errorf("looking up course by name: %w", err)
		default:
			merged := existing.toDomain().MergeIngest(hoursRequired, deadlineDate, sourceTag)
			model := newCourseModel(merged)
			if _, err := tx.NewUpdate().Model(model).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("updating course: %w", err)
			}
			result = merged
			return nil
		}
	})
	return result, err
}

// GetByName returns the Course with the given name.
func (s *CourseStore) GetByName(ctx context.Context, name string) (domain.Course, error) {
	model := new(CourseModel)
	if err := s.db.NewSelect().Model(model).Where("name = ?", name).Scan(ctx); err != nil {
		return domain.Course{}, fmt.Errorf("selecting course %q: %w", name, err)
	}
	return model.toDomain(), nil
}

// LearnerStore implements domain.LearnerRepository.
type LearnerStore struct {
	db *bun.DB
}

// NewLearnerStore constructs a LearnerStore over store's connection.
func NewLearnerStore(store *BunStore) *LearnerStore { return &LearnerStore{db: store.db} }

// UpsertByEmail inserts or merges a Learner keyed by email.
func (s *LearnerStore) UpsertByEmail(ctx context.Context, fullName, email string, certificateExpiresAt time.Time) (domain.Learner, error) {
	var result domain.Learner
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(LearnerModel)
		err := tx.NewSelect().Model(existing).Where("email = ?", email).Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			learner, verr := domain.NewLearner(uuid.NewString(), fullName, email, certificateExpiresAt)
			if verr != nil {
				return verr
			}
			model := newLearnerModel(learner)
			if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
				return fmt.Errorf("inserting learner: %w", err)
			}
			result = learner
			return nil
		case err != nil:
			return fmt.Errorf("looking up learner by email: %w", err)
		default:
			merged := existing.toDomain().MergeIngest(fullName, certificateExpiresAt)
			model := newLearnerModel(merged)
			if _, err := tx.NewUpdate().Model(model).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("updating learner: %w", err)
			}
			result = merged
			return nil
		}
	})
	return result, err
}

// GetByEmail returns the Learner with the given email.
func (s *LearnerStore) GetByEmail(ctx context.Context, email string) (domain.Learner, error) {
	model := new(LearnerModel)
	if err := s.db.NewSelect().Model(model).Where("email = ?", email).Scan(ctx); err != nil {
		return domain.Learner{}, fmt.Errorf("selecting learner %q: %w", email, err)
	}
	return model.toDomain(), nil
}

// EnrollmentStore implements domain.EnrollmentRepository.
type EnrollmentStore struct {
	db *bun.DB
}

// NewEnrollmentStore constructs an EnrollmentStore over store's connection.
func NewEnrollmentStore(store *BunStore) *EnrollmentStore { return &EnrollmentStore{db: store.db} }

// UpsertByLearnerAndCourse inserts or merges the (learner, course) join row.
func (s *EnrollmentStore) UpsertByLearnerAndCourse(ctx context.Context, learnerID, courseID string, progressHours float64, status domain.EnrollmentStatus, attributes map[string]any) (domain.Enrollment, error) {
	var result domain.Enrollment
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		existing := new(EnrollmentModel)
		err := tx.NewSelect().Model(existing).
			Where("learner_id = ? AND course_id = ?", learnerID, courseID).
			Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			enrollment, verr := domain.NewEnrollment(uuid.NewString(), learnerID, courseID, progressHours, status, attributes)
			if verr != nil {
				return verr
			}
			model := newEnrollmentModel(enrollment)
			if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
				return fmt.Errorf("inserting enrollment: %w", err)
			}
			result = enrollment
			return nil
		case err != nil:
			return fmt.Errorf("looking up enrollment: %w", err)
		default:
			merged := existing.toDomain().MergeIngest(progressHours, status, attributes)
			model := newEnrollmentModel(merged)
			if _, err := tx.NewUpdate().Model(model).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("updating enrollment: %w", err)
			}
			result = merged
			return nil
		}
	})
	return result, err
}

// Get returns the Enrollment for a (learner, course) pair.
func (s *EnrollmentStore) Get(ctx context.Context, learnerID, courseID string) (domain.Enrollment, error) {
	model := new(EnrollmentModel)
	err := s.db.NewSelect().Model(model).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Scan(ctx)
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("selecting enrollment: %w", err)
	}
	return model.toDomain(), nil
}

// MarkNotified stamps last_notified_at on the given enrollment.
func (s *EnrollmentStore) MarkNotified(ctx context.Context, learnerID, courseID string, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*EnrollmentModel)(nil)).
		Set("last_notified_at = ?", at).
		Where("learner_id = ? AND course_id = ?", learnerID, courseID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("marking enrollment notified: %w", err)
	}
	return nil
}

// AuditStore implements domain.AuditRepository (C9): Add is atomic,
// it inserts the audit row, upserts the Job it belongs to (keyed by
// job_id) when one is present, and appends a JobEvent recording the
// transition — all within a single transaction, so a crash between
// steps never leaves an orphaned Job or a silently-dropped event.
type AuditStore struct {
	db *bun.DB
}

// NewAuditStore constructs an AuditStore over store's connection.
func NewAuditStore(store *BunStore) *AuditStore { return &AuditStore{db: store.db} }

// Add implements domain.AuditRepository.
func (s *AuditStore) Add(ctx context.Context, audit domain.NotificationAudit) (domain.NotificationAudit, error) {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if err := audit.Validate(); err != nil {
		return domain.NotificationAudit{}, err
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		model := newNotificationAuditModel(audit)
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return fmt.Errorf("inserting audit: %w", err)
		}

		if audit.JobID == "" {
			return nil
		}

		jobStatus := domain.AuditStatusToJobStatus(audit.Status)
		now := audit.CreatedAt

		existingJob := new(JobModel)
		err := tx.NewSelect().Model(existingJob).Where("id = ?", audit.JobID).Scan(ctx)
		switch {
		case err == sql.ErrNoRows:
			job := &JobModel{
				ID:         audit.JobID,
				Name:       audit.Playbook,
				QueueLabel: audit.Channel,
				Status:     jobStatus,
				Payload:    jsonSafe(audit.Payload),
				CreatedAt:  now,
			}
			if jobStatus == domain.JobStatusSucceeded || jobStatus == domain.JobStatusFailed {
				job.FinishedAt = &now
			}
			if _, err := tx.NewInsert().Model(job).Exec(ctx); err != nil {
				return fmt.Errorf("inserting job: %w", err)
			}
		case err != nil:
			return fmt.Errorf("looking up job: %w", err)
		default:
			existingJob.Status = jobStatus
			if jobStatus == domain.JobStatusSucceeded || jobStatus == domain.JobStatusFailed {
				existingJob.FinishedAt = &now
			}
			if _, err := tx.NewUpdate().Model(existingJob).WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("updating job: %w", err)
			}
		}

		event := &JobEventModel{
			JobID:     audit.JobID,
			EventType: jobEventType(audit.Status),
			Message:   jobEventMessage(audit),
			Payload:   jsonSafe(audit.Payload),
			CreatedAt: now,
		}
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return fmt.Errorf("inserting job event: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.NotificationAudit{}, err
	}
	return audit, nil
}

// JobStore implements domain.JobRepository for read-only inspection.
type JobStore struct {
	db *bun.DB
}

// NewJobStore constructs a JobStore over store's connection.
func NewJobStore(store *BunStore) *JobStore { return &JobStore{db: store.db} }

// GetJob returns the Job with the given id.
func (s *JobStore) GetJob(ctx context.Context, id string) (domain.Job, error) {
	model := new(JobModel)
	if err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Job{}, fmt.Errorf("selecting job %q: %w", id, err)
	}
	return model.toDomain(), nil
}

// ListEvents returns every JobEvent for jobID, oldest first.
func (s *JobStore) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	var models []*JobEventModel
	err := s.db.NewSelect().Model(&models).
		Where("job_id = ?", jobID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing job events: %w", err)
	}
	events := make([]domain.JobEvent, len(models))
	for i, m := range models {
		events[i] = m.toDomain()
	}
	return events, nil
}
