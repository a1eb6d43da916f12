package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eloym/formasur/internal/domain"
)

// MemoryCourseStore is an in-process CourseRepository for tests and
// dry-run invocations that don't touch Postgres.
type MemoryCourseStore struct {
	mu      sync.RWMutex
	courses map[string]domain.Course // keyed by name
}

// NewMemoryCourseStore constructs an empty MemoryCourseStore.
func NewMemoryCourseStore() *MemoryCourseStore {
	return &MemoryCourseStore{courses: make(map[string]domain.Course)}
}

func (s *MemoryCourseStore) UpsertByName(ctx context.Context, name string, hoursRequired int, deadlineDate time.Time, sourceTag string) (domain.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.courses[name]
	if !ok {
		course, err := domain.NewCourse(uuid.NewString(), name, hoursRequired, deadlineDate, sourceTag)
		if err != nil {
			return domain.Course{}, err
		}
		s.courses[name] = course
		return course, nil
	}
	merged := existing.MergeIngest(hoursRequired, deadlineDate, sourceTag)
	s.courses[name] = merged
	return merged, nil
}

func (s *MemoryCourseStore) GetByName(ctx context.Context, name string) (domain.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[name]
	if !ok {
		return domain.Course{}, fmt.Errorf("course %q not found", name)
	}
	return course, nil
}

// MemoryLearnerStore is an in-process LearnerRepository.
type MemoryLearnerStore struct {
	mu       sync.RWMutex
	learners map[string]domain.Learner // keyed by email
}

// NewMemoryLearnerStore constructs an empty MemoryLearnerStore.
func NewMemoryLearnerStore() *MemoryLearnerStore {
	return &MemoryLearnerStore{learners: make(map[string]domain.Learner)}
}

func (s *MemoryLearnerStore) UpsertByEmail(ctx context.Context, fullName, email string, certificateExpiresAt time.Time) (domain.Learner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.learners[email]
	if !ok {
		learner, err := domain.NewLearner(uuid.NewString(), fullName, email, certificateExpiresAt)
		if err != nil {
			return domain.Learner{}, err
		}
		s.learners[email] = learner
		return learner, nil
	}
	merged := existing.MergeIngest(fullName, certificateExpiresAt)
	s.learners[email] = merged
	return merged, nil
}

func (s *MemoryLearnerStore) GetByEmail(ctx context.Context, email string) (domain.Learner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	learner, ok := s.learners[email]
	if !ok {
		return domain.Learner{}, fmt.Errorf("learner %q not found", email)
	}
	return learner, nil
}

// MemoryEnrollmentStore is an in-process EnrollmentRepository.
type MemoryEnrollmentStore struct {
	mu          sync.RWMutex
	enrollments map[string]domain.Enrollment // keyed by learnerID+"\x00"+courseID
}

// NewMemoryEnrollmentStore constructs an empty MemoryEnrollmentStore.
func NewMemoryEnrollmentStore() *MemoryEnrollmentStore {
	return &MemoryEnrollmentStore{enrollments: make(map[string]domain.Enrollment)}
}

func enrollmentKey(learnerID, courseID string) string {
	return learnerID + "\x00" + courseID
}

func (s *MemoryEnrollmentStore) UpsertByLearnerAndCourse(ctx context.Context, learnerID, courseID string, progressHours float64, status domain.EnrollmentStatus, attributes map[string]any) (domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey(learnerID, courseID)
	existing, ok := s.enrollments[key]
	if !ok {
		enrollment, err := domain.NewEnrollment(uuid.NewString(), learnerID, courseID, progressHours, status, attributes)
		if err != nil {
			return domain.Enrollment{}, err
		}
		s.enrollments[key] = enrollment
		return enrollment, nil
	}
	merged := existing.MergeIngest(progressHours, status, attributes)
	s.enrollments[key] = merged
	return merged, nil
}

func (s *MemoryEnrollmentStore) Get(ctx context.Context, learnerID, courseID string) (domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	enrollment, ok := s.enrollments[enrollmentKey(learnerID, courseID)]
	if !ok {
		return domain.Enrollment{}, fmt.Errorf("enrollment for learner %q course %q not found", learnerID, courseID)
	}
	return enrollment, nil
}

func (s *MemoryEnrollmentStore) MarkNotified(ctx context.Context, learnerID, courseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := enrollmentKey(learnerID, courseID)
	existing, ok := s.enrollments[key]
	if !ok {
		return fmt.Errorf("enrollment for learner %q course %q not found", learnerID, courseID)
	}
	s.enrollments[key] = existing.WithNotified(at)
	return nil
}

// MemoryAuditStore is an in-process AuditRepository implementing the
// same atomic audit+job+event contract as AuditStore, guarded by a
// single mutex instead of a database transaction.
type MemoryAuditStore struct {
	mu     sync.Mutex
	audits []domain.NotificationAudit
	jobs   map[string]domain.Job
	events map[string][]domain.JobEvent
}

// NewMemoryAuditStore constructs an empty MemoryAuditStore.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{
		jobs:   make(map[string]domain.Job),
		events: make(map[string][]domain.JobEvent),
	}
}

func (s *MemoryAuditStore) Add(ctx context.Context, audit domain.NotificationAudit) (domain.NotificationAudit, error) {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}
	if err := audit.Validate(); err != nil {
		return domain.NotificationAudit{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.audits = append(s.audits, audit)

	if audit.JobID == "" {
		return audit, nil
	}

	jobStatus := domain.AuditStatusToJobStatus(audit.Status)
	now := audit.CreatedAt
	job, ok := s.jobs[audit.JobID]
	if !ok {
		job = domain.Job{
			ID:         audit.JobID,
			Name:       audit.Playbook,
			QueueLabel: audit.Channel,
			Status:     jobStatus,
			Payload:    audit.Payload,
			CreatedAt:  now,
		}
	} else {
		job.Status = jobStatus
	}
	if jobStatus == domain.JobStatusSucceeded || jobStatus == domain.JobStatusFailed {
		job.FinishedAt = &now
	}
	s.jobs[audit.JobID] = job

	s.events[audit.JobID] = append(s.events[audit.JobID], domain.JobEvent{
		JobID:     audit.JobID,
		EventType: jobEventType(audit.Status),
		Message:   jobEventMessage(audit),
		Payload:   audit.Payload,
		CreatedAt: now,
	})

	return audit, nil
}

// Audits returns every recorded audit row, for test assertions.
func (s *MemoryAuditStore) Audits() []domain.NotificationAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.NotificationAudit, len(s.audits))
	copy(out, s.audits)
	return out
}

func (s *MemoryAuditStore) GetJob(ctx context.Context, id string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("job %q not found", id)
	}
	return job, nil
}

func (s *MemoryAuditStore) ListEvents(ctx context.Context, jobID string) ([]domain.JobEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.events[jobID]
	out := make([]domain.JobEvent, len(events))
	copy(out, events)
	return out, nil
}
