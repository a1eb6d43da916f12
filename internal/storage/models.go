package storage

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/eloym/formasur/internal/domain"
)

// CourseModel is the bun row shape for domain.Course.
type CourseModel struct {
	bun.BaseModel `bun:"table:courses,alias:c"`

	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name,unique"`
	HoursRequired int       `bun:"hours_required"`
	DeadlineDate  time.Time `bun:"deadline_date"`
	SourceTag     string    `bun:"source_tag"`
}

func newCourseModel(c domain.Course) *CourseModel {
	return &CourseModel{
		ID:            c.ID(),
		Name:          c.Name(),
		HoursRequired: c.HoursRequired(),
		DeadlineDate:  c.DeadlineDate(),
		SourceTag:     c.SourceTag(),
	}
}

func (m *CourseModel) toDomain() domain.Course {
	return domain.ReconstructCourse(m.ID, m.Name, m.HoursRequired, m.DeadlineDate, m.SourceTag)
}

// LearnerModel is the bun row shape for domain.Learner.
type LearnerModel struct {
	bun.BaseModel `bun:"table:learners,alias:l"`

	ID                   string    `bun:"id,pk"`
	FullName             string    `bun:"full_name"`
	Email                string    `bun:"email,unique"`
	CertificateExpiresAt time.Time `bun:"certificate_expires_at"`
}

func newLearnerModel(l domain.Learner) *LearnerModel {
	return &LearnerModel{
		ID:                   l.ID(),
		FullName:             l.FullName(),
		Email:                l.Email(),
		CertificateExpiresAt: l.CertificateExpiresAt(),
	}
}

func (m *LearnerModel) toDomain() domain.Learner {
	return domain.ReconstructLearner(m.ID, m.FullName, m.Email, m.CertificateExpiresAt)
}

// EnrollmentModel is the bun row shape for domain.Enrollment.
type EnrollmentModel struct {
	bun.BaseModel `bun:"table:enrollments,alias:en"`

	ID             string                  `bun:"id,pk"`
	LearnerID      string                  `bun:"learner_id"`
	CourseID       string                  `bun:"course_id"`
	ProgressHours  float64                 `bun:"progress_hours"`
	Status         domain.EnrollmentStatus `bun:"status"`
	LastNotifiedAt *time.Time              `bun:"last_notified_at"`
	Attributes     map[string]any          `bun:"attributes,type:jsonb"`
}

func newEnrollmentModel(e domain.Enrollment) *EnrollmentModel {
	return &EnrollmentModel{
		ID:             e.ID(),
		LearnerID:      e.LearnerID(),
		CourseID:       e.CourseID(),
		ProgressHours:  e.ProgressHours(),
		Status:         e.Status(),
		LastNotifiedAt: e.LastNotifiedAt(),
		Attributes:     e.Attributes(),
	}
}

func (m *EnrollmentModel) toDomain() domain.Enrollment {
	return domain.ReconstructEnrollment(m.ID, m.LearnerID, m.CourseID, m.ProgressHours, m.Status, m.LastNotifiedAt, m.Attributes)
}

// NotificationAuditModel is the bun row shape for domain.NotificationAudit.
// Rows are insert-only: invariant 4 forbids mutating a persisted audit.
type NotificationAuditModel struct {
	bun.BaseModel `bun:"table:notification_audits,alias:na"`

	ID        string            `bun:"id,pk"`
	Playbook  string            `bun:"playbook"`
	Channel   string            `bun:"channel"`
	Adapter   string            `bun:"adapter"`
	Recipient string            `bun:"recipient"`
	Subject   string            `bun:"subject"`
	Status    domain.AuditStatus `bun:"status"`
	Payload   map[string]any    `bun:"payload,type:jsonb"`
	Response  map[string]any    `bun:"response,type:jsonb"`
	Error     string            `bun:"error"`
	JobID     string            `bun:"job_id"`
	CreatedAt time.Time         `bun:"created_at"`
	SentAt    *time.Time        `bun:"sent_at"`
}

func newNotificationAuditModel(a domain.NotificationAudit) *NotificationAuditModel {
	return &NotificationAuditModel{
		ID:        a.ID,
		Playbook:  a.Playbook,
		Channel:   a.Channel,
		Adapter:   a.Adapter,
		Recipient: a.Recipient,
		Subject:   a.Subject,
		Status:    a.Status,
		Payload:   jsonSafe(a.Payload),
		Response:  jsonSafe(a.Response),
		Error:     a.Error,
		JobID:     a.JobID,
		CreatedAt: a.CreatedAt,
		SentAt:    a.SentAt,
	}
}

func (m *NotificationAuditModel) toDomain() domain.NotificationAudit {
	return domain.NotificationAudit{
		ID:        m.ID,
		Playbook:  m.Playbook,
		Channel:   m.Channel,
		Adapter:   m.Adapter,
		Recipient: m.Recipient,
		Subject:   m.Subject,
		Status:    m.Status,
		Payload:   m.Payload,
		Response:  m.Response,
		Error:     m.Error,
		JobID:     m.JobID,
		CreatedAt: m.CreatedAt,
		SentAt:    m.SentAt,
	}
}

// JobModel is the bun row shape for domain.Job.
type JobModel struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         string          `bun:"id,pk"`
	Name       string          `bun:"name"`
	QueueLabel string          `bun:"queue_label"`
	Status     domain.JobStatus `bun:"status"`
	Payload    map[string]any  `bun:"payload,type:jsonb"`
	CreatedAt  time.Time       `bun:"created_at"`
	StartedAt  *time.Time      `bun:"started_at"`
	FinishedAt *time.Time      `bun:"finished_at"`
}

func (m *JobModel) toDomain() domain.Job {
	return domain.Job{
		ID:         m.ID,
		Name:       m.Name,
		QueueLabel: m.QueueLabel,
		Status:     m.Status,
		Payload:    m.Payload,
		CreatedAt:  m.CreatedAt,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}

// JobEventModel is the bun row shape for domain.JobEvent. Append-only.
type JobEventModel struct {
	bun.BaseModel `bun:"table:job_events,alias:je"`

	ID        int64          `bun:"id,pk,autoincrement"`
	JobID     string         `bun:"job_id"`
	EventType string         `bun:"event_type"`
	Message   string         `bun:"message"`
	Payload   map[string]any `bun:"payload,type:jsonb"`
	CreatedAt time.Time      `bun:"created_at"`
}

func (m *JobEventModel) toDomain() domain.JobEvent {
	return domain.JobEvent{
		JobID:     m.JobID,
		EventType: m.EventType,
		Message:   m.Message,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}

// jobEventTypePrefix namespaces JobEvent.EventType by the audit domain it
// came from, so an event stream mixing sources (future job types beyond
// notifications) stays disambiguated.
const jobEventTypePrefix = "notification."

// jobEventType builds a JobEvent's EventType from an audit's status, per
// the Audit Repository contract (§4.9).
func jobEventType(status domain.AuditStatus) string {
	return jobEventTypePrefix + string(status)
}

// jobEventMessage builds a JobEvent's Message from an audit: the error
// text when the attempt failed, falling back to the action's subject
// line so a successful or dry-run event still carries something
// readable (§4.9).
func jobEventMessage(audit domain.NotificationAudit) string {
	if audit.Error != "" {
		return audit.Error
	}
	return audit.Subject
}

// jsonSafe best-effort stringifies map values that are not natively
// JSON-safe (time.Time, errors, etc.), per the Audit Repository's
// survive-anything contract (§4.9).
func jsonSafe(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonSafeValue(v)
	}
	return out
}

func jsonSafeValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int64, float64:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	case map[string]any:
		return jsonSafe(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = jsonSafeValue(item)
		}
		return out
	default:
		return stringify(v)
	}
}

func stringify(v any) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	if s, ok := v.(error); ok {
		return s.Error()
	}
	return fmt.Sprint(v)
}
