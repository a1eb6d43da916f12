package domain

import "time"

// JobStatus enumerates the lifecycle of a queued or inline delivery job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusDryRun    JobStatus = "dry_run"
	JobStatusPaused    JobStatus = "paused"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// AuditStatusToJobStatus maps a NotificationAudit status to the Job
// status it should upsert, per the Audit Repository contract (C9).
func AuditStatusToJobStatus(s AuditStatus) JobStatus {
	switch s {
	case AuditStatusQueued:
		return JobStatusQueued
	case AuditStatusDryRun:
		return JobStatusDryRun
	case AuditStatusQuietHours:
		return JobStatusPaused
	case AuditStatusSent:
		return JobStatusSucceeded
	case AuditStatusError:
		return JobStatusFailed
	default:
		return JobStatusQueued
	}
}

// Job is an opaque unit of delivery work, upserted by the Audit
// Repository whenever an audit row carries a job_id.
type Job struct {
	ID         string
	Name       string
	QueueLabel string
	Status     JobStatus
	Payload    map[string]any
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// JobEvent is an append-only record of one state transition or note
// attached to a Job.
type JobEvent struct {
	JobID     string
	EventType string
	Message   string
	Payload   map[string]any
	CreatedAt time.Time
}
