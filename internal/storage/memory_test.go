package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloym/formasur/internal/domain"
)

func TestMemoryCourseStore_UpsertMergesOnSecondCall(t *testing.T) {
	store := NewMemoryCourseStore()
	ctx := context.Background()
	deadline := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first, err := store.UpsertByName(ctx, "Fire Safety", 4, deadline, "march.xlsx")
	require.NoError(t, err)

	second, err := store.UpsertByName(ctx, "Fire Safety", 6, deadline.AddDate(0, 0, 5), "april.xlsx")
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, 6, second.HoursRequired())
}

func TestMemoryEnrollmentStore_MarkNotified(t *testing.T) {
	store := NewMemoryEnrollmentStore()
	ctx := context.Background()

	_, err := store.UpsertByLearnerAndCourse(ctx, "learner-1", "course-1", 2, domain.EnrollmentStatusInProgress, nil)
	require.NoError(t, err)

	at := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkNotified(ctx, "learner-1", "course-1", at))

	enrollment, err := store.Get(ctx, "learner-1", "course-1")
	require.NoError(t, err)
	require.NotNil(t, enrollment.LastNotifiedAt())
	assert.True(t, enrollment.LastNotifiedAt().Equal(at))
}

func TestMemoryAuditStore_Add_InsertsJobAndEvent(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()

	sentAt := time.Now().UTC()
	audit := domain.NotificationAudit{
		Playbook:  "overdue-reminder",
		Channel:   "email",
		Subject:   "Your course is overdue",
		Status:    domain.AuditStatusSent,
		JobID:     "job-1",
		CreatedAt: sentAt,
		SentAt:    &sentAt,
	}

	saved, err := store.Add(ctx, audit)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	job, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.NotNil(t, job.FinishedAt)

	events, err := store.ListEvents(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "notification.sent", events[0].EventType)
	assert.Equal(t, "Your course is overdue", events[0].Message, "no error text, so the event message falls back to the subject")
}

func TestMemoryAuditStore_Add_EventMessagePrefersErrorOverSubject(t *testing.T) {
	store := NewMemoryAuditStore()
	ctx := context.Background()

	audit := domain.NotificationAudit{
		Playbook:  "overdue-reminder",
		Channel:   "email",
		Subject:   "Your course is overdue",
		Status:    domain.AuditStatusError,
		Error:     "smtp timeout",
		JobID:     "job-2",
		CreatedAt: time.Now().UTC(),
	}

	_, err := store.Add(ctx, audit)
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, "job-2")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "notification.error", events[0].EventType)
	assert.Equal(t, "smtp timeout", events[0].Message)
}

func TestMemoryAuditStore_Add_RejectsInvalidAudit(t *testing.T) {
	store := NewMemoryAuditStore()
	_, err := store.Add(context.Background(), domain.NotificationAudit{Status: domain.AuditStatusError})
	assert.Error(t, err)
}
