package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eloym/formasur/internal/domain"
	"github.com/eloym/formasur/internal/ingest"
)

func TestEnrollmentStatus_Completed(t *testing.T) {
	row := ingest.NormalizedRow{ProgressHours: 8, CourseHoursRequired: 6}
	assert.Equal(t, domain.EnrollmentStatusCompleted, enrollmentStatus(row, time.Now()))
}

func TestEnrollmentStatus_OverdueWhenDeadlinePassed(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	row := ingest.NormalizedRow{
		ProgressHours:       1,
		CourseHoursRequired: 6,
		CourseDeadlineDate:  now.AddDate(0, 0, -1),
	}
	assert.Equal(t, domain.EnrollmentStatusOverdue, enrollmentStatus(row, now))
}

func TestEnrollmentStatus_InProgressByDefault(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	row := ingest.NormalizedRow{
		ProgressHours:       1,
		CourseHoursRequired: 6,
		CourseDeadlineDate:  now.AddDate(0, 0, 10),
	}
	assert.Equal(t, domain.EnrollmentStatusInProgress, enrollmentStatus(row, now))
}

func TestEnrollmentStatus_ZeroHoursRequiredNeverCompletesOnProgressAlone(t *testing.T) {
	row := ingest.NormalizedRow{ProgressHours: 0, CourseHoursRequired: 0}
	assert.Equal(t, domain.EnrollmentStatusInProgress, enrollmentStatus(row, time.Now()))
}

func TestRowFields_NilAccessTimestampsBecomeNil(t *testing.T) {
	row := ingest.NormalizedRow{Email: "a@example.com"}
	fields := rowFields(row)
	assert.Nil(t, fields["first_access_at"])
	assert.Nil(t, fields["last_access_at"])
}
