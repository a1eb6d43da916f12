package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuditStatusToJobStatus_MapsKnownStatuses(t *testing.T) {
	cases := map[AuditStatus]JobStatus{
		AuditStatusQueued:     JobStatusQueued,
		AuditStatusDryRun:     JobStatusDryRun,
		AuditStatusQuietHours: JobStatusPaused,
		AuditStatusSent:       JobStatusSucceeded,
		AuditStatusError:      JobStatusFailed,
	}
	for auditStatus, wantJobStatus := range cases {
		assert.Equal(t, wantJobStatus, AuditStatusToJobStatus(auditStatus))
	}
}

func TestAuditStatusToJobStatus_UnknownStatusDefaultsToQueued(t *testing.T) {
	assert.Equal(t, JobStatusQueued, AuditStatusToJobStatus(AuditStatus("bogus")))
}
