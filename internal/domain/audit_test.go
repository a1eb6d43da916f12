package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotificationAudit_Validate_SentRequiresSentAt(t *testing.T) {
	a := NotificationAudit{Status: AuditStatusSent}
	assert.Error(t, a.Validate())

	sentAt := time.Now()
	a.SentAt = &sentAt
	assert.NoError(t, a.Validate())
}

func TestNotificationAudit_Validate_ErrorRequiresMessage(t *testing.T) {
	a := NotificationAudit{Status: AuditStatusError}
	assert.Error(t, a.Validate())

	a.Error = "smtp timeout"
	assert.NoError(t, a.Validate())
}

func TestNotificationAudit_Validate_OtherStatusesAlwaysValid(t *testing.T) {
	for _, status := range []AuditStatus{AuditStatusDryRun, AuditStatusQueued, AuditStatusQuietHours} {
		a := NotificationAudit{Status: status}
		assert.NoError(t, a.Validate(), "status %s should not require sent_at or error", status)
	}
}
