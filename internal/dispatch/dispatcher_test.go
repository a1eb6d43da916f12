package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloym/formasur/internal/adapter"
	"github.com/eloym/formasur/internal/domain"
	"github.com/eloym/formasur/internal/render"
	"github.com/eloym/formasur/internal/ruleengine"
	"github.com/eloym/formasur/internal/storage"
)

type stubAdapter struct {
	responses map[string]any
	err       error
	calls     int
}

func (a *stubAdapter) Send(ctx context.Context, payload map[string]any) (map[string]any, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.responses, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestDispatcher(t *testing.T, registry *adapter.Registry, audits domain.AuditRepository) *Dispatcher {
	t.Helper()
	evaluator := ruleengine.NewEvaluator(fixedNow(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
	return New(evaluator, Options{
		Adapters: registry,
		Audits:   audits,
		Now:      fixedNow(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)),
	})
}

func notifyAction(channel string) domain.Action {
	return domain.Action{
		Type:    "notify",
		Channel: channel,
		Extra: map[string]any{
			"to":      "{{ row.email }}",
			"subject": "Reminder",
		},
	}
}

func TestDispatcher_Run_DeliversMatchingRows(t *testing.T) {
	registry := adapter.NewRegistry()
	email := &stubAdapter{responses: map[string]any{"id": "msg-1"}}
	registry.Register("email", email)

	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	rows := []EvaluatedRow{
		{Row: map[string]any{"email": "a@example.com"}, RuleResults: map[string]bool{"overdue": true}},
	}
	actions := []domain.Action{notifyAction("email")}

	stats, err := dispatcher.Run(context.Background(), rows, actions, false, "overdue-reminder")
	require.NoError(t, err)

	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, stats["email"].Matches)
	assert.Equal(t, 1, stats["email"].Enqueued)
	assert.Len(t, audits.Audits(), 1)
	assert.Equal(t, domain.AuditStatusSent, audits.Audits()[0].Status)
}

func TestDispatcher_Run_SkipsNonNotifyActions(t *testing.T) {
	registry := adapter.NewRegistry()
	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com"}}}
	actions := []domain.Action{{Type: "log", Channel: "email"}}

	stats, err := dispatcher.Run(context.Background(), rows, actions, false, "noop")
	require.NoError(t, err)
	assert.Empty(t, stats)
	assert.Empty(t, audits.Audits())
}

func TestDispatcher_Run_GuardSkipsAction(t *testing.T) {
	registry := adapter.NewRegistry()
	email := &stubAdapter{}
	registry.Register("email", email)
	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	action := notifyAction("email")
	action.When = "row.progress_hours > 100"

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com", "progress_hours": 1.0}}}
	stats, err := dispatcher.Run(context.Background(), rows, []domain.Action{action}, false, "guarded")
	require.NoError(t, err)
	assert.Equal(t, 0, email.calls)
	assert.Empty(t, stats)
}

func TestDispatcher_Run_DryRunNeverCallsAdapter(t *testing.T) {
	registry := adapter.NewRegistry()
	email := &stubAdapter{}
	registry.Register("email", email)
	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com"}}}
	stats, err := dispatcher.Run(context.Background(), rows, []domain.Action{notifyAction("email")}, true, "dry")
	require.NoError(t, err)

	assert.Equal(t, 0, email.calls)
	assert.Equal(t, 1, stats["email"].Matches)
	require.Len(t, audits.Audits(), 1)
	assert.Equal(t, domain.AuditStatusDryRun, audits.Audits()[0].Status)
}

func TestDispatcher_Run_AdapterErrorRecordsErrorAudit(t *testing.T) {
	registry := adapter.NewRegistry()
	email := &stubAdapter{err: errors.New("smtp down")}
	registry.Register("email", email)
	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com"}}}
	stats, err := dispatcher.Run(context.Background(), rows, []domain.Action{notifyAction("email")}, false, "erroring")
	require.NoError(t, err)

	assert.Equal(t, 1, stats["email"].Errors)
	require.Len(t, audits.Audits(), 1)
	assert.Equal(t, domain.AuditStatusError, audits.Audits()[0].Status)
}

func TestDispatcher_Run_UnknownChannelRecordsErrorAudit(t *testing.T) {
	registry := adapter.NewRegistry()
	audits := storage.NewMemoryAuditStore()
	dispatcher := newTestDispatcher(t, registry, audits)

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com"}}}
	_, err := dispatcher.Run(context.Background(), rows, []domain.Action{notifyAction("sms")}, false, "unknown-channel")
	require.NoError(t, err)

	require.Len(t, audits.Audits(), 1)
	assert.Equal(t, domain.AuditStatusError, audits.Audits()[0].Status)
	assert.Equal(t, "adaptador no configurado", audits.Audits()[0].Error)
}

func TestDispatcher_CircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	registry := adapter.NewRegistry()
	email := &stubAdapter{err: errors.New("smtp down")}
	registry.Register("email", email)
	audits := storage.NewMemoryAuditStore()

	breakers := NewCircuitBreakerRegistry(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour, MaxConcurrentRequests: 1}, zerolog.Nop())
	evaluator := ruleengine.NewEvaluator(nil)
	dispatcher := New(evaluator, Options{Adapters: registry, Audits: audits, CircuitBreakers: breakers, Now: fixedNow(time.Now())})

	rows := []EvaluatedRow{{Row: map[string]any{"email": "a@example.com"}}}
	actions := []domain.Action{notifyAction("email")}

	_, err := dispatcher.Run(context.Background(), rows, actions, false, "p1")
	require.NoError(t, err)
	_, err = dispatcher.Run(context.Background(), rows, actions, false, "p1")
	require.NoError(t, err)

	assert.Equal(t, 1, email.calls, "second run should have been short-circuited by the open breaker")
}

func TestParseQueuedPayload_RoundTrips(t *testing.T) {
	rendered := render.RenderedAction{
		Type:    "notify",
		Channel: "email",
		Extra:   map[string]any{"to": "a@example.com", "subject": "Reminder"},
	}
	row := map[string]any{"email": "a@example.com"}
	ruleResults := map[string]bool{"overdue": true}

	payload := deliverPayload("playbook-x", rendered, row, ruleResults)
	payload["job_id"] = "job-123"

	playbookName, channel, parsedAction, parsedRow, parsedResults, jobID, err := ParseQueuedPayload(payload)
	require.NoError(t, err)

	assert.Equal(t, "playbook-x", playbookName)
	assert.Equal(t, "email", channel)
	assert.Equal(t, "notify", parsedAction.Type)
	assert.Equal(t, "a@example.com", parsedRow["email"])
	assert.True(t, parsedResults["overdue"])
	assert.Equal(t, "job-123", jobID)
}

func TestParseQueuedPayload_MissingAction(t *testing.T) {
	_, _, _, _, _, _, err := ParseQueuedPayload(map[string]any{"playbook": "x"})
	assert.Error(t, err)
}
