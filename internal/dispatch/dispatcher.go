// Package dispatch implements the Dispatcher (C7): the per-run
// row×action fan-out that renders actions, honours quiet hours, and
// hands off delivery either inline or to a queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eloym/formasur/internal/adapter"
	"github.com/eloym/formasur/internal/domain"
	domainerrors "github.com/eloym/formasur/internal/domain/errors"
	"github.com/eloym/formasur/internal/quiethours"
	"github.com/eloym/formasur/internal/render"
	"github.com/eloym/formasur/internal/ruleengine"
)

// EvaluatedRow pairs a normalized row's fields with its rule results,
// the Dispatcher's per-row input unit.
type EvaluatedRow struct {
	Row         map[string]any
	RuleResults map[string]bool
}

// ChannelStats is the per-channel statistics returned by Run.
type ChannelStats struct {
	Matches            int
	Enqueued           int
	SkippedQuietHours  int
	Errors             int
}

// Queue hands a job off for asynchronous delivery by a separate worker
// process; see internal/dispatch/queue.go for the Redis-backed
// implementation.
type Queue interface {
	Enqueue(ctx context.Context, jobName string, payload map[string]any) error
}

// Options configures a Dispatcher.
type Options struct {
	Adapters        *adapter.Registry
	Audits          domain.AuditRepository
	QuietHours      *quiethours.Gate // nil means no quiet-hours window
	Queue           Queue             // nil means deliver inline
	JobName         string
	Now             func() time.Time
	Logger          zerolog.Logger
	CircuitBreakers *CircuitBreakerRegistry // nil disables breaker protection
}

// Dispatcher is the heart of the core (C7). It is single-threaded
// cooperative over one run: one row at a time, one action at a time,
// in input order, so audit writes mirror action-evaluation order.
type Dispatcher struct {
	adapters   *adapter.Registry
	audits     domain.AuditRepository
	quietHours *quiethours.Gate
	queue      Queue
	jobName    string
	now        func() time.Time
	renderer   *render.Renderer
	logger     zerolog.Logger
	breakers   *CircuitBreakerRegistry
}

// New constructs a Dispatcher. evaluator is shared with the Rule
// Engine pass that produced each EvaluatedRow's RuleResults, so actions
// render against the same expression semantics.
func New(evaluator *ruleengine.Evaluator, opts Options) *Dispatcher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	jobName := opts.JobName
	if jobName == "" {
		jobName = "notify.dispatch"
	}
	return &Dispatcher{
		adapters:   opts.Adapters,
		audits:     opts.Audits,
		quietHours: opts.QuietHours,
		queue:      opts.Queue,
		jobName:    jobName,
		now:        now,
		renderer:   render.NewRenderer(evaluator),
		logger:     opts.Logger,
		breakers:   opts.CircuitBreakers,
	}
}

// Run dispatches actions against every evaluated row, in order, and
// returns per-channel statistics.
func (d *Dispatcher) Run(ctx context.Context, rows []EvaluatedRow, actions []domain.Action, dryRun bool, playbookName string) (map[string]ChannelStats, error) {
	stats := make(map[string]ChannelStats)

	for _, row := range rows {
		ruleResults := make(map[string]any, len(row.RuleResults))
		for k, v := range row.RuleResults {
			ruleResults[k] = v
		}
		rctx := ruleengine.NewContext(row.Row, ruleResults)

		for _, action := range actions {
			if !action.IsNotify() {
				continue
			}

			guard, err := d.renderer.Guard(action.When, rctx)
			if err != nil {
				return stats, fmt.Errorf("evaluating guard: %w", err)
			}
			if !guard {
				continue
			}

			rendered, err := d.renderer.Render(action, rctx)
			if err != nil {
				return stats, fmt.Errorf("rendering action: %w", err)
			}
			channel := strings.ToLower(rendered.Channel)

			s := stats[channel]
			s.Matches++
			stats[channel] = s

			if dryRun {
				_, _ = d.deliver(ctx, deliverRequest{
					playbook:    playbookName,
					channel:     channel,
					action:      rendered,
					row:         row.Row,
					ruleResults: row.RuleResults,
					dryRun:      true,
				})
				continue
			}

			if d.quietHours != nil && !d.quietHours.Allows(d.now()) {
				s := stats[channel]
				s.SkippedQuietHours++
				stats[channel] = s
				d.recordAudit(ctx, domain.NotificationAudit{
					ID:        uuid.NewString(),
					Playbook:  playbookName,
					Channel:   channel,
					Status:    domain.AuditStatusQuietHours,
					Payload:   deliverPayload(playbookName, rendered, row.Row, row.RuleResults),
					CreatedAt: d.now(),
				})
				continue
			}

			if d.queue == nil {
				result, err := d.deliver(ctx, deliverRequest{
					playbook:    playbookName,
					channel:     channel,
					action:      rendered,
					row:         row.Row,
					ruleResults: row.RuleResults,
				})
				s := stats[channel]
				if err != nil {
					s.Errors++
				} else if result.status == domain.AuditStatusSent {
					s.Enqueued++
				}
				stats[channel] = s
				continue
			}

			jobID := uuid.NewString()
			payload := deliverPayload(playbookName, rendered, row.Row, row.RuleResults)
			payload["job_id"] = jobID
			if err := d.queue.Enqueue(ctx, d.jobName, payload); err != nil {
				s := stats[channel]
				s.Errors++
				stats[channel] = s
				continue
			}
			d.recordAudit(ctx, domain.NotificationAudit{
				ID:        uuid.NewString(),
				Playbook:  playbookName,
				Channel:   channel,
				Status:    domain.AuditStatusQueued,
				Payload:   payload,
				JobID:     jobID,
				CreatedAt: d.now(),
			})
			s = stats[channel]
			s.Enqueued++
			stats[channel] = s
		}
	}

	return stats, nil
}

type deliverRequest struct {
	playbook    string
	channel     string
	action      render.RenderedAction
	row         map[string]any
	ruleResults map[string]bool
	dryRun      bool
	jobID       string
}

type deliverResult struct {
	status   domain.AuditStatus
	response map[string]any
}

// Deliver runs the deliver() contract (§4.7) for a single action: used
// both by Run's inline path and by a worker consuming a queued job.
func (d *Dispatcher) Deliver(ctx context.Context, playbook, channel string, action render.RenderedAction, row map[string]any, ruleResults map[string]bool, jobID string) (map[string]any, error) {
	result, err := d.deliver(ctx, deliverRequest{
		playbook:    playbook,
		channel:     channel,
		action:      action,
		row:         row,
		ruleResults: ruleResults,
		jobID:       jobID,
	})
	if err != nil {
		return nil, err
	}
	return result.response, nil
}

func (d *Dispatcher) deliver(ctx context.Context, req deliverRequest) (deliverResult, error) {
	payload := deliverPayload(req.playbook, req.action, req.row, req.ruleResults)

	a, err := d.adapters.Resolve(req.channel)
	if err != nil {
		auditErr := err.Error()
		var notFound *domainerrors.AdapterNotFoundError
		if errors.As(err, &notFound) {
			auditErr = "adaptador no configurado"
		}
		d.recordAudit(ctx, domain.NotificationAudit{
			ID:        uuid.NewString(),
			Playbook:  req.playbook,
			Channel:   req.channel,
			Status:    domain.AuditStatusError,
			Payload:   payload,
			Error:     auditErr,
			JobID:     req.jobID,
			CreatedAt: d.now(),
		})
		return deliverResult{}, err
	}

	if req.dryRun {
		d.recordAudit(ctx, domain.NotificationAudit{
			ID:        uuid.NewString(),
			Playbook:  req.playbook,
			Channel:   req.channel,
			Adapter:   fmt.Sprintf("%T", a),
			Status:    domain.AuditStatusDryRun,
			Payload:   payload,
			JobID:     req.jobID,
			CreatedAt: d.now(),
		})
		return deliverResult{status: domain.AuditStatusDryRun}, nil
	}

	var response map[string]any
	sendErr := d.guardedSend(ctx, req.channel, func() error {
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var innerErr error
		response, innerErr = a.Send(sendCtx, payload)
		return innerErr
	})
	if sendErr != nil {
		wrapped := domainerrors.NewDeliveryError(req.channel, req.action.StringField("to"), sendErr)
		d.recordAudit(ctx, domain.NotificationAudit{
			ID:        uuid.NewString(),
			Playbook:  req.playbook,
			Channel:   req.channel,
			Adapter:   fmt.Sprintf("%T", a),
			Status:    domain.AuditStatusError,
			Payload:   payload,
			Error:     wrapped.Error(),
			JobID:     req.jobID,
			CreatedAt: d.now(),
		})
		return deliverResult{}, wrapped
	}

	sentAt := d.now()
	d.recordAudit(ctx, domain.NotificationAudit{
		ID:        uuid.NewString(),
		Playbook:  req.playbook,
		Channel:   req.channel,
		Adapter:   fmt.Sprintf("%T", a),
		Recipient: req.action.StringField("to"),
		Subject:   req.action.StringField("subject"),
		Status:    domain.AuditStatusSent,
		Payload:   payload,
		Response:  response,
		JobID:     req.jobID,
		CreatedAt: d.now(),
		SentAt:    &sentAt,
	})
	return deliverResult{status: domain.AuditStatusSent, response: response}, nil
}

// guardedSend runs fn through this channel's circuit breaker, if one
// is configured, so a gateway that starts erroring consistently stops
// being hammered instead of failing every row in the run.
func (d *Dispatcher) guardedSend(ctx context.Context, channel string, fn func() error) error {
	if d.breakers == nil {
		return fn()
	}
	return d.breakers.Get(channel).Execute(ctx, fn)
}

func (d *Dispatcher) recordAudit(ctx context.Context, audit domain.NotificationAudit) {
	if d.audits == nil {
		return
	}
	if _, err := d.audits.Add(ctx, audit); err != nil {
		d.logger.Error().Err(err).Str("channel", audit.Channel).Msg("failed to persist notification audit")
	}
}

func deliverPayload(playbook string, action render.RenderedAction, row map[string]any, ruleResults map[string]bool) map[string]any {
	actionMap := map[string]any{
		"type":    action.Type,
		"channel": action.Channel,
	}
	for k, v := range action.Extra {
		actionMap[k] = v
	}
	return map[string]any{
		"playbook": playbook,
		"action":   actionMap,
		"context": map[string]any{
			"row":          row,
			"rule_results": ruleResults,
		},
	}
}

// ParseQueuedPayload reverses deliverPayload, reconstructing the
// rendered action, row, and rule results a queued job carries so a
// worker can call Deliver without re-rendering anything.
func ParseQueuedPayload(payload map[string]any) (playbookName string, channel string, action render.RenderedAction, row map[string]any, ruleResults map[string]bool, jobID string, err error) {
	playbookName, _ = payload["playbook"].(string)
	jobID, _ = payload["job_id"].(string)

	actionMap, ok := payload["action"].(map[string]any)
	if !ok {
		return "", "", render.RenderedAction{}, nil, nil, "", fmt.Errorf("queued payload missing action object")
	}
	actionType, _ := actionMap["type"].(string)
	channel, _ = actionMap["channel"].(string)
	extra := make(map[string]any, len(actionMap))
	for k, v := range actionMap {
		if k == "type" || k == "channel" {
			continue
		}
		extra[k] = v
	}
	action = render.RenderedAction{Type: actionType, Channel: channel, Extra: extra}

	ctxMap, _ := payload["context"].(map[string]any)
	row, _ = ctxMap["row"].(map[string]any)

	ruleResults = make(map[string]bool)
	if rawResults, ok := ctxMap["rule_results"].(map[string]any); ok {
		for k, v := range rawResults {
			if b, ok := v.(bool); ok {
				ruleResults[k] = b
			}
		}
	} else if boolResults, ok := ctxMap["rule_results"].(map[string]bool); ok {
		ruleResults = boolResults
	}

	return playbookName, channel, action, row, ruleResults, jobID, nil
}
