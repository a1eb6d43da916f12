package ruleengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloym/formasur/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluator_EvaluateBool(t *testing.T) {
	e := NewEvaluator(fixedClock(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)))
	ctx := NewContext(map[string]any{"progress_hours": 4.5, "course_hours_required": 8}, nil)

	ok, err := e.EvaluateBool(`row.progress_hours < float(row.course_hours_required)`, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluator_TodayAndDaysUntil(t *testing.T) {
	e := NewEvaluator(fixedClock(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
	ctx := NewContext(map[string]any{"deadline": time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC)}, nil)

	result, err := e.Eval(`days_until(row.deadline)`, ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result)

	result, err = e.Eval(`today()`, ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC), result)
}

func TestEvaluator_ParseDate(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := NewContext(nil, nil)

	result, err := e.Eval(`parse_date("2026-01-15")`, ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), result)
}

func TestEvaluator_RejectsUnknownIdentifier(t *testing.T) {
	e := NewEvaluator(nil)
	_, err := e.Eval(`unknown_field == 1`, NewContext(nil, nil))
	assert.Error(t, err)
}

func TestEvaluator_EvaluateBool_NonBoolResult(t *testing.T) {
	e := NewEvaluator(nil)
	_, err := e.EvaluateBool(`1 + 1`, NewContext(nil, nil))
	assert.Error(t, err)
}

func TestRuleSet_Evaluate(t *testing.T) {
	e := NewEvaluator(fixedClock(time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)))
	rs, err := NewRuleSet([]domain.Rule{
		{ID: "low_progress", Expression: `row.progress_hours < 5`},
		{ID: "has_email", Expression: `len(row.email) > 0`},
	})
	require.NoError(t, err)

	results, err := rs.Evaluate(e, NewContext(map[string]any{"progress_hours": 2.0, "email": "a@example.com"}, nil))
	require.NoError(t, err)
	assert.True(t, results["low_progress"])
	assert.True(t, results["has_email"])
}

func TestRuleSet_Evaluate_PropagatesRuleError(t *testing.T) {
	e := NewEvaluator(nil)
	rs, err := NewRuleSet([]domain.Rule{{ID: "broken", Expression: `row.missing_fn()`}})
	require.NoError(t, err)

	_, err = rs.Evaluate(e, NewContext(nil, nil))
	assert.Error(t, err)
}

func TestNewRuleSet_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewRuleSet([]domain.Rule{
		{ID: "dup", Expression: "true"},
		{ID: "dup", Expression: "false"},
	})
	assert.Error(t, err)
}

func TestCoerceHelpers(t *testing.T) {
	e := NewEvaluator(nil)
	ctx := NewContext(map[string]any{"n": "42", "flag": "0"}, nil)

	result, err := e.Eval(`int(row.n)`, ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	result, err = e.Eval(`bool(row.flag)`, ctx)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}
