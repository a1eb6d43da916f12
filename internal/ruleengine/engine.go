// Package ruleengine implements the Rule Engine (C4): a safe
// expression evaluator over a closed function set, backing both rule
// conditions and the Action Renderer's interpolation. Expressions are
// compiled by expr-lang into bytecode programs run on expr's virtual
// machine; they are not interpreted by walking a syntax tree.
package ruleengine

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/eloym/formasur/internal/domain"
	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// Evaluator compiles and runs expressions against a Context, caching
// compiled programs by source text. It never falls back to a
// permissive, unrestricted environment: every program is compiled
// against the fixed Context schema plus the helper functions below, so
// an expression that reaches for anything else fails to compile.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
	now   func() time.Time
}

// NewEvaluator constructs an Evaluator. now is the clock used by the
// today() helper; it defaults to time.Now but callers (the dispatcher,
// tests) should inject a fixed clock for determinism.
func NewEvaluator(now func() time.Time) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{cache: make(map[string]*vm.Program), now: now}
}

func (e *Evaluator) options() []expr.Option {
	today := func() (any, error) {
		t := e.now()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()), nil
	}
	parseDate := func(params ...any) (any, error) {
		s, ok := params[0].(string)
		if !ok {
			return nil, fmt.Errorf("parse_date expects a string")
		}
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("parse_date: %w", err)
		}
		return t, nil
	}
	daysUntil := func(params ...any) (any, error) {
		t, ok := params[0].(time.Time)
		if !ok {
			return nil, fmt.Errorf("days_until expects a date")
		}
		now := e.now()
		todayDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		targetDate := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return int(targetDate.Sub(todayDate).Hours() / 24), nil
	}

	return []expr.Option{
		expr.Env(Context{}),
		expr.DisableAllBuiltins(),
		expr.Function("today", func(params ...any) (any, error) { return today() }),
		expr.Function("parse_date", parseDate),
		expr.Function("days_until", daysUntil),
		expr.Function("len", func(params ...any) (any, error) { return coerceLen(params[0]) }),
		expr.Function("str", func(params ...any) (any, error) { return coerceStr(params[0]), nil }),
		expr.Function("int", func(params ...any) (any, error) { return coerceInt(params[0]) }),
		expr.Function("float", func(params ...any) (any, error) { return coerceFloat(params[0]) }),
		expr.Function("bool", func(params ...any) (any, error) { return coerceBool(params[0]), nil }),
	}
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[source]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(source, e.options()...)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[source] = program
	e.mu.Unlock()
	return program, nil
}

// Eval runs expression against ctx and returns its raw result, used by
// the Action Renderer for {{ expr }} interpolation.
func (e *Evaluator) Eval(expression string, ctx Context) (any, error) {
	program, err := e.compile(expression)
	if err != nil {
		return nil, err
	}
	return expr.Run(program, ctx)
}

// EvaluateBool runs expression against ctx and requires a boolean
// result, used for rule conditions. The when guard goes through Eval
// and applies truthiness instead.
func (e *Evaluator) EvaluateBool(expression string, ctx Context) (bool, error) {
	result, err := e.Eval(expression, ctx)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean, got %T", expression, result)
	}
	return b, nil
}

// RuleSet wraps domain.RuleSet with compiled evaluation.
type RuleSet struct {
	rules []domain.Rule
}

// NewRuleSet constructs a RuleSet from the domain model, validating
// that every rule id is unique within it.
func NewRuleSet(rules []domain.Rule) (*RuleSet, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.ID] {
			return nil, domainerrors.NewPlaybookError("", fmt.Sprintf("duplicate rule id %q", r.ID), nil)
		}
		seen[r.ID] = true
	}
	return &RuleSet{rules: rules}, nil
}

// Evaluate runs every rule independently against ctx, returning
// rule_id→bool. A failure in any rule raises a RuleEvaluationError
// naming the offending id rather than being swallowed.
func (rs *RuleSet) Evaluate(e *Evaluator, ctx Context) (map[string]bool, error) {
	results := make(map[string]bool, len(rs.rules))
	for _, rule := range rs.rules {
		ok, err := e.EvaluateBool(rule.Expression, ctx)
		if err != nil {
			return nil, domainerrors.NewRuleEvaluationError(rule.ID, rule.Expression, err)
		}
		results[rule.ID] = ok
	}
	return results, nil
}

func coerceLen(v any) (int, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), nil
	default:
		return 0, fmt.Errorf("len: unsupported type %T", v)
	}
}

func coerceStr(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func coerceInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			f, ferr := strconv.ParseFloat(t, 64)
			if ferr != nil {
				return 0, fmt.Errorf("int: cannot convert %q", t)
			}
			return int(f), nil
		}
		return n, nil
	case time.Time:
		return 0, fmt.Errorf("int: cannot convert a date")
	default:
		return 0, fmt.Errorf("int: unsupported type %T", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("float: cannot convert %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("float: unsupported type %T", v)
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0" && t != "false"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array, reflect.Map:
			return rv.Len() > 0
		}
		return true
	}
}
