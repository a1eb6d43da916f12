// Package render implements the Action Renderer (C5): it turns an
// Action's string fields into their rendered form and evaluates the
// `when` guard, both via the Rule Engine's evaluator.
package render

import (
	"fmt"
	"strings"

	"github.com/eloym/formasur/internal/domain"
	"github.com/eloym/formasur/internal/ruleengine"
)

// Renderer renders actions against a shared evaluator.
type Renderer struct {
	evaluator *ruleengine.Evaluator
}

// NewRenderer constructs a Renderer bound to evaluator.
func NewRenderer(evaluator *ruleengine.Evaluator) *Renderer {
	return &Renderer{evaluator: evaluator}
}

// RenderedAction is the output of rendering an Action: every original
// string field with its {{ expr }} segments replaced, and the Extra
// map filled in the same way. The original Action is never mutated.
type RenderedAction struct {
	Type    string
	Channel string
	Extra   map[string]any
}

// StringField returns a string-valued entry from Extra, or "" if
// absent or not a string.
func (a RenderedAction) StringField(key string) string {
	v, ok := a.Extra[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Render renders action's templated fields against ctx. It does not
// evaluate When; call Guard separately.
func (r *Renderer) Render(action domain.Action, ctx ruleengine.Context) (RenderedAction, error) {
	channel, err := r.renderString(action.Channel, ctx)
	if err != nil {
		return RenderedAction{}, err
	}
	if channel == "" {
		channel = "default"
	}

	extra := make(map[string]any, len(action.Extra))
	for key, value := range action.Extra {
		rendered, err := r.renderValue(value, ctx)
		if err != nil {
			return RenderedAction{}, fmt.Errorf("rendering field %q: %w", key, err)
		}
		extra[key] = rendered
	}

	return RenderedAction{
		Type:    action.Type,
		Channel: strings.ToLower(channel),
		Extra:   extra,
	}, nil
}

func (r *Renderer) renderValue(value any, ctx ruleengine.Context) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return r.renderString(s, ctx)
}

// renderString replaces every {{ expr }} segment in template with the
// string form of evaluating expr against ctx; nil/missing values
// render as the empty string.
func (r *Renderer) renderString(template string, ctx ruleengine.Context) (string, error) {
	if !strings.Contains(template, "{{") {
		return template, nil
	}

	var out strings.Builder
	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			out.WriteString(rest)
			break
		}
		end += start

		out.WriteString(rest[:start])
		expression := strings.TrimSpace(rest[start+2 : end])

		value, err := r.evaluator.Eval(expression, ctx)
		if err != nil {
			return "", fmt.Errorf("evaluating %q: %w", expression, err)
		}
		if value != nil {
			out.WriteString(fmt.Sprint(value))
		}

		rest = rest[end+2:]
	}
	return out.String(), nil
}

// Guard evaluates an action's `when` field against ctx, applying the
// truthiness rules from spec §4.5: missing/empty ⇒ true; a value
// wrapped in {{ }} has the braces stripped before evaluation;
// "false"/"0"/"no"/"" ⇒ false; "true"/"1"/"yes" ⇒ true; otherwise the
// expression's own truthiness is used.
func (r *Renderer) Guard(when string, ctx ruleengine.Context) (bool, error) {
	expression := strings.TrimSpace(when)
	if expression == "" {
		return true, nil
	}
	if strings.HasPrefix(expression, "{{") && strings.HasSuffix(expression, "}}") {
		expression = strings.TrimSpace(expression[2 : len(expression)-2])
	}
	if expression == "" {
		return true, nil
	}

	value, err := r.evaluator.Eval(expression, ctx)
	if err != nil {
		return false, err
	}

	if s, ok := value.(string); ok {
		lowered := strings.ToLower(strings.TrimSpace(s))
		switch lowered {
		case "", "false", "0", "no":
			return false, nil
		case "true", "1", "yes":
			return true, nil
		}
	}
	return truthy(value), nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}
