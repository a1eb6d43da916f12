package ruleengine

import (
	"gopkg.in/yaml.v3"

	"github.com/eloym/formasur/internal/domain"
	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

type ruleDocument struct {
	Rules []ruleItem `yaml:"rules"`
}

type ruleItem struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	When        string `yaml:"when"`
}

// ParseRuleSet decodes a ruleset YAML document into a domain.RuleSet.
// A rule with no "when" field defaults to the literal "false", matching
// the ruleset format's original semantics.
func ParseRuleSet(data []byte) (domain.RuleSet, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.RuleSet{}, domainerrors.NewInputError("", "invalid ruleset document", err)
	}

	rules := make([]domain.Rule, 0, len(doc.Rules))
	for _, item := range doc.Rules {
		expression := item.When
		if expression == "" {
			expression = "false"
		}
		rules = append(rules, domain.Rule{
			ID:          item.ID,
			Description: item.Description,
			Expression:  expression,
		})
	}
	return domain.RuleSet{Rules: rules}, nil
}
