package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuleSet(t *testing.T) {
	data := []byte(`
rules:
  - id: overdue
    description: course past its deadline
    when: "days_until(row.deadline) < 0"
  - id: silent
    description: no when clause at all
`)

	rs, err := ParseRuleSet(data)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)

	assert.Equal(t, "overdue", rs.Rules[0].ID)
	assert.Equal(t, "days_until(row.deadline) < 0", rs.Rules[0].Expression)

	assert.Equal(t, "silent", rs.Rules[1].ID)
	assert.Equal(t, "false", rs.Rules[1].Expression)
}

func TestParseRuleSet_InvalidYAML(t *testing.T) {
	_, err := ParseRuleSet([]byte(`not: [valid`))
	assert.Error(t, err)
}
