package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAction_IsNotify(t *testing.T) {
	assert.True(t, Action{Type: "notify"}.IsNotify())
	assert.False(t, Action{Type: "noop"}.IsNotify())
}

func TestAction_StringField_ReturnsValueWhenPresentAndString(t *testing.T) {
	a := Action{Extra: map[string]any{"subject": "Reminder"}}
	assert.Equal(t, "Reminder", a.StringField("subject"))
}

func TestAction_StringField_ReturnsEmptyWhenAbsent(t *testing.T) {
	a := Action{Extra: map[string]any{}}
	assert.Equal(t, "", a.StringField("subject"))
}

func TestAction_StringField_ReturnsEmptyWhenNotString(t *testing.T) {
	a := Action{Extra: map[string]any{"hours": 5}}
	assert.Equal(t, "", a.StringField("hours"))
}
