package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("file not found")
	err := NewInputError("/tmp/sheet.xlsx", "cannot open workbook", cause)

	assert.Contains(t, err.Error(), "/tmp/sheet.xlsx")
	assert.Contains(t, err.Error(), "cannot open workbook")
	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestMissingColumnsError_Error(t *testing.T) {
	err := NewMissingColumnsError("Sheet1", []string{"email", "course"})
	assert.Contains(t, err.Error(), "Sheet1")
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "course")
}

func TestRuleEvaluationError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("unknown identifier foo")
	err := NewRuleEvaluationError("overdue", "foo > 1", cause)

	assert.Contains(t, err.Error(), "overdue")
	assert.Contains(t, err.Error(), "foo > 1")
	assert.ErrorIs(t, err, cause)
}

func TestAdapterNotFoundError_Error(t *testing.T) {
	err := NewAdapterNotFoundError("sms")
	assert.Contains(t, err.Error(), "sms")
}

func TestDeliveryError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("smtp timeout")
	err := NewDeliveryError("email", "a@example.com", cause)

	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "a@example.com")
	assert.ErrorIs(t, err, cause)
}

func TestValidationError_Error(t *testing.T) {
	err := NewValidationError("progress_hours", "must be >= 0")
	assert.Contains(t, err.Error(), "progress_hours")
	assert.Contains(t, err.Error(), "must be >= 0")
}

func TestPlaybookError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("yaml: line 3: mapping values are not allowed")
	err := NewPlaybookError("playbooks/overdue.yaml", "invalid document", cause)

	assert.Contains(t, err.Error(), "playbooks/overdue.yaml")
	assert.ErrorIs(t, err, cause)
}

func TestPlaybookNotFoundError_Error(t *testing.T) {
	err := NewPlaybookNotFoundError("overdue-notice")
	assert.Contains(t, err.Error(), "overdue-notice")
}
