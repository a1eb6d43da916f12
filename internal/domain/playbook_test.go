package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuietHoursWindow_IsZero(t *testing.T) {
	assert.True(t, QuietHoursWindow{}.IsZero())
	assert.False(t, QuietHoursWindow{Start: "22:00", End: "06:00"}.IsZero())
}
