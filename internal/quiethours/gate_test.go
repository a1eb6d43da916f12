package quiethours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloym/formasur/internal/domain"
)

func TestGate_DisabledWhenZero(t *testing.T) {
	gate, err := NewGate(domain.QuietHoursWindow{})
	require.NoError(t, err)
	assert.True(t, gate.Allows(time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC)))
}

func TestGate_SameDayWindow(t *testing.T) {
	gate, err := NewGate(domain.QuietHoursWindow{Start: "22:00", End: "23:00", Timezone: "UTC"})
	require.NoError(t, err)

	assert.False(t, gate.Allows(time.Date(2026, 7, 30, 22, 30, 0, 0, time.UTC)))
	assert.True(t, gate.Allows(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
	assert.True(t, gate.Allows(time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)))
}

func TestGate_SpansMidnight(t *testing.T) {
	gate, err := NewGate(domain.QuietHoursWindow{Start: "21:00", End: "07:00", Timezone: "UTC"})
	require.NoError(t, err)

	assert.False(t, gate.Allows(time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)))
	assert.False(t, gate.Allows(time.Date(2026, 7, 30, 2, 0, 0, 0, time.UTC)))
	assert.True(t, gate.Allows(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
}

func TestGate_DefaultsTimezoneToUTC(t *testing.T) {
	gate, err := NewGate(domain.QuietHoursWindow{Start: "08:00", End: "09:00"})
	require.NoError(t, err)
	assert.False(t, gate.Allows(time.Date(2026, 7, 30, 8, 30, 0, 0, time.UTC)))
}

func TestGate_RejectsInvalidTimezone(t *testing.T) {
	_, err := NewGate(domain.QuietHoursWindow{Start: "08:00", End: "09:00", Timezone: "Not/AZone"})
	assert.Error(t, err)
}

func TestGate_RejectsInvalidClock(t *testing.T) {
	_, err := NewGate(domain.QuietHoursWindow{Start: "8am", End: "09:00"})
	assert.Error(t, err)
}
