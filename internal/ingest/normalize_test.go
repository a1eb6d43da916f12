package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cell(raw string) Cell { return Cell{Raw: raw} }

func resolutionsFor(fields ...string) map[string]Resolution {
	out := make(map[string]Resolution, len(fields))
	for _, f := range fields {
		out[f] = Resolution{SourceColumn: f, HasSource: true}
	}
	return out
}

func TestNormalizer_SkipsRowsWithoutEmail(t *testing.T) {
	resolutions := resolutionsFor("email", "full_name")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell(""), "full_name": cell("Jane Doe")},
	})
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Skipped)
}

func TestNormalizer_DurationParsing(t *testing.T) {
	resolutions := resolutionsFor("email", "total_time")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell("a@example.com"), "total_time": cell("2h 30m")},
	})
	require.Len(t, rows, 1)
	assert.InDelta(t, 2.5, rows[0].ProgressHours, 0.001)
	assert.Equal(t, "2h 30m", rows[0].RawTotalTime)
}

func TestNormalizer_NoVisitadoYieldsZero(t *testing.T) {
	resolutions := resolutionsFor("email", "total_time")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell("a@example.com"), "total_time": cell("No Visitado")},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, 0.0, rows[0].ProgressHours)
}

func TestNormalizer_DayFirstDateParsing(t *testing.T) {
	resolutions := resolutionsFor("email", "course_deadline_date")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell("a@example.com"), "course_deadline_date": cell("05/08/2026")},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), rows[0].CourseDeadlineDate)
}

func TestNormalizer_DefaultCourseHoursFromMaxTotalTime(t *testing.T) {
	resolutions := resolutionsFor("email", "total_time")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell("a@example.com"), "total_time": cell("3h")},
		{"email": cell("b@example.com"), "total_time": cell("5h 30m")},
	})
	require.Len(t, rows, 2)
	assert.Equal(t, 6, rows[0].CourseHoursRequired)
	assert.Equal(t, 6, rows[1].CourseHoursRequired)
}

func TestNormalizer_FallsBackToDefaultHoursConstant(t *testing.T) {
	resolutions := resolutionsFor("email")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{{"email": cell("a@example.com")}})
	require.Len(t, rows, 1)
	assert.Equal(t, DefaultCourseHoursRequired, rows[0].CourseHoursRequired)
}

func TestNormalizer_FullNameFromFirstLast(t *testing.T) {
	resolutions := resolutionsFor("email", "first_name", "last_name")
	n := NewNormalizer(resolutions, nil)

	rows := n.NormalizeWorkbook([]Row{
		{"email": cell("a@example.com"), "first_name": cell("Jane"), "last_name": cell("Doe")},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "Jane Doe", rows[0].FullName)
}
