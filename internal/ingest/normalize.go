package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultCourseHoursRequired is the configured fallback used when a
// workbook supplies neither an explicit hours_required column nor any
// total_time values to derive one from.
const DefaultCourseHoursRequired = 6

// NormalizedRow is the typed record produced per raw row (C3). Missing
// values are the zero value of their type; coercion never aborts a row.
type NormalizedRow struct {
	FullName             string
	Email                string
	Telefono             string
	CourseName           string
	CourseHoursRequired  int
	CourseDeadlineDate   time.Time
	CertificateExpiresAt time.Time
	ProgressHours        float64
	RawTotalTime         string
	FirstAccessAt        *time.Time
	LastAccessAt         *time.Time
	Skipped              bool
}

// Normalizer turns raw ingest rows into NormalizedRow values, applying
// the per-field coercions and workbook-wide derivations of C3.
type Normalizer struct {
	resolutions map[string]Resolution
	now         func() time.Time
}

// NewNormalizer constructs a Normalizer bound to the mapper's resolved
// field→column assignments.
func NewNormalizer(resolutions map[string]Resolution, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{resolutions: resolutions, now: now}
}

// NormalizeWorkbook computes workbook-wide defaults first, then
// normalizes every row against them.
func (n *Normalizer) NormalizeWorkbook(rows []Row) []NormalizedRow {
	defaultHours, hasDefaultHours := n.deriveDefaultCourseHours(rows)
	defaultDeadline, hasDefaultDeadline := n.deriveDefaultDeadline(rows)

	out := make([]NormalizedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, n.normalizeRow(row, defaultHours, hasDefaultHours, defaultDeadline, hasDefaultDeadline))
	}
	return out
}

func (n *Normalizer) deriveDefaultCourseHours(rows []Row) (int, bool) {
	max := 0.0
	found := false
	for _, row := range rows {
		raw, ok := n.raw(row, "total_time")
		if !ok {
			continue
		}
		hours, ok := parseDurationHours(raw)
		if !ok {
			continue
		}
		if !found || hours > max {
			max = hours
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return int(math.Ceil(max)), true
}

func (n *Normalizer) deriveDefaultDeadline(rows []Row) (time.Time, bool) {
	var max time.Time
	found := false
	consider := func(raw string) {
		ts, ok := parseDateTime(raw)
		if !ok {
			return
		}
		if !found || ts.After(max) {
			max = ts
			found = true
		}
	}
	for _, row := range rows {
		if raw, ok := n.raw(row, "last_access"); ok {
			consider(raw)
		}
		if raw, ok := n.raw(row, "first_access"); ok {
			consider(raw)
		}
	}
	if !found {
		return time.Time{}, false
	}
	return max.AddDate(0, 0, 30), true
}

func (n *Normalizer) normalizeRow(row Row, defaultHours int, hasDefaultHours bool, defaultDeadline time.Time, hasDefaultDeadline bool) NormalizedRow {
	out := NormalizedRow{}

	firstName, _ := n.raw(row, "first_name")
	lastName, _ := n.raw(row, "last_name")
	fullName, _ := n.raw(row, "full_name")
	email, _ := n.raw(row, "email")

	switch {
	case firstName != "" && lastName != "":
		out.FullName = strings.TrimSpace(firstName + " " + lastName)
	case fullName != "":
		out.FullName = fullName
	default:
		if def, ok := n.defaultOnly("full_name"); ok {
			out.FullName = def
		} else {
			out.FullName = email
		}
	}

	out.Email = strings.TrimSpace(email)
	if out.Email == "" {
		out.Skipped = true
		return out
	}

	out.Telefono, _ = n.raw(row, "telefono")
	out.CourseName, _ = n.raw(row, "course_name")

	if raw, ok := n.raw(row, "course_hours_required"); ok {
		if f, ok := parseFloat(raw); ok {
			out.CourseHoursRequired = int(math.Ceil(f))
		} else if hasDefaultHours {
			out.CourseHoursRequired = defaultHours
		} else {
			out.CourseHoursRequired = DefaultCourseHoursRequired
		}
	} else if hasDefaultHours {
		out.CourseHoursRequired = defaultHours
	} else {
		out.CourseHoursRequired = DefaultCourseHoursRequired
	}

	if raw, ok := n.raw(row, "course_deadline_date"); ok {
		if d, ok := parseDate(raw); ok {
			out.CourseDeadlineDate = d
		} else if hasDefaultDeadline {
			out.CourseDeadlineDate = defaultDeadline
		} else {
			out.CourseDeadlineDate = n.now().AddDate(0, 0, 30)
		}
	} else if hasDefaultDeadline {
		out.CourseDeadlineDate = defaultDeadline
	} else {
		out.CourseDeadlineDate = n.now().AddDate(0, 0, 30)
	}

	if raw, ok := n.raw(row, "certificate_expires_at"); ok {
		if d, ok := parseDate(raw); ok {
			out.CertificateExpiresAt = d
		} else {
			out.CertificateExpiresAt = out.CourseDeadlineDate
		}
	} else {
		out.CertificateExpiresAt = out.CourseDeadlineDate
	}

	progressSet := false
	if raw, ok := n.raw(row, "progress_hours"); ok {
		if f, ok := parseFloat(raw); ok {
			out.ProgressHours = f
			progressSet = true
		}
	}
	totalTimeRaw, hasTotalTime := n.raw(row, "total_time")
	if hasTotalTime {
		out.RawTotalTime = totalTimeRaw
	}
	if !progressSet {
		if hasTotalTime {
			if hours, ok := parseDurationHours(totalTimeRaw); ok {
				out.ProgressHours = hours
			}
		}
	}

	if raw, ok := n.raw(row, "first_access"); ok {
		if ts, ok := parseDateTime(raw); ok {
			out.FirstAccessAt = &ts
		}
	}
	if raw, ok := n.raw(row, "last_access"); ok {
		if ts, ok := parseDateTime(raw); ok {
			out.LastAccessAt = &ts
		}
	}

	return out
}

// raw returns the resolved string value for a logical field on this
// row, preferring the winning source column, then the field's default.
func (n *Normalizer) raw(row Row, field string) (string, bool) {
	res, ok := n.resolutions[field]
	if !ok {
		return "", false
	}
	if res.HasSource {
		if cell, ok := row[res.SourceColumn]; ok {
			v := strings.TrimSpace(cell.Raw)
			if v != "" {
				return v, true
			}
		}
	}
	if res.HasDefault {
		return fmt.Sprint(res.Default), true
	}
	return "", false
}

func (n *Normalizer) defaultOnly(field string) (string, bool) {
	res, ok := n.resolutions[field]
	if !ok || !res.HasDefault {
		return "", false
	}
	return fmt.Sprint(res.Default), true
}

var durationComponentPattern = regexp.MustCompile(`(?i)(\d+)\s*([hms])`)

// parseDurationHours parses the "Xh Ym Zs" duration grammar (components
// optional, case-insensitive), returning hours. "no visitado" (any
// case) yields 0. A string with no recognizable components falls back
// to a raw numeric parse.
func parseDurationHours(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, false
	}
	if strings.EqualFold(cleaned, "no visitado") {
		return 0, true
	}
	matches := durationComponentPattern.FindAllStringSubmatch(cleaned, -1)
	if len(matches) == 0 {
		return parseFloat(cleaned)
	}
	var totalSeconds float64
	for _, m := range matches {
		amount, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "h":
			totalSeconds += float64(amount) * 3600
		case "m":
			totalSeconds += float64(amount) * 60
		case "s":
			totalSeconds += float64(amount)
		}
	}
	if totalSeconds == 0 {
		return parseFloat(cleaned)
	}
	return totalSeconds / 3600, true
}

// parseFloat accepts either "," or "." as the decimal separator.
func parseFloat(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, false
	}
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var dayFirstLayouts = []string{"02/01/2006", "2/1/2006", "02/01/2006 15:04:05", "2/1/2006 15:04"}
var otherLayouts = []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02 15:04:05", "01/02/2006", "January 2, 2006"}

// parseDateTime parses a date-time string, interpreting slash-separated
// dates as day-first. Strings equal to (case-insensitive) "no
// visitado" parse to nothing, matching the source's "unvisited" marker.
func parseDateTime(raw string) (time.Time, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || strings.EqualFold(cleaned, "no visitado") {
		return time.Time{}, false
	}
	layouts := otherLayouts
	if strings.Contains(cleaned, "/") {
		layouts = dayFirstLayouts
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, cleaned); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseDate is parseDateTime truncated to the calendar date.
func parseDate(raw string) (time.Time, bool) {
	ts, ok := parseDateTime(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location()), true
}
