package domain

import "time"

// Course represents a training course as observed from ingested workbooks.
// It is created on first sighting and mutated only when a later ingest
// supplies differing hours or a differing deadline.
type Course struct {
	id              string
	name            string
	hoursRequired   int
	deadlineDate    time.Time
	sourceTag       string
}

// NewCourse constructs a new Course, validating its invariants.
func NewCourse(id, name string, hoursRequired int, deadlineDate time.Time, sourceTag string) (Course, error) {
	if name == "" {
		return Course{}, NewValidationError("name", "course name must not be empty")
	}
	if hoursRequired < 0 {
		return Course{}, NewValidationError("hours_required", "hours_required must be >= 0")
	}
	return Course{
		id:            id,
		name:          name,
		hoursRequired: hoursRequired,
		deadlineDate:  deadlineDate,
		sourceTag:     sourceTag,
	}, nil
}

// ReconstructCourse rehydrates a Course from storage without re-validating
// invariants that were already enforced at insertion time.
func ReconstructCourse(id, name string, hoursRequired int, deadlineDate time.Time, sourceTag string) Course {
	return Course{
		id:            id,
		name:          name,
		hoursRequired: hoursRequired,
		deadlineDate:  deadlineDate,
		sourceTag:     sourceTag,
	}
}

func (c Course) ID() string                  { return c.id }
func (c Course) Name() string                { return c.name }
func (c Course) HoursRequired() int          { return c.hoursRequired }
func (c Course) DeadlineDate() time.Time     { return c.deadlineDate }
func (c Course) SourceTag() string           { return c.sourceTag }

// MergeIngest applies a later ingest's observed values, returning the
// merged Course. Per invariant 1, a Course is never deleted and only its
// hours/deadline move forward when the new ingest differs.
func (c Course) MergeIngest(hoursRequired int, deadlineDate time.Time, sourceTag string) Course {
	merged := c
	if hoursRequired != c.hoursRequired {
		merged.hoursRequired = hoursRequired
	}
	if !deadlineDate.Equal(c.deadlineDate) {
		merged.deadlineDate = deadlineDate
	}
	if sourceTag != "" {
		merged.sourceTag = sourceTag
	}
	return merged
}
