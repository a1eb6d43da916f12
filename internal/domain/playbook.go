package domain

// QuietHoursWindow is the wall-clock window during which notification
// delivery is suppressed. A zero-value window (no Start/End) never
// blocks delivery.
type QuietHoursWindow struct {
	Start    string // "HH:MM"
	End      string // "HH:MM"
	Timezone string // IANA zone name; empty means UTC
}

// IsZero reports whether no quiet-hours window is configured.
func (w QuietHoursWindow) IsZero() bool {
	return w.Start == "" && w.End == ""
}

// Playbook is the immutable, in-memory record produced by loading a
// playbook descriptor: it names the source workbook, the column mapping
// and ruleset documents that govern it, and the actions to dispatch.
type Playbook struct {
	Name        string
	SourceRef   string
	MappingRef  string
	RulesetRef  string
	Actions     []Action
	QuietHours  QuietHoursWindow
}
