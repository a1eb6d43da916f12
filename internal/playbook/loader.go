// Package playbook implements the Playbook Loader (C10): it parses a
// playbook descriptor YAML document and resolves the relative paths it
// names (source workbook, mapping, ruleset) against the descriptor's
// own directory and the configured playbooks root.
package playbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eloym/formasur/internal/domain"
	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// Resolved is a loaded playbook plus the absolute paths of everything
// it references, ready for the ingest/ruleengine passes to consume.
type Resolved struct {
	Playbook    domain.Playbook
	SourcePath  string
	MappingPath string
	RulesetPath string
}

// Loader loads playbook descriptors from a directory, resolving
// relative references against the descriptor's directory first and
// falling back to a repository root.
type Loader struct {
	playbooksDir      string
	repoRoot          string
	defaultQuietHours domain.QuietHoursWindow
}

// NewLoader constructs a Loader rooted at playbooksDir, with repoRoot
// as the fallback base for relative references. defaultQuietHours
// applies to any playbook that omits its own quiet_hours block.
func NewLoader(playbooksDir, repoRoot string, defaultQuietHours domain.QuietHoursWindow) *Loader {
	return &Loader{playbooksDir: playbooksDir, repoRoot: repoRoot, defaultQuietHours: defaultQuietHours}
}

type rawDocument struct {
	Name       string         `yaml:"name"`
	Source     rawSource      `yaml:"source"`
	Mapping    string         `yaml:"mapping"`
	Ruleset    string         `yaml:"ruleset"`
	Actions    []rawAction    `yaml:"actions"`
	QuietHours *rawQuietHours `yaml:"quiet_hours"`
}

type rawSource struct {
	Path string `yaml:"path"`
}

type rawQuietHours struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

// rawAction decodes an action entry, separating its known fields
// (type, channel, when) from the adapter-specific ones, which land in
// Extra for the renderer and adapter to interpret.
type rawAction struct {
	Type    string
	Channel string
	When    string
	Extra   map[string]any
}

func (a *rawAction) UnmarshalYAML(value *yaml.Node) error {
	var generic map[string]any
	if err := value.Decode(&generic); err != nil {
		return err
	}
	a.Extra = make(map[string]any, len(generic))
	for key, v := range generic {
		switch key {
		case "type":
			a.Type, _ = v.(string)
		case "channel":
			a.Channel, _ = v.(string)
		case "when":
			a.When, _ = v.(string)
		default:
			a.Extra[key] = v
		}
	}
	return nil
}

// Load parses and resolves the playbook named by identifier, which may
// be given with or without its ".yaml" suffix.
func (l *Loader) Load(identifier string) (Resolved, error) {
	path, err := l.resolvePlaybookPath(identifier)
	if err != nil {
		return Resolved{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Resolved{}, domainerrors.NewPlaybookError(path, "reading playbook descriptor", err)
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Resolved{}, domainerrors.NewPlaybookError(path, "parsing playbook descriptor", err)
	}

	name := raw.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	sourcePath, err := l.resolveRelated(path, raw.Source.Path)
	if err != nil {
		return Resolved{}, domainerrors.NewPlaybookError(path, "resolving source path", err)
	}
	mappingPath, err := l.resolveRelated(path, raw.Mapping)
	if err != nil {
		return Resolved{}, domainerrors.NewPlaybookError(path, "resolving mapping path", err)
	}
	rulesetPath, err := l.resolveRelated(path, raw.Ruleset)
	if err != nil {
		return Resolved{}, domainerrors.NewPlaybookError(path, "resolving ruleset path", err)
	}

	actions := make([]domain.Action, 0, len(raw.Actions))
	for _, a := range raw.Actions {
		actions = append(actions, domain.Action{
			Type:    a.Type,
			Channel: a.Channel,
			When:    a.When,
			Extra:   a.Extra,
		})
	}

	quietHours := l.parseQuietHours(raw.QuietHours)

	pb := domain.Playbook{
		Name:       name,
		SourceRef:  sourcePath,
		MappingRef: mappingPath,
		RulesetRef: rulesetPath,
		Actions:    actions,
		QuietHours: quietHours,
	}

	return Resolved{
		Playbook:    pb,
		SourcePath:  sourcePath,
		MappingPath: mappingPath,
		RulesetPath: rulesetPath,
	}, nil
}

func (l *Loader) resolvePlaybookPath(identifier string) (string, error) {
	filename := identifier
	if !strings.HasSuffix(filename, ".yaml") {
		filename += ".yaml"
	}
	path := filepath.Join(l.playbooksDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", domainerrors.NewPlaybookNotFoundError(identifier)
	}
	return filepath.Abs(path)
}

// resolveRelated resolves value (a relative or absolute path named by
// a playbook field) first against the playbook's own directory, then
// against the repository root, matching the original loader's
// local-then-root fallback.
func (l *Loader) resolveRelated(playbookPath, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("playbook %q is missing a required path reference", filepath.Base(playbookPath))
	}
	if filepath.IsAbs(value) {
		return value, nil
	}

	localCandidate := filepath.Join(filepath.Dir(playbookPath), value)
	if _, err := os.Stat(localCandidate); err == nil {
		return filepath.Abs(localCandidate)
	}

	rootCandidate := filepath.Join(l.repoRoot, value)
	if _, err := os.Stat(rootCandidate); err == nil {
		return filepath.Abs(rootCandidate)
	}

	return filepath.Abs(localCandidate)
}

// parseQuietHours reads the playbook's own quiet_hours block, if
// present, falling back to the loader's configured default (derived
// from QUIET_HOURS_* environment variables) when a playbook is silent
// on quiet hours entirely.
func (l *Loader) parseQuietHours(raw *rawQuietHours) domain.QuietHoursWindow {
	if raw == nil || raw.Start == "" || raw.End == "" {
		return l.defaultQuietHours
	}
	timezone := raw.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	return domain.QuietHoursWindow{
		Start:    raw.Start,
		End:      raw.End,
		Timezone: timezone,
	}
}
