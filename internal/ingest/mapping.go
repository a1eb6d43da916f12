package ingest

import (
	"strings"

	"gopkg.in/yaml.v3"

	domainerrors "github.com/eloym/formasur/internal/domain/errors"
)

// ColumnConfig names the candidate source columns for one logical
// field, in priority order, plus whether at least one must be present.
type ColumnConfig struct {
	Sources  []string
	Required bool
}

// UnmarshalYAML accepts both the shorthand form (a bare column name,
// implicitly required) and the long form ({sources: [...], required}).
func (c *ColumnConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Sources = []string{value.Value}
		c.Required = true
		return nil
	}
	var long struct {
		Sources  []string `yaml:"sources"`
		Required bool     `yaml:"required"`
	}
	if err := value.Decode(&long); err != nil {
		return err
	}
	c.Sources = long.Sources
	c.Required = long.Required
	return nil
}

// MappingDocument is the parsed form of a column-mapping YAML document
// (see External Interfaces: mapping document).
type MappingDocument struct {
	SheetName any                       `yaml:"sheet_name"`
	Columns   map[string]ColumnConfig   `yaml:"columns"`
	Defaults  map[string]any            `yaml:"defaults"`
}

// ParseMapping decodes a mapping document from YAML bytes.
func ParseMapping(data []byte) (MappingDocument, error) {
	var doc MappingDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return MappingDocument{}, domainerrors.NewInputError("", "invalid mapping document", err)
	}
	return doc, nil
}

// Resolution is the outcome of resolving one logical field against a
// header set: either the winning source column, or a default value.
type Resolution struct {
	SourceColumn string
	HasSource    bool
	Default      any
	HasDefault   bool
}

// Mapper resolves a MappingDocument's fields against an observed header
// set (C2).
type Mapper struct {
	doc MappingDocument
}

// NewMapper constructs a Mapper from a parsed mapping document.
func NewMapper(doc MappingDocument) *Mapper {
	return &Mapper{doc: doc}
}

// TemplateContext supplies the substitutions available in default
// values ({workbook_label}, {workbook_stem}).
type TemplateContext struct {
	WorkbookLabel string
	WorkbookStem  string
}

// Resolve computes, for every configured field, which header column
// wins (first-present, stable order) or what default applies. It
// returns a MissingColumnsError if any required field has none of its
// candidate sources present in headerSet.
func (m *Mapper) Resolve(headerSet []string, tctx TemplateContext) (map[string]Resolution, error) {
	present := make(map[string]bool, len(headerSet))
	for _, h := range headerSet {
		present[h] = true
	}

	resolutions := make(map[string]Resolution, len(m.doc.Columns))
	var missingRequired []string

	for field, cfg := range m.doc.Columns {
		res := Resolution{}
		for _, source := range cfg.Sources {
			if present[source] {
				res.SourceColumn = source
				res.HasSource = true
				break
			}
		}
		if !res.HasSource {
			if cfg.Required {
				missingRequired = append(missingRequired, cfg.Sources...)
			}
			if def, ok := m.doc.Defaults[field]; ok {
				res.Default = substituteDefault(def, tctx)
				res.HasDefault = true
			}
		}
		resolutions[field] = res
	}

	if len(missingRequired) > 0 {
		sheet := ""
		if s, ok := m.doc.SheetName.(string); ok {
			sheet = s
		}
		return nil, domainerrors.NewMissingColumnsError(sheet, missingRequired)
	}
	return resolutions, nil
}

func substituteDefault(value any, tctx TemplateContext) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	replacer := strings.NewReplacer(
		"{workbook_label}", tctx.WorkbookLabel,
		"{workbook_stem}", tctx.WorkbookStem,
	)
	return replacer.Replace(s)
}
