// Package transform cleans raw feature and survey tables into a canonical
// shape and reduces them to per-genre means.
package transform

import (
	"maps"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/musicdw/internal/config"
	"github.com/sells-group/musicdw/internal/model"
)

// Range is an inclusive valid interval for a numeric column.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// RoleSpec names the columns of one kind of raw table.
type RoleSpec struct {
	// LabelColumn holds the raw category and must be present.
	LabelColumn string
	// IdentifierColumns are dropped from the cleaned output.
	IdentifierColumns []string
	// NumericColumns restricts the numeric output. Empty means every column
	// that is neither the label nor an identifier.
	NumericColumns []string
}

// Rules is the read-only set of cleaning rules. Build it with NewRules,
// DefaultRules or RulesFromConfig.
type Rules struct {
	category string
	synonyms map[string]string
	ranges   map[string]Range
	roles    map[model.SchemaRole]RoleSpec
}

// NewRules copies its inputs so later changes by the caller have no effect.
// Synonym keys are normalized the same way labels are.
func NewRules(category string, synonyms map[string]string, ranges map[string]Range, roles map[model.SchemaRole]RoleSpec) Rules {
	r := Rules{
		category: category,
		synonyms: make(map[string]string, len(synonyms)),
		ranges:   maps.Clone(ranges),
		roles:    make(map[model.SchemaRole]RoleSpec, len(roles)),
	}
	if r.ranges == nil {
		r.ranges = map[string]Range{}
	}
	for k, v := range synonyms {
		r.synonyms[foldLabel(k)] = foldLabel(v)
	}
	for role, layout := range roles {
		layout.IdentifierColumns = slices.Clone(layout.IdentifierColumns)
		layout.NumericColumns = slices.Clone(layout.NumericColumns)
		r.roles[role] = layout
	}
	return r
}

// DefaultRules returns the rules for the music features dataset and the
// music and mental health survey.
func DefaultRules() Rules {
	return NewRules("genre",
		map[string]string{
			"hip hop":    "hip-hop",
			"hiphop":     "hip-hop",
			"hip-hop":    "hip-hop",
			"r&b":        "rnb",
			"rnb":        "rnb",
			"electronic": "edm",
			"edm":        "edm",
		},
		map[string]Range{
			"Age":           {Min: 0, Max: 120},
			"Hours per day": {Min: 0, Max: 24},
			"Anxiety":       {Min: 0, Max: 10},
			"Depression":    {Min: 0, Max: 10},
			"Insomnia":      {Min: 0, Max: 10},
			"OCD":           {Min: 0, Max: 10},
		},
		map[model.SchemaRole]RoleSpec{
			model.RoleFeature: {LabelColumn: "label", IdentifierColumns: []string{"filename"}},
			model.RoleSurvey: {
				LabelColumn:    "Fav genre",
				NumericColumns: []string{"Age", "Hours per day", "Anxiety", "Depression", "Insomnia", "OCD"},
			},
		},
	)
}

// RulesFromConfig builds Rules from the transform section of the config.
func RulesFromConfig(cfg config.TransformConfig) (Rules, error) {
	if strings.TrimSpace(cfg.CategoryColumn) == "" {
		return Rules{}, eris.New("transform: category_column is empty")
	}

	ranges := make(map[string]Range, len(cfg.Ranges))
	for _, rc := range cfg.Ranges {
		if rc.Column == "" {
			return Rules{}, eris.New("transform: range without column")
		}
		if rc.Min > rc.Max {
			return Rules{}, eris.Errorf("transform: range for %q has min %g > max %g", rc.Column, rc.Min, rc.Max)
		}
		ranges[rc.Column] = Range{Min: rc.Min, Max: rc.Max}
	}

	roles := map[model.SchemaRole]RoleSpec{}
	for role, rc := range map[model.SchemaRole]config.RoleConfig{
		model.RoleFeature: cfg.Feature,
		model.RoleSurvey:  cfg.Survey,
	} {
		if rc.LabelColumn == "" {
			return Rules{}, eris.Errorf("transform: %s label_column is empty", role)
		}
		roles[role] = RoleSpec{
			LabelColumn:       rc.LabelColumn,
			IdentifierColumns: rc.IdentifierColumns,
			NumericColumns:    rc.NumericColumns,
		}
	}

	return NewRules(cfg.CategoryColumn, cfg.Synonyms, ranges, roles), nil
}

// CategoryColumn is the name of the category column in cleaned and
// aggregated tables.
func (r Rules) CategoryColumn() string { return r.category }

// Role returns the column layout for role.
func (r Rules) Role(role model.SchemaRole) (RoleSpec, bool) {
	layout, ok := r.roles[role]
	return layout, ok
}

// Range returns the valid range declared for column, if any.
func (r Rules) Range(column string) (Range, bool) {
	rg, ok := r.ranges[column]
	return rg, ok
}

// NormalizeCategory folds a raw label to its canonical genre. It returns
// false when nothing is left after trimming.
func (r Rules) NormalizeCategory(raw string) (string, bool) {
	label := foldLabel(raw)
	if label == "" {
		return "", false
	}
	if canonical, ok := r.synonyms[label]; ok {
		return canonical, true
	}
	return label, true
}

func foldLabel(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	return cases.Lower(language.Und).String(s)
}
