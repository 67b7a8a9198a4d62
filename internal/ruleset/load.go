package ruleset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pemsgate/pemsgate/internal/units"
)

// fileLimit is the YAML shape of one limit entry.
type fileLimit struct {
	Description string         `yaml:"description"`
	Clause      string         `yaml:"clause"`
	Kind        ComparisonKind `yaml:"kind"`
	Value       LimitValue     `yaml:"value"`
	Low         LimitValue     `yaml:"low"`
	High        LimitValue     `yaml:"high"`
	Unit        string         `yaml:"unit"`
	Of          []string       `yaml:"of"`
}

type fileSection struct {
	Title  string                `yaml:"title"`
	Order  int                   `yaml:"order"`
	Limits map[string]*fileLimit `yaml:"limits"`
}

type fileDoc struct {
	Name     string                  `yaml:"name"`
	Version  string                  `yaml:"version"`
	Units    map[string]string       `yaml:"units"`
	Policies Policies                `yaml:"policies"`
	Sections map[string]*fileSection `yaml:"sections"`
}

// Load parses a rule file, applies overrides and validates the result
// against the unit registry. A nil registry uses units.Default().
func Load(data []byte, overrides Overrides, reg *units.Registry) (*RuleSet, error) {
	if reg == nil {
		reg = units.Default()
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRuleSpec, err)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections declared", ErrMalformedRuleSpec)
	}

	rs := &RuleSet{
		Name:     doc.Name,
		Version:  doc.Version,
		Units:    doc.Units,
		Policies: doc.Policies,
		Sections: make(map[string]*Section, len(doc.Sections)),
	}
	if rs.Units == nil {
		rs.Units = map[string]string{}
	}

	for key, fs := range doc.Sections {
		section := &Section{
			Key:    key,
			Title:  fs.Title,
			Order:  fs.Order,
			Limits: make(map[string]*Limit, len(fs.Limits)),
		}
		if section.Title == "" {
			section.Title = key
		}
		for name, fl := range fs.Limits {
			section.Limits[name] = &Limit{
				Description: fl.Description,
				Clause:      fl.Clause,
				Unit:        fl.Unit,
				Kind:        resolveKind(fl),
				Value:       fl.Value,
				Low:         fl.Low,
				High:        fl.High,
				Of:          fl.Of,
			}
		}
		rs.Sections[key] = section
	}

	if err := rs.applyOverrides(overrides); err != nil {
		return nil, err
	}
	if err := rs.validate(reg); err != nil {
		return nil, err
	}
	return rs, nil
}

// LoadFile reads and loads a rule file from disk.
func LoadFile(path string, overrides Overrides, reg *units.Registry) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rs, err := Load(data, overrides, reg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// resolveKind fills in the comparison kind when the file omits it: a
// logical entry names sub-criteria, a bare value defaults to at-most,
// everything else is a report-only row.
func resolveKind(fl *fileLimit) ComparisonKind {
	if fl.Kind != "" {
		return fl.Kind
	}
	if len(fl.Of) > 0 {
		return Logical
	}
	if !fl.Value.IsPending() {
		return AtMost
	}
	return Report
}
