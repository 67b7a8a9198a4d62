// Package conformity evaluates derived trip metrics against a loaded
// rule set and assembles the report bundle. Evaluation is pure: the
// same rule set and metrics always produce the same verdicts, and a
// pending limit yields a pending verdict, never a pass or fail.
package conformity

import (
	"time"

	"github.com/pemsgate/pemsgate/internal/analysis"
)

// Result is the outcome of one criterion, section or trip.
type Result string

const (
	Pass    Result = "pass"
	Fail    Result = "fail"
	Pending Result = "pending"
)

// combine folds a child result into a running aggregate with
// fail > pending > pass precedence.
func combine(agg, child Result) Result {
	if agg == Fail || child == Fail {
		return Fail
	}
	if agg == Pending || child == Pending {
		return Pending
	}
	return Pass
}

// Verdict is one evaluated criterion row.
type Verdict struct {
	// Section and Name locate the criterion in the rule set; synthetic
	// dynamics rows use generated names like "urban_va95".
	Section string `json:"section"`
	Name    string `json:"name"`

	Clause      string `json:"clause,omitempty"`
	Description string `json:"description"`
	// Condition is the rendered comparison, e.g. "<= 100 ppm".
	Condition string `json:"condition"`

	// Measured is nil when the value was never read: pending limits and
	// failed accessors.
	Measured *float64 `json:"measured,omitempty"`
	Unit     string   `json:"unit,omitempty"`

	Result Result `json:"result"`
	// Detail explains pending verdicts (unset limit, missing input).
	Detail string `json:"detail,omitempty"`
}

// SectionReport aggregates one rule-set section.
type SectionReport struct {
	Key      string    `json:"key"`
	Title    string    `json:"title"`
	Status   Result    `json:"status"`
	Verdicts []Verdict `json:"verdicts"`
}

// ReportBundle is the full evaluation output for one trip.
type ReportBundle struct {
	TripID      string    `json:"tripId"`
	RuleSet     string    `json:"ruleSet"`
	RuleVersion string    `json:"ruleVersion"`
	GeneratedAt time.Time `json:"generatedAt"`

	Sections []SectionReport `json:"sections"`
	// Overall mirrors the final-conformity section; the gating sections
	// qualify the trip, they do not decide the emission outcome.
	Overall Result `json:"overall"`
	// PendingLimits lists "section.limit" paths still awaiting official
	// numbers.
	PendingLimits []string `json:"pendingLimits,omitempty"`

	Metrics *analysis.Metrics `json:"metrics"`
}

// Section returns a section report by key.
func (b *ReportBundle) Section(key string) (*SectionReport, bool) {
	for i := range b.Sections {
		if b.Sections[i].Key == key {
			return &b.Sections[i], true
		}
	}
	return nil, false
}

// Verdict returns one verdict row by section and name.
func (b *ReportBundle) Verdict(section, name string) (*Verdict, bool) {
	s, ok := b.Section(section)
	if !ok {
		return nil, false
	}
	for i := range s.Verdicts {
		if s.Verdicts[i].Name == name {
			return &s.Verdicts[i], true
		}
	}
	return nil, false
}
