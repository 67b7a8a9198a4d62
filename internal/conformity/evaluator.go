package conformity

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/analysis"
	"github.com/pemsgate/pemsgate/internal/ruleset"
)

// ErrNoRules is returned when the evaluator is built without a rule set.
var ErrNoRules = errors.New("conformity: no rule set configured")

// finalSection is the rule-set section whose status becomes the
// trip-level outcome.
const finalSection = "final_conformity"

// Config configures the evaluator.
type Config struct {
	Rules  *ruleset.RuleSet
	Logger zerolog.Logger
}

// Evaluator applies a rule set to metrics bundles. It is stateless
// apart from its configuration and safe for concurrent use.
type Evaluator struct {
	rules *ruleset.RuleSet
	log   zerolog.Logger
}

// NewEvaluator builds an evaluator.
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.Rules == nil {
		return nil, ErrNoRules
	}
	return &Evaluator{rules: cfg.Rules, log: cfg.Logger}, nil
}

// Evaluate judges every criterion of the rule set against the metrics
// bundle and assembles the report. It never returns an error: missing
// inputs and unset limits surface as pending verdicts so one bad
// channel cannot hide the rest of the report.
func (e *Evaluator) Evaluate(tripID string, m *analysis.Metrics) *ReportBundle {
	if m == nil {
		m = &analysis.Metrics{}
	}
	bundle := &ReportBundle{
		TripID:        tripID,
		RuleSet:       e.rules.Name,
		RuleVersion:   e.rules.Version,
		GeneratedAt:   time.Now().UTC(),
		PendingLimits: e.rules.PendingLimits(),
		Metrics:       m,
	}

	for _, key := range e.rules.SectionKeys() {
		section := e.rules.Sections[key]
		report := SectionReport{Key: key, Title: section.Title}

		// Logical rows combine sibling results, so everything else is
		// judged first.
		results := make(map[string]Result, len(section.Limits))
		var logicals []string
		for _, name := range section.LimitKeys() {
			l := section.Limits[name]
			if l.Kind == ruleset.Logical {
				logicals = append(logicals, name)
				continue
			}
			v := e.judge(key, name, l, m)
			results[name] = v.Result
			report.Verdicts = append(report.Verdicts, v)
		}
		if key == "dynamics" {
			for _, v := range e.dynamicsVerdicts(m) {
				results[v.Name] = v.Result
				report.Verdicts = append(report.Verdicts, v)
			}
		}
		for _, name := range logicals {
			l := section.Limits[name]
			v := Verdict{
				Section:     key,
				Name:        name,
				Clause:      l.Clause,
				Description: l.Description,
				Condition:   l.ConditionText(),
				Result:      Pass,
			}
			for _, ref := range l.Of {
				r, ok := results[ref]
				if !ok {
					r = Pending
					v.Detail = fmt.Sprintf("sub-criterion %q not evaluated", ref)
				}
				v.Result = combine(v.Result, r)
			}
			results[name] = v.Result
			report.Verdicts = append(report.Verdicts, v)
		}

		report.Status = Pass
		for _, v := range report.Verdicts {
			report.Status = combine(report.Status, v.Result)
		}
		bundle.Sections = append(bundle.Sections, report)
	}

	bundle.Overall = Pending
	if final, ok := bundle.Section(finalSection); ok {
		bundle.Overall = final.Status
	}

	e.log.Info().
		Str("trip_id", tripID).
		Str("overall", string(bundle.Overall)).
		Int("pending_limits", len(bundle.PendingLimits)).
		Msg("trip evaluated")
	return bundle
}

// judge evaluates one non-logical criterion. A pending limit short
// circuits before the measurement is read; a failing accessor yields a
// pending verdict with the reason in Detail.
func (e *Evaluator) judge(sectionKey, name string, l *ruleset.Limit, m *analysis.Metrics) Verdict {
	v := Verdict{
		Section:     sectionKey,
		Name:        name,
		Clause:      l.Clause,
		Description: l.Description,
		Condition:   l.ConditionText(),
		Unit:        l.Unit,
	}

	switch l.Kind {
	case ruleset.AtMost, ruleset.AtLeast:
		limit, configured := l.Value.Value()
		if !configured {
			v.Result = Pending
			v.Detail = "limit value pending"
			return v
		}
		measured, err := e.measure(sectionKey, name, m)
		if err != nil {
			v.Result = Pending
			v.Detail = err.Error()
			return v
		}
		v.Measured = &measured
		pass := measured <= limit
		if l.Kind == ruleset.AtLeast {
			pass = measured >= limit
		}
		v.Result = Fail
		if pass {
			v.Result = Pass
		}

	case ruleset.Range:
		low, okLow := l.Low.Value()
		high, okHigh := l.High.Value()
		if !okLow || !okHigh {
			v.Result = Pending
			v.Detail = "range bound pending"
			return v
		}
		measured, err := e.measure(sectionKey, name, m)
		if err != nil {
			v.Result = Pending
			v.Detail = err.Error()
			return v
		}
		v.Measured = &measured
		v.Result = Fail
		if measured >= low && measured <= high {
			v.Result = Pass
		}

	case ruleset.Report:
		if measured, err := e.measure(sectionKey, name, m); err == nil {
			v.Measured = &measured
		}
		v.Result = Pass
		v.Detail = "reported"
	}
	return v
}

// measure runs the criterion's accessor, converting panics and missing
// bindings into errors.
func (e *Evaluator) measure(section, name string, m *analysis.Metrics) (val float64, err error) {
	acc := measurementFor(section, name)
	if acc == nil {
		return 0, fmt.Errorf("no measurement mapped for %s.%s", section, name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("measurement for %s.%s panicked: %v", section, name, r)
		}
	}()
	return acc(m)
}

// dynamicsVerdicts judges each phase's va95 ceiling and RPA floor
// against the policy's piecewise-linear curves in average speed.
func (e *Evaluator) dynamicsVerdicts(m *analysis.Metrics) []Verdict {
	d := e.rules.Policies.Dynamics
	if d.VA95.BreakKmh == 0 && d.RPA.BreakKmh == 0 {
		return nil
	}

	var out []Verdict
	for _, p := range analysis.Phases() {
		pm, ok := m.Phases[p]
		va := Verdict{
			Section:     "dynamics",
			Name:        string(p) + "_va95",
			Clause:      "EU 2017/1151 Annex IIIA App.7a 3.1.1",
			Description: fmt.Sprintf("%s v*a 95th percentile", p),
			Unit:        "m2/s3",
		}
		rpa := Verdict{
			Section:     "dynamics",
			Name:        string(p) + "_rpa",
			Clause:      "EU 2017/1151 Annex IIIA App.7a 3.1.2",
			Description: fmt.Sprintf("%s relative positive acceleration", p),
			Unit:        "m/s2",
		}
		if !m.OK || !ok || !pm.OK {
			va.Result, va.Detail = Pending, "phase has no usable distance"
			rpa.Result, rpa.Detail = Pending, "phase has no usable distance"
			out = append(out, va, rpa)
			continue
		}

		vaLimit := d.VA95.Low.Slope*pm.AvgSpeedKmh + d.VA95.Low.Offset
		if pm.AvgSpeedKmh > d.VA95.BreakKmh {
			vaLimit = d.VA95.High.Slope*pm.AvgSpeedKmh + d.VA95.High.Offset
		}
		vaMeasured := pm.VAPos95
		va.Condition = fmt.Sprintf("<= %.3f m2/s3 at %.1f km/h", vaLimit, pm.AvgSpeedKmh)
		va.Measured = &vaMeasured
		va.Result = Fail
		if vaMeasured <= vaLimit {
			va.Result = Pass
		}

		rpaLimit := d.RPA.HighMin
		if pm.AvgSpeedKmh <= d.RPA.BreakKmh {
			rpaLimit = d.RPA.Low.Slope*pm.AvgSpeedKmh + d.RPA.Low.Offset
		}
		rpaMeasured := pm.RPA
		rpa.Condition = fmt.Sprintf(">= %.4f m/s2 at %.1f km/h", rpaLimit, pm.AvgSpeedKmh)
		rpa.Measured = &rpaMeasured
		rpa.Result = Fail
		if rpaMeasured >= rpaLimit {
			rpa.Result = Pass
		}

		out = append(out, va, rpa)
	}
	return out
}
