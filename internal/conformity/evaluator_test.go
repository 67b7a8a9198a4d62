package conformity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pemsgate/pemsgate/internal/analysis"
	"github.com/pemsgate/pemsgate/internal/conformity"
	"github.com/pemsgate/pemsgate/internal/ruleset"
)

const evalRuleDoc = `
name: Eval Test
version: "1"
sections:
  trip_composition:
    title: Trip Composition
    order: 1
    limits:
      urban_min_km: { kind: at_least, value: 4, unit: km }
      trip_duration_min: { kind: range, low: 90, high: 120, unit: min }
  final_conformity:
    title: Final Conformity
    order: 2
    limits:
      nox_mg_km: { kind: at_most, value: TODO, unit: mg/km }
      pn_1_km: { kind: at_most, value: 6.0e11, unit: 1/km }
      overall: { kind: logical, of: [nox_mg_km, pn_1_km] }
`

func newEvaluator(t *testing.T, doc string, overrides ruleset.Overrides) *conformity.Evaluator {
	t.Helper()
	rules, err := ruleset.Load([]byte(doc), overrides, nil)
	require.NoError(t, err)
	ev, err := conformity.NewEvaluator(conformity.Config{Rules: rules, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return ev
}

func passingMetrics() *analysis.Metrics {
	return &analysis.Metrics{
		OK:          true,
		DistanceKm:  80,
		DurationMin: 95,
		AvgSpeedKmh: 50,
		Phases: map[analysis.Phase]analysis.PhaseMetrics{
			analysis.PhaseUrban:    {OK: true, DistanceKm: 12, AvgSpeedKmh: 30},
			analysis.PhaseRural:    {OK: true, DistanceKm: 30, AvgSpeedKmh: 75},
			analysis.PhaseMotorway: {OK: true, DistanceKm: 38, AvgSpeedKmh: 110},
		},
		NOxMgKm: 10,
		PN1Km:   1e11,
	}
}

func TestNewEvaluator_RequiresRules(t *testing.T) {
	_, err := conformity.NewEvaluator(conformity.Config{})
	assert.ErrorIs(t, err, conformity.ErrNoRules)
}

func TestEvaluate_PendingLimitIsNeverJudged(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	bundle := ev.Evaluate("trip-1", passingMetrics())

	nox, ok := bundle.Verdict("final_conformity", "nox_mg_km")
	require.True(t, ok)
	assert.Equal(t, conformity.Pending, nox.Result)
	assert.Nil(t, nox.Measured, "pending limit must not read the measurement")
	assert.Equal(t, "limit value pending", nox.Detail)

	assert.Contains(t, bundle.PendingLimits, "final_conformity.nox_mg_km")
	assert.Equal(t, conformity.Pending, bundle.Overall)
}

func TestEvaluate_LogicalAndWithPendingBranch(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	bundle := ev.Evaluate("trip-1", passingMetrics())

	// PN passes, NOx is pending: the AND must be pending, not a
	// vacuous pass.
	pn, _ := bundle.Verdict("final_conformity", "pn_1_km")
	assert.Equal(t, conformity.Pass, pn.Result)
	overall, _ := bundle.Verdict("final_conformity", "overall")
	assert.Equal(t, conformity.Pending, overall.Result)
}

func TestEvaluate_LogicalFailDominatesPending(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	m := passingMetrics()
	m.PN1Km = 7e11 // above the configured 6e11

	bundle := ev.Evaluate("trip-1", m)
	overall, _ := bundle.Verdict("final_conformity", "overall")
	assert.Equal(t, conformity.Fail, overall.Result)
	assert.Equal(t, conformity.Fail, bundle.Overall)
}

func TestEvaluate_OverrideResolvesPendingLimit(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, ruleset.Overrides{
		"final_conformity.limits.nox_mg_km": 60.0,
	})

	bundle := ev.Evaluate("trip-1", passingMetrics())

	nox, _ := bundle.Verdict("final_conformity", "nox_mg_km")
	require.Equal(t, conformity.Pass, nox.Result)
	require.NotNil(t, nox.Measured)
	assert.Equal(t, 10.0, *nox.Measured)

	assert.Equal(t, conformity.Pass, bundle.Overall)
	assert.Empty(t, bundle.PendingLimits)
}

func TestEvaluate_AtLeastAgainstUrbanDistance(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	bundle := ev.Evaluate("trip-1", passingMetrics())

	urban, ok := bundle.Verdict("trip_composition", "urban_min_km")
	require.True(t, ok)
	assert.Equal(t, conformity.Pass, urban.Result)
	require.NotNil(t, urban.Measured)
	assert.Equal(t, 12.0, *urban.Measured)
	assert.Equal(t, ">= 4 km", urban.Condition)
}

func TestEvaluate_RangeComparison(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	m := passingMetrics()
	m.DurationMin = 150

	bundle := ev.Evaluate("trip-1", m)
	duration, _ := bundle.Verdict("trip_composition", "trip_duration_min")
	assert.Equal(t, conformity.Fail, duration.Result)

	section, _ := bundle.Section("trip_composition")
	assert.Equal(t, conformity.Fail, section.Status)
}

func TestEvaluate_MissingInputsArePendingNotFail(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	bundle := ev.Evaluate("trip-1", &analysis.Metrics{})

	urban, _ := bundle.Verdict("trip_composition", "urban_min_km")
	assert.Equal(t, conformity.Pending, urban.Result)
	assert.NotEmpty(t, urban.Detail)

	section, _ := bundle.Section("trip_composition")
	assert.Equal(t, conformity.Pending, section.Status)
}

func TestEvaluate_NilMetrics(t *testing.T) {
	ev := newEvaluator(t, evalRuleDoc, nil)

	bundle := ev.Evaluate("trip-1", nil)
	assert.Equal(t, conformity.Pending, bundle.Overall)
	require.NotNil(t, bundle.Metrics)
}

func TestEvaluate_UnmappedCriterionIsPending(t *testing.T) {
	const doc = `
sections:
  span_zero:
    limits:
      mystery_check: { kind: at_most, value: 5, unit: ppm }
`
	ev := newEvaluator(t, doc, nil)

	bundle := ev.Evaluate("trip-1", passingMetrics())
	v, ok := bundle.Verdict("span_zero", "mystery_check")
	require.True(t, ok)
	assert.Equal(t, conformity.Pending, v.Result)
	assert.Contains(t, v.Detail, "no measurement mapped")
}

func TestEvaluate_DynamicsCurves(t *testing.T) {
	const doc = `
sections:
  dynamics:
    limits:
      min_accel_events: { kind: at_least, value: 60, unit: "1" }
policies:
  dynamics:
    va95:
      break_kmh: 74.6
      low: { slope: 0.136, offset: 14.44 }
      high: { slope: 0.0742, offset: 18.966 }
    rpa:
      break_kmh: 94.05
      low: { slope: -0.0016, offset: 0.1755 }
      high_min: 0.025
    accel_threshold_m_s2: 0.1
`
	ev := newEvaluator(t, doc, nil)

	m := passingMetrics()
	// Urban limit at 30 km/h: va95 <= 18.52, rpa >= 0.1275.
	setPhase := func(p analysis.Phase, va95, rpa float64, events int) {
		pm := m.Phases[p]
		pm.VAPos95, pm.RPA, pm.AccelEvents = va95, rpa, events
		m.Phases[p] = pm
	}
	setPhase(analysis.PhaseUrban, 20.0, 0.18, 120) // va95 over the ceiling
	setPhase(analysis.PhaseRural, 10.0, 0.09, 95)
	setPhase(analysis.PhaseMotorway, 12.0, 0.03, 80) // above break: floor 0.025

	bundle := ev.Evaluate("trip-1", m)

	urbanVA, ok := bundle.Verdict("dynamics", "urban_va95")
	require.True(t, ok)
	assert.Equal(t, conformity.Fail, urbanVA.Result)

	urbanRPA, _ := bundle.Verdict("dynamics", "urban_rpa")
	assert.Equal(t, conformity.Pass, urbanRPA.Result)

	ruralVA, _ := bundle.Verdict("dynamics", "rural_va95")
	assert.Equal(t, conformity.Pass, ruralVA.Result)

	motorwayRPA, _ := bundle.Verdict("dynamics", "motorway_rpa")
	assert.Equal(t, conformity.Pass, motorwayRPA.Result)

	events, _ := bundle.Verdict("dynamics", "min_accel_events")
	require.NotNil(t, events.Measured)
	assert.Equal(t, 80.0, *events.Measured)
	assert.Equal(t, conformity.Pass, events.Result)

	section, _ := bundle.Section("dynamics")
	assert.Equal(t, conformity.Fail, section.Status)
}

func TestEvaluate_DemoTripAgainstShippedRules(t *testing.T) {
	path := filepath.Join("..", "..", "configs", "eu7_ld.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("rule file not present")
	}

	// Interim final limits stand in for the still-pending official
	// numbers.
	rules, err := ruleset.LoadFile(path, ruleset.Overrides{
		"final_conformity.limits.nox_mg_km": 120.0,
		"final_conformity.limits.pn_1_km":   2.0e12,
	}, nil)
	require.NoError(t, err)

	eng, err := analysis.NewEngine(analysis.Config{Rules: rules, Logger: zerolog.Nop()})
	require.NoError(t, err)
	ev, err := conformity.NewEvaluator(conformity.Config{Rules: rules, Logger: zerolog.Nop()})
	require.NoError(t, err)

	in, err := analysis.DemoTrip()
	require.NoError(t, err)
	m, err := eng.Compute(in)
	require.NoError(t, err)

	bundle := ev.Evaluate("demo", m)

	for _, section := range bundle.Sections {
		assert.Equalf(t, conformity.Pass, section.Status, "section %s: %+v", section.Key, section.Verdicts)
	}
	assert.Equal(t, conformity.Pass, bundle.Overall)
	assert.Empty(t, bundle.PendingLimits)
	assert.Equal(t, "demo", bundle.TripID)
	assert.False(t, bundle.GeneratedAt.IsZero())
}
