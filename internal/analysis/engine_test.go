package analysis_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pemsgate/pemsgate/internal/analysis"
	"github.com/pemsgate/pemsgate/internal/ingest"
	"github.com/pemsgate/pemsgate/internal/ruleset"
	"github.com/pemsgate/pemsgate/internal/schema"
)

const testRuleDoc = `
name: Engine Test
sections:
  trip_composition:
    limits:
      urban_min_km: { kind: at_least, value: 4, unit: km }
policies:
  phases: { urban_max_kmh: 60, rural_max_kmh: 90 }
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
  maw: { low_speed_max_kmh: 45, high_speed_min_kmh: 80, window_distance_km: 5.0 }
  cold_start: { window_s: 300, extended_factor: 1.6, extended_below_c: 0, extended_above_c: 30 }
`

func testEngine(t *testing.T) *analysis.Engine {
	t.Helper()
	rules, err := ruleset.Load([]byte(testRuleDoc), nil, nil)
	require.NoError(t, err)
	eng, err := analysis.NewEngine(analysis.Config{Rules: rules, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return eng
}

// pemsSeries builds a normalized PEMS series through the ingestion
// mapper. Unlisted pollutant channels default to zero so the schema's
// required fields stay covered.
func pemsSeries(t *testing.T, time []float64, cols map[string][]float64) *ingest.NormalizedSeries {
	t.Helper()
	raw := &ingest.RawTable{Time: time, Columns: map[string][]float64{}}
	mapping := ingest.ColumnMapping{}
	for name, col := range cols {
		raw.Columns[name] = col
		mapping[name] = ingest.FieldMapping{SourceColumn: name}
	}
	for _, required := range []string{"nox_mg_s", "pn_1_s"} {
		if _, ok := cols[required]; !ok {
			raw.Columns[required] = make([]float64, len(time))
			mapping[required] = ingest.FieldMapping{SourceColumn: required}
		}
	}
	series, err := ingest.NewMapper(nil).Normalize(raw, schema.PEMS, mapping)
	require.NoError(t, err)
	return series
}

func gpsSeries(t *testing.T, time []float64, cols map[string][]float64) *ingest.NormalizedSeries {
	t.Helper()
	raw := &ingest.RawTable{Time: time, Columns: map[string][]float64{}}
	mapping := ingest.ColumnMapping{}
	for name, col := range cols {
		raw.Columns[name] = col
		mapping[name] = ingest.FieldMapping{SourceColumn: name}
	}
	for _, required := range []string{"lat", "lon"} {
		if _, ok := cols[required]; !ok {
			raw.Columns[required] = make([]float64, len(time))
			mapping[required] = ingest.FieldMapping{SourceColumn: required}
		}
	}
	series, err := ingest.NewMapper(nil).Normalize(raw, schema.GPS, mapping)
	require.NoError(t, err)
	return series
}

func axis(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNewEngine_RequiresRules(t *testing.T) {
	_, err := analysis.NewEngine(analysis.Config{})
	assert.ErrorIs(t, err, analysis.ErrNoRules)
}

func TestCompute_PhaseTotals(t *testing.T) {
	// 600 s at 36 km/h (urban), 600 s at 75 km/h (rural), 600 s at
	// 110 km/h (motorway).
	n := 1800
	time := axis(n)
	speed := make([]float64, n)
	for i := range speed {
		switch {
		case i < 600:
			speed[i] = 10
		case i < 1200:
			speed[i] = 75 / 3.6
		default:
			speed[i] = 110 / 3.6
		}
	}

	m, err := testEngine(t).Compute(analysis.Inputs{
		PEMS: pemsSeries(t, time, map[string][]float64{"veh_speed_m_s": speed}),
	})
	require.NoError(t, err)
	require.True(t, m.OK)

	urban := m.Phases[analysis.PhaseUrban]
	rural := m.Phases[analysis.PhaseRural]
	motorway := m.Phases[analysis.PhaseMotorway]

	assert.InDelta(t, 6.0, urban.DistanceKm, 0.05)
	assert.InDelta(t, 600, urban.DurationS, 1)
	assert.InDelta(t, 36, urban.AvgSpeedKmh, 0.5)

	assert.InDelta(t, 12.5, rural.DistanceKm, 0.05)
	assert.InDelta(t, 75, rural.AvgSpeedKmh, 0.5)

	assert.InDelta(t, 18.3, motorway.DistanceKm, 0.1)
	assert.True(t, urban.OK)
	assert.True(t, rural.OK)
	assert.True(t, motorway.OK)

	total := urban.DistanceKm + rural.DistanceKm + motorway.DistanceKm
	assert.InDelta(t, m.DistanceKm, total, 1e-9)
}

func TestCompute_EmissionFactors(t *testing.T) {
	// Constant 10 m/s and 1 mg/s NOx for 1000 s: 10 km, 1000 mg,
	// 100 mg/km. Ambient 20 C keeps the cold-start factor at 1.
	n := 1001
	time := axis(n)

	m, err := testEngine(t).Compute(analysis.Inputs{
		PEMS: pemsSeries(t, time, map[string][]float64{
			"veh_speed_m_s": constant(n, 10),
			"nox_mg_s":      constant(n, 1),
			"amb_temp_c":    constant(n, 20),
		}),
	})
	require.NoError(t, err)
	require.True(t, m.OK)

	assert.InDelta(t, 10.0, m.DistanceKm, 1e-9)
	assert.InDelta(t, 100.0, m.NOxMgKm, 1e-9)
	assert.False(t, m.ColdStartExtended)

	// 36 km/h is urban throughout.
	assert.InDelta(t, 100.0, m.Phases[analysis.PhaseUrban].NOxMgKm, 1e-9)
}

func TestCompute_ColdStartExtendedFactor(t *testing.T) {
	// At -5 C the extended factor 1.6 applies to the first 300 s:
	// 300*1.6 + 700 = 1180 mg over 10 km.
	n := 1001
	time := axis(n)

	m, err := testEngine(t).Compute(analysis.Inputs{
		PEMS: pemsSeries(t, time, map[string][]float64{
			"veh_speed_m_s": constant(n, 10),
			"nox_mg_s":      constant(n, 1),
			"amb_temp_c":    constant(n, -5),
		}),
	})
	require.NoError(t, err)
	assert.True(t, m.ColdStartExtended)
	assert.InDelta(t, 118.0, m.NOxMgKm, 1e-9)
}

func TestCompute_DegenerateInputs(t *testing.T) {
	eng := testEngine(t)

	t.Run("nil pems", func(t *testing.T) {
		m, err := eng.Compute(analysis.Inputs{})
		require.NoError(t, err)
		assert.False(t, m.OK)
		assert.NotEmpty(t, m.Notes)
	})

	t.Run("single sample", func(t *testing.T) {
		m, err := eng.Compute(analysis.Inputs{
			PEMS: pemsSeries(t, []float64{0}, map[string][]float64{"veh_speed_m_s": {5}}),
		})
		require.NoError(t, err)
		assert.False(t, m.OK)
	})

	t.Run("zero distance", func(t *testing.T) {
		m, err := eng.Compute(analysis.Inputs{
			PEMS: pemsSeries(t, axis(10), map[string][]float64{"veh_speed_m_s": constant(10, 0)}),
		})
		require.NoError(t, err)
		assert.False(t, m.OK)
		assert.InDelta(t, 9.0, m.DurationS, 1e-9)
	})

	t.Run("no speed source", func(t *testing.T) {
		m, err := eng.Compute(analysis.Inputs{
			PEMS: pemsSeries(t, axis(10), nil),
		})
		require.NoError(t, err)
		assert.False(t, m.OK)
	})
}

func TestCompute_GPSGapStatistics(t *testing.T) {
	// 1 Hz fixes with one 30 s hole.
	var gpsTime []float64
	for ts := 0.0; ts <= 10; ts++ {
		gpsTime = append(gpsTime, ts)
	}
	for ts := 40.0; ts <= 50; ts++ {
		gpsTime = append(gpsTime, ts)
	}
	gps := gpsSeries(t, gpsTime, map[string][]float64{
		"speed_m_s": constant(len(gpsTime), 10),
	})

	n := 51
	m, err := testEngine(t).Compute(analysis.Inputs{
		PEMS: pemsSeries(t, axis(n), map[string][]float64{"veh_speed_m_s": constant(n, 10)}),
		GPS:  gps,
	})
	require.NoError(t, err)

	assert.InDelta(t, 30.0, m.GPS.MaxGapS, 1e-9)
	assert.InDelta(t, 30.0, m.GPS.TotalGapS, 1e-9)
	assert.True(t, m.GPS.OK)
}

func TestCompute_MAWCoverage(t *testing.T) {
	// Constant 36 km/h for 3000 s (30 km): every window is low-band;
	// anchors in the last 5 km cannot complete their window.
	n := 3000
	m, err := testEngine(t).Compute(analysis.Inputs{
		PEMS: pemsSeries(t, axis(n), map[string][]float64{"veh_speed_m_s": constant(n, 10)}),
	})
	require.NoError(t, err)

	require.True(t, m.MAW.OK)
	assert.Greater(t, m.MAW.LowCoveragePct, 80.0)
	assert.Less(t, m.MAW.LowCoveragePct, 90.0)
	assert.Zero(t, m.MAW.HighCoveragePct)
}

func TestCompute_SpanChecks(t *testing.T) {
	m, err := testEngine(t).Compute(analysis.Inputs{
		Channels: map[string]analysis.Calibration{
			"co2": {ZeroPrePPM: 5, ZeroPostPPM: 45, SpanReferencePPM: 1000, TracePPM: []float64{500, 800, 1500, 2500}},
		},
		PNZeroPre:  1000,
		PNZeroPost: 4000,
	})
	require.NoError(t, err)

	co2 := m.Channels["co2"]
	assert.Equal(t, 40.0, co2.ZeroDriftPPM)
	require.True(t, co2.HasTrace)
	assert.InDelta(t, 50.0, co2.Coverage.CoveragePct, 1e-9)
	assert.InDelta(t, 25.0, co2.Coverage.BetweenBandPct, 1e-9)
	assert.Equal(t, 1, co2.Coverage.AboveTwoSpanCount)

	assert.True(t, m.SpanChecksOK)
	assert.InDelta(t, 50.0, m.SpanCoverageWorstPct, 1e-9)
	assert.Equal(t, 1, m.SpanAboveTwoSpanTotal)
	assert.Equal(t, 1000.0, m.PNZeroPre)
	assert.Equal(t, 4000.0, m.PNZeroPost)
}

func TestDemoTrip_CompliantProfile(t *testing.T) {
	in, err := analysis.DemoTrip()
	require.NoError(t, err)

	m, err := testEngine(t).Compute(in)
	require.NoError(t, err)
	require.True(t, m.OK)

	assert.Greater(t, m.DurationMin, 90.0)
	assert.Less(t, m.DurationMin, 120.0)

	for _, phase := range analysis.Phases() {
		pm := m.Phases[phase]
		assert.True(t, pm.OK, "phase %s", phase)
		assert.Greater(t, pm.DistanceKm, 16.0, "phase %s distance", phase)
		assert.GreaterOrEqual(t, pm.AccelEvents, 60, "phase %s accel events", phase)
		assert.Greater(t, pm.RPA, 0.0, "phase %s rpa", phase)
	}

	// The synthetic profile is calm enough to sit well inside the
	// dynamics ceiling and lively enough to clear the RPA floor.
	urban := m.Phases[analysis.PhaseUrban]
	assert.Less(t, urban.VAPos95, 0.136*urban.AvgSpeedKmh+14.44)
	assert.Greater(t, urban.RPA, -0.0016*urban.AvgSpeedKmh+0.1755)

	assert.True(t, m.GPS.OK)
	assert.Less(t, m.GPS.DistanceDiffPct, 1.0)
	assert.Less(t, m.GPS.MaxGapS, 2.0)

	assert.GreaterOrEqual(t, m.MAW.LowCoveragePct, 50.0)
	assert.GreaterOrEqual(t, m.MAW.HighCoveragePct, 50.0)

	assert.True(t, m.ElevationOK)
	assert.Less(t, m.ElevationDeltaM, 100.0)
	assert.Less(t, m.ElevationGainTripM100Km, 1200.0)

	assert.Greater(t, m.NOxMgKm, 0.0)
	assert.Greater(t, m.PN1Km, 0.0)
	assert.False(t, m.ColdStartExtended)
}
