package conformity

import (
	"errors"
	"fmt"

	"github.com/pemsgate/pemsgate/internal/analysis"
)

// accessor reads one measured value out of the metrics bundle. An error
// means the input needed for the criterion is missing or degenerate;
// the evaluator turns that into a pending verdict, never a fail.
type accessor func(m *analysis.Metrics) (float64, error)

var errNoTripMetrics = errors.New("trip metrics unavailable")

// measurementFor binds a rule-set criterion to its metric. Criteria the
// table does not know evaluate as pending.
func measurementFor(section, name string) accessor {
	switch section + "." + name {
	case "span_zero.co2_zero_ppm":
		return channelDrift("co2", false)
	case "span_zero.co2_span_ppm":
		return channelDrift("co2", true)
	case "span_zero.co_zero_ppm":
		return channelDrift("co", false)
	case "span_zero.co_span_ppm":
		return channelDrift("co", true)
	case "span_zero.nox_zero_ppm":
		return channelDrift("nox", false)
	case "span_zero.nox_span_ppm":
		return channelDrift("nox", true)
	case "span_zero.pn_zero_pre":
		return pnZero(func(m *analysis.Metrics) float64 { return m.PNZeroPre })
	case "span_zero.pn_zero_post":
		return pnZero(func(m *analysis.Metrics) float64 { return m.PNZeroPost })

	case "span_coverage.coverage_pct":
		return spanStat(func(m *analysis.Metrics) float64 { return m.SpanCoverageWorstPct })
	case "span_coverage.between_band_pct":
		return spanStat(func(m *analysis.Metrics) float64 { return m.SpanBetweenWorstPct })
	case "span_coverage.above_two_span_count":
		return spanStat(func(m *analysis.Metrics) float64 { return float64(m.SpanAboveTwoSpanTotal) })

	case "trip_composition.urban_min_km":
		return phaseDistance(analysis.PhaseUrban)
	case "trip_composition.rural_min_km":
		return phaseDistance(analysis.PhaseRural)
	case "trip_composition.motorway_min_km":
		return phaseDistance(analysis.PhaseMotorway)
	case "trip_composition.trip_duration_min":
		return tripMetric(func(m *analysis.Metrics) float64 { return m.DurationMin })
	case "trip_composition.elevation_delta_m":
		return elevationMetric(func(m *analysis.Metrics) float64 { return m.ElevationDeltaM })
	case "trip_composition.elevation_gain_trip":
		return elevationMetric(func(m *analysis.Metrics) float64 { return m.ElevationGainTripM100Km })
	case "trip_composition.elevation_gain_urban":
		return elevationMetric(func(m *analysis.Metrics) float64 { return m.ElevationGainUrbanM100Km })

	case "gps_validity.max_single_gap_s":
		return gpsMetric(func(m *analysis.Metrics) float64 { return m.GPS.MaxGapS })
	case "gps_validity.total_gap_s":
		return gpsMetric(func(m *analysis.Metrics) float64 { return m.GPS.TotalGapS })
	case "gps_validity.distance_diff_pct":
		return gpsMetric(func(m *analysis.Metrics) float64 { return m.GPS.DistanceDiffPct })

	case "dynamics.min_accel_events":
		return minAccelEvents

	case "maw.low_speed_coverage_pct":
		return mawMetric(func(m *analysis.Metrics) float64 { return m.MAW.LowCoveragePct })
	case "maw.high_speed_coverage_pct":
		return mawMetric(func(m *analysis.Metrics) float64 { return m.MAW.HighCoveragePct })

	case "final_conformity.nox_mg_km":
		return tripMetric(func(m *analysis.Metrics) float64 { return m.NOxMgKm })
	case "final_conformity.pn_1_km":
		return tripMetric(func(m *analysis.Metrics) float64 { return m.PN1Km })
	case "final_conformity.co_mg_km":
		return tripMetric(func(m *analysis.Metrics) float64 { return m.COMgKm })
	}
	return nil
}

func tripMetric(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.OK {
			return 0, errNoTripMetrics
		}
		return get(m), nil
	}
}

func phaseDistance(p analysis.Phase) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.OK {
			return 0, errNoTripMetrics
		}
		return m.Phases[p].DistanceKm, nil
	}
}

func channelDrift(channel string, span bool) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		checks, ok := m.Channels[channel]
		if !ok {
			return 0, fmt.Errorf("no calibration for analyzer channel %q", channel)
		}
		if span {
			return checks.SpanDriftPPM, nil
		}
		return checks.ZeroDriftPPM, nil
	}
}

func pnZero(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.PNZeroOK {
			return 0, errors.New("no particle counter calibration")
		}
		return get(m), nil
	}
}

func spanStat(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.SpanChecksOK {
			return 0, errors.New("no analyzer concentration traces")
		}
		return get(m), nil
	}
}

func elevationMetric(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.ElevationOK {
			return 0, errors.New("no gps altitude track")
		}
		return get(m), nil
	}
}

func gpsMetric(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.GPS.OK {
			return 0, errors.New("gps validity statistics unavailable")
		}
		return get(m), nil
	}
}

func mawMetric(get func(*analysis.Metrics) float64) accessor {
	return func(m *analysis.Metrics) (float64, error) {
		if !m.MAW.OK {
			return 0, errors.New("no averaging windows computed")
		}
		return get(m), nil
	}
}

// minAccelEvents returns the weakest phase's acceleration event count.
func minAccelEvents(m *analysis.Metrics) (float64, error) {
	if !m.OK {
		return 0, errNoTripMetrics
	}
	min := -1
	for _, p := range analysis.Phases() {
		pm := m.Phases[p]
		if !pm.OK {
			continue
		}
		if min < 0 || pm.AccelEvents < min {
			min = pm.AccelEvents
		}
	}
	if min < 0 {
		return 0, errors.New("no phase has usable dynamics")
	}
	return float64(min), nil
}
