package analysis

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/pemsgate/pemsgate/internal/ingest"
	"github.com/pemsgate/pemsgate/internal/ruleset"
)

// ErrNoRules is returned when the engine is built without a rule set.
var ErrNoRules = errors.New("analysis: no rule set configured")

// Config configures the metrics engine.
type Config struct {
	// Rules supplies the phase boundaries, dynamics thresholds and
	// window policies. Required.
	Rules  *ruleset.RuleSet
	Logger zerolog.Logger
}

// Engine derives trip metrics from normalized telemetry. It is
// stateless apart from its configuration and safe for concurrent use.
type Engine struct {
	rules *ruleset.RuleSet
	log   zerolog.Logger
}

// NewEngine builds a metrics engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Rules == nil {
		return nil, ErrNoRules
	}
	return &Engine{rules: cfg.Rules, log: cfg.Logger}, nil
}

// Inputs bundles one trip's telemetry and calibration records. PEMS is
// the master stream; GPS and ECU are optional and are aligned onto the
// PEMS time axis by linear interpolation.
type Inputs struct {
	PEMS *ingest.NormalizedSeries
	GPS  *ingest.NormalizedSeries
	ECU  *ingest.NormalizedSeries

	// Channels keys analyzer calibrations by channel name (co2, co, nox).
	Channels map[string]Calibration
	// Particle counter zero readings, 1/cm3.
	PNZeroPre  float64
	PNZeroPost float64
}

// Compute derives the full metrics bundle. Degenerate telemetry (empty,
// single sample, zero distance) yields a bundle with ok=false flags and
// diagnostic notes rather than an error; only a missing engine
// configuration is an error.
func (e *Engine) Compute(in Inputs) (*Metrics, error) {
	m := &Metrics{
		Phases:   make(map[Phase]PhaseMetrics, 3),
		Channels: make(map[string]ChannelChecks, len(in.Channels)),
	}
	for _, p := range Phases() {
		m.Phases[p] = PhaseMetrics{}
	}

	e.spanChecks(in, m)

	if in.PEMS == nil || in.PEMS.Len() == 0 {
		m.note("pems series is empty")
		return m, nil
	}
	axis := in.PEMS.Time
	if len(axis) < 2 {
		m.note("pems series has a single sample")
		return m, nil
	}

	speed, ok := e.selectSpeed(in, axis)
	if !ok {
		m.note("no vehicle speed source in pems, gps or ecu")
		return m, nil
	}

	cumDist := trapezoid(axis, speed) // meters
	totalM := cumDist[len(cumDist)-1]
	m.DistanceKm = totalM / 1000
	m.DurationS = axis[len(axis)-1] - axis[0]
	m.DurationMin = m.DurationS / 60
	if m.DurationS > 0 {
		m.AvgSpeedKmh = totalM / m.DurationS * 3.6
	}
	if totalM <= 0 {
		m.note("trip covers zero distance")
		return m, nil
	}
	m.OK = true

	masks := e.phaseMasks(speed)
	e.phaseTotals(axis, cumDist, masks, m)
	e.dynamics(axis, speed, cumDist, masks, m)
	e.emissions(in, axis, cumDist, masks, m)
	e.elevation(in, axis, masks[PhaseUrban], totalM, m)
	e.gpsValidity(in, axis, speed, m)
	m.MAW = mawCoverage(axis, cumDist, e.rules.Policies.MAW)

	e.log.Debug().
		Float64("distance_km", m.DistanceKm).
		Float64("duration_min", m.DurationMin).
		Float64("nox_mg_km", m.NOxMgKm).
		Msg("trip metrics computed")
	return m, nil
}

// selectSpeed picks the vehicle speed trace, preferring the PEMS speed
// pickup (already on the master axis), then GPS, then ECU.
func (e *Engine) selectSpeed(in Inputs, axis []float64) ([]float64, bool) {
	if col, ok := in.PEMS.Column("veh_speed_m_s"); ok {
		return col, true
	}
	if in.GPS != nil {
		if col, ok := in.GPS.Column("speed_m_s"); ok {
			return Resample(in.GPS.Time, col, axis), true
		}
	}
	if in.ECU != nil {
		if col, ok := in.ECU.Column("veh_speed_m_s"); ok {
			return Resample(in.ECU.Time, col, axis), true
		}
	}
	return nil, false
}

// phaseMasks classifies every sample by the rule file's speed bands.
func (e *Engine) phaseMasks(speed []float64) map[Phase][]bool {
	phases := e.rules.Policies.Phases
	masks := map[Phase][]bool{
		PhaseUrban:    make([]bool, len(speed)),
		PhaseRural:    make([]bool, len(speed)),
		PhaseMotorway: make([]bool, len(speed)),
	}
	for i, v := range speed {
		masks[phaseOf(v*3.6, phases)][i] = true
	}
	return masks
}

func phaseOf(kmh float64, p ruleset.PhasePolicy) Phase {
	switch {
	case kmh < p.UrbanMaxKmh:
		return PhaseUrban
	case kmh < p.RuralMaxKmh:
		return PhaseRural
	default:
		return PhaseMotorway
	}
}

// phaseTotals attributes each inter-sample interval to the phase of its
// left endpoint and accumulates distance and duration.
func (e *Engine) phaseTotals(axis, cumDist []float64, masks map[Phase][]bool, m *Metrics) {
	for i := 1; i < len(axis); i++ {
		dt := axis[i] - axis[i-1]
		dd := cumDist[i] - cumDist[i-1]
		for _, p := range Phases() {
			if masks[p][i-1] {
				pm := m.Phases[p]
				pm.DurationS += dt
				pm.DistanceKm += dd / 1000
				m.Phases[p] = pm
				break
			}
		}
	}
	for _, p := range Phases() {
		pm := m.Phases[p]
		if pm.DurationS > 0 {
			pm.AvgSpeedKmh = pm.DistanceKm * 1000 / pm.DurationS * 3.6
		}
		pm.OK = pm.DistanceKm > 0
		m.Phases[p] = pm
	}
}

func (e *Engine) dynamics(axis, speed, cumDist []float64, masks map[Phase][]bool, m *Metrics) {
	accel := acceleration(axis, speed)
	threshold := e.rules.Policies.Dynamics.AccelThresholdMs2
	for _, p := range Phases() {
		pm := m.Phases[p]
		rpa, va95, events := dynamicsFor(axis, speed, accel, masks[p], threshold, pm.DistanceKm*1000)
		pm.RPA = rpa
		pm.VAPos95 = va95
		pm.AccelEvents = events
		m.Phases[p] = pm
	}
}

// emissions integrates the pollutant rate columns, applies the
// cold-start correction to mass accrued inside the start window, and
// normalizes by distance per phase and for the whole trip.
func (e *Engine) emissions(in Inputs, axis, cumDist []float64, masks map[Phase][]bool, m *Metrics) {
	cs := e.rules.Policies.ColdStart
	factor := 1.0
	if temp, ok := in.PEMS.Column("amb_temp_c"); ok && len(temp) > 0 {
		mean := 0.0
		for _, v := range temp {
			mean += v
		}
		mean /= float64(len(temp))
		if cs.ExtendedFactor > 0 && (mean < cs.ExtendedBelowC || mean > cs.ExtendedAboveC) {
			factor = cs.ExtendedFactor
			m.ColdStartExtended = true
		}
	}

	type channel struct {
		field string
		trip  *float64
		phase func(pm *PhaseMetrics, perKm float64)
	}
	channels := []channel{
		{"nox_mg_s", &m.NOxMgKm, func(pm *PhaseMetrics, v float64) { pm.NOxMgKm = v }},
		{"pn_1_s", &m.PN1Km, func(pm *PhaseMetrics, v float64) { pm.PN1Km = v }},
		{"co_mg_s", &m.COMgKm, func(pm *PhaseMetrics, v float64) { pm.COMgKm = v }},
		{"co2_g_s", &m.CO2GKm, nil},
	}
	start := axis[0]
	for _, ch := range channels {
		rate, ok := in.PEMS.Column(ch.field)
		if !ok {
			continue
		}
		var tripMass float64
		perPhase := make(map[Phase]float64, 3)
		for i := 1; i < len(axis); i++ {
			dt := axis[i] - axis[i-1]
			if dt <= 0 {
				continue
			}
			mass := 0.5 * (rate[i] + rate[i-1]) * dt
			if axis[i]-start <= cs.WindowS {
				mass *= factor
			}
			tripMass += mass
			for _, p := range Phases() {
				if masks[p][i-1] {
					perPhase[p] += mass
					break
				}
			}
		}
		if m.DistanceKm > 0 {
			*ch.trip = tripMass / m.DistanceKm
		}
		if ch.phase != nil {
			for _, p := range Phases() {
				pm := m.Phases[p]
				if pm.DistanceKm > 0 {
					ch.phase(&pm, perPhase[p]/pm.DistanceKm)
				}
				m.Phases[p] = pm
			}
		}
	}
}

// elevation derives start/end delta and cumulative positive gain from
// the GPS altitude track resampled onto the master axis.
func (e *Engine) elevation(in Inputs, axis []float64, urban []bool, totalM float64, m *Metrics) {
	if in.GPS == nil {
		return
	}
	alt, ok := in.GPS.Column("alt_m")
	if !ok || len(in.GPS.Time) < 2 {
		return
	}
	track := Resample(in.GPS.Time, alt, axis)
	m.ElevationDeltaM = math.Abs(track[len(track)-1] - track[0])

	var gain, urbanGain float64
	for i := 1; i < len(track); i++ {
		d := track[i] - track[i-1]
		if d <= 0 {
			continue
		}
		gain += d
		if urban[i-1] {
			urbanGain += d
		}
	}
	if totalM > 0 {
		m.ElevationGainTripM100Km = gain / (totalM / 1000) * 100
	}
	var urbanKm float64
	if pm, ok := m.Phases[PhaseUrban]; ok {
		urbanKm = pm.DistanceKm
	}
	if urbanKm > 0 {
		m.ElevationGainUrbanM100Km = urbanGain / urbanKm * 100
	}
	m.ElevationOK = true
}

// gpsValidity computes gap statistics on the native GPS axis and checks
// the GPS-integrated distance against the ECU (or PEMS) reference.
func (e *Engine) gpsValidity(in Inputs, axis, speed []float64, m *Metrics) {
	if in.GPS == nil || len(in.GPS.Time) < 2 {
		return
	}
	gpsTime := in.GPS.Time
	dts := make([]float64, 0, len(gpsTime)-1)
	for i := 1; i < len(gpsTime); i++ {
		dts = append(dts, gpsTime[i]-gpsTime[i-1])
	}
	// A fix interval counts as a gap when it exceeds twice the nominal
	// cadence (at least 2 s for 1 Hz receivers).
	threshold := math.Max(2*median(dts), 2.0)
	for _, dt := range dts {
		if dt > m.GPS.MaxGapS {
			m.GPS.MaxGapS = dt
		}
		if dt > threshold {
			m.GPS.TotalGapS += dt
		}
	}

	m.GPS.DistanceKm = gpsDistanceKm(in.GPS)
	refCum := trapezoid(axis, speed)
	if in.ECU != nil {
		if ecuSpeed, ok := in.ECU.Column("veh_speed_m_s"); ok && len(in.ECU.Time) >= 2 {
			cum := trapezoid(in.ECU.Time, ecuSpeed)
			refCum = cum
		}
	}
	refKm := refCum[len(refCum)-1] / 1000
	m.GPS.ReferenceDistanceKm = refKm
	if refKm > 0 && m.GPS.DistanceKm > 0 {
		m.GPS.DistanceDiffPct = math.Abs(m.GPS.DistanceKm-refKm) / refKm * 100
		m.GPS.OK = true
	}
}

// gpsDistanceKm integrates GPS speed when present, falling back to
// great-circle distance between consecutive fixes.
func gpsDistanceKm(gps *ingest.NormalizedSeries) float64 {
	if speed, ok := gps.Column("speed_m_s"); ok {
		cum := trapezoid(gps.Time, speed)
		return cum[len(cum)-1] / 1000
	}
	lat, okLat := gps.Column("lat")
	lon, okLon := gps.Column("lon")
	if !okLat || !okLon {
		return 0
	}
	var total float64
	for i := 1; i < len(lat); i++ {
		total += haversineM(lat[i-1], lon[i-1], lat[i], lon[i])
	}
	return total / 1000
}

// haversineM is the great-circle distance between two fixes in meters.
func haversineM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(a))
}

// spanChecks folds analyzer calibrations into the bundle, tracking the
// worst coverage across channels with a trace.
func (e *Engine) spanChecks(in Inputs, m *Metrics) {
	m.PNZeroPre = in.PNZeroPre
	m.PNZeroPost = in.PNZeroPost
	m.PNZeroOK = in.PNZeroPre > 0 || in.PNZeroPost > 0

	worstCoverage := math.Inf(1)
	traced := false
	for name, cal := range in.Channels {
		checks := ChannelChecks{
			ZeroDriftPPM: cal.ZeroDrift(),
			SpanDriftPPM: cal.SpanDrift(),
		}
		if len(cal.TracePPM) > 0 && cal.SpanReferencePPM > 0 {
			checks.HasTrace = true
			checks.Coverage = spanCoverageOf(cal.TracePPM, cal.SpanReferencePPM)
			traced = true
			if checks.Coverage.CoveragePct < worstCoverage {
				worstCoverage = checks.Coverage.CoveragePct
			}
			if checks.Coverage.BetweenBandPct > m.SpanBetweenWorstPct {
				m.SpanBetweenWorstPct = checks.Coverage.BetweenBandPct
			}
			m.SpanAboveTwoSpanTotal += checks.Coverage.AboveTwoSpanCount
		}
		m.Channels[name] = checks
	}
	if traced {
		m.SpanCoverageWorstPct = worstCoverage
		m.SpanChecksOK = true
	}
}
