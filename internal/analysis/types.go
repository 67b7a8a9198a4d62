// Package analysis derives trip metrics from normalized telemetry: phase
// totals, dynamics statistics, moving-averaging-window coverage,
// analyzer drift, GPS validity and distance-specific emission factors.
// The conformity evaluator reads the resulting Metrics bundle; this
// package never judges anything against limits.
package analysis

// Phase labels the speed-based trip segments.
type Phase string

const (
	PhaseUrban    Phase = "urban"
	PhaseRural    Phase = "rural"
	PhaseMotorway Phase = "motorway"
)

// Phases lists the segments in driving order.
func Phases() []Phase {
	return []Phase{PhaseUrban, PhaseRural, PhaseMotorway}
}

// PhaseMetrics holds the per-segment totals and dynamics statistics.
type PhaseMetrics struct {
	// OK is false when the phase has too little data to be meaningful
	// (no samples, zero distance).
	OK bool `json:"ok"`

	DistanceKm  float64 `json:"distanceKm"`
	DurationS   float64 `json:"durationS"`
	AvgSpeedKmh float64 `json:"avgSpeedKmh"`

	// RPA is the positive relative acceleration in m/s2.
	RPA float64 `json:"rpa"`
	// VAPos95 is the 95th percentile of the v*a scatter over samples
	// accelerating harder than the policy threshold, in m2/s3.
	VAPos95 float64 `json:"vaPos95"`
	// AccelEvents counts maximal runs of samples above the acceleration
	// threshold.
	AccelEvents int `json:"accelEvents"`

	NOxMgKm float64 `json:"noxMgKm"`
	PN1Km   float64 `json:"pn1Km"`
	COMgKm  float64 `json:"coMgKm"`
}

// GPSMetrics holds receiver-validity statistics.
type GPSMetrics struct {
	OK bool `json:"ok"`
	// MaxGapS is the longest interval between consecutive fixes.
	MaxGapS float64 `json:"maxGapS"`
	// TotalGapS sums every interval classified as a gap.
	TotalGapS float64 `json:"totalGapS"`
	// DistanceKm is the GPS-integrated trip distance.
	DistanceKm float64 `json:"distanceKm"`
	// ReferenceDistanceKm is the ECU (or PEMS) integrated distance the
	// GPS track is checked against.
	ReferenceDistanceKm float64 `json:"referenceDistanceKm"`
	// DistanceDiffPct is the absolute relative difference between the
	// two, in percent of the reference.
	DistanceDiffPct float64 `json:"distanceDiffPct"`
}

// MAWMetrics holds moving-averaging-window coverage statistics.
type MAWMetrics struct {
	OK bool `json:"ok"`
	// Windows is the number of anchored windows considered.
	Windows int `json:"windows"`
	// LowCoveragePct and HighCoveragePct are the shares of complete
	// windows among the windows falling in each speed band.
	LowCoveragePct  float64 `json:"lowCoveragePct"`
	HighCoveragePct float64 `json:"highCoveragePct"`
}

// SpanCoverage summarizes where an analyzer's in-test concentration
// trace sat relative to its span gas value.
type SpanCoverage struct {
	// CoveragePct is the share of samples at or below the span value.
	CoveragePct float64 `json:"coveragePct"`
	// BetweenBandPct is the share strictly above span and at most twice
	// the span value.
	BetweenBandPct float64 `json:"betweenBandPct"`
	// AboveTwoSpanCount counts samples above twice the span value.
	AboveTwoSpanCount int `json:"aboveTwoSpanCount"`
}

// ChannelChecks holds the pre/post calibration drift and span coverage
// of one gas analyzer channel.
type ChannelChecks struct {
	ZeroDriftPPM float64      `json:"zeroDriftPpm"`
	SpanDriftPPM float64      `json:"spanDriftPpm"`
	HasTrace     bool         `json:"hasTrace"`
	Coverage     SpanCoverage `json:"coverage"`
}

// Metrics is the full derived-metrics bundle for one trip.
type Metrics struct {
	// OK is false when the input telemetry was too degenerate to compute
	// trip totals; Notes then explains what was missing. Individual
	// sub-metrics carry their own OK flags.
	OK    bool     `json:"ok"`
	Notes []string `json:"notes,omitempty"`

	DistanceKm  float64 `json:"distanceKm"`
	DurationS   float64 `json:"durationS"`
	DurationMin float64 `json:"durationMin"`
	AvgSpeedKmh float64 `json:"avgSpeedKmh"`

	Phases map[Phase]PhaseMetrics `json:"phases"`

	// Elevation statistics from the GPS altitude track.
	ElevationOK              bool    `json:"elevationOk"`
	ElevationDeltaM          float64 `json:"elevationDeltaM"`
	ElevationGainTripM100Km  float64 `json:"elevationGainTripM100Km"`
	ElevationGainUrbanM100Km float64 `json:"elevationGainUrbanM100Km"`

	GPS GPSMetrics `json:"gps"`
	MAW MAWMetrics `json:"maw"`

	// Channels keys analyzer checks by channel name (co2, co, nox).
	Channels map[string]ChannelChecks `json:"channels"`
	// Worst-case span coverage across channels with a trace.
	SpanCoverageWorstPct  float64 `json:"spanCoverageWorstPct"`
	SpanBetweenWorstPct   float64 `json:"spanBetweenWorstPct"`
	SpanAboveTwoSpanTotal int     `json:"spanAboveTwoSpanTotal"`
	SpanChecksOK          bool    `json:"spanChecksOk"`

	// Particle counter zero readings, 1/cm3. PNZeroOK is false when no
	// counter calibration was supplied at all.
	PNZeroOK   bool    `json:"pnZeroOk"`
	PNZeroPre  float64 `json:"pnZeroPre"`
	PNZeroPost float64 `json:"pnZeroPost"`

	// Trip emission factors with the cold-start correction applied.
	NOxMgKm float64 `json:"noxMgKm"`
	PN1Km   float64 `json:"pn1Km"`
	COMgKm  float64 `json:"coMgKm"`
	CO2GKm  float64 `json:"co2GKm"`

	// ColdStartExtended is true when the ambient temperature put the
	// trip in the extended band and the correction factor was applied.
	ColdStartExtended bool `json:"coldStartExtended"`
}

// note appends a diagnostic to the bundle.
func (m *Metrics) note(s string) {
	m.Notes = append(m.Notes, s)
}
