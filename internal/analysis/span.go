package analysis

import "math"

// Calibration carries one analyzer channel's pre/post readings and, when
// available, the in-test concentration trace used for span coverage.
// All readings are ppm.
type Calibration struct {
	ZeroPrePPM  float64 `json:"zeroPrePpm"`
	ZeroPostPPM float64 `json:"zeroPostPpm"`
	SpanPrePPM  float64 `json:"spanPrePpm"`
	SpanPostPPM float64 `json:"spanPostPpm"`
	// SpanReferencePPM is the certified span gas concentration.
	SpanReferencePPM float64 `json:"spanReferencePpm"`
	// TracePPM is the channel's concentration trace during the test.
	TracePPM []float64 `json:"tracePpm,omitempty"`
}

// ZeroDrift is the absolute post-minus-pre zero reading change.
func (c Calibration) ZeroDrift() float64 {
	return math.Abs(c.ZeroPostPPM - c.ZeroPrePPM)
}

// SpanDrift is the absolute post-minus-pre span reading change.
func (c Calibration) SpanDrift() float64 {
	return math.Abs(c.SpanPostPPM - c.SpanPrePPM)
}

// spanCoverageOf classifies a concentration trace against the span gas
// value: at or below span, within (span, 2*span], and above 2*span.
func spanCoverageOf(trace []float64, spanPPM float64) SpanCoverage {
	if len(trace) == 0 || spanPPM <= 0 {
		return SpanCoverage{}
	}
	var within, between, above int
	for _, v := range trace {
		switch {
		case v <= spanPPM:
			within++
		case v <= 2*spanPPM:
			between++
		default:
			above++
		}
	}
	total := float64(len(trace))
	return SpanCoverage{
		CoveragePct:       100 * float64(within) / total,
		BetweenBandPct:    100 * float64(between) / total,
		AboveTwoSpanCount: above,
	}
}
