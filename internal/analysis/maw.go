package analysis

import "github.com/pemsgate/pemsgate/internal/ruleset"

// mawCoverage computes moving-averaging-window coverage per speed band.
// A window is anchored at every sample and extends forward until the
// cumulative distance grows by the policy window length; windows that
// run out of trip before reaching full length are incomplete. Each
// window is classified by its average speed: low band at or below the
// low bound, high band at or above the high bound, the rest uncounted.
// Coverage is the share of complete windows among the band's windows.
func mawCoverage(time, cumDist []float64, policy ruleset.MAWPolicy) MAWMetrics {
	n := len(time)
	if n < 2 || policy.WindowDistanceKm <= 0 {
		return MAWMetrics{}
	}
	windowM := policy.WindowDistanceKm * 1000

	var lowTotal, lowComplete, highTotal, highComplete, windows int
	end := 0
	for i := 0; i < n-1; i++ {
		if end < i {
			end = i
		}
		for end < n-1 && cumDist[end]-cumDist[i] < windowM {
			end++
		}
		complete := cumDist[end]-cumDist[i] >= windowM
		dist := cumDist[end] - cumDist[i]
		dur := time[end] - time[i]
		if dist <= 0 || dur <= 0 {
			continue
		}
		windows++
		avgKmh := dist / dur * 3.6
		switch {
		case avgKmh <= policy.LowSpeedMaxKmh:
			lowTotal++
			if complete {
				lowComplete++
			}
		case avgKmh >= policy.HighSpeedMinKmh:
			highTotal++
			if complete {
				highComplete++
			}
		}
	}

	m := MAWMetrics{Windows: windows, OK: windows > 0}
	if lowTotal > 0 {
		m.LowCoveragePct = 100 * float64(lowComplete) / float64(lowTotal)
	}
	if highTotal > 0 {
		m.HighCoveragePct = 100 * float64(highComplete) / float64(highTotal)
	}
	return m
}
