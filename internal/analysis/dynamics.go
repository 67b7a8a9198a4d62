package analysis

// acceleration differentiates a speed trace with central differences;
// the endpoints use one-sided differences. Zero-length intervals yield
// zero acceleration.
func acceleration(time, speed []float64) []float64 {
	n := len(time)
	accel := make([]float64, n)
	if n < 2 {
		return accel
	}
	accel[0] = slope(time[0], speed[0], time[1], speed[1])
	accel[n-1] = slope(time[n-2], speed[n-2], time[n-1], speed[n-1])
	for i := 1; i < n-1; i++ {
		accel[i] = slope(time[i-1], speed[i-1], time[i+1], speed[i+1])
	}
	return accel
}

func slope(t0, v0, t1, v1 float64) float64 {
	dt := t1 - t0
	if dt <= 0 {
		return 0
	}
	return (v1 - v0) / dt
}

// dynamicsFor computes RPA, the 95th-percentile v*a scatter and the
// acceleration event count over the samples of one phase. mask selects
// the phase's samples on the shared axis; distanceM is the phase
// distance the RPA integral is normalized by.
func dynamicsFor(time, speed, accel []float64, mask []bool, threshold, distanceM float64) (rpa, vaPos95 float64, events int) {
	var integral float64 // sum of v*a*dt over accelerating samples
	var scatter []float64
	inEvent := false
	for i := range time {
		if !mask[i] {
			inEvent = false
			continue
		}
		if accel[i] > threshold {
			if !inEvent {
				events++
				inEvent = true
			}
			scatter = append(scatter, speed[i]*accel[i])
			if i+1 < len(time) {
				dt := time[i+1] - time[i]
				if dt > 0 {
					integral += speed[i] * accel[i] * dt
				}
			}
		} else {
			inEvent = false
		}
	}
	if distanceM > 0 {
		rpa = integral / distanceM
	}
	vaPos95 = percentile(scatter, 95)
	return rpa, vaPos95, events
}
