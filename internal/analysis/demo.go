package analysis

import (
	"fmt"
	"math"

	"github.com/pemsgate/pemsgate/internal/ingest"
	"github.com/pemsgate/pemsgate/internal/schema"
)

// DemoTrip synthesizes a plausible compliant RDE trip at 1 Hz: about
// 20 km urban, 37 km rural and 50 km motorway over 95 minutes, with
// speed modulation that produces acceleration events in every phase.
// The raw tables carry deliberately non-SI source units (km/h, ug/s) so
// the trip also exercises the ingestion mapper.
func DemoTrip() (Inputs, error) {
	const (
		urbanEnd = 2400.0
		ruralEnd = 4200.0
		tripEnd  = 5700.0
	)
	n := int(tripEnd) + 1
	timeAxis := make([]float64, n)
	speedKmh := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i)
		timeAxis[i] = t
		var base, slow, mid, fast float64
		switch {
		case t < urbanEnd:
			base, slow, mid, fast = 30, 16, 6, 6
		case t < ruralEnd:
			base, slow, mid, fast = 73, 8, 4, 4
		default:
			base, slow, mid, fast = 116, 8, 4, 4
		}
		v := base + slow*math.Sin(t/30) + mid*math.Sin(t/7) + fast*math.Sin(t/3)
		if v < 0 {
			v = 0
		}
		speedKmh[i] = v
	}

	noxUgS := make([]float64, n)
	pn := make([]float64, n)
	coMgS := make([]float64, n)
	co2GS := make([]float64, n)
	ambTemp := make([]float64, n)
	for i := range timeAxis {
		load := speedKmh[i] / 100
		noxUgS[i] = 400 + 900*load
		pn[i] = 4e9 + 1.2e10*load
		coMgS[i] = 0.8 + 1.5*load
		co2GS[i] = 1.5 + 3.5*load
		ambTemp[i] = 21 + 1.5*math.Sin(timeAxis[i]/900)
	}

	lat := make([]float64, n)
	lon := make([]float64, n)
	alt := make([]float64, n)
	const metersPerDegLat = 111320.0
	latCur := 48.2
	for i := range timeAxis {
		if i > 0 {
			latCur += speedKmh[i-1] / 3.6 / metersPerDegLat
		}
		lat[i] = latCur
		lon[i] = 16.37
		alt[i] = 180 + 25*math.Sin(timeAxis[i]/1100)
	}

	mapper := ingest.NewMapper(nil)

	pems, err := mapper.Normalize(&ingest.RawTable{
		Time: timeAxis,
		Columns: map[string][]float64{
			"NOx_ug_s":   noxUgS,
			"PN_1_s":     pn,
			"CO_mg_s":    coMgS,
			"CO2_g_s":    co2GS,
			"Speed_km_h": speedKmh,
			"T_amb_C":    ambTemp,
		},
	}, schema.PEMS, ingest.ColumnMapping{
		"nox_mg_s":      {SourceColumn: "NOx_ug_s", SourceUnit: "ug/s"},
		"pn_1_s":        {SourceColumn: "PN_1_s"},
		"co_mg_s":       {SourceColumn: "CO_mg_s"},
		"co2_g_s":       {SourceColumn: "CO2_g_s"},
		"veh_speed_m_s": {SourceColumn: "Speed_km_h", SourceUnit: "km/h"},
		"amb_temp_c":    {SourceColumn: "T_amb_C"},
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("demo pems: %w", err)
	}

	gps, err := mapper.Normalize(&ingest.RawTable{
		Time: timeAxis,
		Columns: map[string][]float64{
			"Lat":        lat,
			"Lon":        lon,
			"Alt_m":      alt,
			"Speed_km_h": speedKmh,
		},
	}, schema.GPS, ingest.ColumnMapping{
		"lat":       {SourceColumn: "Lat"},
		"lon":       {SourceColumn: "Lon"},
		"alt_m":     {SourceColumn: "Alt_m"},
		"speed_m_s": {SourceColumn: "Speed_km_h", SourceUnit: "km/h"},
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("demo gps: %w", err)
	}

	ecu, err := mapper.Normalize(&ingest.RawTable{
		Time:    timeAxis,
		Columns: map[string][]float64{"VehSpeed": speedKmh},
	}, schema.ECU, ingest.ColumnMapping{
		"veh_speed_m_s": {SourceColumn: "VehSpeed", SourceUnit: "km/h"},
	})
	if err != nil {
		return Inputs{}, fmt.Errorf("demo ecu: %w", err)
	}

	trace := func(span float64) []float64 {
		out := make([]float64, 200)
		for i := range out {
			out[i] = span * 0.55 * (1 + 0.4*math.Sin(float64(i)/9))
		}
		return out
	}
	return Inputs{
		PEMS: pems,
		GPS:  gps,
		ECU:  ecu,
		Channels: map[string]Calibration{
			"co2": {ZeroPrePPM: 10, ZeroPostPPM: 42, SpanPrePPM: 158000, SpanPostPPM: 158900, SpanReferencePPM: 160000, TracePPM: trace(160000)},
			"co":  {ZeroPrePPM: 1, ZeroPostPPM: 8, SpanPrePPM: 4950, SpanPostPPM: 5030, SpanReferencePPM: 5000, TracePPM: trace(5000)},
			"nox": {ZeroPrePPM: 0.2, ZeroPostPPM: 1.1, SpanPrePPM: 495, SpanPostPPM: 497, SpanReferencePPM: 500, TracePPM: trace(500)},
		},
		PNZeroPre:  1200,
		PNZeroPost: 1900,
	}, nil
}
