package units

import "sync"

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry with the units used by PEMS, GPS
// and ECU telemetry. It is built once and never mutated afterwards.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(defaultUnits(), defaultAliases())
	})
	return defaultRegistry
}

// defaultUnits lists every unit the ingestion layer accepts. Scale and
// Offset convert to the dimension's base unit: kg (mass), kg/s (mass
// flow), m3/s (volume flow), K (temperature), Pa (pressure), ppm
// (concentration), 1 (count), 1/s (count flow), 1/cm3 (count density),
// m (distance), s (time), m/s (speed), Hz (frequency), ratio
// (dimensionless).
func defaultUnits() []Unit {
	return []Unit{
		// Mass, base kg
		{Name: "kg", Dimension: Mass, Scale: 1},
		{Name: "g", Dimension: Mass, Scale: 1e-3},
		{Name: "mg", Dimension: Mass, Scale: 1e-6},
		{Name: "ug", Dimension: Mass, Scale: 1e-9},
		{Name: "t", Dimension: Mass, Scale: 1e3},

		// Mass flow, base kg/s
		{Name: "kg/s", Dimension: MassFlow, Scale: 1},
		{Name: "g/s", Dimension: MassFlow, Scale: 1e-3},
		{Name: "mg/s", Dimension: MassFlow, Scale: 1e-6},
		{Name: "ug/s", Dimension: MassFlow, Scale: 1e-9},
		{Name: "kg/h", Dimension: MassFlow, Scale: 1.0 / 3600.0},
		{Name: "g/h", Dimension: MassFlow, Scale: 1e-3 / 3600.0},
		{Name: "g/min", Dimension: MassFlow, Scale: 1e-3 / 60.0},

		// Volume flow, base m3/s
		{Name: "m3/s", Dimension: VolumeFlow, Scale: 1},
		{Name: "m3/h", Dimension: VolumeFlow, Scale: 1.0 / 3600.0},
		{Name: "l/s", Dimension: VolumeFlow, Scale: 1e-3},
		{Name: "l/min", Dimension: VolumeFlow, Scale: 1e-3 / 60.0},

		// Temperature, base K (affine)
		{Name: "K", Dimension: Temperature, Scale: 1},
		{Name: "degC", Dimension: Temperature, Scale: 1, Offset: 273.15},
		{Name: "degF", Dimension: Temperature, Scale: 5.0 / 9.0, Offset: 459.67 * 5.0 / 9.0},

		// Pressure, base Pa
		{Name: "Pa", Dimension: Pressure, Scale: 1},
		{Name: "kPa", Dimension: Pressure, Scale: 1e3},
		{Name: "hPa", Dimension: Pressure, Scale: 1e2},
		{Name: "bar", Dimension: Pressure, Scale: 1e5},
		{Name: "mbar", Dimension: Pressure, Scale: 1e2},
		{Name: "atm", Dimension: Pressure, Scale: 101325},

		// Concentration, base ppm
		{Name: "ppm", Dimension: Concentration, Scale: 1},
		{Name: "ppb", Dimension: Concentration, Scale: 1e-3},
		{Name: "vol%", Dimension: Concentration, Scale: 1e4},

		// Counts
		{Name: "1", Dimension: Count, Scale: 1},
		{Name: "1/s", Dimension: CountFlow, Scale: 1},
		{Name: "1/min", Dimension: CountFlow, Scale: 1.0 / 60.0},
		{Name: "1/cm3", Dimension: CountDensity, Scale: 1},
		{Name: "1/m3", Dimension: CountDensity, Scale: 1e-6},

		// Distance, base m
		{Name: "m", Dimension: Distance, Scale: 1},
		{Name: "km", Dimension: Distance, Scale: 1e3},
		{Name: "cm", Dimension: Distance, Scale: 1e-2},
		{Name: "mi", Dimension: Distance, Scale: 1609.344},

		// Time, base s
		{Name: "s", Dimension: Time, Scale: 1},
		{Name: "ms", Dimension: Time, Scale: 1e-3},
		{Name: "min", Dimension: Time, Scale: 60},
		{Name: "h", Dimension: Time, Scale: 3600},

		// Speed, base m/s
		{Name: "m/s", Dimension: Speed, Scale: 1},
		{Name: "km/h", Dimension: Speed, Scale: 1.0 / 3.6},
		{Name: "mph", Dimension: Speed, Scale: 0.44704},

		// Acceleration, base m/s2
		{Name: "m/s2", Dimension: Acceleration, Scale: 1},

		// Emission factors
		{Name: "mg/km", Dimension: MassPerDistance, Scale: 1},
		{Name: "g/km", Dimension: MassPerDistance, Scale: 1e3},
		{Name: "mg/m", Dimension: MassPerDistance, Scale: 1e3},
		{Name: "1/km", Dimension: CountPerDistance, Scale: 1},
		{Name: "1/m", Dimension: CountPerDistance, Scale: 1e3},

		// Dynamics scatter, base m2/s3
		{Name: "m2/s3", Dimension: SpecificPower, Scale: 1},

		// Frequency, base Hz
		{Name: "Hz", Dimension: Frequency, Scale: 1},
		{Name: "rpm", Dimension: Frequency, Scale: 1.0 / 60.0},

		// Dimensionless, base ratio
		{Name: "ratio", Dimension: Dimensionless, Scale: 1},
		{Name: "%", Dimension: Dimensionless, Scale: 1e-2},
		{Name: "deg", Dimension: Dimensionless, Scale: 1},
		{Name: "m/100km", Dimension: Dimensionless, Scale: 1e-5},
		{Name: "flag", Dimension: Dimensionless, Scale: 1},
	}
}

func defaultAliases() map[string]string {
	return map[string]string{
		"kilogram/second":  "kg/s",
		"gram/second":      "g/s",
		"milligram/second": "mg/s",
		"microgram/second": "ug/s",
		"ug/second":        "ug/s",
		"mg/second":        "mg/s",
		"g/second":         "g/s",
		"kg/second":        "kg/s",
		"celsius":          "degC",
		"kelvin":           "K",
		"fahrenheit":       "degF",
		"#/s":              "1/s",
		"#/cm3":            "1/cm3",
		"#/cm³":            "1/cm3",
		"1/cm³":            "1/cm3",
		"#/m3":             "1/m3",
		"count":            "1",
		"#":                "1",
		"m³/s":             "m3/s",
		"m³/h":             "m3/h",
		"percent":          "%",
		"kmh":              "km/h",
		"kph":              "km/h",
		"#/km":             "1/km",
		"m/s²":             "m/s2",
		"m²/s³":            "m2/s3",
	}
}
