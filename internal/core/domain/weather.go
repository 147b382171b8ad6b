package domain

import "time"

// ForecastPoint is one hourly forecast row. Nil fields were missing in the
// provider payload.
type ForecastPoint struct {
	CityID            int64
	Time              time.Time
	Temperature       *float64 // °C
	Pressure          *float64 // the forecast feed carries no pressure; always 0
	Wind              *float64 // m/s
	PrecipitationProb *float64 // 0..1
	Sky               *int
	Humidity          *float64 // %
}

// Observation is one historical observation row.
type Observation struct {
	CityID        int64
	Time          time.Time
	Temperature   *float64 // °C
	Pressure      *float64 // mmHg
	Wind          *float64 // m/s
	Precipitation *int     // 1 when rain or snow was reported
	SkyState      *int
	Humidity      *float64 // %
}
