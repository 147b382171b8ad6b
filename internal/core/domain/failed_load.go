package domain

import "time"

// FailedLoad records a load that exhausted its attempts.
type FailedLoad struct {
	ID       string    `json:"id"`
	Kind     JobKind   `json:"kind"`
	Table    string    `json:"table"`
	CityID   int64     `json:"city_id"`
	CityName string    `json:"city_name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error_msg"`
	FailedAt time.Time `json:"failed_at"`
}

// JobKind identifies what a load was fetching.
type JobKind string

const (
	JobForecast     JobKind = "forecast"
	JobLongForecast JobKind = "forecast_10day"
	JobHistory      JobKind = "history"
)
