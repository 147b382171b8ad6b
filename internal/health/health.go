// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth is the result of one dependency check.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// CityHealth describes how current the stored history of a city is.
type CityHealth struct {
	City       string       `json:"city"`
	Status     SystemStatus `json:"status"`
	LatestDay  *time.Time   `json:"latest_day,omitempty"`
	LagDays    int          `json:"lag_days"`
	FailedRuns int64        `json:"failed_runs,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Components   []ComponentHealth `json:"components"`
	Cities       []CityHealth      `json:"cities,omitempty"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
