package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vietddude/weatherload/internal/loader"
)

// WeatherRepo reads back what the loader wrote.
type WeatherRepo struct {
	db *DB
}

// NewWeatherRepo creates a new PostgreSQL weather repository.
func NewWeatherRepo(db *DB) *WeatherRepo {
	return &WeatherRepo{db: db}
}

// CitySummary describes the rows stored for one city.
type CitySummary struct {
	CityID int64     `db:"city_id"`
	Rows   int64     `db:"rows"`
	First  time.Time `db:"first"`
	Last   time.Time `db:"last"`
}

// LatestObservation returns the newest datetime stored for cityID. ok is
// false when the city has no rows.
func (r *WeatherRepo) LatestObservation(
	ctx context.Context,
	table loader.Identifier,
	cityID int64,
) (latest time.Time, ok bool, err error) {
	if err := table.Validate(); err != nil {
		return time.Time{}, false, err
	}
	query := fmt.Sprintf(`SELECT max(datetime) FROM %s WHERE city_id = $1`, tableIdent(table).Sanitize())

	var ts sql.NullTime
	if err := r.db.GetContext(ctx, &ts, query, cityID); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get latest observation: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return ts.Time, true, nil
}

// Summary returns per-city row counts and datetime bounds.
func (r *WeatherRepo) Summary(ctx context.Context, table loader.Identifier) ([]CitySummary, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT city_id, count(*) AS rows, min(datetime) AS first, max(datetime) AS last
		FROM %s
		GROUP BY city_id
		ORDER BY city_id
	`, tableIdent(table).Sanitize())

	var out []CitySummary
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", table, err)
	}
	return out, nil
}
