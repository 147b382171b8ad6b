package ingest

import (
	"github.com/vietddude/weatherload/internal/core/domain"
	"github.com/vietddude/weatherload/internal/loader"
)

// WeatherKeys identifies a row in both weather tables.
var WeatherKeys = loader.KeyColumnSpec{
	{Name: "city_id", Type: "int"},
	{Name: "datetime", Type: "timestamp"},
}

// Column layouts of the warehouse tables.
var (
	ForecastColumns = []string{
		"city_id", "datetime", "temperature", "pressure",
		"wind", "precipitation_prob", "sky", "humidity",
	}
	HistoryColumns = []string{
		"city_id", "datetime", "temperature", "pressure",
		"wind", "precipitation", "sky_state", "humidity",
	}
)

type rowKey struct {
	city int64
	at   int64
}

// ForecastDataset converts forecast points into a dataset. Points repeating
// a (city, time) pair are dropped; the first one wins.
func ForecastDataset(points []domain.ForecastPoint) *loader.Dataset {
	ds := loader.NewDataset(ForecastColumns...)
	seen := make(map[rowKey]bool, len(points))
	for _, p := range points {
		k := rowKey{p.CityID, p.Time.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true
		ds.Append(loader.Record{
			"city_id":            loader.Int(p.CityID),
			"datetime":           loader.Time(p.Time),
			"temperature":        loader.FloatPtr(p.Temperature),
			"pressure":           loader.FloatPtr(p.Pressure),
			"wind":               loader.FloatPtr(p.Wind),
			"precipitation_prob": loader.FloatPtr(p.PrecipitationProb),
			"sky":                loader.IntPtr(p.Sky),
			"humidity":           loader.FloatPtr(p.Humidity),
		})
	}
	return ds
}

// HistoryDataset converts observations into a dataset, dropping repeated
// (city, time) pairs like ForecastDataset.
func HistoryDataset(obs []domain.Observation) *loader.Dataset {
	ds := loader.NewDataset(HistoryColumns...)
	seen := make(map[rowKey]bool, len(obs))
	for _, o := range obs {
		k := rowKey{o.CityID, o.Time.UnixNano()}
		if seen[k] {
			continue
		}
		seen[k] = true
		ds.Append(loader.Record{
			"city_id":       loader.Int(o.CityID),
			"datetime":      loader.Time(o.Time),
			"temperature":   loader.FloatPtr(o.Temperature),
			"pressure":      loader.FloatPtr(o.Pressure),
			"wind":          loader.FloatPtr(o.Wind),
			"precipitation": loader.IntPtr(o.Precipitation),
			"sky_state":     loader.IntPtr(o.SkyState),
			"humidity":      loader.FloatPtr(o.Humidity),
		})
	}
	return ds
}
