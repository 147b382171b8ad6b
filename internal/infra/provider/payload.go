package provider

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// envelope is the part shared by every feature response.
type envelope struct {
	Response struct {
		Error *struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"response"`
}

type metricValue struct {
	Metric string `json:"metric"`
}

type forecastPayload struct {
	envelope
	HourlyForecast []struct {
		FCTTIME struct {
			Year string `json:"year"`
			Mon  string `json:"mon"`
			Mday string `json:"mday"`
			Hour string `json:"hour"`
			Min  string `json:"min"`
		} `json:"FCTTIME"`
		Temp      metricValue `json:"temp"`
		Wspd      metricValue `json:"wspd"`
		Humidity  string      `json:"humidity"`
		Pop       string      `json:"pop"`
		Condition string      `json:"condition"`
	} `json:"hourly_forecast"`
}

type historyPayload struct {
	envelope
	History struct {
		Observations []struct {
			Date struct {
				Hour string `json:"hour"`
				Min  string `json:"min"`
			} `json:"date"`
			Tempm     string `json:"tempm"`
			Hum       string `json:"hum"`
			Wspdm     string `json:"wspdm"`
			Pressurem string `json:"pressurem"`
			Rain      string `json:"rain"`
			Snow      string `json:"snow"`
			Conds     string `json:"conds"`
		} `json:"observations"`
	} `json:"history"`
}

// number parses a provider numeric string. The feed reports missing
// readings as "", "N/A" or a large negative sentinel such as -9999.
func number(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, "NA") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if v <= -999 {
		return nil, nil
	}
	return &v, nil
}

func scaled(s string, factor float64) (*float64, error) {
	v, err := number(s)
	if err != nil || v == nil {
		return nil, err
	}
	out := *v * factor
	return &out, nil
}

func atoi(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return n, nil
}

// wallClock builds the naive local timestamp the feed describes. Values are
// stored as timestamp without time zone, so UTC is used as the carrier.
func wallClock(year, month, day int, hour, minute string) (time.Time, error) {
	h, err := atoi("hour", hour)
	if err != nil {
		return time.Time{}, err
	}
	m, err := atoi("minute", minute)
	if err != nil {
		return time.Time{}, err
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || h < 0 || h > 23 || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid timestamp %04d-%02d-%02d %s:%s", year, month, day, hour, minute)
	}
	return time.Date(year, time.Month(month), day, h, m, 0, 0, time.UTC), nil
}
