package models

import "time"

// TrendReport is the cached and served result of one prediction run.
type TrendReport struct {
	LookbackDays int             `json:"lookback_days"`
	Locale       string          `json:"locale"`
	AsOf         time.Time       `json:"as_of"`
	GeneratedAt  time.Time       `json:"generated_at"`
	RecordCount  int             `json:"record_count"`
	Predictions  []Prediction    `json:"predictions"`
	Forecast     []ForecastPoint `json:"forecast"`
}
