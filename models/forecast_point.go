package models

// ForecastPoint is one day of the aggregate detection series. Historical points
// carry the observed Total and a nil Forecast; projected points have Total 0.
type ForecastPoint struct {
	Date            string         `json:"date"`
	Total           int            `json:"total"`
	CountsByDisease map[string]int `json:"counts_by_disease,omitempty"`
	Forecast        *int           `json:"forecast,omitempty"`
}
