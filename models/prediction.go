package models

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Rank orders risk tiers for sorting, high first.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// Escalate moves the tier one step up, saturating at high.
func (r RiskLevel) Escalate() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Prediction is the trend and risk estimate for a single disease.
type Prediction struct {
	Disease           string    `json:"disease"`
	CurrentTrend      Trend     `json:"current_trend"`
	RiskLevel         RiskLevel `json:"risk_level"`
	Confidence        float64   `json:"confidence"`
	PredictedIncrease float64   `json:"predicted_increase"`
	Reasoning         string    `json:"reasoning"`
}
