package forecast

// Thresholds holds the heuristics of the estimator. The defaults are empirical
// and meant to be tuned from configuration rather than treated as domain truth.
type Thresholds struct {
	// Slope in cases/week above which a disease is rising, and below whose
	// negation it is falling.
	TrendSlope float64 `mapstructure:"trend_slope"`

	MinDetections    int `mapstructure:"min_detections"`
	MinWeeklyBuckets int `mapstructure:"min_weekly_buckets"`

	// Weekly buckets summed into the recent count.
	RecentWeeks       int `mapstructure:"recent_weeks"`
	HighRecentCount   int `mapstructure:"high_recent_count"`
	MediumRecentCount int `mapstructure:"medium_recent_count"`

	// Share of high-severity detections above which risk is escalated one tier.
	EscalationRatio float64 `mapstructure:"escalation_ratio"`

	ConfidenceOffset  float64 `mapstructure:"confidence_offset"`
	ConfidenceFloor   float64 `mapstructure:"confidence_floor"`
	ConfidenceCeiling float64 `mapstructure:"confidence_ceiling"`

	ProjectionWeeks float64 `mapstructure:"projection_weeks"`

	ForecastHistoryDays int `mapstructure:"forecast_history_days"`
	MinForecastDays     int `mapstructure:"min_forecast_days"`
	ForecastHorizonDays int `mapstructure:"forecast_horizon_days"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendSlope:          0.5,
		MinDetections:       3,
		MinWeeklyBuckets:    2,
		RecentWeeks:         2,
		HighRecentCount:     5,
		MediumRecentCount:   3,
		EscalationRatio:     0.5,
		ConfidenceOffset:    0.3,
		ConfidenceFloor:     0.6,
		ConfidenceCeiling:   0.95,
		ProjectionWeeks:     2,
		ForecastHistoryDays: 14,
		MinForecastDays:     7,
		ForecastHorizonDays: 7,
	}
}
