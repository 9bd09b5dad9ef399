// Package forecast turns raw disease detections into per-disease risk
// predictions and a short projection of the aggregate daily detection volume.
// Everything here is a pure function of its inputs; callers own fetching,
// caching and the clock.
package forecast

import (
	"math"
	"sort"
	"time"

	"dt-server/models"
)

// Report is the output of one Predict call.
type Report struct {
	Predictions []models.Prediction    `json:"predictions"`
	Forecast    []models.ForecastPoint `json:"forecast"`
}

// Estimator classifies disease trends and projects detection volume.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	thresholds Thresholds
	reasoner   *Reasoner
}

func NewEstimator(thresholds Thresholds, reasoner *Reasoner) *Estimator {
	return &Estimator{thresholds: thresholds, reasoner: reasoner}
}

// Predict builds the ranked predictions and the aggregate forecast for records
// observed in the lookbackDays window ending at asOf. Insufficient history is
// reported as empty collections, never as an error.
func (e *Estimator) Predict(records []models.DetectionRecord, lookbackDays int, locale string, asOf time.Time) Report {
	return Report{
		Predictions: e.predictDiseases(records, lookbackDays, locale, asOf),
		Forecast:    e.forecastTotals(records, asOf),
	}
}

type diseaseStats struct {
	total        int
	highSeverity int
}

func (e *Estimator) predictDiseases(records []models.DetectionRecord, lookbackDays int, locale string, asOf time.Time) []models.Prediction {
	// first-seen order keeps ranking ties deterministic
	var order []string
	stats := make(map[string]*diseaseStats)
	for _, r := range records {
		d := r.Disease()
		s, ok := stats[d]
		if !ok {
			s = &diseaseStats{}
			stats[d] = s
			order = append(order, d)
		}
		s.total++
		if r.Severity == models.SeverityHigh {
			s.highSeverity++
		}
	}

	predictions := make([]models.Prediction, 0, len(order))
	for _, disease := range order {
		s := stats[disease]
		if s.total < e.thresholds.MinDetections {
			continue
		}
		weekly := BucketByWeek(records, disease, lookbackDays, asOf)
		if len(weekly) < e.thresholds.MinWeeklyBuckets {
			continue
		}
		predictions = append(predictions, e.predictDisease(disease, weekly, *s, locale))
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].RiskLevel.Rank() < predictions[j].RiskLevel.Rank()
	})
	return predictions
}

func (e *Estimator) predictDisease(disease string, weekly []int, s diseaseStats, locale string) models.Prediction {
	t := e.thresholds
	fit := LinearRegression(toFloats(weekly))

	trend := models.TrendStable
	switch {
	case fit.Slope > t.TrendSlope:
		trend = models.TrendRising
	case fit.Slope < -t.TrendSlope:
		trend = models.TrendFalling
	}

	recent := 0
	for i := len(weekly) - t.RecentWeeks; i < len(weekly); i++ {
		if i >= 0 {
			recent += weekly[i]
		}
	}

	risk := models.RiskLow
	switch {
	case trend == models.TrendRising && recent > t.HighRecentCount:
		risk = models.RiskHigh
	case trend == models.TrendRising || recent > t.MediumRecentCount:
		risk = models.RiskMedium
	}
	if float64(s.highSeverity) > t.EscalationRatio*float64(s.total) {
		risk = risk.Escalate()
	}

	p := models.Prediction{
		Disease:           disease,
		CurrentTrend:      trend,
		RiskLevel:         risk,
		Confidence:        clamp(fit.R2+t.ConfidenceOffset, t.ConfidenceFloor, t.ConfidenceCeiling),
		PredictedIncrease: math.Round(fit.Slope*t.ProjectionWeeks*10) / 10,
	}
	if e.reasoner != nil {
		p.Reasoning = e.reasoner.Explain(locale, p, recent)
	}
	return p
}

func (e *Estimator) forecastTotals(records []models.DetectionRecord, asOf time.Time) []models.ForecastPoint {
	t := e.thresholds
	daily := BucketByDay(records)
	if len(daily) < t.MinForecastDays {
		return []models.ForecastPoint{}
	}
	if len(daily) > t.ForecastHistoryDays {
		daily = daily[len(daily)-t.ForecastHistoryDays:]
	}

	totals := make([]float64, len(daily))
	points := make([]models.ForecastPoint, 0, len(daily)+t.ForecastHorizonDays)
	for i, d := range daily {
		totals[i] = float64(d.TotalCount)
		points = append(points, models.ForecastPoint{
			Date:            d.Date,
			Total:           d.TotalCount,
			CountsByDisease: d.CountsByDisease,
		})
	}

	fit := LinearRegression(totals)
	n := len(daily)
	today := asOf.UTC()
	for i := 1; i <= t.ForecastHorizonDays; i++ {
		projected := int(math.Max(0, math.Round(fit.At(float64(n+i-1)))))
		points = append(points, models.ForecastPoint{
			Date:     today.AddDate(0, 0, i).Format(dateLayout),
			Forecast: &projected,
		})
	}
	return points
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
