package util

import (
	"encoding/json"
	"fmt"
	"os"

	"dt-server/models"
)

// ReadDetectionsFromJSON loads a slice of detection records from JSON on disk.
func ReadDetectionsFromJSON(filePath string) ([]models.DetectionRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", filePath, err)
	}
	var records []models.DetectionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal detections: %w", err)
	}
	for i, r := range records {
		if !r.Severity.Valid() {
			return nil, fmt.Errorf("detection %q has unknown severity %q", r.ID, r.Severity)
		}
		records[i].ObservedAt = r.ObservedAt.UTC()
	}
	return records, nil
}

// ReadTrendReportFromJSON loads a TrendReport from JSON on disk.
func ReadTrendReportFromJSON(filePath string) (*models.TrendReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", filePath, err)
	}
	var report models.TrendReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal TrendReport: %w", err)
	}
	return &report, nil
}

// PrintTrendReportPartially prints the headline of a TrendReport.
func PrintTrendReportPartially(report *models.TrendReport) {
	fmt.Printf("As of: %s (lookback %d days, locale %s)\n", report.AsOf.Format("2006-01-02 15:04"), report.LookbackDays, report.Locale)
	fmt.Printf("Records: %d, predictions: %d, forecast points: %d\n", report.RecordCount, len(report.Predictions), len(report.Forecast))
	for _, p := range report.Predictions {
		fmt.Printf("  %-20s %-8s %-7s conf=%.2f change=%+.1f/wk\n", p.Disease, p.CurrentTrend, p.RiskLevel, p.Confidence, p.PredictedIncrease)
	}
}
