// Package dao holds the storage contracts shared by the record sources and
// the trend report caches.
package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dt-server/models"
)

var (
	// ErrCacheMiss means no cached report exists for the key; it is not a failure.
	ErrCacheMiss = errors.New("trend report not cached")
	// ErrSourceUnavailable means the detection source is refusing calls, e.g. an open breaker.
	ErrSourceUnavailable = errors.New("detection source unavailable")
)

// DetectionDAO is a source of detection records.
type DetectionDAO interface {
	// ListSince returns records observed at or after since, oldest first.
	ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error)
	Insert(ctx context.Context, record models.DetectionRecord) error
}

// ReportKey identifies a cached trend report.
type ReportKey struct {
	// AsOf is a UTC date for reports of the current day, or a full UTC instant
	// for reports pinned to an explicit as-of time.
	AsOf         string
	LookbackDays int
	Locale       string
}

// NewReportKey keys a latest report by the UTC day of asOf, so every request
// made during that day shares it.
func NewReportKey(asOf time.Time, lookbackDays int, locale string) ReportKey {
	return ReportKey{AsOf: asOf.UTC().Format("2006-01-02"), LookbackDays: lookbackDays, Locale: locale}
}

// NewPinnedReportKey keys a report computed for exactly asOf.
func NewPinnedReportKey(asOf time.Time, lookbackDays int, locale string) ReportKey {
	return ReportKey{AsOf: asOf.UTC().Format(time.RFC3339Nano), LookbackDays: lookbackDays, Locale: locale}
}

func (k ReportKey) String() string {
	return fmt.Sprintf("%s_%d_%s", k.AsOf, k.LookbackDays, k.Locale)
}

// TrendReportDAO caches computed trend reports.
type TrendReportDAO interface {
	GetReport(ctx context.Context, key ReportKey) (*models.TrendReport, error)
	SetReport(ctx context.Context, key ReportKey, report *models.TrendReport) error
	InvalidateReports(ctx context.Context) error
}
