package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dt-server/dao"
	"dt-server/forecast"
	"dt-server/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const MaxLookbackDays = 365

var (
	ErrInvalidLookback   = errors.New("invalid lookback window")
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrInvalidDetection  = errors.New("invalid detection")
)

// TrendService is the caller of the forecasting core: it fetches the detection
// window, runs the estimator and caches the resulting reports.
type TrendService struct {
	detections dao.DetectionDAO
	caches     []dao.TrendReportDAO
	estimator  *forecast.Estimator
	reasoner   *forecast.Reasoner
	now        func() time.Time
	log        *logrus.Entry
}

// NewTrendService builds the service. Caches are consulted in order, so the
// cheapest one goes first.
func NewTrendService(
	detections dao.DetectionDAO,
	estimator *forecast.Estimator,
	reasoner *forecast.Reasoner,
	logger *logrus.Logger,
	caches ...dao.TrendReportDAO,
) *TrendService {
	return &TrendService{
		detections: detections,
		caches:     caches,
		estimator:  estimator,
		reasoner:   reasoner,
		now:        time.Now,
		log:        logger.WithField("component", "TrendService"),
	}
}

// SetClock replaces the clock used when no asOf is given.
func (s *TrendService) SetClock(now func() time.Time) {
	s.now = now
}

// GetTrendReport returns the report for the window ending at asOf, served from
// cache when possible. A zero asOf means now and shares the cached report of
// the current UTC day; an explicit asOf is cached for that instant only.
func (s *TrendService) GetTrendReport(ctx context.Context, lookbackDays int, locale string, asOf time.Time) (*models.TrendReport, error) {
	if err := s.validate(lookbackDays, locale); err != nil {
		return nil, err
	}
	var key dao.ReportKey
	if asOf.IsZero() {
		asOf = s.now()
		key = dao.NewReportKey(asOf, lookbackDays, locale)
	} else {
		key = dao.NewPinnedReportKey(asOf, lookbackDays, locale)
	}

	for i, cache := range s.caches {
		report, err := cache.GetReport(ctx, key)
		if err == nil {
			s.store(ctx, key, report, s.caches[:i])
			return report, nil
		}
		if !errors.Is(err, dao.ErrCacheMiss) {
			s.log.WithError(err).WithField("key", key.String()).Warn("Trend report cache lookup failed")
		}
	}

	return s.refresh(ctx, key, lookbackDays, locale, asOf)
}

// RefreshTrendReport recomputes the current report and overwrites the cached
// one for today in every cache.
func (s *TrendService) RefreshTrendReport(ctx context.Context, lookbackDays int, locale string) (*models.TrendReport, error) {
	if err := s.validate(lookbackDays, locale); err != nil {
		return nil, err
	}
	asOf := s.now()
	return s.refresh(ctx, dao.NewReportKey(asOf, lookbackDays, locale), lookbackDays, locale, asOf)
}

func (s *TrendService) refresh(ctx context.Context, key dao.ReportKey, lookbackDays int, locale string, asOf time.Time) (*models.TrendReport, error) {
	report, err := s.compute(ctx, lookbackDays, locale, asOf)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, report, s.caches)
	return report, nil
}

func (s *TrendService) compute(ctx context.Context, lookbackDays int, locale string, asOf time.Time) (*models.TrendReport, error) {
	since := asOf.Add(-time.Duration(lookbackDays) * 24 * time.Hour)
	fetched, err := s.detections.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load detections since %s: %w", since.Format(time.RFC3339), err)
	}

	// sources filter only the lower bound; drop anything newer than asOf
	records := make([]models.DetectionRecord, 0, len(fetched))
	for _, r := range fetched {
		if !r.ObservedAt.After(asOf) {
			records = append(records, r)
		}
	}

	result := s.estimator.Predict(records, lookbackDays, locale, asOf)
	s.log.WithFields(logrus.Fields{
		"lookback_days": lookbackDays,
		"locale":        locale,
		"records":       len(records),
		"predictions":   len(result.Predictions),
		"forecast":      len(result.Forecast),
	}).Debug("Computed trend report")

	return &models.TrendReport{
		LookbackDays: lookbackDays,
		Locale:       locale,
		AsOf:         asOf.UTC(),
		GeneratedAt:  s.now().UTC(),
		RecordCount:  len(records),
		Predictions:  result.Predictions,
		Forecast:     result.Forecast,
	}, nil
}

func (s *TrendService) store(ctx context.Context, key dao.ReportKey, report *models.TrendReport, caches []dao.TrendReportDAO) {
	for _, cache := range caches {
		if err := cache.SetReport(ctx, key, report); err != nil {
			s.log.WithError(err).WithField("key", key.String()).Warn("Failed to cache trend report")
		}
	}
}

// RecordDetection stores a new detection and drops cached reports it may affect.
// Missing IDs and timestamps are filled in.
func (s *TrendService) RecordDetection(ctx context.Context, record models.DetectionRecord) (models.DetectionRecord, error) {
	if !record.Severity.Valid() {
		return record, fmt.Errorf("%w: unknown severity %q", ErrInvalidDetection, record.Severity)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ObservedAt.IsZero() {
		record.ObservedAt = s.now()
	}
	record.ObservedAt = record.ObservedAt.UTC()

	if err := s.detections.Insert(ctx, record); err != nil {
		return record, err
	}
	s.log.WithFields(logrus.Fields{"id": record.ID, "disease": record.Disease()}).Info("Recorded detection")

	for _, cache := range s.caches {
		if err := cache.InvalidateReports(ctx); err != nil {
			s.log.WithError(err).Warn("Failed to invalidate cached trend reports")
		}
	}
	return record, nil
}

func (s *TrendService) validate(lookbackDays int, locale string) error {
	if lookbackDays < 1 || lookbackDays > MaxLookbackDays {
		return fmt.Errorf("%w: %d days (expected 1..%d)", ErrInvalidLookback, lookbackDays, MaxLookbackDays)
	}
	if !s.reasoner.Supports(locale) {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrUnsupportedLocale, locale, strings.Join(s.reasoner.Locales(), ", "))
	}
	return nil
}
