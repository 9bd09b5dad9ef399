package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dt-server/dao"
	"dt-server/forecast"
	"dt-server/logging"
	"dt-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAsOf = time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC)

type fakeDetections struct {
	mu       sync.Mutex
	records  []models.DetectionRecord
	err      error
	calls    int
	inserted []models.DetectionRecord
}

func (f *fakeDetections) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.DetectionRecord
	for _, r := range f.records {
		if !r.ObservedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDetections) Insert(ctx context.Context, r models.DetectionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, r)
	return nil
}

func (f *fakeDetections) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapCache struct {
	mu      sync.Mutex
	reports map[dao.ReportKey]*models.TrendReport
}

func newMapCache() *mapCache {
	return &mapCache{reports: make(map[dao.ReportKey]*models.TrendReport)}
}

func (c *mapCache) GetReport(ctx context.Context, key dao.ReportKey) (*models.TrendReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reports[key]
	if !ok {
		return nil, dao.ErrCacheMiss
	}
	return r, nil
}

func (c *mapCache) SetReport(ctx context.Context, key dao.ReportKey, report *models.TrendReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[key] = report
	return nil
}

func (c *mapCache) InvalidateReports(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = make(map[dao.ReportKey]*models.TrendReport)
	return nil
}

func (c *mapCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reports)
}

// risingBlight yields 1, 2, 4 and 6 Late Blight detections in the four weeks
// before testAsOf.
func risingBlight() []models.DetectionRecord {
	var out []models.DetectionRecord
	for k, c := range []int{1, 2, 4, 6} {
		start := testAsOf.Add(-time.Duration(4-k) * 7 * 24 * time.Hour)
		for j := 0; j < c; j++ {
			out = append(out, models.DetectionRecord{
				ID:           "blight",
				DiseaseLabel: "Late Blight",
				Severity:     models.SeverityMedium,
				ObservedAt:   start.Add(24*time.Hour + time.Duration(j)*time.Hour),
			})
		}
	}
	return out
}

func newTestService(t *testing.T, source dao.DetectionDAO, caches ...dao.TrendReportDAO) *TrendService {
	t.Helper()
	reasoner, err := forecast.NewReasoner()
	require.NoError(t, err)
	svc := NewTrendService(source, forecast.NewEstimator(forecast.DefaultThresholds(), reasoner), reasoner, logging.Discard(), caches...)
	svc.SetClock(func() time.Time { return testAsOf })
	return svc
}

func TestGetTrendReport_ComputesThenServesFromCache(t *testing.T) {
	source := &fakeDetections{records: risingBlight()}
	cache := newMapCache()
	svc := newTestService(t, source, cache)

	report, err := svc.GetTrendReport(context.Background(), 28, "en", testAsOf)
	require.NoError(t, err)
	assert.Equal(t, 28, report.LookbackDays)
	assert.Equal(t, "en", report.Locale)
	assert.Equal(t, 13, report.RecordCount)
	require.Len(t, report.Predictions, 1)
	assert.Equal(t, "Late Blight", report.Predictions[0].Disease)
	assert.Equal(t, models.TrendRising, report.Predictions[0].CurrentTrend)
	assert.Equal(t, models.RiskHigh, report.Predictions[0].RiskLevel)
	assert.NotEmpty(t, report.Predictions[0].Reasoning)
	assert.NotNil(t, report.Forecast)

	again, err := svc.GetTrendReport(context.Background(), 28, "en", testAsOf)
	require.NoError(t, err)
	assert.Same(t, report, again)
	assert.Equal(t, 1, source.listCalls())
}

func TestGetTrendReport_SameDayAsOfTimesAreCachedSeparately(t *testing.T) {
	morning := time.Date(2026, 3, 29, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 29, 23, 0, 0, 0, time.UTC)
	var records []models.DetectionRecord
	for i := 0; i < 5; i++ {
		records = append(records, models.DetectionRecord{
			ID:           fmt.Sprintf("rust-%d", i),
			DiseaseLabel: "Rust",
			Severity:     models.SeverityLow,
			ObservedAt:   time.Date(2026, 3, 29, 13, i, 0, 0, time.UTC),
		})
	}
	source := &fakeDetections{records: records}
	svc := newTestService(t, source, newMapCache())

	early, err := svc.GetTrendReport(context.Background(), 30, "en", morning)
	require.NoError(t, err)
	assert.Equal(t, 0, early.RecordCount)
	assert.Empty(t, early.Predictions)

	late, err := svc.GetTrendReport(context.Background(), 30, "en", evening)
	require.NoError(t, err)
	assert.Equal(t, evening, late.AsOf)
	assert.Equal(t, 5, late.RecordCount)
	require.Len(t, late.Predictions, 1)
	assert.Equal(t, "Rust", late.Predictions[0].Disease)
	assert.Equal(t, 2, source.listCalls())

	again, err := svc.GetTrendReport(context.Background(), 30, "en", morning)
	require.NoError(t, err)
	assert.Same(t, early, again)
	assert.Equal(t, 2, source.listCalls())
}

func TestGetTrendReport_CurrentReportSharedWithinDay(t *testing.T) {
	source := &fakeDetections{records: risingBlight()}
	svc := newTestService(t, source, newMapCache())

	first, err := svc.GetTrendReport(context.Background(), 28, "en", time.Time{})
	require.NoError(t, err)

	svc.SetClock(func() time.Time { return testAsOf.Add(3 * time.Hour) })
	second, err := svc.GetTrendReport(context.Background(), 28, "en", time.Time{})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, source.listCalls())

	svc.SetClock(func() time.Time { return testAsOf.Add(24 * time.Hour) })
	nextDay, err := svc.GetTrendReport(context.Background(), 28, "en", time.Time{})
	require.NoError(t, err)
	assert.NotSame(t, first, nextDay)
	assert.Equal(t, 2, source.listCalls())
}

func TestGetTrendReport_DefaultsAsOfToNow(t *testing.T) {
	svc := newTestService(t, &fakeDetections{records: risingBlight()})

	report, err := svc.GetTrendReport(context.Background(), 28, "ne", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, testAsOf, report.AsOf)
	assert.Equal(t, "ne", report.Locale)
}

func TestGetTrendReport_BackfillsNearerCache(t *testing.T) {
	near, far := newMapCache(), newMapCache()
	key := dao.NewPinnedReportKey(testAsOf, 7, "en")
	cached := &models.TrendReport{LookbackDays: 7, Locale: "en"}
	require.NoError(t, far.SetReport(context.Background(), key, cached))

	source := &fakeDetections{}
	svc := newTestService(t, source, near, far)

	report, err := svc.GetTrendReport(context.Background(), 7, "en", testAsOf)
	require.NoError(t, err)
	assert.Same(t, cached, report)
	assert.Equal(t, 0, source.listCalls())

	fromNear, err := near.GetReport(context.Background(), key)
	require.NoError(t, err)
	assert.Same(t, cached, fromNear)
}

func TestGetTrendReport_IgnoresRecordsAfterAsOf(t *testing.T) {
	records := append(risingBlight(), models.DetectionRecord{
		ID:           "future",
		DiseaseLabel: "Late Blight",
		ObservedAt:   testAsOf.Add(time.Hour),
	})
	svc := newTestService(t, &fakeDetections{records: records})

	report, err := svc.GetTrendReport(context.Background(), 28, "en", testAsOf)
	require.NoError(t, err)
	assert.Equal(t, 13, report.RecordCount)
}

func TestGetTrendReport_Validation(t *testing.T) {
	svc := newTestService(t, &fakeDetections{})

	tests := []struct {
		name     string
		lookback int
		locale   string
		wantErr  error
	}{
		{"zero lookback", 0, "en", ErrInvalidLookback},
		{"negative lookback", -7, "en", ErrInvalidLookback},
		{"lookback too long", MaxLookbackDays + 1, "en", ErrInvalidLookback},
		{"unknown locale", 30, "fr", ErrUnsupportedLocale},
		{"empty locale", 30, "", ErrUnsupportedLocale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetTrendReport(context.Background(), tt.lookback, tt.locale, testAsOf)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetTrendReport_SourceError(t *testing.T) {
	svc := newTestService(t, &fakeDetections{err: dao.ErrSourceUnavailable})

	_, err := svc.GetTrendReport(context.Background(), 30, "en", testAsOf)
	assert.ErrorIs(t, err, dao.ErrSourceUnavailable)
}

func TestGetTrendReport_NoRecords(t *testing.T) {
	svc := newTestService(t, &fakeDetections{})

	report, err := svc.GetTrendReport(context.Background(), 30, "en", testAsOf)
	require.NoError(t, err)
	assert.Equal(t, 0, report.RecordCount)
	assert.Empty(t, report.Predictions)
	assert.Empty(t, report.Forecast)
}

func TestRecordDetection(t *testing.T) {
	source := &fakeDetections{}
	cache := newMapCache()
	svc := newTestService(t, source, cache)

	_, err := svc.GetTrendReport(context.Background(), 30, "en", testAsOf)
	require.NoError(t, err)
	require.Equal(t, 1, cache.len())

	saved, err := svc.RecordDetection(context.Background(), models.DetectionRecord{
		DiseaseLabel: "Leaf Rust",
		Severity:     models.SeverityHigh,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, testAsOf, saved.ObservedAt)
	require.Len(t, source.inserted, 1)
	assert.Equal(t, saved, source.inserted[0])
	assert.Equal(t, 0, cache.len())
}

func TestRecordDetection_KeepsGivenID(t *testing.T) {
	source := &fakeDetections{}
	svc := newTestService(t, source)
	at := time.Date(2026, 3, 20, 8, 0, 0, 0, time.FixedZone("NPT", 5*3600+45*60))

	saved, err := svc.RecordDetection(context.Background(), models.DetectionRecord{ID: "abc", ObservedAt: at})
	require.NoError(t, err)
	assert.Equal(t, "abc", saved.ID)
	assert.Equal(t, time.UTC, saved.ObservedAt.Location())
	assert.True(t, saved.ObservedAt.Equal(at))
}

func TestRecordDetection_Errors(t *testing.T) {
	svc := newTestService(t, &fakeDetections{})
	_, err := svc.RecordDetection(context.Background(), models.DetectionRecord{Severity: "critical"})
	assert.ErrorIs(t, err, ErrInvalidDetection)

	insertErr := errors.New("insert failed")
	svc = newTestService(t, &fakeDetections{err: insertErr})
	_, err = svc.RecordDetection(context.Background(), models.DetectionRecord{DiseaseLabel: "Leaf Rust"})
	assert.ErrorIs(t, err, insertErr)
}
