package redis

import (
	"context"
	"testing"
	"time"

	"dt-server/dao"
	"dt-server/db"
	"dt-server/logging"
	"dt-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC)

func sampleReport() *models.TrendReport {
	forecast := 4
	return &models.TrendReport{
		LookbackDays: 30,
		Locale:       "en",
		AsOf:         asOf,
		GeneratedAt:  asOf,
		RecordCount:  12,
		Predictions: []models.Prediction{
			{Disease: "Rust", CurrentTrend: models.TrendRising, RiskLevel: models.RiskHigh, Confidence: 0.9, PredictedIncrease: 2.2},
		},
		Forecast: []models.ForecastPoint{
			{Date: "2026-03-28", Total: 3, CountsByDisease: map[string]int{"Rust": 3}},
			{Date: "2026-03-30", Forecast: &forecast},
		},
	}
}

func TestRedisTrendDAO_SetAndGet(t *testing.T) {
	ctx := context.Background()
	client := db.NewMockRedisClient()
	d := NewRedisTrendDAO(client, time.Hour, logging.Discard())
	key := dao.NewReportKey(asOf, 30, "en")

	require.NoError(t, d.SetReport(ctx, key, sampleReport()))

	stored, err := client.Get(ctx, "trend_report_v1:2026-03-29_30_en")
	require.NoError(t, err)
	assert.Contains(t, stored, `"disease":"Rust"`)

	got, err := d.GetReport(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), got)
}

func TestRedisTrendDAO_Miss(t *testing.T) {
	d := NewRedisTrendDAO(db.NewMockRedisClient(), time.Hour, logging.Discard())

	_, err := d.GetReport(context.Background(), dao.NewReportKey(asOf, 60, "ne"))
	assert.ErrorIs(t, err, dao.ErrCacheMiss)
}

func TestRedisTrendDAO_Expiry(t *testing.T) {
	ctx := context.Background()
	now := asOf
	client := db.NewMockRedisClient()
	client.SetClock(func() time.Time { return now })
	d := NewRedisTrendDAO(client, time.Minute, logging.Discard())
	key := dao.NewReportKey(asOf, 30, "en")

	require.NoError(t, d.SetReport(ctx, key, sampleReport()))
	now = now.Add(time.Hour)

	_, err := d.GetReport(ctx, key)
	assert.ErrorIs(t, err, dao.ErrCacheMiss)
}

func TestRedisTrendDAO_ListAndInvalidate(t *testing.T) {
	ctx := context.Background()
	client := db.NewMockRedisClient()
	d := NewRedisTrendDAO(client, 0, logging.Discard())
	require.NoError(t, client.Set(ctx, "unrelated", "keep", 0))
	for _, lookback := range []int{30, 60} {
		require.NoError(t, d.SetReport(ctx, dao.NewReportKey(asOf, lookback, "en"), sampleReport()))
	}

	keys, err := d.ListCachedReportKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-29_30_en", "2026-03-29_60_en"}, keys)

	require.NoError(t, d.InvalidateReports(ctx))

	keys, err = d.ListCachedReportKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, err = client.Get(ctx, "unrelated")
	assert.NoError(t, err)
}
