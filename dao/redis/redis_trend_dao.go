package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dt-server/dao"
	"dt-server/db"
	"dt-server/models"

	"github.com/sirupsen/logrus"
)

// TREND_REPORT_KEY_FORMAT caches a report per asOf day, lookback and locale.
const TREND_REPORT_KEY_FORMAT = "trend_report_v1:%s"
const TREND_REPORT_KEY_PATTERN = "trend_report_v1:*"

// RedisTrendDAO caches trend reports as JSON in Redis.
type RedisTrendDAO struct {
	client db.RedisClient
	ttl    time.Duration
	log    *logrus.Entry
}

func NewRedisTrendDAO(client db.RedisClient, ttl time.Duration, logger *logrus.Logger) *RedisTrendDAO {
	return &RedisTrendDAO{
		client: client,
		ttl:    ttl,
		log:    logger.WithField("component", "RedisTrendDAO"),
	}
}

func (d *RedisTrendDAO) GetReport(ctx context.Context, key dao.ReportKey) (*models.TrendReport, error) {
	str, err := d.client.Get(ctx, fmt.Sprintf(TREND_REPORT_KEY_FORMAT, key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, dao.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get trend report from redis: %w", err)
	}
	var report models.TrendReport
	if err := json.Unmarshal([]byte(str), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trend report JSON: %w", err)
	}
	return &report, nil
}

func (d *RedisTrendDAO) SetReport(ctx context.Context, key dao.ReportKey, report *models.TrendReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal trend report %s: %w", key, err)
	}
	if err := d.client.Set(ctx, fmt.Sprintf(TREND_REPORT_KEY_FORMAT, key), string(data), d.ttl); err != nil {
		return fmt.Errorf("failed to set trend report in redis: %w", err)
	}
	return nil
}

// ListCachedReportKeys returns the key suffixes of every cached report.
func (d *RedisTrendDAO) ListCachedReportKeys(ctx context.Context) ([]string, error) {
	keys, err := d.client.Keys(ctx, TREND_REPORT_KEY_PATTERN)
	if err != nil {
		return nil, fmt.Errorf("failed to list trend report keys: %w", err)
	}
	prefix := fmt.Sprintf(TREND_REPORT_KEY_FORMAT, "")
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, prefix))
	}
	return out, nil
}

func (d *RedisTrendDAO) InvalidateReports(ctx context.Context) error {
	keys, err := d.client.Keys(ctx, TREND_REPORT_KEY_PATTERN)
	if err != nil {
		return fmt.Errorf("failed to list trend report keys: %w", err)
	}
	if err := d.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete trend report keys: %w", err)
	}
	d.log.WithField("count", len(keys)).Debug("Invalidated cached trend reports")
	return nil
}
