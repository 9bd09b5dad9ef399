package memory

import (
	"context"
	"time"

	"dt-server/dao"
	"dt-server/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUTrendDAO keeps recently computed reports in process memory, in front of
// the shared Redis cache.
type LRUTrendDAO struct {
	cache *expirable.LRU[dao.ReportKey, *models.TrendReport]
}

func NewLRUTrendDAO(size int, ttl time.Duration) *LRUTrendDAO {
	return &LRUTrendDAO{cache: expirable.NewLRU[dao.ReportKey, *models.TrendReport](size, nil, ttl)}
}

func (d *LRUTrendDAO) GetReport(ctx context.Context, key dao.ReportKey) (*models.TrendReport, error) {
	report, ok := d.cache.Get(key)
	if !ok {
		return nil, dao.ErrCacheMiss
	}
	return report, nil
}

func (d *LRUTrendDAO) SetReport(ctx context.Context, key dao.ReportKey, report *models.TrendReport) error {
	d.cache.Add(key, report)
	return nil
}

func (d *LRUTrendDAO) InvalidateReports(ctx context.Context) error {
	d.cache.Purge()
	return nil
}

func (d *LRUTrendDAO) Len() int {
	return d.cache.Len()
}
