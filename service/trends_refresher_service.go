package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentRefreshes = 4

// TrendsRefresherService periodically recomputes the reports for the
// configured lookback windows and locales so requests hit a warm cache.
type TrendsRefresherService struct {
	trends  *TrendService
	windows []int
	locales []string
	log     *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTrendsRefresherService(trends *TrendService, windows []int, locales []string, logger *logrus.Logger) *TrendsRefresherService {
	return &TrendsRefresherService{
		trends:  trends,
		windows: windows,
		locales: locales,
		log:     logger.WithField("component", "TrendsRefresherService"),
	}
}

// StartPeriodicJob launches the background loop at the given interval. It is a
// no-op if the job is already running.
func (tr *TrendsRefresherService) StartPeriodicJob(ctx context.Context, interval time.Duration) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.cancel != nil {
		return
	}
	ctx, tr.cancel = context.WithCancel(ctx)
	tr.done = make(chan struct{})
	go tr.startPeriodicJob(ctx, interval, tr.done)
}

// Stop cancels the background loop and waits for it to exit.
func (tr *TrendsRefresherService) Stop() {
	tr.mu.Lock()
	cancel, done := tr.cancel, tr.done
	tr.cancel, tr.done = nil, nil
	tr.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (tr *TrendsRefresherService) startPeriodicJob(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tr.log.Debug("Running periodic trends refresher job")
			if err := tr.RefreshAll(ctx); err != nil {
				tr.log.WithError(err).Warn("RefreshAll returned error")
			}
		}
	}
}

// RefreshAll recomputes today's report for every window and locale. The first
// failure cancels the remaining refreshes and is returned.
func (tr *TrendsRefresherService) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRefreshes)

	for _, window := range tr.windows {
		for _, locale := range tr.locales {
			g.Go(func() error {
				if _, err := tr.trends.RefreshTrendReport(gctx, window, locale); err != nil {
					return fmt.Errorf("refreshing %d days/%s: %w", window, locale, err)
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	tr.log.WithFields(logrus.Fields{
		"windows": len(tr.windows),
		"locales": len(tr.locales),
	}).Info("Trend reports refreshed")
	return nil
}
