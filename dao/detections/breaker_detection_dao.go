package detections

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dt-server/config"
	"dt-server/dao"
	"dt-server/models"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerDetectionDAO guards a detection source with a circuit breaker. Calls
// refused by an open breaker fail with dao.ErrSourceUnavailable.
type BreakerDetectionDAO struct {
	next    dao.DetectionDAO
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerDetectionDAO(name string, next dao.DetectionDAO, cfg config.BreakerConfig, logger *logrus.Logger) *BreakerDetectionDAO {
	log := logger.WithField("component", "BreakerDetectionDAO")
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Detection source breaker changed state")
		},
	}
	return &BreakerDetectionDAO{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerDetectionDAO) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.ListSince(ctx, since)
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return res.([]models.DetectionRecord), nil
}

func (b *BreakerDetectionDAO) Insert(ctx context.Context, r models.DetectionRecord) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Insert(ctx, r)
	})
	return b.translate(err)
}

func (b *BreakerDetectionDAO) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerDetectionDAO) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", dao.ErrSourceUnavailable, err)
	}
	return err
}
