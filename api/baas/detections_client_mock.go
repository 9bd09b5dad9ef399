package baas

import (
	"context"
	"sort"
	"sync"
	"time"

	"dt-server/models"
	"dt-server/util"
)

// DetectionsClientMock serves detections from a JSON fixture and keeps
// inserted records in memory.
type DetectionsClientMock struct {
	mu      sync.RWMutex
	records []models.DetectionRecord
}

// NewDetectionsClientMock loads the fixture at path.
func NewDetectionsClientMock(path string) (*DetectionsClientMock, error) {
	records, err := util.ReadDetectionsFromJSON(path)
	if err != nil {
		return nil, err
	}
	return &DetectionsClientMock{records: records}, nil
}

func (c *DetectionsClientMock) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []models.DetectionRecord{}
	for _, r := range c.records {
		if !r.ObservedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out, nil
}

func (c *DetectionsClientMock) Insert(ctx context.Context, d models.DetectionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, d)
	return nil
}
