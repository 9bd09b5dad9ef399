package forecast

import (
	"sort"
	"time"

	"dt-server/models"
)

const (
	dateLayout = "2006-01-02"
	week       = 7 * 24 * time.Hour
)

// BucketByDay groups records by UTC calendar date, oldest day first. Unlabelled
// records count toward the day's total only.
func BucketByDay(records []models.DetectionRecord) []models.DailyBucket {
	if len(records) == 0 {
		return []models.DailyBucket{}
	}

	byDate := make(map[string]*models.DailyBucket)
	for _, r := range records {
		date := r.ObservedAt.UTC().Format(dateLayout)
		b, ok := byDate[date]
		if !ok {
			b = &models.DailyBucket{Date: date, CountsByDisease: make(map[string]int)}
			byDate[date] = b
		}
		b.TotalCount++
		if r.DiseaseLabel != "" {
			b.CountsByDisease[r.DiseaseLabel]++
		}
	}

	buckets := make([]models.DailyBucket, 0, len(byDate))
	for _, b := range byDate {
		buckets = append(buckets, *b)
	}
	// YYYY-MM-DD sorts lexically in date order.
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date < buckets[j].Date
	})
	return buckets
}

// BucketByWeek counts records in ceil(lookbackDays/7) consecutive 7-day windows,
// the newest ending at asOf, and returns the counts oldest window first. An empty
// disease counts every record; otherwise only records whose Disease() matches.
//
// Windows are half-open [start, end): a record stamped exactly at asOf falls in
// no window, so the weekly sum can be smaller than the number of records that
// BucketByDay and the eligibility count see.
func BucketByWeek(records []models.DetectionRecord, disease string, lookbackDays int, asOf time.Time) []int {
	if len(records) == 0 || lookbackDays <= 0 {
		return []int{}
	}

	weeks := (lookbackDays + 6) / 7
	counts := make([]int, weeks)
	for i := 0; i < weeks; i++ {
		end := asOf.Add(-time.Duration(i) * week)
		start := end.Add(-week)
		n := 0
		for _, r := range records {
			if disease != "" && r.Disease() != disease {
				continue
			}
			if !r.ObservedAt.Before(start) && r.ObservedAt.Before(end) {
				n++
			}
		}
		counts[weeks-1-i] = n
	}
	return counts
}
