package models

// DailyBucket aggregates detections observed on one calendar day.
type DailyBucket struct {
	Date            string         `json:"date"`
	TotalCount      int            `json:"total_count"`
	CountsByDisease map[string]int `json:"counts_by_disease"`
}
