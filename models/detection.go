package models

import "time"

// UnknownDisease is the label reported for detections that carry no disease label.
const UnknownDisease = "Unknown"

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// DetectionRecord is one farmer-submitted disease observation.
type DetectionRecord struct {
	ID           string    `json:"id"`
	DiseaseLabel string    `json:"disease_label,omitempty"`
	Severity     Severity  `json:"severity,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Disease returns the record's label, or UnknownDisease when it has none.
func (d DetectionRecord) Disease() string {
	if d.DiseaseLabel == "" {
		return UnknownDisease
	}
	return d.DiseaseLabel
}

// Valid reports whether s is empty or one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case "", SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}
