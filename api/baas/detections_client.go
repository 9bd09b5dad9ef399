package baas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"dt-server/api"
	"dt-server/models"
)

const (
	DETECTIONS_ENDPOINT = "/rest/v1/disease_detections"

	// DETECTIONS_PAGE_SIZE matches the default max-rows of hosted PostgREST.
	DETECTIONS_PAGE_SIZE = 1000
)

// detectionRow is the row shape exposed by the hosted backend's REST API.
type detectionRow struct {
	ID          string    `json:"id"`
	DiseaseName *string   `json:"disease_name"`
	Severity    *string   `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r detectionRow) toModel() models.DetectionRecord {
	d := models.DetectionRecord{ID: r.ID, ObservedAt: r.CreatedAt.UTC()}
	if r.DiseaseName != nil {
		d.DiseaseLabel = *r.DiseaseName
	}
	if r.Severity != nil {
		d.Severity = models.Severity(*r.Severity)
	}
	return d
}

func fromModel(d models.DetectionRecord) detectionRow {
	row := detectionRow{ID: d.ID, CreatedAt: d.ObservedAt.UTC()}
	if d.DiseaseLabel != "" {
		row.DiseaseName = &d.DiseaseLabel
	}
	if d.Severity != "" {
		s := string(d.Severity)
		row.Severity = &s
	}
	return row
}

// DetectionsClient reads detections from the hosted backend's REST endpoint.
type DetectionsClient struct {
	*api.HTTPClient
	apiKey   string
	pageSize int
}

func NewDetectionsClient(httpClient *api.HTTPClient, apiKey string) *DetectionsClient {
	return &DetectionsClient{HTTPClient: httpClient, apiKey: apiKey, pageSize: DETECTIONS_PAGE_SIZE}
}

// ListSince fetches rows created at or after since, filtered server-side and
// read page by page. The backend may cap a page below the requested limit, so
// only an empty page ends the scan.
func (c *DetectionsClient) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	q := url.Values{}
	q.Set("select", "id,disease_name,severity,created_at")
	q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339))
	q.Set("order", "created_at.asc,id.asc")
	q.Set("limit", strconv.Itoa(c.pageSize))

	out := []models.DetectionRecord{}
	for {
		q.Set("offset", strconv.Itoa(len(out)))

		var rows []detectionRow
		if err := c.Request(ctx, "GET", DETECTIONS_ENDPOINT+"?"+q.Encode(), c.headers(), nil, &rows); err != nil {
			return nil, fmt.Errorf("failed to list detections at offset %d: %w", len(out), err)
		}
		if len(rows) == 0 {
			return out, nil
		}
		for _, r := range rows {
			out = append(out, r.toModel())
		}
	}
}

func (c *DetectionsClient) Insert(ctx context.Context, d models.DetectionRecord) error {
	headers := c.headers()
	headers["Prefer"] = "return=minimal"
	if err := c.Request(ctx, "POST", DETECTIONS_ENDPOINT, headers, fromModel(d), nil); err != nil {
		return fmt.Errorf("failed to insert detection %s: %w", d.ID, err)
	}
	return nil
}

func (c *DetectionsClient) headers() map[string]string {
	return map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + c.apiKey,
	}
}
