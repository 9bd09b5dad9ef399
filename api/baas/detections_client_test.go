package baas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"dt-server/api"
	"dt-server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var since = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func TestDetectionsClient_ListSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, DETECTIONS_ENDPOINT, r.URL.Path)
		assert.Equal(t, "gte.2026-03-01T00:00:00Z", r.URL.Query().Get("created_at"))
		assert.Equal(t, "created_at.asc,id.asc", r.URL.Query().Get("order"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") != "0" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[
			{"id": "d1", "disease_name": "Leaf Blight", "severity": "high", "created_at": "2026-03-02T08:30:00+05:45"},
			{"id": "d2", "disease_name": null, "severity": null, "created_at": "2026-03-03T10:00:00Z"}
		]`))
	}))
	defer srv.Close()

	client := NewDetectionsClient(api.NewHTTPClient(srv.URL, time.Second), "anon-key")

	got, err := client.ListSince(context.Background(), since)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "Leaf Blight", got[0].DiseaseLabel)
	assert.Equal(t, models.SeverityHigh, got[0].Severity)
	assert.Equal(t, time.Date(2026, 3, 2, 2, 45, 0, 0, time.UTC), got[0].ObservedAt)
	assert.Equal(t, models.UnknownDisease, got[1].Disease())
	assert.Equal(t, models.Severity(""), got[1].Severity)
}

func TestDetectionsClient_ListSince_Pages(t *testing.T) {
	const total = 1500
	rows := make([]detectionRow, total)
	for i := range rows {
		name := "Leaf Blight"
		rows[i] = detectionRow{
			ID:          fmt.Sprintf("d%04d", i),
			DiseaseName: &name,
			CreatedAt:   since.Add(time.Duration(i) * time.Minute),
		}
	}

	tests := []struct {
		name        string
		maxRows     int
		wantOffsets []string
	}{
		{"server cap equals page size", 1000, []string{"0", "1000", "1500"}},
		{"server cap below page size", 600, []string{"0", "600", "1200", "1500"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var offsets []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				offsets = append(offsets, r.URL.Query().Get("offset"))
				offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
				require.NoError(t, err)
				limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
				require.NoError(t, err)

				end := min(offset+min(limit, tt.maxRows), total)
				page := []detectionRow{}
				if offset < total {
					page = rows[offset:end]
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(page)
			}))
			defer srv.Close()

			client := NewDetectionsClient(api.NewHTTPClient(srv.URL, time.Second), "anon-key")

			got, err := client.ListSince(context.Background(), since)
			require.NoError(t, err)

			require.Len(t, got, total)
			assert.Equal(t, "d0000", got[0].ID)
			assert.Equal(t, "d1499", got[total-1].ID)
			assert.Equal(t, since.Add((total-1)*time.Minute), got[total-1].ObservedAt)
			assert.Equal(t, tt.wantOffsets, offsets)
		})
	}
}

func TestDetectionsClient_ListSince_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewDetectionsClient(api.NewHTTPClient(srv.URL, time.Second), "bad")

	_, err := client.ListSince(context.Background(), since)
	assert.ErrorContains(t, err, "401")
}

func TestDetectionsClient_Insert(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &received)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewDetectionsClient(api.NewHTTPClient(srv.URL, time.Second), "anon-key")

	err := client.Insert(context.Background(), models.DetectionRecord{
		ID: "d9", DiseaseLabel: "Rust", ObservedAt: since,
	})
	require.NoError(t, err)

	assert.Equal(t, "d9", received["id"])
	assert.Equal(t, "Rust", received["disease_name"])
	assert.Nil(t, received["severity"])
	assert.Equal(t, "2026-03-01T00:00:00Z", received["created_at"])
}
