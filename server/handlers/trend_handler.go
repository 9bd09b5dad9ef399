package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"dt-server/dao"
	"dt-server/models"
	services "dt-server/service"
	"dt-server/util"

	"github.com/sirupsen/logrus"
)

const (
	LOOKBACK_QUERY_ARG = "lookback"
	LOCALE_QUERY_ARG   = "locale"
	AS_OF_QUERY_ARG    = "as_of"

	DEFAULT_LOOKBACK_DAYS = 30
	DEFAULT_LOCALE        = "en"

	maxDetectionBodyBytes = 1 << 20
)

// TrendReporter is what the handler needs from the trend service.
type TrendReporter interface {
	GetTrendReport(ctx context.Context, lookbackDays int, locale string, asOf time.Time) (*models.TrendReport, error)
	RecordDetection(ctx context.Context, record models.DetectionRecord) (models.DetectionRecord, error)
}

type TrendHandler struct {
	trends TrendReporter
	log    *logrus.Entry
}

func NewTrendHandler(trends TrendReporter, logger *logrus.Logger) *TrendHandler {
	return &TrendHandler{trends: trends, log: logger.WithField("component", "TrendHandler")}
}

// GetPredictions handles GET /v1/trends/predictions
func (h *TrendHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report, h.log)
}

// GetForecastChart handles GET /v1/trends/forecast/chart
func (h *TrendHandler) GetForecastChart(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := util.RenderForecastChart(&buf, report); err != nil {
		h.log.WithError(err).Error("Error rendering forecast chart")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.WithError(err).Warn("Error writing forecast chart")
	}
}

// PostDetection handles POST /v1/detections
func (h *TrendHandler) PostDetection(w http.ResponseWriter, r *http.Request) {
	var record models.DetectionRecord
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDetectionBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&record); err != nil {
		http.Error(w, "Invalid detection body: "+err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.trends.RecordDetection(r.Context(), record)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved, h.log)
}

// Ping handles GET /ping
func (h *TrendHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "pong"}, h.log)
}

func (h *TrendHandler) loadReport(w http.ResponseWriter, r *http.Request) (*models.TrendReport, bool) {
	lookback, locale, asOf, err := parseArgs(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	report, err := h.trends.GetTrendReport(r.Context(), lookback, locale, asOf)
	if err != nil {
		h.writeServiceError(w, err)
		return nil, false
	}
	return report, true
}

func (h *TrendHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidLookback),
		errors.Is(err, services.ErrUnsupportedLocale),
		errors.Is(err, services.ErrInvalidDetection):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dao.ErrSourceUnavailable):
		h.log.WithError(err).Warn("Detection source unavailable")
		http.Error(w, "Detection source unavailable", http.StatusServiceUnavailable)
	default:
		h.log.WithError(err).Error("Error serving trend request")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parseArgs(vals url.Values) (lookback int, locale string, asOf time.Time, err error) {
	lookback = DEFAULT_LOOKBACK_DAYS
	if v := vals.Get(LOOKBACK_QUERY_ARG); v != "" {
		if lookback, err = strconv.Atoi(v); err != nil {
			return 0, "", time.Time{}, errors.New("invalid argument " + LOOKBACK_QUERY_ARG)
		}
	}

	locale = DEFAULT_LOCALE
	if v := vals.Get(LOCALE_QUERY_ARG); v != "" {
		locale = v
	}

	if v := vals.Get(AS_OF_QUERY_ARG); v != "" {
		if asOf, err = time.Parse(time.RFC3339, v); err != nil {
			return 0, "", time.Time{}, errors.New("invalid argument " + AS_OF_QUERY_ARG)
		}
	}
	return lookback, locale, asOf, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}, log *logrus.Entry) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Error encoding response")
	}
}
