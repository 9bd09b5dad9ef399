package detections

import (
	"context"
	"fmt"
	"time"

	"dt-server/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgListSinceQuery = `SELECT id, disease_label, severity, observed_at
		FROM disease_detections
		WHERE observed_at >= $1
		ORDER BY observed_at, id`
	pgInsertQuery = `INSERT INTO disease_detections (id, disease_label, severity, observed_at)
		VALUES ($1, $2, $3, $4)`
)

// PostgresDetectionDAO reads and writes detections in Postgres.
type PostgresDetectionDAO struct {
	pool *pgxpool.Pool
}

func NewPostgresDetectionDAO(pool *pgxpool.Pool) *PostgresDetectionDAO {
	return &PostgresDetectionDAO{pool: pool}
}

func (dao *PostgresDetectionDAO) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	rows, err := dao.pool.Query(ctx, pgListSinceQuery, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	out := []models.DetectionRecord{}
	for rows.Next() {
		var (
			r               models.DetectionRecord
			label, severity *string
		)
		if err := rows.Scan(&r.ID, &label, &severity, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		applyNullable(&r, label, severity)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}
	return out, nil
}

func (dao *PostgresDetectionDAO) Insert(ctx context.Context, r models.DetectionRecord) error {
	label, severity := nullable(r)
	if _, err := dao.pool.Exec(ctx, pgInsertQuery, r.ID, label, severity, r.ObservedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert detection %s: %w", r.ID, err)
	}
	return nil
}

func applyNullable(r *models.DetectionRecord, label, severity *string) {
	if label != nil {
		r.DiseaseLabel = *label
	}
	if severity != nil {
		r.Severity = models.Severity(*severity)
	}
	r.ObservedAt = r.ObservedAt.UTC()
}

func nullable(r models.DetectionRecord) (label, severity *string) {
	if r.DiseaseLabel != "" {
		label = &r.DiseaseLabel
	}
	if r.Severity != "" {
		s := string(r.Severity)
		severity = &s
	}
	return label, severity
}
