package detections

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dt-server/models"
)

const (
	sqliteListSinceQuery = `SELECT id, disease_label, severity, observed_at
		FROM disease_detections
		WHERE observed_at >= ?
		ORDER BY observed_at, id`
	sqliteInsertQuery = `INSERT INTO disease_detections (id, disease_label, severity, observed_at)
		VALUES (?, ?, ?, ?)`
)

// SQLiteDetectionDAO reads and writes detections through database/sql, used
// with the SQLite driver for local and single-node deployments.
type SQLiteDetectionDAO struct {
	db *sql.DB
}

func NewSQLiteDetectionDAO(db *sql.DB) *SQLiteDetectionDAO {
	return &SQLiteDetectionDAO{db: db}
}

func (dao *SQLiteDetectionDAO) ListSince(ctx context.Context, since time.Time) ([]models.DetectionRecord, error) {
	rows, err := dao.db.QueryContext(ctx, sqliteListSinceQuery, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	out := []models.DetectionRecord{}
	for rows.Next() {
		var (
			r               models.DetectionRecord
			label, severity sql.NullString
		)
		if err := rows.Scan(&r.ID, &label, &severity, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		r.DiseaseLabel = label.String
		r.Severity = models.Severity(severity.String)
		r.ObservedAt = r.ObservedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read detections: %w", err)
	}
	return out, nil
}

func (dao *SQLiteDetectionDAO) Insert(ctx context.Context, r models.DetectionRecord) error {
	label := sql.NullString{String: r.DiseaseLabel, Valid: r.DiseaseLabel != ""}
	severity := sql.NullString{String: string(r.Severity), Valid: r.Severity != ""}
	if _, err := dao.db.ExecContext(ctx, sqliteInsertQuery, r.ID, label, severity, r.ObservedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert detection %s: %w", r.ID, err)
	}
	return nil
}
