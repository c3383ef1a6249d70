package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Report operations

// SaveReportIndex inserts or replaces a report entry.
func (s *Store) SaveReportIndex(ctx context.Context, r ReportRecord) error {
	query := `
		INSERT OR REPLACE INTO reports (id, path, created_at, size_bytes)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Path,
		r.CreatedAt.UTC().Format(timeLayout),
		r.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns the report with the given id.
func (s *Store) GetReport(ctx context.Context, id string) (*ReportRecord, error) {
	query := `SELECT id, path, created_at, size_bytes FROM reports WHERE id = ?`

	var r ReportRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&r.ID, &r.Path, &createdAt, &r.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %s: %w", id, err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at for report %s: %w", id, err)
	}
	return &r, nil
}

// ListReports returns reports newest first. limit <= 0 means no limit.
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportRecord, error) {
	query := `SELECT id, path, created_at, size_bytes FROM reports ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Path, &createdAt, &r.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for report %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Error operations

// SaveError stores a tracked error and returns its row id.
func (s *Store) SaveError(ctx context.Context, e ErrorRecord) (int64, error) {
	query := `
		INSERT INTO errors (message, severity, created_at, data)
		VALUES (?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		e.Message,
		e.Severity,
		e.CreatedAt.UTC().Format(timeLayout),
		e.Data,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save error: %w", err)
	}
	return res.LastInsertId()
}

// ListErrors returns stored errors newest first. limit <= 0 means no limit.
func (s *Store) ListErrors(ctx context.Context, limit int) ([]ErrorRecord, error) {
	query := `SELECT id, message, severity, created_at, COALESCE(data, '') FROM errors ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list errors: %w", err)
	}
	defer rows.Close()

	var out []ErrorRecord
	for rows.Next() {
		var e ErrorRecord
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Message, &e.Severity, &createdAt, &e.Data); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for error %d: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearErrors deletes every stored error.
func (s *Store) ClearErrors(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM errors`); err != nil {
		return fmt.Errorf("failed to clear errors: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// timeLayout has a fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
