package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/gallerywatch/internal/model"
)

// HistoryEntry is one browsed URL without its full report.
type HistoryEntry struct {
	// ID is the unique identifier of the entry in the database.
	ID int64

	// RunID identifies the browse invocation.
	RunID string

	// URL is the browsed URL.
	URL string

	// Site is the name of the profile used.
	Site string

	// Gallery is true when the URL was classified as a gallery page.
	Gallery bool

	// Blocked is the number of navigations, scripts and resources blocked.
	Blocked int

	// Timestamp is when the entry was stored.
	Timestamp time.Time
}

// SaveBrowseReport appends a browse report to the history.
func (ldb *LibraryDB) SaveBrowseReport(ctx context.Context, report *model.BrowseReport) error {
	if report == nil {
		return ErrNilReport
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	query := `
	INSERT INTO browse_history (run_id, url, site, gallery, blocked, report_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = ldb.db.ExecContext(ctx, query,
		report.RunID,
		report.URL,
		report.Site,
		report.Gallery.Matched,
		report.Stats.TotalBlocked(),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save browse report: %w", err)
	}

	return nil
}

// ListHistory returns the most recent history entries, newest first.
// An empty url lists every URL.
func (ldb *LibraryDB) ListHistory(ctx context.Context, url string, limit int) ([]HistoryEntry, error) {
	query := `
	SELECT id, run_id, url, site, gallery, blocked, timestamp
	FROM browse_history
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var timestamp string

		if err := rows.Scan(
			&entry.ID,
			&entry.RunID,
			&entry.URL,
			&entry.Site,
			&entry.Gallery,
			&entry.Blocked,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		entry.Timestamp = parseTimestamp(timestamp)
		results = append(results, entry)
	}

	return results, rows.Err()
}

// GetBrowseReport retrieves the full report of a history entry.
// It returns nil, nil when no such entry exists.
func (ldb *LibraryDB) GetBrowseReport(ctx context.Context, id int64) (*model.BrowseReport, error) {
	var reportJSON string
	err := ldb.db.QueryRowContext(ctx, `SELECT report_json FROM browse_history WHERE id = ?`, id).Scan(&reportJSON)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get browse report: %w", err)
	}

	var report model.BrowseReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}
