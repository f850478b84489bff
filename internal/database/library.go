package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/gallerywatch/internal/model"
)

// DBFileName is the name of the library database inside the data directory.
const DBFileName = "gallerywatch.db"

// LibraryDB provides SQLite-based storage for content records and browse
// history.
type LibraryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures LibraryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a LibraryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error
// wrapping ErrDatabaseNotFound is returned.
func Open(dbDir string, opts Options) (*LibraryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ldb := &LibraryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ldb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ldb, nil
}

// Close closes the database connection.
func (ldb *LibraryDB) Close() error {
	return ldb.db.Close()
}

// Path returns the database file path.
func (ldb *LibraryDB) Path() string {
	return ldb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (ldb *LibraryDB) createTables() error {
	schema := `
	-- Content records are the gallery pages saved to the library
	CREATE TABLE IF NOT EXISTS content_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		url TEXT NOT NULL,
		url_hash TEXT NOT NULL UNIQUE,
		title TEXT,
		cover_url TEXT,
		images TEXT,
		last_read_index INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_site ON content_records(site);

	-- Browse history keeps one row per browsed URL and run
	CREATE TABLE IF NOT EXISTS browse_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		site TEXT NOT NULL,
		gallery INTEGER NOT NULL DEFAULT 0,
		blocked INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_url ON browse_history(url);
	CREATE INDEX IF NOT EXISTS idx_history_timestamp ON browse_history(timestamp);
	`

	_, err := ldb.db.ExecContext(context.Background(), schema)
	return err
}

const recordColumns = `id, site, url, title, cover_url, images, last_read_index, created_at, updated_at`

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.ContentRecord, error) {
	var (
		rec        model.ContentRecord
		title      sql.NullString
		cover      sql.NullString
		imagesJSON sql.NullString
		createdAt  string
		updatedAt  string
	)

	if err := row.Scan(
		&rec.ID,
		&rec.Site,
		&rec.URL,
		&title,
		&cover,
		&imagesJSON,
		&rec.LastReadIndex,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	rec.Title = title.String
	rec.CoverURL = cover.String
	rec.CreatedAt = parseTimestamp(createdAt)
	rec.UpdatedAt = parseTimestamp(updatedAt)

	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &rec.Images); err != nil {
			return nil, fmt.Errorf("failed to parse images of record %d: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

// SelectByID retrieves a content record by its ID.
// It returns nil, nil when no such record exists.
func (ldb *LibraryDB) SelectByID(ctx context.Context, id int64) (*model.ContentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM content_records WHERE id = ?`

	rec, err := scanRecord(ldb.db.QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content record: %w", err)
	}
	return rec, nil
}

// FindByURL retrieves a content record by its gallery URL. The lookup is
// case-insensitive. It returns nil, nil when no such record exists.
func (ldb *LibraryDB) FindByURL(ctx context.Context, url string) (*model.ContentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM content_records WHERE url_hash = ?`

	rec, err := scanRecord(ldb.db.QueryRowContext(ctx, query, model.HashURL(url)))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content record: %w", err)
	}
	return rec, nil
}

// Save stores a content record and sets its ID.
//
// A record with an ID updates that row, including its reading position.
// A record without an ID is inserted; when its URL is already in the
// library the stored metadata is refreshed and the stored reading position
// is kept.
func (ldb *LibraryDB) Save(ctx context.Context, record *model.ContentRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	if record.URL == "" {
		return ErrEmptyURL
	}

	imagesJSON, err := json.Marshal(record.Images)
	if err != nil {
		return fmt.Errorf("failed to serialize images: %w", err)
	}

	if record.ID != 0 {
		query := `
		UPDATE content_records SET
			site = ?,
			url = ?,
			url_hash = ?,
			title = ?,
			cover_url = ?,
			images = ?,
			last_read_index = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		`
		result, err := ldb.db.ExecContext(ctx, query,
			record.Site,
			record.URL,
			record.URLHash(),
			record.Title,
			record.CoverURL,
			string(imagesJSON),
			max(record.LastReadIndex, 0),
			record.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update content record: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update content record: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", ErrRecordNotFound, record.ID)
		}
		return nil
	}

	query := `
	INSERT INTO content_records (site, url, url_hash, title, cover_url, images, last_read_index)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url_hash) DO UPDATE SET
		site = excluded.site,
		url = excluded.url,
		title = excluded.title,
		cover_url = excluded.cover_url,
		images = excluded.images,
		updated_at = CURRENT_TIMESTAMP
	RETURNING id, last_read_index
	`

	err = ldb.db.QueryRowContext(ctx, query,
		record.Site,
		record.URL,
		record.URLHash(),
		record.Title,
		record.CoverURL,
		string(imagesJSON),
		max(record.LastReadIndex, 0),
	).Scan(&record.ID, &record.LastReadIndex)
	if err != nil {
		return fmt.Errorf("failed to insert content record: %w", err)
	}

	return nil
}

// ListRecords returns up to limit records ordered by ID, skipping offset.
// An empty site lists every site.
func (ldb *LibraryDB) ListRecords(ctx context.Context, site string, limit, offset int) ([]model.ContentRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM content_records WHERE 1=1`
	args := make([]any, 0, 3)

	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}

	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := ldb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list content records: %w", err)
	}
	defer rows.Close()

	var results []model.ContentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content record: %w", err)
		}
		results = append(results, *rec)
	}

	return results, rows.Err()
}

// CountRecords returns the number of records of site, or of the whole
// library when site is empty.
func (ldb *LibraryDB) CountRecords(ctx context.Context, site string) (int, error) {
	query := `SELECT COUNT(*) FROM content_records`
	args := make([]any, 0, 1)
	if site != "" {
		query += " WHERE site = ?"
		args = append(args, site)
	}

	var count int
	if err := ldb.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content records: %w", err)
	}
	return count, nil
}

// SiteCount is the number of records stored for one site.
type SiteCount struct {
	Site  string
	Count int
}

// ListSites returns the sites present in the library with their record
// counts, ordered by site name.
func (ldb *LibraryDB) ListSites(ctx context.Context) ([]SiteCount, error) {
	query := `
	SELECT site, COUNT(*) FROM content_records
	GROUP BY site
	ORDER BY site
	`

	rows, err := ldb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []SiteCount
	for rows.Next() {
		var sc SiteCount
		if err := rows.Scan(&sc.Site, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, sc)
	}

	return sites, rows.Err()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a timestamp string using each known format.
// It returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
