package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/nao1215/gallerywatch/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *LibraryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func newRecord(site string, n int) *model.ContentRecord {
	return &model.ContentRecord{
		Site:     site,
		URL:      fmt.Sprintf("https://%s/gallery/%d/", site, n),
		Title:    fmt.Sprintf("Gallery %d", n),
		CoverURL: fmt.Sprintf("https://%s/cover/%d.jpg", site, n),
		Images: []string{
			fmt.Sprintf("https://%s/img/%d/1.jpg", site, n),
			fmt.Sprintf("https://%s/img/%d/2.jpg", site, n),
		},
	}
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DBFileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, DBFileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if !errors.Is(err, ErrDatabaseNotFound) {
			t.Fatalf("expected ErrDatabaseNotFound, got %v", err)
		}

		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}

		ctx := context.Background()
		rec := newRecord("example.com", 1)
		if err := db1.Save(ctx, rec); err != nil {
			t.Fatalf("failed to save record: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		got, err := db2.SelectByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("failed to get record: %v", err)
		}
		if got == nil {
			t.Error("expected record to exist in database")
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// TestSaveAndSelect tests content record operations.
func TestSaveAndSelect(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("insert and retrieve record", func(t *testing.T) {
		rec := newRecord("example.com", 1)
		if err := db.Save(ctx, rec); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("expected non-zero ID")
		}

		got, err := db.SelectByID(ctx, rec.ID)
		if err != nil {
			t.Fatalf("failed to select: %v", err)
		}
		if got == nil {
			t.Fatal("expected record, got nil")
		}
		if got.Title != "Gallery 1" || got.Site != "example.com" {
			t.Errorf("unexpected record %+v", got)
		}
		if !slices.Equal(got.Images, rec.Images) {
			t.Errorf("expected images %v, got %v", rec.Images, got.Images)
		}
		if got.CreatedAt.IsZero() {
			t.Error("expected created_at to be set")
		}
	})

	t.Run("re-inserting a URL keeps the reading position", func(t *testing.T) {
		rec := newRecord("example.com", 2)
		if err := db.Save(ctx, rec); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		rec.LastReadIndex = 1
		if err := db.Save(ctx, rec); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		again := newRecord("example.com", 2)
		again.Title = "Renamed"
		if err := db.Save(ctx, again); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if again.ID != rec.ID {
			t.Errorf("expected upsert to keep ID %d, got %d", rec.ID, again.ID)
		}
		if again.LastReadIndex != 1 {
			t.Errorf("expected reading position 1, got %d", again.LastReadIndex)
		}

		got, err := db.FindByURL(ctx, "HTTPS://EXAMPLE.COM/gallery/2/")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if got == nil || got.Title != "Renamed" || got.LastReadIndex != 1 {
			t.Errorf("unexpected record %+v", got)
		}
	})

	t.Run("update of unknown ID", func(t *testing.T) {
		rec := newRecord("example.com", 3)
		rec.ID = 9999
		if err := db.Save(ctx, rec); !errors.Is(err, ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("invalid records", func(t *testing.T) {
		if err := db.Save(ctx, nil); !errors.Is(err, ErrNilRecord) {
			t.Errorf("expected ErrNilRecord, got %v", err)
		}
		if err := db.Save(ctx, &model.ContentRecord{Site: "x"}); !errors.Is(err, ErrEmptyURL) {
			t.Errorf("expected ErrEmptyURL, got %v", err)
		}
	})

	t.Run("returns nil for non-existent record", func(t *testing.T) {
		got, err := db.SelectByID(ctx, 123456)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("expected nil for non-existent record")
		}

		got, err = db.FindByURL(ctx, "https://nowhere.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("expected nil for non-existent URL")
		}
	})
}

// TestListRecords tests paging and site filtering.
func TestListRecords(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := db.Save(ctx, newRecord("a.example", i)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
	}
	for i := 1; i <= 2; i++ {
		if err := db.Save(ctx, newRecord("b.example", i)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
	}

	tests := []struct {
		name      string
		site      string
		limit     int
		offset    int
		wantTitle []string
	}{
		{"first page", "a.example", 2, 0, []string{"Gallery 1", "Gallery 2"}},
		{"last page is short", "a.example", 2, 4, []string{"Gallery 5"}},
		{"past the end", "a.example", 2, 10, nil},
		{"other site", "b.example", 10, 0, []string{"Gallery 1", "Gallery 2"}},
		{"all sites", "", 3, 5, []string{"Gallery 1", "Gallery 2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			records, err := db.ListRecords(ctx, tt.site, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("failed to list: %v", err)
			}
			var titles []string
			for _, r := range records {
				titles = append(titles, r.Title)
			}
			if !slices.Equal(titles, tt.wantTitle) {
				t.Errorf("expected %v, got %v", tt.wantTitle, titles)
			}
		})
	}

	t.Run("counts", func(t *testing.T) {
		t.Parallel()

		for site, want := range map[string]int{"a.example": 5, "b.example": 2, "": 7, "c.example": 0} {
			n, err := db.CountRecords(ctx, site)
			if err != nil {
				t.Fatalf("failed to count: %v", err)
			}
			if n != want {
				t.Errorf("site %q: expected %d, got %d", site, want, n)
			}
		}
	})

	t.Run("sites", func(t *testing.T) {
		t.Parallel()

		sites, err := db.ListSites(ctx)
		if err != nil {
			t.Fatalf("failed to list sites: %v", err)
		}
		want := []SiteCount{{"a.example", 5}, {"b.example", 2}}
		if !slices.Equal(sites, want) {
			t.Errorf("expected %v, got %v", want, sites)
		}
	})
}

// TestBrowseHistory tests browse report storage.
func TestBrowseHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	runID := model.NewRunID()
	first := model.NewBrowseReport(runID, "https://example.com/gallery/1/")
	first.Site = "example"
	first.Gallery = model.GalleryMatch{URL: first.URL, Matched: true, Pattern: `example.com/gallery/\d+/$`, Index: 0}
	first.Stats.ScriptsBlocked = 3
	first.Stats.ResourcesBlocked = 2

	second := model.NewBrowseReport(runID, "https://example.com/")
	second.Site = "example"

	for _, r := range []*model.BrowseReport{first, second} {
		if err := db.SaveBrowseReport(ctx, r); err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
	}

	if err := db.SaveBrowseReport(ctx, nil); !errors.Is(err, ErrNilReport) {
		t.Errorf("expected ErrNilReport, got %v", err)
	}

	t.Run("list all", func(t *testing.T) {
		t.Parallel()

		entries, err := db.ListHistory(ctx, "", 10)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		// Newest first.
		if entries[0].URL != second.URL {
			t.Errorf("expected newest entry first, got %q", entries[0].URL)
		}
	})

	t.Run("filter by url", func(t *testing.T) {
		t.Parallel()

		entries, err := db.ListHistory(ctx, first.URL, 10)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		e := entries[0]
		if !e.Gallery || e.Blocked != 5 || e.RunID != runID {
			t.Errorf("unexpected entry %+v", e)
		}

		report, err := db.GetBrowseReport(ctx, e.ID)
		if err != nil {
			t.Fatalf("failed to get report: %v", err)
		}
		if report == nil || report.Gallery.Pattern != first.Gallery.Pattern {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("unknown report", func(t *testing.T) {
		t.Parallel()

		report, err := db.GetBrowseReport(ctx, 9999)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report != nil {
			t.Error("expected nil report")
		}
	})
}
