package database

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nao1215/gallerywatch/internal/pagination"
)

// Searcher pages through the library. It implements pagination.Searcher:
// SearchLibrary queries on its own goroutine and reports to the listener
// from there.
type Searcher struct {
	db     *LibraryDB
	site   string
	logger *slog.Logger

	mu   sync.Mutex
	page int

	wg sync.WaitGroup
}

// SearcherOption configures a Searcher.
type SearcherOption func(*Searcher)

// WithSite restricts the search to records of one site.
func WithSite(site string) SearcherOption {
	return func(s *Searcher) {
		s.site = site
	}
}

// WithStartPage sets the 1-based page the search starts on.
func WithStartPage(page int) SearcherOption {
	return func(s *Searcher) {
		s.page = max(page, 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SearcherOption {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// NewSearcher creates a searcher over db starting on page 1.
func NewSearcher(db *LibraryDB, opts ...SearcherOption) *Searcher {
	s := &Searcher{
		db:   db,
		page: 1,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// SearchLibrary loads the current page in the background and delivers it
// to listener. Both totals passed to OnContentReady are the number of
// records matching the site filter, which is the collection being paged.
func (s *Searcher) SearchLibrary(ctx context.Context, pageSize int, listener pagination.ResultListener) {
	page := s.CurrentPage()
	pageSize = max(pageSize, 1)

	s.wg.Go(func() {
		records, err := s.db.ListRecords(ctx, s.site, pageSize, (page-1)*pageSize)
		if err != nil {
			s.logger.Debug("library search failed", "page", page, "error", err)
			listener.OnContentFailed(nil, err.Error())
			return
		}

		total, err := s.db.CountRecords(ctx, s.site)
		if err != nil {
			s.logger.Debug("library count failed", "error", err)
			listener.OnContentFailed(nil, err.Error())
			return
		}

		s.logger.Debug("library page loaded", "page", page, "records", len(records), "total", total)
		listener.OnContentReady(records, total, total)
	})
}

// IncreaseCurrentPage moves the search to the next page.
func (s *Searcher) IncreaseCurrentPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page++
}

// DecreaseCurrentPage moves the search to the previous page. It never goes
// below page 1.
func (s *Searcher) DecreaseCurrentPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page > 1 {
		s.page--
	}
}

// CurrentPage returns the 1-based page the next search loads.
func (s *Searcher) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Wait blocks until every outstanding search has reported.
func (s *Searcher) Wait() {
	s.wg.Wait()
}
