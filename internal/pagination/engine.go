package pagination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/nao1215/gallerywatch/internal/model"
)

var (
	// ErrNoActiveRecord is returned when no record is current.
	ErrNoActiveRecord = errors.New("no active record")

	// ErrRecordNotFound is returned when the storage collaborator does not
	// know the active record.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidImageIndex is returned for an image index outside the image set.
	ErrInvalidImageIndex = errors.New("invalid image index")
)

// ResultListener receives the outcome of a library search.
type ResultListener interface {
	OnContentReady(records []model.ContentRecord, totalSelected, totalAll int)
	OnContentFailed(record *model.ContentRecord, message string)
}

// Searcher is the external search collaborator. SearchLibrary returns
// immediately and delivers its result to listener later, possibly from
// another goroutine.
type Searcher interface {
	SearchLibrary(ctx context.Context, pageSize int, listener ResultListener)
	IncreaseCurrentPage()
	DecreaseCurrentPage()
	CurrentPage() int
}

// Store is the storage collaborator. It is only used to persist the
// reading position.
type Store interface {
	SelectByID(ctx context.Context, id int64) (*model.ContentRecord, error)
	Save(ctx context.Context, record *model.ContentRecord) error
}

// Poster runs functions on the goroutine that owns the engine state.
// *eventloop.Loop implements it.
type Poster interface {
	Post(fn func()) bool
}

// Notifier shows a transient, non-fatal notice to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

// Notify calls f.
func (f NotifierFunc) Notify(message string) { f(message) }

// ImagesFunc is called whenever the displayed image set changes.
// startIndex is the display position to open at.
type ImagesFunc func(record *model.ContentRecord, images []string, startIndex int)

// Move describes what LoadNext or LoadPrevious did.
type Move int

const (
	// MoveNone means the call was a no-op at the collection boundary.
	MoveNone Move = iota
	// MoveLocal means the index moved within the current page.
	MoveLocal
	// MoveFetch means a page fetch was requested.
	MoveFetch
	// MoveBusy means a page fetch is already outstanding; nothing was done.
	MoveBusy
)

// String returns the move name.
func (m Move) String() string {
	switch m {
	case MoveNone:
		return "none"
	case MoveLocal:
		return "local"
	case MoveFetch:
		return "fetch"
	case MoveBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// State is a snapshot of the pagination state.
type State struct {
	Records       []model.ContentRecord
	Index         int
	Page          int
	MaxPage       int
	ActiveID      int64
	TotalSelected int
	Fetching      bool
}

// Engine pages through the library one record at a time, fetching pages
// from the Searcher when a move crosses a page boundary.
//
// Every method except OnContentReady and OnContentFailed must run on the
// goroutine behind the Poster. Those two may be called from anywhere; they
// marshal the result onto the Poster before touching state.
type Engine struct {
	searcher Searcher
	store    Store
	poster   Poster
	pageSize int

	records       []model.ContentRecord
	index         int
	page          int
	maxPage       int
	activeID      int64
	totalSelected int

	pending   PendingIndex
	fetching  bool
	pageDelta int

	images   ImageSet
	shuffled bool
	rng      *rand.Rand

	onImages ImagesFunc
	notifier Notifier
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithImagesFunc sets the receiver of image set changes.
func WithImagesFunc(fn ImagesFunc) Option {
	return func(e *Engine) {
		e.onImages = fn
	}
}

// WithNotifier sets the receiver of fetch failure notices.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// New creates an engine. pageSize must be positive.
func New(searcher Searcher, store Store, poster Poster, pageSize int, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		store:    store,
		poster:   poster,
		pageSize: max(pageSize, 1),
		page:     1,
		maxPage:  1,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Shuffle order is not security sensitive
	}

	return e
}

// Start fetches the searcher's current page and opens the record with
// activeID, or the first record when activeID is zero or absent.
func (e *Engine) Start(ctx context.Context, activeID int64) Move {
	if e.fetching {
		return MoveBusy
	}
	e.activeID = activeID
	e.request(ctx, Active, 0)
	return MoveFetch
}

// Refresh re-fetches the current page and keeps the active record.
func (e *Engine) Refresh(ctx context.Context) Move {
	if e.fetching {
		return MoveBusy
	}
	e.request(ctx, Active, 0)
	return MoveFetch
}

// LoadNext moves to the next record, fetching the next page when the
// current record is the last of its page.
func (e *Engine) LoadNext(ctx context.Context) Move {
	if e.fetching {
		return MoveBusy
	}

	lastOfPage := e.index >= len(e.records)-1
	switch {
	case lastOfPage && e.page < e.maxPage:
		e.searcher.IncreaseCurrentPage()
		e.request(ctx, First, +1)
		return MoveFetch
	case !lastOfPage:
		e.index++
		e.activate()
		return MoveLocal
	default:
		return MoveNone
	}
}

// LoadPrevious moves to the previous record, fetching the previous page
// when the current record is the first of its page.
func (e *Engine) LoadPrevious(ctx context.Context) Move {
	if e.fetching {
		return MoveBusy
	}

	firstOfPage := e.index <= 0
	switch {
	case firstOfPage && e.page > 1:
		e.searcher.DecreaseCurrentPage()
		e.request(ctx, Last, -1)
		return MoveFetch
	case !firstOfPage:
		e.index--
		e.activate()
		return MoveLocal
	default:
		return MoveNone
	}
}

func (e *Engine) request(ctx context.Context, pending PendingIndex, delta int) {
	e.pending = pending
	e.pageDelta = delta
	e.fetching = true
	e.logger.Debug("fetching page", "page", e.searcher.CurrentPage(), "pending", pending.String())
	e.searcher.SearchLibrary(ctx, e.pageSize, e)
}

// OnContentReady receives a page from the searcher. It is safe to call
// from any goroutine.
func (e *Engine) OnContentReady(records []model.ContentRecord, totalSelected, totalAll int) {
	records = slices.Clone(records)
	if !e.poster.Post(func() { e.pageArrived(records, totalSelected, totalAll) }) {
		e.logger.Debug("page dropped: loop closed")
	}
}

// OnContentFailed receives a search failure. It is safe to call from any
// goroutine. Pagination state is left unchanged.
func (e *Engine) OnContentFailed(record *model.ContentRecord, message string) {
	if !e.poster.Post(func() { e.pageFailed(record, message) }) {
		e.logger.Debug("failure dropped: loop closed")
	}
}

func (e *Engine) pageArrived(records []model.ContentRecord, totalSelected, totalAll int) {
	e.maxPage = max((totalAll+e.pageSize-1)/e.pageSize, 1)
	e.totalSelected = totalSelected

	idx, ok := e.pending.Resolve(records, e.activeID)

	e.records = records
	e.page = e.searcher.CurrentPage()
	e.index = idx
	e.fetching = false
	e.pageDelta = 0
	e.pending = Active

	if !ok {
		e.activeID = 0
		e.images = NewImageSet(nil)
		e.logger.Debug("empty page", "page", e.page)
		e.emit(nil, 0)
		return
	}
	e.activate()
}

func (e *Engine) pageFailed(record *model.ContentRecord, message string) {
	// Undo the searcher page move so a retry lands on the same page.
	switch {
	case e.pageDelta > 0:
		e.searcher.DecreaseCurrentPage()
	case e.pageDelta < 0:
		e.searcher.IncreaseCurrentPage()
	}
	e.fetching = false
	e.pageDelta = 0
	e.pending = Active

	attrs := []any{"message", message}
	if record != nil {
		attrs = append(attrs, "record", record.ID)
	}
	e.logger.Warn("page fetch failed", attrs...)

	if e.notifier != nil {
		e.notifier.Notify(message)
	}
}

// activate loads the image set of the record at e.index.
func (e *Engine) activate() {
	rec := &e.records[e.index]
	e.activeID = rec.ID
	e.images = NewImageSet(rec.Images)
	if e.shuffled {
		e.images.Shuffle(e.rng)
	}
	e.emit(rec, e.startIndex(rec))
}

func (e *Engine) startIndex(rec *model.ContentRecord) int {
	if rec == nil || e.images.Len() == 0 {
		return 0
	}
	canonical := min(max(rec.LastReadIndex, 0), e.images.Len()-1)
	if idx := e.images.DisplayIndex(canonical); idx >= 0 {
		return idx
	}
	return 0
}

func (e *Engine) emit(rec *model.ContentRecord, start int) {
	if e.onImages == nil {
		return
	}
	var copied *model.ContentRecord
	if rec != nil {
		c := *rec
		c.Images = slices.Clone(rec.Images)
		copied = &c
	}
	e.onImages(copied, e.images.Display(), start)
}

// SetShuffle switches between a fresh random order and the canonical order.
func (e *Engine) SetShuffle(enabled bool) {
	e.shuffled = enabled
	if enabled {
		e.images.Shuffle(e.rng)
	} else {
		e.images.Restore()
	}
	e.emit(e.Active(), 0)
}

// Shuffled reports whether shuffle is enabled.
func (e *Engine) Shuffled() bool {
	return e.shuffled
}

// Images returns a copy of the current image set.
func (e *Engine) Images() ImageSet {
	return ImageSet{
		canonical: slices.Clone(e.images.canonical),
		display:   slices.Clone(e.images.display),
	}
}

// Active returns the current record, or nil when there is none.
func (e *Engine) Active() *model.ContentRecord {
	if len(e.records) == 0 || e.index < 0 || e.index >= len(e.records) {
		return nil
	}
	return &e.records[e.index]
}

// State returns a snapshot of the pagination state.
func (e *Engine) State() State {
	return State{
		Records:       slices.Clone(e.records),
		Index:         e.index,
		Page:          e.page,
		MaxPage:       e.maxPage,
		ActiveID:      e.activeID,
		TotalSelected: e.totalSelected,
		Fetching:      e.fetching,
	}
}

// InitialImageIndex returns the display position to open the active
// record at: its last read image.
func (e *Engine) InitialImageIndex() int {
	return e.startIndex(e.Active())
}

// SaveCurrentPosition persists displayIdx as the active record's last read
// image. With shuffle on, the canonical position of that image is stored.
func (e *Engine) SaveCurrentPosition(ctx context.Context, displayIdx int) error {
	active := e.Active()
	if active == nil {
		return ErrNoActiveRecord
	}

	canonical := displayIdx
	if e.images.Len() > 0 {
		canonical = e.images.CanonicalIndex(displayIdx)
		if canonical < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidImageIndex, displayIdx)
		}
	}

	rec, err := e.store.SelectByID(ctx, active.ID)
	if err != nil {
		return fmt.Errorf("failed to load record %d: %w", active.ID, err)
	}
	if rec == nil {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, active.ID)
	}

	rec.SetLastReadIndex(canonical)
	if err := e.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save record %d: %w", active.ID, err)
	}

	active.LastReadIndex = rec.LastReadIndex
	return nil
}
