package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/database"
	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/parser"
	"github.com/nao1215/gallerywatch/internal/site"
	"github.com/nao1215/gallerywatch/internal/surface"
	"github.com/nao1215/gallerywatch/internal/tracker"
)

// LoadStep loads the report URL on a fresh browsing surface through a
// tracker and interception engine, then records the classification, the
// interception statistics and the cleaned document.
//
// Each load gets its own event loop, surface and tracker, so loads of a
// batch never share state.
type LoadStep struct {
	registry   *site.Registry
	newSurface SurfaceFactory

	// site forces a profile instead of resolving one from the URL.
	site string

	timeout  time.Duration
	adBlock  bool
	listener intercept.GalleryListener
	logger   *slog.Logger
}

// LoadStepOption configures a LoadStep.
type LoadStepOption func(*LoadStep)

// WithLoadSite forces the named site profile for every URL.
func WithLoadSite(name string) LoadStepOption {
	return func(s *LoadStep) {
		s.site = name
	}
}

// WithLoadTimeout bounds a single load, redirects included.
func WithLoadTimeout(d time.Duration) LoadStepOption {
	return func(s *LoadStep) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLoadAdBlock turns script and resource blocking on or off.
func WithLoadAdBlock(enabled bool) LoadStepOption {
	return func(s *LoadStep) {
		s.adBlock = enabled
	}
}

// WithLoadGalleryListener sets the receiver of gallery-match signals.
func WithLoadGalleryListener(l intercept.GalleryListener) LoadStepOption {
	return func(s *LoadStep) {
		s.listener = l
	}
}

// WithLoadLogger sets a custom logger for the load step.
func WithLoadLogger(logger *slog.Logger) LoadStepOption {
	return func(s *LoadStep) {
		s.logger = logger
	}
}

// NewLoadStep creates a load step resolving profiles from registry.
func NewLoadStep(registry *site.Registry, newSurface SurfaceFactory, opts ...LoadStepOption) *LoadStep {
	s := &LoadStep{
		registry:   registry,
		newSurface: newSurface,
		timeout:    config.DefaultTimeout,
		adBlock:    true,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *LoadStep) Name() string {
	return "load"
}

// Do executes the load step.
func (s *LoadStep) Do(ctx context.Context, report *model.BrowseReport) error {
	profile, err := s.profileFor(report.URL)
	if err != nil {
		return err
	}
	report.Site = profile.Name()
	logger := s.logger.With("site", profile.Name(), "url", report.URL)

	loadCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	loop := eventloop.New()
	go loop.Run(context.WithoutCancel(ctx)) //nolint:errcheck // Returns nil after Close
	defer func() {
		loop.Close()
		<-loop.Done()
	}()

	surf, err := s.newSurface(loadCtx, loop, profile)
	if err != nil {
		return fmt.Errorf("failed to create browsing surface: %w", err)
	}
	defer func() {
		if err := surf.Close(); err != nil {
			logger.Debug("failed to close surface", "error", err)
		}
	}()

	engineOpts := []intercept.Option{
		intercept.WithLogger(s.logger),
		intercept.WithAdBlock(s.adBlock),
	}
	if s.listener != nil {
		engineOpts = append(engineOpts, intercept.WithGalleryListener(s.listener))
	}
	engine := intercept.New(profile, engineOpts...)

	failed := make(chan error, 1)
	tr := tracker.New(engine, surf,
		tracker.WithLogger(s.logger),
		tracker.WithFailureFunc(func(_ string, err error) {
			select {
			case failed <- err:
			default:
			}
		}),
	)

	loaded := make(chan model.GalleryMatch, 1)
	onLoaded := func(m model.GalleryMatch) {
		select {
		case loaded <- m:
		default:
		}
	}
	surf.Bind(&redirectObserver{Tracker: tr, logger: logger})

	// Collected last, once every event of the load has been handled.
	defer func() {
		_ = loop.Do(context.WithoutCancel(ctx), func() {
			report.Stats = engine.Stats()
		})
	}()

	var navErr error
	if err := loop.Do(loadCtx, func() {
		navErr = tr.LoadURL(loadCtx, report.URL, onLoaded)
	}); err != nil {
		return fmt.Errorf("failed to start load: %w", err)
	}
	if navErr != nil {
		return navErr
	}

	select {
	case match := <-loaded:
		report.Gallery = match
	case err := <-failed:
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	case <-loadCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		report.TimedOut = true
		return fmt.Errorf("%w after %s", ErrLoadTimeout, s.timeout)
	}

	page, err := surf.Page(loadCtx)
	if err != nil {
		logger.Debug("page description unavailable", "error", err)
	} else {
		report.Page = page
	}

	html, err := surf.HTML(loadCtx)
	switch {
	case errors.Is(err, surface.ErrNoDocument):
		logger.Debug("loaded resource is not a document")
	case err != nil:
		logger.Warn("failed to read document", "error", err)
	default:
		report.HTML = html
	}

	logger.Info("page loaded", "gallery", report.Gallery.Matched)
	return nil
}

func (s *LoadStep) profileFor(rawURL string) (*site.Profile, error) {
	if s.site != "" {
		p, ok := s.registry.Lookup(s.site)
		if !ok {
			return nil, fmt.Errorf("%w: site %q is not registered", ErrUnknownSite, s.site)
		}
		return p, nil
	}
	p, ok := s.registry.ForURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSite, rawURL)
	}
	return p, nil
}

// redirectObserver forwards surface events to a tracker. When the target
// redirects, the finished URL differs from the target and the tracker
// would wait forever; the observer then retargets the load once to the
// final URL, which completes it without loading the page again.
type redirectObserver struct {
	*tracker.Tracker

	retargeted bool
	logger     *slog.Logger
}

// PageFinished implements surface.Handler.
func (o *redirectObserver) PageFinished(url string) {
	target := o.Target()
	o.Tracker.PageFinished(url)

	if !o.IsLoading() || o.retargeted || strings.EqualFold(url, target) {
		return
	}
	o.retargeted = true
	o.logger.Debug("target redirected", "target", target, "final", url)
	o.Retarget(url)
}

// ExtractStep turns a detected gallery page into a content record using
// the metadata selectors of its site.
type ExtractStep struct {
	registry *site.Registry
	logger   *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates an extract step.
func NewExtractStep(registry *site.Registry, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		registry: registry,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extract step. Pages that are not galleries are skipped.
func (s *ExtractStep) Do(_ context.Context, report *model.BrowseReport) error {
	if !report.Gallery.Matched {
		return nil
	}

	profile, ok := s.registry.Lookup(report.Site)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProfileMissing, report.Site)
	}

	body := []byte(report.HTML)
	if len(body) == 0 && report.Page != nil {
		body = report.Page.Raw
	}
	if len(body) == 0 {
		s.logger.Debug("no document to extract from", "url", report.Gallery.URL)
		return nil
	}

	rec, err := parser.ExtractGallery(profile, report.Gallery.URL, body)
	if errors.Is(err, parser.ErrNoImages) {
		s.logger.Warn("gallery has no images", "url", report.Gallery.URL, "title", rec.Title)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to extract gallery: %w", err)
	}

	s.logger.Info("gallery extracted", "url", rec.URL, "title", rec.Title, "images", len(rec.Images))
	report.Record = rec
	return nil
}

// SaveStep stores the extracted record in the library and appends the
// report to the browse history.
type SaveStep struct {
	db     *database.LibraryDB
	logger *slog.Logger
}

// SaveStepOption configures a SaveStep.
type SaveStepOption func(*SaveStep)

// WithSaveLogger sets a custom logger for the save step.
func WithSaveLogger(logger *slog.Logger) SaveStepOption {
	return func(s *SaveStep) {
		s.logger = logger
	}
}

// NewSaveStep creates a save step writing to db.
func NewSaveStep(db *database.LibraryDB, opts ...SaveStepOption) *SaveStep {
	s := &SaveStep{
		db:     db,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do executes the save step.
func (s *SaveStep) Do(ctx context.Context, report *model.BrowseReport) error {
	if report.Record != nil {
		if err := s.db.Save(ctx, report.Record); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		s.logger.Debug("record saved", "id", report.Record.ID, "url", report.Record.URL)
	}

	report.FinishedAt = time.Now()
	if err := s.db.SaveBrowseReport(ctx, report); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

// DefaultPipelineConfig holds configuration for the default pipeline.
type DefaultPipelineConfig struct {
	// Site forces a site profile. Empty resolves it from each URL.
	Site string

	// Timeout bounds each load.
	Timeout time.Duration

	// AdBlock enables script and resource blocking.
	AdBlock bool

	// Listener receives gallery-match signals.
	Listener intercept.GalleryListener

	// DB is the library. When nil, nothing is saved.
	DB *database.LibraryDB
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSite forces a site profile for every URL.
func WithPipelineSite(name string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Site = name
	}
}

// WithPipelineTimeout sets the per-load deadline.
func WithPipelineTimeout(d time.Duration) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Timeout = d
	}
}

// WithPipelineAdBlock turns script and resource blocking on or off.
func WithPipelineAdBlock(enabled bool) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.AdBlock = enabled
	}
}

// WithPipelineGalleryListener sets the receiver of gallery-match signals.
func WithPipelineGalleryListener(l intercept.GalleryListener) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Listener = l
	}
}

// WithPipelineDB sets the library the save step writes to.
func WithPipelineDB(db *database.LibraryDB) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.DB = db
	}
}

// DefaultPipeline creates the browse pipeline: load, extract and, when a
// library is configured, save.
//
// The first variadic parameter accepts pipeline options (WithLogger, etc).
// The second accepts pipeline config options (WithPipelineTimeout, etc).
func DefaultPipeline(registry *site.Registry, newSurface SurfaceFactory, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	cfg := &DefaultPipelineConfig{
		Timeout: config.DefaultTimeout,
		AdBlock: true,
	}
	for _, opt := range configOpts {
		opt(cfg)
	}

	loadOpts := []LoadStepOption{
		WithLoadTimeout(cfg.Timeout),
		WithLoadAdBlock(cfg.AdBlock),
		WithLoadLogger(p.logger),
	}
	if cfg.Site != "" {
		loadOpts = append(loadOpts, WithLoadSite(cfg.Site))
	}
	if cfg.Listener != nil {
		loadOpts = append(loadOpts, WithLoadGalleryListener(cfg.Listener))
	}

	p.AddSteps(
		NewLoadStep(registry, newSurface, loadOpts...),
		NewExtractStep(registry, WithExtractLogger(p.logger)),
	)
	if cfg.DB != nil {
		p.AddStep(NewSaveStep(cfg.DB, WithSaveLogger(p.logger)))
	}

	return p
}
