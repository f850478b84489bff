package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
)

// State is the tracker state.
type State int

const (
	// Idle means no programmatic load is outstanding.
	Idle State = iota
	// Loading means a LoadRequest is waiting for its target to finish.
	Loading
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	default:
		return "unknown"
	}
}

// Browser is the part of a browsing surface the tracker drives.
// Navigate must not block until the page loads; lifecycle events are
// delivered back through the tracker's event methods.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	RemoveElements(ctx context.Context, selector string) error
}

// LoadedFunc is invoked once when the tracked target finishes loading.
// It receives the classification of the final URL.
type LoadedFunc func(match model.GalleryMatch)

// LoadRequest is one programmatic navigation attempt.
type LoadRequest struct {
	TargetURL string
	StartedAt time.Time
	OnLoaded  LoadedFunc

	ctx context.Context //nolint:containedctx // Scoped to a single request lifetime
}

// FailureFunc is informed when the surface reports that the tracked
// target could not be loaded. The tracker stays Loading regardless.
type FailureFunc func(url string, err error)

// Tracker is a two-state machine that invokes a load callback exactly once
// when, and only when, its target URL finishes loading. It wraps an
// interception engine and forwards every surface event to it.
//
// A Tracker holds no locks. All methods must be called from the browsing
// surface's event sequence.
type Tracker struct {
	engine  *intercept.Engine
	browser Browser

	current *LoadRequest

	// last is the most recent finished page of the current load.
	last *finishedPage

	onFailure FailureFunc
	now       func() time.Time
	logger    *slog.Logger
}

type finishedPage struct {
	url   string
	match model.GalleryMatch
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithFailureFunc sets the receiver of load failures.
func WithFailureFunc(fn FailureFunc) Option {
	return func(t *Tracker) {
		t.onFailure = fn
	}
}

// WithClock overrides the clock used for LoadRequest.StartedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates an idle tracker wrapping engine and driving browser.
func New(engine *intercept.Engine, browser Browser, opts ...Option) *Tracker {
	t := &Tracker{
		engine:  engine,
		browser: browser,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = slog.Default()
	}

	return t
}

// State returns the current state.
func (t *Tracker) State() State {
	if t.current == nil {
		return Idle
	}
	return Loading
}

// IsLoading reports whether a load is outstanding.
func (t *Tracker) IsLoading() bool {
	return t.current != nil
}

// Target returns the URL being loaded, or "" when idle.
func (t *Tracker) Target() string {
	if t.current == nil {
		return ""
	}
	return t.current.TargetURL
}

// Engine returns the wrapped interception engine.
func (t *Tracker) Engine() *intercept.Engine {
	return t.engine
}

// LoadURL starts loading url and arranges for onLoaded to run once url
// finishes. A load already in progress is abandoned: its callback will
// never run, even if its page later finishes.
func (t *Tracker) LoadURL(ctx context.Context, url string, onLoaded LoadedFunc) error {
	if prev := t.current; prev != nil {
		t.logger.Debug("load superseded", "previous", prev.TargetURL, "next", url)
	}

	t.current = &LoadRequest{
		TargetURL: url,
		StartedAt: t.now(),
		OnLoaded:  onLoaded,
		ctx:       ctx,
	}
	t.last = nil

	if err := t.browser.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// NavigationRequested applies the domain restriction.
func (t *Tracker) NavigationRequested(url string) intercept.Decision {
	return t.engine.OnNavigationRequested(url)
}

// PageStarted is informational. Redirects produce several per load.
func (t *Tracker) PageStarted(url string) {
	t.logger.Debug("page started", "url", url, "state", t.State())
}

// PageFinished runs interception for the loaded page and completes the
// outstanding load when url equals its target, ignoring case.
// Finished events for other URLs (redirect hops, abandoned loads) leave
// the tracker Loading.
func (t *Tracker) PageFinished(url string) {
	ctx := context.Background()
	if t.current != nil && t.current.ctx != nil {
		ctx = t.current.ctx
	}

	match := t.engine.OnPageLoaded(ctx, url, t.browser)

	req := t.current
	if req == nil || !strings.EqualFold(url, req.TargetURL) {
		if req != nil {
			t.last = &finishedPage{url: url, match: match}
		}
		t.logger.Debug("page finished", "url", url, "tracked", false)
		return
	}
	t.complete(req, match)
}

// Retarget moves the live load to url, the address its target settled on
// after redirects. When url has already finished, the load completes at
// once with that page's classification and the page is not loaded again.
// It reports false when the tracker is idle.
func (t *Tracker) Retarget(url string) bool {
	req := t.current
	if req == nil {
		return false
	}
	t.logger.Debug("load retargeted", "from", req.TargetURL, "to", url)
	req.TargetURL = url

	if last := t.last; last != nil && strings.EqualFold(last.url, url) {
		t.complete(req, last.match)
	}
	return true
}

func (t *Tracker) complete(req *LoadRequest, match model.GalleryMatch) {
	t.current = nil
	t.last = nil
	t.logger.Debug("page finished", "url", req.TargetURL, "tracked", true, "elapsed", t.now().Sub(req.StartedAt))
	if req.OnLoaded != nil {
		req.OnLoaded(match)
	}
}

// ScriptRequested applies the script rules.
func (t *Tracker) ScriptRequested(url, body string) intercept.Decision {
	return t.engine.OnScriptRequested(url, body)
}

// ResourceRequested applies the resource rules.
func (t *Tracker) ResourceRequested(url string) intercept.Decision {
	return t.engine.OnResourceRequested(url)
}

// LoadFailed reports a navigation that will never finish. It only
// notifies the failure receiver when url is the current target.
func (t *Tracker) LoadFailed(url string, err error) {
	if t.current == nil || !strings.EqualFold(url, t.current.TargetURL) {
		t.logger.Debug("stale load failure", "url", url, "error", err)
		return
	}
	t.logger.Warn("load failed", "url", url, "error", err)
	if t.onFailure != nil {
		t.onFailure(url, err)
	}
}
