package intercept

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/site"
)

// Decision is the verdict for a navigation, script or resource request.
type Decision int

const (
	// Allow lets the request proceed.
	Allow Decision = iota
	// Block suppresses the request.
	Block
)

// String returns the lower-case name of the decision.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "unknown"
	}
}

// ElementRemover removes every element matching a CSS selector from the
// currently loaded page.
type ElementRemover interface {
	RemoveElements(ctx context.Context, selector string) error
}

// GalleryListener receives the gallery-match signal.
type GalleryListener interface {
	OnGalleryDetected(ctx context.Context, match model.GalleryMatch)
}

// GalleryListenerFunc adapts a function to GalleryListener.
type GalleryListenerFunc func(ctx context.Context, match model.GalleryMatch)

// OnGalleryDetected calls f.
func (f GalleryListenerFunc) OnGalleryDetected(ctx context.Context, match model.GalleryMatch) {
	f(ctx, match)
}

// Engine applies one site profile to the lifecycle events of a browsing
// surface. It holds no locks: every method must be called from the
// surface's single event sequence.
type Engine struct {
	profile *site.Profile

	domainFilter      string
	patterns          []*regexp.Regexp
	selectors         []string
	scriptWhitelist   []string
	scriptBlacklist   []string
	resourceBlacklist []string

	// adBlock enables script and resource blocking.
	adBlock bool

	listener GalleryListener
	logger   *slog.Logger
	stats    model.InterceptStats
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for decisions and removal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithGalleryListener sets the receiver of gallery-match signals.
func WithGalleryListener(l GalleryListener) Option {
	return func(e *Engine) {
		e.listener = l
	}
}

// WithAdBlock turns script and resource blocking on or off.
// Blocking is on by default.
func WithAdBlock(enabled bool) Option {
	return func(e *Engine) {
		e.adBlock = enabled
	}
}

// New creates an Engine for the given profile.
func New(profile *site.Profile, opts ...Option) *Engine {
	e := &Engine{
		profile:           profile,
		domainFilter:      profile.DomainFilter(),
		patterns:          profile.GalleryPatterns(),
		selectors:         profile.RemovableSelectors(),
		scriptWhitelist:   profile.ScriptWhitelist(),
		scriptBlacklist:   profile.ScriptBlacklist(),
		resourceBlacklist: profile.ResourceBlacklist(),
		adBlock:           true,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("site", profile.Name())

	return e
}

// Profile returns the profile the engine applies.
func (e *Engine) Profile() *site.Profile {
	return e.profile
}

// Stats returns the decisions taken so far.
func (e *Engine) Stats() model.InterceptStats {
	return e.stats
}

// OnNavigationRequested blocks any URL that does not contain the domain filter.
func (e *Engine) OnNavigationRequested(rawURL string) Decision {
	if !strings.Contains(rawURL, e.domainFilter) {
		e.stats.NavigationsBlocked++
		e.logger.Debug("navigation blocked", "url", rawURL, "domain", e.domainFilter)
		return Block
	}
	e.stats.NavigationsAllowed++
	return Allow
}

// OnPageLoaded classifies rawURL and strips advertising elements from dom.
//
// Patterns are tried in declared order and the first match wins. Every
// removable selector is then handed to dom; removal errors are logged and
// never returned. A nil dom skips removal. A match is also sent to the
// gallery listener.
func (e *Engine) OnPageLoaded(ctx context.Context, rawURL string, dom ElementRemover) model.GalleryMatch {
	e.stats.PagesLoaded++

	match := e.Classify(rawURL)

	if dom != nil {
		for _, sel := range e.selectors {
			e.stats.RemovalRequests++
			if err := dom.RemoveElements(ctx, sel); err != nil {
				e.stats.RemovalFailures++
				e.logger.Warn("element removal failed", "url", rawURL, "selector", sel, "error", err)
			}
		}
	}

	if match.Matched {
		e.stats.Galleries++
		e.logger.Info("gallery detected", "url", rawURL, "pattern", match.Pattern)
		if e.listener != nil {
			e.listener.OnGalleryDetected(ctx, match)
		}
	}
	return match
}

// Classify matches rawURL against the gallery patterns without side effects.
func (e *Engine) Classify(rawURL string) model.GalleryMatch {
	for i, re := range e.patterns {
		if re.MatchString(rawURL) {
			return model.GalleryMatch{
				URL:     rawURL,
				Matched: true,
				Pattern: re.String(),
				Index:   i,
			}
		}
	}
	return model.NoMatch(rawURL)
}

// OnScriptRequested allows a script only when its URL starts with a
// whitelisted prefix and its body contains no blacklisted substring.
// The prefix check runs first; the blacklist always wins.
func (e *Engine) OnScriptRequested(scriptURL, body string) Decision {
	if !e.adBlock {
		e.stats.ScriptsAllowed++
		return Allow
	}

	if !e.scriptWhitelisted(scriptURL) {
		e.stats.ScriptsBlocked++
		e.logger.Debug("script blocked", "url", scriptURL, "reason", "not whitelisted")
		return Block
	}

	for _, needle := range e.scriptBlacklist {
		if needle != "" && strings.Contains(body, needle) {
			e.stats.ScriptsBlocked++
			e.logger.Debug("script blocked", "url", scriptURL, "reason", "blacklisted content", "match", needle)
			return Block
		}
	}

	e.stats.ScriptsAllowed++
	return Allow
}

// scriptWhitelisted tests the raw URL and the URL without its scheme and
// leading "www.", so a rule such as "example.com/cdn" covers
// "https://www.example.com/cdn/app.js".
func (e *Engine) scriptWhitelisted(scriptURL string) bool {
	bare := stripScheme(scriptURL)
	for _, prefix := range e.scriptWhitelist {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(scriptURL, prefix) || strings.HasPrefix(bare, prefix) {
			return true
		}
	}
	return false
}

// OnResourceRequested blocks non-script resources whose host and path match
// a resource blacklist glob.
func (e *Engine) OnResourceRequested(resourceURL string) Decision {
	if !e.adBlock || len(e.resourceBlacklist) == 0 {
		e.stats.ResourcesAllowed++
		return Allow
	}

	target := resourceURL
	if u, err := url.Parse(resourceURL); err == nil && u.Host != "" {
		target = u.Host + u.EscapedPath()
	}

	for _, glob := range e.resourceBlacklist {
		// Patterns are validated when the profile is built.
		if ok, _ := doublestar.Match(glob, target); ok {
			e.stats.ResourcesBlocked++
			e.logger.Debug("resource blocked", "url", resourceURL, "glob", glob)
			return Block
		}
	}

	e.stats.ResourcesAllowed++
	return Allow
}

func stripScheme(rawURL string) string {
	s := rawURL
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	} else {
		s = strings.TrimPrefix(s, "//")
	}
	return strings.TrimPrefix(s, "www.")
}
