package surface

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"

	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/site"
)

var (
	// ErrNoHandler is returned by Navigate before Bind was called.
	ErrNoHandler = errors.New("surface has no event handler")

	// ErrInvalidURL is returned for URLs a surface cannot load.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrNavigationBlocked is reported through LoadFailed when the handler
	// blocks a navigation.
	ErrNavigationBlocked = errors.New("navigation blocked")

	// ErrTooManyRedirects is reported through LoadFailed when a redirect
	// chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrNoDocument is returned when no page has been loaded yet.
	ErrNoDocument = errors.New("no document loaded")

	// ErrInvalidSelector is returned by RemoveElements for a malformed
	// CSS selector.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("surface closed")
)

// Handler receives the lifecycle events of a surface. Every method is
// called on the surface's event loop goroutine, one at a time.
// *tracker.Tracker implements it.
type Handler interface {
	// NavigationRequested decides whether a top-level navigation may
	// proceed. Redirect hops are asked too.
	NavigationRequested(url string) intercept.Decision

	// PageStarted reports that a top-level document began loading.
	PageStarted(url string)

	// PageFinished reports that the document at url finished loading.
	// url is the final URL after redirects.
	PageFinished(url string)

	// ScriptRequested decides whether an external script may run.
	ScriptRequested(url, body string) intercept.Decision

	// ResourceRequested decides whether a non-script subresource may load.
	ResourceRequested(url string) intercept.Decision

	// LoadFailed reports a navigation that will never finish.
	LoadFailed(url string, err error)
}

// Surface is a browsing surface: something that can load a page, report
// its lifecycle to a Handler and edit the loaded document.
type Surface interface {
	// Bind sets the handler. It must be called once, before Navigate.
	Bind(h Handler)

	// Navigate starts loading url and returns without waiting for it.
	// A navigation in progress is abandoned.
	Navigate(ctx context.Context, url string) error

	// RemoveElements removes every element matching a CSS selector from
	// the loaded document.
	RemoveElements(ctx context.Context, selector string) error

	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)

	// Page returns a description of the loaded document.
	Page(ctx context.Context) (*model.Page, error)

	// Close releases the surface. Pending loads are abandoned.
	Close() error
}

// Default limits.
const (
	DefaultMaxRedirects = 10
	DefaultMaxBodySize  = model.MaxPageSize
	DefaultRetryMax     = 2
)

// settings is shared by both surfaces. Options a surface has no use for
// are ignored.
type settings struct {
	logger       *slog.Logger
	userAgent    string
	headers      map[string]string
	cookie       string
	httpClient   *http.Client
	rps          float64
	burst        int
	retryMax     int
	maxBodySize  int64
	maxRedirects int
	chromePath   string
	headless     bool
	proxyServer  string
}

func newSettings(opts []Option) settings {
	s := settings{
		headers:      make(map[string]string),
		retryMax:     DefaultRetryMax,
		maxBodySize:  DefaultMaxBodySize,
		maxRedirects: DefaultMaxRedirects,
		headless:     true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Option configures a surface.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		s.userAgent = ua
	}
}

// WithHeaders adds request headers.
func WithHeaders(headers map[string]string) Option {
	return func(s *settings) {
		maps.Copy(s.headers, headers)
	}
}

// WithCookie sets the Cookie header.
func WithCookie(cookie string) Option {
	return func(s *settings) {
		s.cookie = cookie
	}
}

// WithProfile applies the user agent, headers and cookie of a site
// profile. fallbackUA is used when the profile has no user agent.
func WithProfile(p *site.Profile, fallbackUA string) Option {
	return func(s *settings) {
		s.userAgent = p.UserAgent(fallbackUA)
		maps.Copy(s.headers, p.Headers())
		if c := p.Cookie(); c != "" {
			s.cookie = c
		}
	}
}

// WithHTTPClient sets the base HTTP client of the static surface, for
// example one that dials through Tor.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithRateLimit limits static surface requests. rps <= 0 means unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) {
		s.rps = rps
		s.burst = burst
	}
}

// WithRetryMax sets how often the static surface retries a failed request.
func WithRetryMax(n int) Option {
	return func(s *settings) {
		s.retryMax = max(n, 0)
	}
}

// WithMaxBodySize caps the bytes read from one response.
func WithMaxBodySize(n int64) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithMaxRedirects caps the redirect hops of one static navigation.
func WithMaxRedirects(n int) Option {
	return func(s *settings) {
		s.maxRedirects = max(n, 0)
	}
}

// WithChromePath sets the Chrome binary. Empty means search the PATH.
func WithChromePath(path string) Option {
	return func(s *settings) {
		s.chromePath = path
	}
}

// WithHeadless controls whether Chrome runs headless. Default true.
func WithHeadless(headless bool) Option {
	return func(s *settings) {
		s.headless = headless
	}
}

// WithProxyServer routes Chrome through a proxy such as
// "socks5://127.0.0.1:9050".
func WithProxyServer(addr string) Option {
	return func(s *settings) {
		s.proxyServer = addr
	}
}

// decide runs fn on loop and returns its decision. Anything that prevents
// the call, such as a closed loop, allows the request.
func decide(ctx context.Context, loop *eventloop.Loop, fn func() intercept.Decision) intercept.Decision {
	d := intercept.Allow
	if err := loop.Do(ctx, func() { d = fn() }); err != nil {
		return intercept.Allow
	}
	return d
}
