package surface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/parser"
)

// resourceSelectors lists the subresource elements the static surface asks
// about, with the attribute holding their URL.
var resourceSelectors = []struct {
	selector string
	attr     string
}{
	{"img[src]", "src"},
	{"iframe[src]", "src"},
	{"source[src]", "src"},
	{"embed[src]", "src"},
	{`link[rel="stylesheet"][href]`, "href"},
}

// Static is a browsing surface that fetches documents over HTTP and never
// executes scripts. External scripts are still downloaded so their bodies
// can be checked, and elements the handler blocks are removed from the
// document.
//
// Events are posted to the event loop given to NewStatic.
type Static struct {
	settings
	client  *retryablehttp.Client
	limiter *rate.Limiter
	loop    *eventloop.Loop
	handler Handler

	mu     sync.Mutex
	doc    *goquery.Document
	page   *model.Page
	cancel context.CancelFunc
	closed bool

	wg sync.WaitGroup
}

// NewStatic creates a static surface delivering events on loop.
func NewStatic(loop *eventloop.Loop, opts ...Option) *Static {
	s := &Static{
		settings: newSettings(opts),
		loop:     loop,
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = s.retryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = s.logger
	// Hand back the last response instead of an error so 5xx pages are
	// still reported.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	base := rc.HTTPClient
	if s.httpClient != nil {
		base = s.httpClient
	}
	hc := *base
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	rc.HTTPClient = &hc
	s.client = rc

	if s.rps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		s.limiter = rate.NewLimiter(rate.Limit(s.rps), max(s.burst, 1))
	}

	return s
}

// Bind sets the event handler.
func (s *Static) Bind(h Handler) {
	s.handler = h
}

// Navigate starts fetching rawURL in the background. A fetch in progress is
// cancelled and reports nothing further.
func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	if s.handler == nil {
		return ErrNoHandler
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.cancel != nil {
		s.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Go(func() {
		defer cancel()
		s.load(loadCtx, rawURL)
	})
	return nil
}

// load follows redirects by hand so every hop passes NavigationRequested.
func (s *Static) load(ctx context.Context, target string) {
	current := target
	var redirects []string

	for hop := 0; ; hop++ {
		hopURL := current
		if decide(ctx, s.loop, func() intercept.Decision { return s.handler.NavigationRequested(hopURL) }) == intercept.Block {
			s.logger.Debug("navigation blocked", "url", hopURL)
			s.fail(ctx, target, fmt.Errorf("%w: %s", ErrNavigationBlocked, hopURL))
			return
		}
		s.loop.Post(func() { s.handler.PageStarted(hopURL) })

		resp, err := s.get(ctx, hopURL)
		if err != nil {
			s.fail(ctx, target, err)
			return
		}

		if next, ok := redirectTarget(resp); ok {
			_ = resp.Body.Close()
			if hop >= s.maxRedirects {
				s.fail(ctx, target, fmt.Errorf("%w: stopped at %s", ErrTooManyRedirects, hopURL))
				return
			}
			redirects = append(redirects, hopURL)
			current = next
			continue
		}

		page, doc, err := s.render(ctx, hopURL, resp)
		_ = resp.Body.Close()
		if err != nil {
			s.fail(ctx, target, err)
			return
		}
		page.Redirects = redirects

		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		s.page = page
		s.doc = doc
		s.mu.Unlock()

		s.loop.Post(func() { s.handler.PageFinished(hopURL) })
		return
	}
}

// fail reports err for target unless the load was cancelled.
func (s *Static) fail(ctx context.Context, target string, err error) {
	if ctx.Err() != nil {
		s.logger.Debug("load cancelled", "url", target, "error", err)
		return
	}
	s.loop.Post(func() { s.handler.LoadFailed(target, err) })
}

func (s *Static) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	return resp, nil
}

func redirectTarget(resp *http.Response) (string, bool) {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return "", false
	}
	loc, err := resp.Location()
	if err != nil {
		return "", false
	}
	return loc.String(), true
}

// render reads the body and, for HTML, applies the script and resource
// rules to the document.
func (s *Static) render(ctx context.Context, pageURL string, resp *http.Response) (*model.Page, *goquery.Document, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read body: %w", err)
	}

	mt := mimetype.Detect(body)
	page := &model.Page{
		URL:         pageURL,
		StatusCode:  resp.StatusCode,
		Headers:     maps.Clone(map[string][]string(resp.Header)),
		ContentType: mt.String(),
		Raw:         body,
		FetchedAt:   time.Now(),
	}
	page.ComputeHash()

	declared := strings.ToLower(resp.Header.Get("Content-Type"))
	if !mt.Is("text/html") && !strings.HasPrefix(declared, "text/html") {
		return page, nil, nil
	}
	page.ContentType = "text/html"

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse document: %w", err)
	}

	p, err := parser.NewParser(pageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	page.Title = parser.NormalizeTitle(doc.Find("title").First().Text())

	page.Scripts = s.filterScripts(ctx, p, doc)
	page.Resources = s.filterResources(ctx, p, doc)

	return page, doc, nil
}

func (s *Static) filterScripts(ctx context.Context, p *parser.Parser, doc *goquery.Document) []model.Element {
	var elems []model.Element

	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		scriptURL := p.ResolveURL(src)
		if scriptURL == "" || ctx.Err() != nil {
			return
		}

		body := s.scriptBody(ctx, scriptURL)
		d := decide(ctx, s.loop, func() intercept.Decision { return s.handler.ScriptRequested(scriptURL, body) })
		blocked := d == intercept.Block
		if blocked {
			sel.Remove()
		}
		elems = append(elems, model.Element{Source: scriptURL, Tag: "script", Blocked: blocked})
	})

	return elems
}

// scriptBody downloads a script. Failures yield an empty body, which only
// the URL rules can then judge.
func (s *Static) scriptBody(ctx context.Context, scriptURL string) string {
	resp, err := s.get(ctx, scriptURL)
	if err != nil {
		s.logger.Debug("script fetch failed", "url", scriptURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		s.logger.Debug("script read failed", "url", scriptURL, "error", err)
		return ""
	}
	return string(body)
}

func (s *Static) filterResources(ctx context.Context, p *parser.Parser, doc *goquery.Document) []model.Element {
	var elems []model.Element

	for _, rs := range resourceSelectors {
		doc.Find(rs.selector).Each(func(_ int, sel *goquery.Selection) {
			raw, _ := sel.Attr(rs.attr)
			resURL := p.ResolveURL(raw)
			if resURL == "" || ctx.Err() != nil {
				return
			}

			d := decide(ctx, s.loop, func() intercept.Decision { return s.handler.ResourceRequested(resURL) })
			blocked := d == intercept.Block
			if blocked {
				sel.Remove()
			}
			elems = append(elems, model.Element{Source: resURL, Tag: goquery.NodeName(sel), Blocked: blocked})
		})
	}

	return elems
}

// RemoveElements removes every element matching selector from the current
// document.
func (s *Static) RemoveElements(_ context.Context, selector string) error {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return ErrNoDocument
	}
	s.doc.FindMatcher(m).Remove()
	return nil
}

// HTML returns the current document after interception.
func (s *Static) HTML(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", ErrNoDocument
	}
	return s.doc.Html()
}

// Page returns a copy of the current page description.
func (s *Static) Page(_ context.Context) (*model.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrNoDocument
	}
	p := *s.page
	p.Scripts = slices.Clone(s.page.Scripts)
	p.Resources = slices.Clone(s.page.Resources)
	p.Redirects = slices.Clone(s.page.Redirects)
	return &p, nil
}

// Close cancels the current load and waits for it to stop.
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
