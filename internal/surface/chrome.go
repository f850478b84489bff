package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/gallerywatch/internal/eventloop"
	"github.com/nao1215/gallerywatch/internal/intercept"
	"github.com/nao1215/gallerywatch/internal/model"
)

// chromeStartTimeout bounds browser startup.
const chromeStartTimeout = 30 * time.Second

// Chrome is a browsing surface backed by a headless Chrome tab.
//
// Requests are intercepted with the CDP Fetch domain: top-level document
// requests go to NavigationRequested, script responses to ScriptRequested
// with their body, and every other request to ResourceRequested. Blocked
// requests fail with BlockedByClient.
type Chrome struct {
	settings
	loop    *eventloop.Loop
	handler Handler

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	mainFrame   cdp.FrameID

	mu        sync.Mutex
	navCancel context.CancelFunc
	docReqID  network.RequestID
	lastDoc   string
	scripts   []model.Element
	resources []model.Element
	redirects []string
	status    int
	closed    bool

	wg sync.WaitGroup
}

// NewChrome launches Chrome and prepares a tab whose events are delivered
// on loop.
func NewChrome(ctx context.Context, loop *eventloop.Loop, opts ...Option) (*Chrome, error) {
	c := &Chrome{
		settings: newSettings(opts),
		loop:     loop,
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-popup-blocking", false),
		chromedp.Flag("disable-sync", true),
	)
	if !c.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if c.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.chromePath))
	}
	if c.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.userAgent))
	}
	if c.proxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(c.proxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}))
	c.allocCancel = allocCancel
	c.tabCtx = tabCtx
	c.tabCancel = tabCancel

	chromedp.ListenTarget(tabCtx, c.onEvent)

	headers := make(network.Headers, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}
	if c.cookie != "" {
		headers["Cookie"] = c.cookie
	}

	startCtx, startDone := context.WithTimeout(tabCtx, chromeStartTimeout)
	defer startDone()

	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
			{URLPattern: "*", ResourceType: network.ResourceTypeScript, RequestStage: fetch.RequestStageResponse},
		}),
	)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	// The main frame of a page target shares the target's ID.
	c.mainFrame = cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID)

	return c, nil
}

// Bind sets the event handler.
func (c *Chrome) Bind(h Handler) {
	c.handler = h
}

// Navigate starts loading rawURL in the tab and returns without waiting.
func (c *Chrome) Navigate(ctx context.Context, rawURL string) error {
	if c.handler == nil {
		return ErrNoHandler
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.navCancel != nil {
		c.navCancel()
	}
	navCtx, cancel := c.bind(ctx)
	c.navCancel = cancel
	c.mu.Unlock()

	c.wg.Go(func() {
		defer cancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate(rawURL)); err != nil {
			if navCtx.Err() != nil {
				c.logger.Debug("navigation cancelled", "url", rawURL)
				return
			}
			if strings.Contains(err.Error(), "ERR_BLOCKED_BY_CLIENT") {
				err = fmt.Errorf("%w: %s", ErrNavigationBlocked, rawURL)
			}
			c.loop.Post(func() { c.handler.LoadFailed(rawURL, err) })
		}
	})
	return nil
}

// bind derives a chromedp context from the tab that is also cancelled
// with ctx.
func (c *Chrome) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(c.tabCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (c *Chrome) onEvent(ev any) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		c.wg.Go(func() { c.onRequestPaused(e) })
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && e.FrameID == c.mainFrame && e.Response != nil {
			c.mu.Lock()
			c.status = int(e.Response.Status)
			c.mu.Unlock()
		}
	case *page.EventLoadEventFired:
		c.wg.Go(c.onLoadFired)
	}
}

func (c *Chrome) onRequestPaused(e *fetch.EventRequestPaused) {
	reqURL := e.Request.URL
	responseStage := e.ResponseStatusCode != 0 || e.ResponseErrorReason != ""

	switch {
	case e.ResourceType == network.ResourceTypeScript && responseStage:
		var body []byte
		err := chromedp.Run(c.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = fetch.GetResponseBody(e.RequestID).Do(ctx)
			return err
		}))
		if err != nil {
			c.logger.Debug("script body unavailable", "url", reqURL, "error", err)
		}
		d := decide(c.tabCtx, c.loop, func() intercept.Decision { return c.handler.ScriptRequested(reqURL, string(body)) })
		c.record(model.Element{Source: reqURL, Tag: "script", Blocked: d == intercept.Block})
		c.resolve(e.RequestID, d)

	case e.ResourceType == network.ResourceTypeScript:
		// Judged once the body has arrived.
		c.resolve(e.RequestID, intercept.Allow)

	case e.ResourceType == network.ResourceTypeDocument && e.FrameID == c.mainFrame:
		d := decide(c.tabCtx, c.loop, func() intercept.Decision { return c.handler.NavigationRequested(reqURL) })
		if d == intercept.Allow {
			c.startDocument(reqURL, e.NetworkID)
			c.loop.Post(func() { c.handler.PageStarted(reqURL) })
		} else {
			c.logger.Debug("navigation blocked", "url", reqURL)
		}
		c.resolve(e.RequestID, d)

	default:
		d := decide(c.tabCtx, c.loop, func() intercept.Decision { return c.handler.ResourceRequested(reqURL) })
		c.record(model.Element{Source: reqURL, Tag: strings.ToLower(string(e.ResourceType)), Blocked: d == intercept.Block})
		c.resolve(e.RequestID, d)
	}
}

// startDocument resets the per-page element log. Redirect hops share the
// network request ID of the first hop; they keep the log and extend the
// redirect chain instead.
func (c *Chrome) startDocument(docURL string, networkID network.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if networkID != "" && networkID == c.docReqID {
		c.redirects = append(c.redirects, c.lastDoc)
		c.lastDoc = docURL
		return
	}
	c.docReqID = networkID
	c.lastDoc = docURL
	c.scripts = nil
	c.resources = nil
	c.redirects = nil
	c.status = 0
}

func (c *Chrome) record(el model.Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el.Tag == "script" {
		c.scripts = append(c.scripts, el)
		return
	}
	c.resources = append(c.resources, el)
}

func (c *Chrome) resolve(id fetch.RequestID, d intercept.Decision) {
	err := chromedp.Run(c.tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if d == intercept.Block {
			return fetch.FailRequest(id, network.ErrorReasonBlockedByClient).Do(ctx)
		}
		return fetch.ContinueRequest(id).Do(ctx)
	}))
	if err != nil && c.tabCtx.Err() == nil {
		c.logger.Debug("failed to resolve paused request", "id", id, "error", err)
	}
}

func (c *Chrome) onLoadFired() {
	var location string
	if err := chromedp.Run(c.tabCtx, chromedp.Location(&location)); err != nil {
		c.logger.Debug("location unavailable after load", "error", err)
		return
	}
	c.loop.Post(func() { c.handler.PageFinished(location) })
}

// RemoveElements removes every element matching selector from the DOM.
func (c *Chrome) RemoveElements(ctx context.Context, selector string) error {
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	quoted, err := json.Marshal(selector)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}

	script := fmt.Sprintf(`(() => {
		const nodes = document.querySelectorAll(%s);
		nodes.forEach(n => n.remove());
		return nodes.length;
	})()`, quoted)

	runCtx, cancel := c.bind(ctx)
	defer cancel()

	var removed int
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &removed)); err != nil {
		return fmt.Errorf("failed to remove %q: %w", selector, err)
	}
	c.logger.Debug("elements removed", "selector", selector, "count", removed)
	return nil
}

// HTML returns the serialized DOM.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	runCtx, cancel := c.bind(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

// Page describes the loaded document and the requests judged while it
// loaded.
func (c *Chrome) Page(ctx context.Context) (*model.Page, error) {
	runCtx, cancel := c.bind(ctx)
	defer cancel()

	var location, title, html string
	err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe page: %w", err)
	}

	c.mu.Lock()
	p := &model.Page{
		URL:         location,
		StatusCode:  c.status,
		ContentType: "text/html",
		Title:       strings.TrimSpace(title),
		Scripts:     slices.Clone(c.scripts),
		Resources:   slices.Clone(c.resources),
		Redirects:   slices.Clone(c.redirects),
		Raw:         []byte(html),
		FetchedAt:   time.Now(),
	}
	c.mu.Unlock()

	p.TruncateRaw()
	p.ComputeHash()
	return p, nil
}

// Close shuts the tab and the browser down.
func (c *Chrome) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.navCancel != nil {
		c.navCancel()
	}
	c.mu.Unlock()

	c.tabCancel()
	c.allocCancel()
	c.wg.Wait()
	return nil
}
