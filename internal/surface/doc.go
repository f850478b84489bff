// Package surface provides the browsing surfaces that load pages on behalf
// of the navigation tracker.
//
// A Surface loads a URL and reports the page lifecycle to a Handler:
// navigation and redirect decisions, page start and finish, and one
// decision per external script and subresource. Handler methods always run
// on the eventloop.Loop the surface was created with, so the handler needs
// no locks.
//
// Static fetches documents over HTTP with go-retryablehttp, never runs
// scripts and edits the document with goquery. Chrome drives a headless
// Chrome tab through chromedp and intercepts requests with the CDP Fetch
// domain.
package surface
