// Package intercept implements the per-site interception and classification
// engine.
//
// An Engine is parameterized by a site.Profile and answers one question per
// browsing surface event:
//
//   - OnNavigationRequested: is the URL inside the allowed domain?
//   - OnPageLoaded: is the URL a gallery page? It also strips ad elements.
//   - OnScriptRequested: may this script run?
//   - OnResourceRequested: may this subresource load?
//
// Site differences are expressed only through profile data; there is one
// engine type for every site.
package intercept
