package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// MaxPageSize is the maximum raw body size kept on a Page.
const MaxPageSize = 5 * 1024 * 1024 // 5MB

// Page is the document a browsing surface currently shows, after
// interception has been applied.
type Page struct {
	// URL is the final URL of the document after redirects.
	URL string `json:"url"`

	// StatusCode is the HTTP status code of the final response.
	StatusCode int `json:"status_code"`

	// Headers contains the response headers in canonical form.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the detected MIME type of the body.
	ContentType string `json:"content_type"`

	// Title is the text of the <title> element. Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Scripts lists every external script the page referenced.
	Scripts []Element `json:"scripts,omitempty"`

	// Resources lists non-script subresources (images, frames, stylesheets).
	Resources []Element `json:"resources,omitempty"`

	// Redirects lists the intermediate URLs visited before URL.
	Redirects []string `json:"redirects,omitempty"`

	// Hash is the hex SHA3-256 of Raw.
	Hash string `json:"hash,omitempty"`

	// Raw is the response body, capped at MaxPageSize.
	Raw []byte `json:"-"`

	// FetchedAt is when the final response arrived.
	FetchedAt time.Time `json:"fetched_at"`
}

// Element is a subresource referenced by a page.
type Element struct {
	// Source is the absolute URL of the resource.
	Source string `json:"source"`

	// Tag is the HTML tag that referenced it (script, img, iframe, link...).
	Tag string `json:"tag"`

	// Blocked is true when interception removed the element.
	Blocked bool `json:"blocked"`
}

// ComputeHash sets Hash from Raw.
func (p *Page) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}
	sum := sha3.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(sum[:])
}

// GetHeader returns the first value of the named header.
func (p *Page) GetHeader(name string) string {
	if values, ok := p.Headers[name]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// IsHTML returns true if the page content type indicates HTML.
func (p *Page) IsHTML() bool {
	return strings.HasPrefix(p.ContentType, "text/html") ||
		strings.HasPrefix(p.ContentType, "application/xhtml+xml")
}

// BlockedScripts returns the number of scripts removed from the page.
func (p *Page) BlockedScripts() int {
	return countBlocked(p.Scripts)
}

// BlockedResources returns the number of resources removed from the page.
func (p *Page) BlockedResources() int {
	return countBlocked(p.Resources)
}

func countBlocked(elems []Element) int {
	n := 0
	for _, e := range elems {
		if e.Blocked {
			n++
		}
	}
	return n
}

// TruncateRaw ensures the raw content doesn't exceed MaxPageSize.
func (p *Page) TruncateRaw() {
	if len(p.Raw) > MaxPageSize {
		p.Raw = p.Raw[:MaxPageSize]
	}
}
