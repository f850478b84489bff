package parser

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts the title, links and subresource references of an HTML
// document.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
// All URLs are absolute.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains all href targets of <a> elements.
	Links []string

	// InternalLinks are links to the page's own host.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string

	// Scripts contains external script sources.
	Scripts []string

	// Images contains image sources, including lazy-loading attributes.
	Images []string

	// Frames contains iframe sources.
	Frames []string

	// Stylesheets contains linked stylesheet URLs.
	Stylesheets []string

	// MetaTags maps meta name or property to content.
	MetaTags map[string]string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts all references in one pass.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
		Scripts:       make([]string, 0),
		Images:        make([]string, 0),
		Frames:        make([]string, 0),
		Stylesheets:   make([]string, 0),
		MetaTags:      make(map[string]string),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if resolved := p.ResolveURL(getAttr(n, "href")); resolved != "" {
			result.Links = append(result.Links, resolved)
			p.classifyLink(resolved, result)
		}

	case "script":
		if resolved := p.ResolveURL(getAttr(n, "src")); resolved != "" {
			result.Scripts = append(result.Scripts, resolved)
		}

	case "img":
		src := getAttr(n, "data-src")
		if src == "" {
			src = getAttr(n, "src")
		}
		if resolved := p.ResolveURL(src); resolved != "" {
			result.Images = append(result.Images, resolved)
		}

	case "iframe":
		if resolved := p.ResolveURL(getAttr(n, "src")); resolved != "" {
			result.Frames = append(result.Frames, resolved)
		}

	case "meta":
		name := getAttr(n, "name")
		if name == "" {
			name = getAttr(n, "property") // OpenGraph uses property
		}
		content := getAttr(n, "content")
		if name != "" && content != "" {
			result.MetaTags[name] = content
		}

	case "link":
		if !strings.EqualFold(getAttr(n, "rel"), "stylesheet") {
			return
		}
		if resolved := p.ResolveURL(getAttr(n, "href")); resolved != "" {
			result.Stylesheets = append(result.Stylesheets, resolved)
		}
	}
}

// ResolveURL resolves href against the base URL. It returns "" for empty
// references, fragments and non-fetchable schemes.
func (p *Parser) ResolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	if strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return p.baseURL.ResolveReference(u).String()
}

// classifyLink sorts a link into internal or external.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}

	if u.Host == "" || strings.EqualFold(u.Hostname(), p.baseURL.Hostname()) {
		result.InternalLinks = append(result.InternalLinks, link)
		return
	}
	result.ExternalLinks = append(result.ExternalLinks, link)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
