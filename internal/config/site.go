package config

import (
	"maps"
	"sort"
	"strings"
)

// SiteConfig holds the declarative rules for a single site.
// It is plain data; internal/site compiles and validates it into a Profile.
type SiteConfig struct {
	// Domain is the substring every navigated URL must contain.
	Domain string `yaml:"domain,omitempty"`

	// GalleryPatterns are regular expressions tried in order against the
	// full URL. The first match classifies the page as a gallery.
	GalleryPatterns []string `yaml:"galleryPatterns,omitempty"`

	// RemovableElements are CSS selectors removed from every loaded page.
	RemovableElements []string `yaml:"removableElements,omitempty"`

	// ScriptWhitelist are URL prefixes allowed to execute script.
	// The scheme and a leading "www." are ignored when matching.
	ScriptWhitelist []string `yaml:"scriptWhitelist,omitempty"`

	// ScriptBlacklist are substrings that block a script body even when its
	// URL is whitelisted.
	ScriptBlacklist []string `yaml:"scriptBlacklist,omitempty"`

	// ResourceBlacklist are glob patterns (doublestar syntax) matched against
	// host+path of non-script resources.
	ResourceBlacklist []string `yaml:"resourceBlacklist,omitempty"`

	// UserAgent overrides the global user agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Metadata holds the selectors used to extract gallery metadata.
	Metadata MetadataConfig `yaml:"metadata,omitempty"`
}

// MetadataConfig holds the CSS selectors that describe a gallery page.
type MetadataConfig struct {
	// Title selects the element whose text is the gallery title.
	Title string `yaml:"title,omitempty"`

	// Cover selects the cover image element.
	Cover string `yaml:"cover,omitempty"`

	// Images selects every page image element, in reading order.
	Images string `yaml:"images,omitempty"`

	// ImageAttr is the attribute holding the image URL. Lazy loading sites
	// often use "data-src". Defaults to "src".
	ImageAttr string `yaml:"imageAttr,omitempty"`
}

// IsZero reports whether no metadata selector is configured.
func (m MetadataConfig) IsZero() bool {
	return m.Title == "" && m.Cover == "" && m.Images == ""
}

// File represents the structure of the rules file.
type File struct {
	// Sites maps site names to their rules.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults are merged into every site unless the site overrides them.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// SiteNames returns the configured site names in sorted order.
func (cf *File) SiteNames() []string {
	names := make([]string, 0, len(cf.Sites))
	for name := range cf.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetSiteConfig returns the rules for the named site merged with defaults.
// The second result is false when the site is not configured.
func (cf *File) GetSiteConfig(name string) (SiteConfig, bool) {
	siteConfig, ok := cf.Sites[name]
	if !ok {
		return cf.Defaults, false
	}
	return merge(cf.Defaults, siteConfig), true
}

// SiteForHost returns the name of the site whose domain is contained in host.
// When several sites match, the longest domain wins.
func (cf *File) SiteForHost(host string) (string, bool) {
	host = strings.ToLower(host)
	best := ""
	bestLen := 0
	for _, name := range cf.SiteNames() {
		domain := strings.ToLower(cf.Sites[name].Domain)
		if domain == "" || !strings.Contains(host, domain) {
			continue
		}
		if len(domain) > bestLen {
			best = name
			bestLen = len(domain)
		}
	}
	return best, best != ""
}

// merge overlays site on top of defaults. Slices replace, headers are merged.
func merge(defaults, site SiteConfig) SiteConfig {
	result := defaults
	result.Headers = maps.Clone(defaults.Headers)

	if site.Domain != "" {
		result.Domain = site.Domain
	}
	if len(site.GalleryPatterns) > 0 {
		result.GalleryPatterns = site.GalleryPatterns
	}
	if len(site.RemovableElements) > 0 {
		result.RemovableElements = site.RemovableElements
	}
	if len(site.ScriptWhitelist) > 0 {
		result.ScriptWhitelist = site.ScriptWhitelist
	}
	if len(site.ScriptBlacklist) > 0 {
		result.ScriptBlacklist = site.ScriptBlacklist
	}
	if len(site.ResourceBlacklist) > 0 {
		result.ResourceBlacklist = site.ResourceBlacklist
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.Metadata.Title != "" {
		result.Metadata.Title = site.Metadata.Title
	}
	if site.Metadata.Cover != "" {
		result.Metadata.Cover = site.Metadata.Cover
	}
	if site.Metadata.Images != "" {
		result.Metadata.Images = site.Metadata.Images
	}
	if site.Metadata.ImageAttr != "" {
		result.Metadata.ImageAttr = site.Metadata.ImageAttr
	}
	return result
}
