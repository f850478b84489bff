package site

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/nao1215/gallerywatch/internal/config"
)

// Profile is the compiled, immutable rule set of one site.
// All accessors return copies, so a Profile can be shared between
// goroutines without synchronization.
type Profile struct {
	name               string
	domainFilter       string
	galleryPatterns    []*regexp.Regexp
	removableSelectors []string
	scriptWhitelist    []string
	scriptBlacklist    []string
	resourceBlacklist  []string
	userAgent          string
	cookie             string
	headers            map[string]string
	metadata           Metadata
}

// Metadata holds the selectors used to turn a gallery page into a record.
type Metadata struct {
	Title     string
	Cover     string
	Images    string
	ImageAttr string
}

// NewProfile validates rules and compiles them into a Profile.
// It fails with a *ConfigError when the domain filter is empty, when a
// gallery pattern does not compile, or when a selector or glob is malformed.
func NewProfile(name string, rules config.SiteConfig) (*Profile, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ConfigError{Field: "name", Err: ErrEmptyName}
	}
	if strings.TrimSpace(rules.Domain) == "" {
		return nil, &ConfigError{Site: name, Field: "domain", Err: ErrEmptyDomainFilter}
	}

	patterns := make([]*regexp.Regexp, 0, len(rules.GalleryPatterns))
	for _, p := range rules.GalleryPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &ConfigError{
				Site:  name,
				Field: "galleryPatterns",
				Value: p,
				Err:   fmt.Errorf("%w: %w", ErrInvalidPattern, err),
			}
		}
		patterns = append(patterns, re)
	}

	for _, sel := range rules.RemovableElements {
		if err := checkSelector(sel); err != nil {
			return nil, &ConfigError{Site: name, Field: "removableElements", Value: sel, Err: err}
		}
	}

	md := Metadata{
		Title:     rules.Metadata.Title,
		Cover:     rules.Metadata.Cover,
		Images:    rules.Metadata.Images,
		ImageAttr: rules.Metadata.ImageAttr,
	}
	if md.ImageAttr == "" {
		md.ImageAttr = "src"
	}
	// Checked in declaration order so the first bad field is reported.
	for _, f := range []struct{ field, sel string }{
		{"metadata.title", md.Title},
		{"metadata.cover", md.Cover},
		{"metadata.images", md.Images},
	} {
		if f.sel == "" {
			continue
		}
		if err := checkSelector(f.sel); err != nil {
			return nil, &ConfigError{Site: name, Field: f.field, Value: f.sel, Err: err}
		}
	}

	for _, g := range rules.ResourceBlacklist {
		if !doublestar.ValidatePattern(g) {
			return nil, &ConfigError{Site: name, Field: "resourceBlacklist", Value: g, Err: ErrInvalidGlob}
		}
	}

	return &Profile{
		name:               name,
		domainFilter:       rules.Domain,
		galleryPatterns:    patterns,
		removableSelectors: slices.Clone(rules.RemovableElements),
		scriptWhitelist:    slices.Clone(rules.ScriptWhitelist),
		scriptBlacklist:    slices.Clone(rules.ScriptBlacklist),
		resourceBlacklist:  slices.Clone(rules.ResourceBlacklist),
		userAgent:          rules.UserAgent,
		cookie:             rules.Cookie,
		headers:            maps.Clone(rules.Headers),
		metadata:           md,
	}, nil
}

func checkSelector(sel string) error {
	if _, err := cascadia.Compile(sel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSelector, err)
	}
	return nil
}

// Name returns the site name.
func (p *Profile) Name() string { return p.name }

// DomainFilter returns the substring every allowed URL must contain.
func (p *Profile) DomainFilter() string { return p.domainFilter }

// GalleryPatterns returns the gallery patterns in declared order.
// *regexp.Regexp is safe for concurrent use.
func (p *Profile) GalleryPatterns() []*regexp.Regexp { return slices.Clone(p.galleryPatterns) }

// RemovableSelectors returns the selectors removed from every page.
func (p *Profile) RemovableSelectors() []string { return slices.Clone(p.removableSelectors) }

// ScriptWhitelist returns the script URL prefixes.
func (p *Profile) ScriptWhitelist() []string { return slices.Clone(p.scriptWhitelist) }

// ScriptBlacklist returns the script body substrings.
func (p *Profile) ScriptBlacklist() []string { return slices.Clone(p.scriptBlacklist) }

// ResourceBlacklist returns the resource globs.
func (p *Profile) ResourceBlacklist() []string { return slices.Clone(p.resourceBlacklist) }

// UserAgent returns the site user agent, or fallback when none is set.
func (p *Profile) UserAgent(fallback string) string {
	if p.userAgent == "" {
		return fallback
	}
	return p.userAgent
}

// Cookie returns the cookie sent with every request.
func (p *Profile) Cookie() string { return p.cookie }

// Headers returns the extra request headers.
func (p *Profile) Headers() map[string]string { return maps.Clone(p.headers) }

// Metadata returns the gallery metadata selectors.
func (p *Profile) Metadata() Metadata { return p.metadata }
