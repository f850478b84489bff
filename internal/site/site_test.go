package site

import (
	"errors"
	"testing"

	"github.com/nao1215/gallerywatch/internal/config"
)

func validRules() config.SiteConfig {
	return config.SiteConfig{
		Domain:            "example.com",
		GalleryPatterns:   []string{`example.com/item/[\w-]+/$`},
		RemovableElements: []string{"iframe", ".c-ads"},
		ScriptWhitelist:   []string{"example.com/cdn"},
		ScriptBlacklist:   []string{"popunder"},
		ResourceBlacklist: []string{"**/ads/**"},
		Headers:           map[string]string{"X-Test": "1"},
	}
}

// TestNewProfile tests profile validation.
func TestNewProfile(t *testing.T) {
	t.Parallel()

	t.Run("valid rules compile", func(t *testing.T) {
		t.Parallel()
		p, err := NewProfile("example", validRules())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.Name() != "example" {
			t.Errorf("expected name example, got %q", p.Name())
		}
		if p.DomainFilter() != "example.com" {
			t.Errorf("expected domain example.com, got %q", p.DomainFilter())
		}
		if len(p.GalleryPatterns()) != 1 {
			t.Errorf("expected 1 pattern, got %d", len(p.GalleryPatterns()))
		}
		if p.Metadata().ImageAttr != "src" {
			t.Errorf("expected default image attr src, got %q", p.Metadata().ImageAttr)
		}
	})

	tests := []struct {
		name      string
		site      string
		mutate    func(*config.SiteConfig)
		wantErr   error
		wantField string
	}{
		{"empty name", "", func(*config.SiteConfig) {}, ErrEmptyName, "name"},
		{"empty domain", "s", func(c *config.SiteConfig) { c.Domain = "" }, ErrEmptyDomainFilter, "domain"},
		{"blank domain", "s", func(c *config.SiteConfig) { c.Domain = "  " }, ErrEmptyDomainFilter, "domain"},
		{"bad pattern", "s", func(c *config.SiteConfig) { c.GalleryPatterns = []string{"ok", "[unclosed"} }, ErrInvalidPattern, "galleryPatterns"},
		{"bad selector", "s", func(c *config.SiteConfig) { c.RemovableElements = []string{"div[["} }, ErrInvalidSelector, "removableElements"},
		{"bad metadata selector", "s", func(c *config.SiteConfig) { c.Metadata.Images = "li[[" }, ErrInvalidSelector, "metadata.images"},
		{"first bad metadata selector wins", "s", func(c *config.SiteConfig) {
			c.Metadata.Cover = "img[["
			c.Metadata.Images = "li[["
		}, ErrInvalidSelector, "metadata.cover"},
		{"bad glob", "s", func(c *config.SiteConfig) { c.ResourceBlacklist = []string{"ads/[x"} }, ErrInvalidGlob, "resourceBlacklist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rules := validRules()
			tt.mutate(&rules)

			p, err := NewProfile(tt.site, rules)
			if p != nil {
				t.Error("expected nil profile on error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
		})
	}
}

// TestNewProfileMetadataErrorIsStable tests that the reported metadata
// field does not change between runs when several selectors are bad.
func TestNewProfileMetadataErrorIsStable(t *testing.T) {
	t.Parallel()

	rules := validRules()
	rules.Metadata = config.MetadataConfig{Title: "h1[[", Cover: "img[[", Images: "li[["}

	for i := range 50 {
		_, err := NewProfile("s", rules)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("run %d: expected *ConfigError, got %v", i, err)
		}
		if cfgErr.Field != "metadata.title" || cfgErr.Value != "h1[[" {
			t.Fatalf("run %d: expected metadata.title %q, got %s %q", i, "h1[[", cfgErr.Field, cfgErr.Value)
		}
	}
}

// TestProfileImmutable tests that accessors hand out copies.
func TestProfileImmutable(t *testing.T) {
	t.Parallel()

	rules := validRules()
	p, err := NewProfile("example", rules)
	if err != nil {
		t.Fatal(err)
	}

	rules.RemovableElements[0] = "mutated"
	rules.Headers["X-Test"] = "mutated"
	if p.RemovableSelectors()[0] != "iframe" {
		t.Error("expected profile to be isolated from the rules it was built from")
	}

	sels := p.RemovableSelectors()
	sels[0] = "mutated"
	if p.RemovableSelectors()[0] != "iframe" {
		t.Error("expected accessor to return a copy")
	}

	h := p.Headers()
	h["X-Test"] = "mutated"
	if p.Headers()["X-Test"] != "1" {
		t.Error("expected headers accessor to return a copy")
	}
}

// TestProfileUserAgent tests the user agent fallback.
func TestProfileUserAgent(t *testing.T) {
	t.Parallel()

	p, err := NewProfile("example", validRules())
	if err != nil {
		t.Fatal(err)
	}
	if got := p.UserAgent("fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}

	rules := validRules()
	rules.UserAgent = "custom"
	p, err = NewProfile("example", rules)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.UserAgent("fallback"); got != "custom" {
		t.Errorf("expected custom, got %q", got)
	}
}

// TestConfigErrorMessage tests the error text.
func TestConfigErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Site: "s", Field: "galleryPatterns", Value: "[", Err: ErrInvalidPattern}
	want := `site "s": galleryPatterns "[": invalid gallery pattern`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	err = &ConfigError{Site: "s", Field: "domain", Err: ErrEmptyDomainFilter}
	want = `site "s": domain: domain filter is empty`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

// TestNewRegistry tests that invalid sites are skipped and reported.
func TestNewRegistry(t *testing.T) {
	t.Parallel()

	cf := &config.File{
		Defaults: config.SiteConfig{RemovableElements: []string{"iframe"}},
		Sites: map[string]config.SiteConfig{
			"good":   {Domain: "example.com", GalleryPatterns: []string{`/item/\d+/$`}},
			"nodom":  {GalleryPatterns: []string{"x"}},
			"badre":  {Domain: "bad.org", GalleryPatterns: []string{"(("}},
			"images": {Domain: "img.example.com"},
		},
	}

	r, err := NewRegistry(cf, nil)
	if err == nil {
		t.Fatal("expected joined error for invalid sites")
	}
	if !errors.Is(err, ErrEmptyDomainFilter) || !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected both causes in joined error, got %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 registered sites, got %d (%v)", r.Len(), r.Names())
	}
	if _, ok := r.Lookup("badre"); ok {
		t.Error("expected invalid site to be left out")
	}

	good, ok := r.Lookup("good")
	if !ok {
		t.Fatal("expected good site to be registered")
	}
	if len(good.RemovableSelectors()) != 1 {
		t.Errorf("expected defaults to be merged, got %v", good.RemovableSelectors())
	}

	t.Run("ForURL picks the longest domain", func(t *testing.T) {
		t.Parallel()
		p, ok := r.ForURL("https://img.example.com/a.jpg")
		if !ok || p.Name() != "images" {
			t.Errorf("expected images profile, got %v", p)
		}
		p, ok = r.ForURL("https://www.example.com/item/1/")
		if !ok || p.Name() != "good" {
			t.Errorf("expected good profile, got %v", p)
		}
	})

	t.Run("ForURL without match", func(t *testing.T) {
		t.Parallel()
		if _, ok := r.ForURL("https://unrelated.net/"); ok {
			t.Error("expected no profile")
		}
		if _, ok := r.ForURL("not a url"); ok {
			t.Error("expected no profile for invalid URL")
		}
	})
}

// TestNewRegistryNilFile tests the empty registry.
func TestNewRegistryNilFile(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("expected empty registry, got %d", r.Len())
	}
}
