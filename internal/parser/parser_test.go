package parser

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/site"
)

// TestParser tests HTML parsing functionality.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title> Test Page </title></head><body></body></html>`
		parser, err := NewParser("https://example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("extracts links and classifies them", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/internal">Internal Link</a>
			<a href="https://example.com/same">Same Host</a>
			<a href="https://other.example/external">External</a>
			<a href="javascript:void(0)">Script</a>
			<a href="#top">Fragment</a>
		</body></html>`

		parser, err := NewParser("https://example.com/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if len(result.Links) != 3 {
			t.Errorf("expected 3 links, got %d: %v", len(result.Links), result.Links)
		}
		if len(result.InternalLinks) != 2 {
			t.Errorf("expected 2 internal links, got %d: %v", len(result.InternalLinks), result.InternalLinks)
		}
		if len(result.ExternalLinks) != 1 {
			t.Errorf("expected 1 external link, got %d", len(result.ExternalLinks))
		}
	})

	t.Run("extracts subresources", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<link rel="stylesheet" href="/style.css">
			<link rel="icon" href="/favicon.ico">
			<script src="https://cdn.example.com/app.js"></script>
			<script>var inline = 1;</script>
			<meta property="og:title" content="OG Title">
		</head><body>
			<img src="/a.jpg">
			<img data-src="/lazy.jpg" src="data:image/gif;base64,AAAA">
			<iframe src="https://ads.example.net/frame"></iframe>
		</body></html>`

		parser, err := NewParser("https://example.com/dir/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}

		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if !slices.Equal(result.Scripts, []string{"https://cdn.example.com/app.js"}) {
			t.Errorf("unexpected scripts %v", result.Scripts)
		}
		if !slices.Equal(result.Images, []string{"https://example.com/a.jpg", "https://example.com/lazy.jpg"}) {
			t.Errorf("unexpected images %v", result.Images)
		}
		if !slices.Equal(result.Frames, []string{"https://ads.example.net/frame"}) {
			t.Errorf("unexpected frames %v", result.Frames)
		}
		if !slices.Equal(result.Stylesheets, []string{"https://example.com/style.css"}) {
			t.Errorf("unexpected stylesheets %v", result.Stylesheets)
		}
		if result.MetaTags["og:title"] != "OG Title" {
			t.Errorf("expected og:title meta, got %v", result.MetaTags)
		}
	})
}

// TestResolveURL tests relative URL resolution.
func TestResolveURL(t *testing.T) {
	t.Parallel()

	parser, err := NewParser("https://example.com/a/b")
	if err != nil {
		t.Fatalf("failed to create parser: %v", err)
	}

	tests := []struct {
		name string
		href string
		want string
	}{
		{"relative", "c", "https://example.com/a/c"},
		{"root relative", "/x", "https://example.com/x"},
		{"protocol relative", "//cdn.example.com/y", "https://cdn.example.com/y"},
		{"absolute", "http://other.example/z", "http://other.example/z"},
		{"whitespace", "  /trim  ", "https://example.com/trim"},
		{"empty", "", ""},
		{"fragment", "#frag", ""},
		{"data uri", "data:image/png;base64,AA", ""},
		{"mailto", "mailto:a@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parser.ResolveURL(tt.href); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestNormalizeTitle tests title cleanup.
func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  my   gallery\n title ", "My Gallery Title"},
		{"SHOUTING TITLE", "Shouting Title"},
		{"Mixed iPhone Case", "Mixed iPhone Case"},
		{"", ""},
		{"   ", ""},
		{"123", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			if got := NormalizeTitle(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func mustProfile(t *testing.T, meta config.MetadataConfig) *site.Profile {
	t.Helper()
	p, err := site.NewProfile("example", config.SiteConfig{
		Domain:   "example.com",
		Metadata: meta,
	})
	if err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	return p
}

const galleryPage = `<html><head>
	<title>Site Name - Gallery</title>
	<meta property="og:image" content="/og-cover.jpg">
</head><body>
	<h1 class="post-title">  the   first gallery </h1>
	<div class="summary_image"><img data-src="/cover.jpg" src="data:image/gif;base64,AA"></div>
	<div class="page-break"><img data-src="/p/1.jpg"></div>
	<div class="page-break"><img data-src="/p/2.jpg"></div>
	<div class="page-break"><img data-src="/p/1.jpg"></div>
	<div class="page-break"><img src="/p/3.jpg"></div>
	<div class="c-ads"><img src="https://ads.example.net/banner.gif"></div>
</body></html>`

// TestExtractGallery tests metadata extraction with profile selectors.
func TestExtractGallery(t *testing.T) {
	t.Parallel()

	t.Run("uses profile selectors", func(t *testing.T) {
		t.Parallel()

		p := mustProfile(t, config.MetadataConfig{
			Title:     "h1.post-title",
			Cover:     ".summary_image img",
			Images:    ".page-break img",
			ImageAttr: "data-src",
		})

		rec, err := ExtractGallery(p, "https://example.com/gallery/1/", []byte(galleryPage))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Site != "example" || rec.URL != "https://example.com/gallery/1/" {
			t.Errorf("unexpected identity %q %q", rec.Site, rec.URL)
		}
		if rec.Title != "The First Gallery" {
			t.Errorf("expected normalized title, got %q", rec.Title)
		}
		if rec.CoverURL != "https://example.com/cover.jpg" {
			t.Errorf("unexpected cover %q", rec.CoverURL)
		}
		want := []string{
			"https://example.com/p/1.jpg",
			"https://example.com/p/2.jpg",
			"https://example.com/p/3.jpg",
		}
		if !slices.Equal(rec.Images, want) {
			t.Errorf("expected %v, got %v", want, rec.Images)
		}
	})

	t.Run("falls back without selectors", func(t *testing.T) {
		t.Parallel()

		p := mustProfile(t, config.MetadataConfig{})

		rec, err := ExtractGallery(p, "https://example.com/gallery/1/", []byte(galleryPage))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Title != "Site Name - Gallery" {
			t.Errorf("expected <title> fallback, got %q", rec.Title)
		}
		if rec.CoverURL != "https://example.com/og-cover.jpg" {
			t.Errorf("expected og:image fallback, got %q", rec.CoverURL)
		}
		if len(rec.Images) != 5 {
			t.Errorf("expected every distinct <img>, got %v", rec.Images)
		}
	})

	t.Run("no images", func(t *testing.T) {
		t.Parallel()

		p := mustProfile(t, config.MetadataConfig{Images: ".missing img"})

		rec, err := ExtractGallery(p, "https://example.com/gallery/1/", []byte(galleryPage))
		if !errors.Is(err, ErrNoImages) {
			t.Fatalf("expected ErrNoImages, got %v", err)
		}
		if rec == nil || rec.Title == "" {
			t.Error("expected partial record with title")
		}
	})
}
