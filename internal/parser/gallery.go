package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/gallerywatch/internal/model"
	"github.com/nao1215/gallerywatch/internal/site"
)

// ErrNoImages is returned when a gallery page yields no image URLs.
var ErrNoImages = errors.New("no gallery images found")

// lazyImageAttrs are tried in order when the configured attribute is empty.
var lazyImageAttrs = []string{"data-src", "data-lazy-src", "data-original", "src"}

// ExtractGallery turns a gallery page into a content record using the
// metadata selectors of profile.
//
// The title comes from the title selector, then og:title, then <title>.
// The cover comes from the cover selector, then og:image, then the first
// image. When the profile has no image selector every <img> on the page is
// used. Image URLs are resolved against pageURL and de-duplicated in page
// order.
func ExtractGallery(profile *site.Profile, pageURL string, body []byte) (*model.ContentRecord, error) {
	p, err := NewParser(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse gallery page: %w", err)
	}

	meta := profile.Metadata()

	rec := &model.ContentRecord{
		Site: profile.Name(),
		URL:  pageURL,
	}

	rec.Title = extractTitle(doc, meta.Title)

	if meta.Images != "" {
		rec.Images = collectImages(p, doc.Find(meta.Images), meta.ImageAttr)
	} else {
		rec.Images = collectImages(p, doc.Find("img"), meta.ImageAttr)
	}

	if meta.Cover != "" {
		if covers := collectImages(p, doc.Find(meta.Cover).First(), meta.ImageAttr); len(covers) > 0 {
			rec.CoverURL = covers[0]
		}
	}
	if rec.CoverURL == "" {
		if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			rec.CoverURL = p.ResolveURL(og)
		}
	}
	if rec.CoverURL == "" && len(rec.Images) > 0 {
		rec.CoverURL = rec.Images[0]
	}

	if len(rec.Images) == 0 {
		return rec, ErrNoImages
	}

	return rec, nil
}

func extractTitle(doc *goquery.Document, selector string) string {
	if selector != "" {
		if t := NormalizeTitle(doc.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := NormalizeTitle(og); t != "" {
			return t
		}
	}
	return NormalizeTitle(doc.Find("title").First().Text())
}

func collectImages(p *Parser, sel *goquery.Selection, attr string) []string {
	seen := make(map[string]struct{})
	images := make([]string, 0, sel.Length())

	sel.Each(func(_ int, s *goquery.Selection) {
		resolved := imageSource(p, s, attr)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		images = append(images, resolved)
	})

	return images
}

// imageSource returns the first attribute value that resolves to a
// fetchable URL. Placeholders such as data: URIs are skipped.
func imageSource(p *Parser, s *goquery.Selection, attr string) string {
	candidates := lazyImageAttrs
	if attr != "" {
		candidates = append([]string{attr}, lazyImageAttrs...)
	}
	for _, a := range candidates {
		if v, ok := s.Attr(a); ok {
			if resolved := p.ResolveURL(v); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// NormalizeTitle collapses whitespace. A title written entirely in one
// letter case is converted to title case; mixed-case titles are kept as
// written.
func NormalizeTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}

	hasUpper, hasLower := false, false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		}
	}
	if hasUpper && hasLower {
		return s
	}
	// A Caser keeps state, so each call gets its own.
	return cases.Title(language.Und).String(s)
}
