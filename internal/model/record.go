package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// ContentRecord is one downloadable unit of content: a gallery page
// detected on a site and the ordered list of its images.
type ContentRecord struct {
	// ID is the library identifier. Zero until the record is saved.
	ID int64 `json:"id"`

	// Site is the name of the site profile that detected the gallery.
	Site string `json:"site"`

	// URL is the gallery page URL.
	URL string `json:"url"`

	// Title is the normalized gallery title.
	Title string `json:"title"`

	// CoverURL is the absolute URL of the cover image.
	CoverURL string `json:"cover_url,omitempty"`

	// Images are the absolute page image URLs in reading order.
	Images []string `json:"images,omitempty"`

	// LastReadIndex is the index of the last image viewed. Always >= 0.
	LastReadIndex int `json:"last_read_index"`

	// CreatedAt is when the record was first saved.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// URLHash returns the hex SHA3-256 of the lower-cased URL.
// It is the stable library key of a record.
func (r *ContentRecord) URLHash() string {
	return HashURL(r.URL)
}

// HashURL returns the hex SHA3-256 of the lower-cased URL.
func HashURL(rawURL string) string {
	sum := sha3.Sum256([]byte(strings.ToLower(rawURL)))
	return hex.EncodeToString(sum[:])
}

// SetLastReadIndex stores idx clamped into the valid image range.
func (r *ContentRecord) SetLastReadIndex(idx int) {
	if idx < 0 {
		idx = 0
	}
	if n := len(r.Images); n > 0 && idx >= n {
		idx = n - 1
	}
	r.LastReadIndex = idx
}
