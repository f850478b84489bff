package pagination

import (
	"math/rand/v2"
	"slices"
)

// ImageSet holds the images of the active record in canonical order and in
// display order. Canonical order is never modified after construction.
type ImageSet struct {
	canonical []string
	display   []string
}

// NewImageSet creates a set whose display order equals images.
func NewImageSet(images []string) ImageSet {
	canonical := slices.Clone(images)
	return ImageSet{
		canonical: canonical,
		display:   slices.Clone(canonical),
	}
}

// Canonical returns a copy of the canonical order.
func (s *ImageSet) Canonical() []string {
	return slices.Clone(s.canonical)
}

// Display returns a copy of the display order.
func (s *ImageSet) Display() []string {
	return slices.Clone(s.display)
}

// Len returns the number of images.
func (s *ImageSet) Len() int {
	return len(s.canonical)
}

// Shuffle replaces the display order with a new random permutation of the
// canonical order. Every call draws a new permutation from r.
func (s *ImageSet) Shuffle(r *rand.Rand) {
	display := slices.Clone(s.canonical)
	r.Shuffle(len(display), func(i, j int) {
		display[i], display[j] = display[j], display[i]
	})
	s.display = display
}

// Restore sets the display order back to the canonical order.
func (s *ImageSet) Restore() {
	s.display = slices.Clone(s.canonical)
}

// CanonicalIndex maps a display position to the canonical position of the
// same image. It returns -1 when displayIdx is out of range.
func (s *ImageSet) CanonicalIndex(displayIdx int) int {
	if displayIdx < 0 || displayIdx >= len(s.display) {
		return -1
	}
	target := s.display[displayIdx]
	// Duplicate image URLs resolve to their first canonical occurrence
	// that has not been claimed by an earlier display position.
	seen := 0
	for i := range displayIdx {
		if s.display[i] == target {
			seen++
		}
	}
	for i, img := range s.canonical {
		if img != target {
			continue
		}
		if seen == 0 {
			return i
		}
		seen--
	}
	return -1
}

// DisplayIndex maps a canonical position to its current display position.
// It returns -1 when canonicalIdx is out of range.
func (s *ImageSet) DisplayIndex(canonicalIdx int) int {
	for i := range s.display {
		if s.CanonicalIndex(i) == canonicalIdx {
			return i
		}
	}
	return -1
}
