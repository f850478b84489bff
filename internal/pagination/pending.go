package pagination

import (
	"fmt"

	"github.com/nao1215/gallerywatch/internal/model"
)

type pendingKind int

const (
	pendingActive pendingKind = iota
	pendingConcrete
	pendingFirst
	pendingLast
)

// PendingIndex says which record becomes current once a page arrives.
// The zero value is Active.
type PendingIndex struct {
	kind  pendingKind
	index int
}

var (
	// Active locates the active record by ID in the arriving page and
	// falls back to the first record.
	Active = PendingIndex{kind: pendingActive}

	// First selects the first record of the arriving page.
	First = PendingIndex{kind: pendingFirst}

	// Last selects the last record of the arriving page.
	Last = PendingIndex{kind: pendingLast}
)

// Concrete selects record i of the arriving page, clamped into range.
func Concrete(i int) PendingIndex {
	return PendingIndex{kind: pendingConcrete, index: i}
}

// String returns a readable form such as "first" or "concrete(3)".
func (p PendingIndex) String() string {
	switch p.kind {
	case pendingActive:
		return "active"
	case pendingConcrete:
		return fmt.Sprintf("concrete(%d)", p.index)
	case pendingFirst:
		return "first"
	case pendingLast:
		return "last"
	default:
		return "unknown"
	}
}

// Resolve turns the pending index into a concrete index into records.
// ok is false when records is empty; the index is then 0 and must not be
// used to address records.
func (p PendingIndex) Resolve(records []model.ContentRecord, activeID int64) (idx int, ok bool) {
	if len(records) == 0 {
		return 0, false
	}

	switch p.kind {
	case pendingFirst:
		return 0, true
	case pendingLast:
		return len(records) - 1, true
	case pendingConcrete:
		return min(max(p.index, 0), len(records)-1), true
	case pendingActive:
		for i, r := range records {
			if r.ID == activeID {
				return i, true
			}
		}
		return 0, true
	default:
		panic(fmt.Sprintf("pagination: unhandled pending index kind %d", p.kind))
	}
}
