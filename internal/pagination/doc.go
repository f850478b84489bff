// Package pagination lets a reader move record by record through a paged
// library, optionally shuffling the images of the current record.
//
// Pages come from an asynchronous Searcher. When a move crosses a page
// boundary the engine asks for the neighbouring page and records where the
// new index should land as a PendingIndex (First, Last, Concrete or
// Active). The index is resolved when the page arrives. Results are
// marshaled onto the engine's owning goroutine through a Poster, so the
// engine needs no locks.
package pagination
