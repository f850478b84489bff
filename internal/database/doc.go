// Package database provides SQLite-based storage for gallerywatch.
//
// LibraryDB stores:
//   - content records: gallery pages with their ordered image URLs and the
//     reader's last position
//   - browse history: one report per browsed URL
//
// Searcher pages through the stored records for the reader. It queries on
// a background goroutine and reports through the pagination.ResultListener
// it is given.
//
// SQLite comes from modernc.org/sqlite, so no cgo toolchain is needed and
// the library is a single file in the data directory.
package database
