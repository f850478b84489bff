// Package model defines the core data structures used throughout gallerywatch.
//
// This package contains the following main types:
//   - ContentRecord: A gallery stored in the library
//   - GalleryMatch: The classification of a loaded URL
//   - InterceptStats: Counters of interception decisions
//   - Page: The document shown by a browsing surface
//   - BrowseReport: The result of browsing one URL
//
// Models live in their own package so surfaces, the interception engine,
// storage and reporting can share them without import cycles.
package model
