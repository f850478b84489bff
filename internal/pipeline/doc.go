// Package pipeline runs the browse of one URL as a sequence of steps.
//
// The default pipeline loads the URL on a fresh browsing surface through a
// navigation tracker and interception engine, extracts a content record
// when the page is a gallery, and saves the record and the browse report
// to the library. Each step receives the report built by the steps before
// it.
//
// BatchProcessor browses several URLs concurrently with errgroup, one
// pipeline and one surface per URL.
package pipeline
