// Package main provides the entry point for the gallerywatch CLI.
//
// gallerywatch browses image gallery sites through a per-site interception
// engine that restricts navigation, blocks unwanted scripts and resources
// and removes page clutter. Detected galleries are stored in a local
// library that can be read page by page.
//
// Usage:
//
//	gallerywatch browse <url>...
//	gallerywatch read
//
// See --help for all available options.
package main

func main() {
	Execute()
}
