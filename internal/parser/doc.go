// Package parser extracts references and gallery metadata from HTML.
//
// Parser walks a document with golang.org/x/net/html and collects the
// title, links, scripts, images, frames and stylesheets, resolved to
// absolute URLs. ExtractGallery uses goquery with the metadata selectors
// of a site profile to build a model.ContentRecord from a gallery page.
package parser
