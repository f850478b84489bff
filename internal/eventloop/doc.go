// Package eventloop provides the single ordered callback sequence that
// browsing surfaces and the pagination engine deliver their events on.
package eventloop
