package pipeline

import "errors"

var (
	// ErrUnknownSite is returned when no site profile applies to a URL.
	ErrUnknownSite = errors.New("no site profile for URL")

	// ErrLoadFailed is returned when the surface reports that the target
	// will never finish loading.
	ErrLoadFailed = errors.New("page load failed")

	// ErrLoadTimeout is returned when the target did not finish loading
	// before the load deadline.
	ErrLoadTimeout = errors.New("page load timed out")

	// ErrProfileMissing is returned when a later step cannot find the
	// profile recorded by the load step.
	ErrProfileMissing = errors.New("site profile missing from registry")
)
