package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Config.ValidateCommon. Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when browse is run without any URL.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTimeout is returned when the load timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidPageSize is returned when the reader page size is not positive.
	ErrInvalidPageSize = errors.New("invalid page size: must be positive")

	// ErrUnknownSurface is returned for a --surface value other than static or chrome.
	ErrUnknownSurface = errors.New("unknown surface: must be \"static\" or \"chrome\"")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidRate is returned when the request rate is negative.
	ErrInvalidRate = errors.New("invalid rate: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConfigNotFound is returned when the rules file does not exist.
	ErrConfigNotFound = errors.New("rules file not found")

	// ErrUnknownSite is returned when a named site is not in the rules file.
	ErrUnknownSite = errors.New("site not found in rules file")
)
