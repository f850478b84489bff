package site

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by ConfigError.
var (
	// ErrEmptyName is returned when a profile is built without a site name.
	ErrEmptyName = errors.New("site name is empty")

	// ErrEmptyDomainFilter is returned when a site has no domain restriction.
	ErrEmptyDomainFilter = errors.New("domain filter is empty")

	// ErrInvalidPattern is returned when a gallery pattern is not a valid regular expression.
	ErrInvalidPattern = errors.New("invalid gallery pattern")

	// ErrInvalidSelector is returned when a CSS selector cannot be parsed.
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrInvalidGlob is returned when a resource blacklist glob is malformed.
	ErrInvalidGlob = errors.New("invalid resource glob")
)

// ConfigError reports a malformed site profile. A site that fails with a
// ConfigError is never registered.
type ConfigError struct {
	// Site is the name of the offending site.
	Site string

	// Field is the rules field that failed validation.
	Field string

	// Value is the offending value, empty for missing values.
	Value string

	// Err is the cause. It always wraps one of the sentinel errors above.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("site %q: %s: %v", e.Site, e.Field, e.Err)
	}
	return fmt.Sprintf("site %q: %s %q: %v", e.Site, e.Field, e.Value, e.Err)
}

// Unwrap returns the cause so errors.Is matches the sentinels.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
