// Package config provides configuration structures and utilities for gallerywatch.
// It defines the runtime options for browsing and reading, the YAML rules file
// holding per-site interception rules, and GALLERYWATCH_* environment overrides.
package config
