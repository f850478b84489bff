package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "gallerywatch"

	// DefaultTimeout bounds a single tracked page load, redirects included.
	// The tracker itself never times out; the caller owns this deadline.
	DefaultTimeout = 60 * time.Second

	// DefaultBatchSize is the number of URLs browsed concurrently,
	// each on its own browsing surface.
	DefaultBatchSize = 4

	// DefaultPageSize is the number of content records per library page
	// used by the reader.
	DefaultPageSize = 20

	// DefaultUserAgent is sent when a site does not configure its own.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// DefaultMaxBodySize limits the size of any document or script body read
	// by the static surface.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultRequestsPerSecond is the per-surface rate limit for outgoing requests.
	DefaultRequestsPerSecond = 4.0

	// DefaultBurst is the token bucket burst for the per-surface rate limiter.
	DefaultBurst = 4

	// DefaultRetryMax is the number of retries for transient HTTP failures.
	DefaultRetryMax = 2

	// DefaultTorProxyAddress is used when --tor is combined with --external-tor.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Surface kinds accepted by --surface.
const (
	// SurfaceStatic fetches documents over HTTP and never executes scripts.
	SurfaceStatic = "static"
	// SurfaceChrome drives a headless Chrome through the DevTools protocol.
	SurfaceChrome = "chrome"
)

// Config holds all configuration options for gallerywatch.
// It is populated from CLI flags, environment overrides and the rules file,
// then passed down explicitly. Nothing reads it from global state.
type Config struct {
	// Targets are the URLs to browse.
	Targets []string

	// Site is the name of the site profile to use. When empty, the profile
	// is resolved from each target URL's host.
	Site string

	// Surface selects the browsing surface: SurfaceStatic or SurfaceChrome.
	Surface string

	// ChromePath overrides the Chrome executable used by SurfaceChrome.
	ChromePath string

	// Timeout bounds a single tracked page load.
	Timeout time.Duration

	// BatchSize is the number of URLs browsed concurrently.
	BatchSize int

	// PageSize is the number of records per library page for the reader.
	PageSize int

	// Verbose enables debug level logs.
	Verbose bool

	// LogJSON switches the log handler to JSON.
	LogJSON bool

	// AdBlock enables script and resource blocking. Navigation restriction,
	// gallery classification and element removal are always active.
	AdBlock bool

	// UserAgent is used when the site profile does not set one.
	UserAgent string

	// MaxBodySize is the maximum body size in bytes read by the static surface.
	MaxBodySize int64

	// RequestsPerSecond is the per-surface request rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size.
	Burst int

	// RetryMax is the number of retries for transient HTTP failures.
	RetryMax int

	// UseTor routes the browsing surface through Tor.
	UseTor bool

	// UseExternalTor uses TorProxyAddress instead of starting an embedded daemon.
	UseExternalTor bool

	// TorProxyAddress is the SOCKS5 address of an external Tor daemon.
	TorProxyAddress string

	// TorStartupTimeout is the maximum time to wait for the embedded Tor daemon.
	TorStartupTimeout time.Duration

	// RulesFilePath is the path to the rules file. When empty, the file is
	// searched for by FindConfigFile.
	RulesFilePath string

	// Rules holds the per-site rules loaded from the rules file.
	Rules *File

	// DBDir is the directory holding the library database.
	// Defaults to the XDG data directory.
	DBDir string

	// JSONReport selects JSON output for the browse report.
	JSONReport bool

	// MarkdownReport selects Markdown output for the browse report.
	MarkdownReport bool

	// ReportFile is the output path for the report. Stdout when empty.
	ReportFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Surface:           SurfaceStatic,
		Timeout:           DefaultTimeout,
		BatchSize:         DefaultBatchSize,
		PageSize:          DefaultPageSize,
		AdBlock:           true,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		RequestsPerSecond: DefaultRequestsPerSecond,
		Burst:             DefaultBurst,
		RetryMax:          DefaultRetryMax,
		TorProxyAddress:   DefaultTorProxyAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		DBDir:             XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for gallerywatch.
// On Linux: ~/.local/share/gallerywatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for gallerywatch.
// On Linux: ~/.config/gallerywatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the options used by the browse command.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.ValidateCommon()
}

// ValidateCommon checks the options shared by every command that touches
// the network or the library. It does not require targets.
func (c *Config) ValidateCommon() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.PageSize <= 0 {
		return ErrInvalidPageSize
	}
	if c.Surface != SurfaceStatic && c.Surface != SurfaceChrome {
		return ErrUnknownSurface
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}
