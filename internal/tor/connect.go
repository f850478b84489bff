package tor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// connectConfig holds the settings of Connect.
type connectConfig struct {
	external       bool
	proxyAddress   string
	startupTimeout time.Duration
	timeout        time.Duration
	logger         *slog.Logger
	newEmbedded    func(opts ...EmbeddedTorOption) daemon
}

// daemon is the part of EmbeddedTor that Connect drives.
type daemon interface {
	Start(ctx context.Context) error
	Stop() error
	SocksAddr() string
}

// ConnectOption configures Connect.
type ConnectOption func(*connectConfig)

// WithExternalProxy uses the Tor daemon listening at address instead of
// starting one.
func WithExternalProxy(address string) ConnectOption {
	return func(c *connectConfig) {
		c.external = true
		c.proxyAddress = address
	}
}

// WithEmbeddedStartupTimeout bounds the bootstrap of the embedded daemon.
func WithEmbeddedStartupTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.startupTimeout = d
	}
}

// WithRequestTimeout sets the timeout of the HTTP client handed to the
// static surface. Zero means no client-level timeout.
func WithRequestTimeout(d time.Duration) ConnectOption {
	return func(c *connectConfig) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ConnectOption {
	return func(c *connectConfig) {
		c.logger = logger
	}
}

// Connect returns a Client whose proxy has passed CheckConnection.
// Without WithExternalProxy it starts an embedded daemon that the
// returned Client owns and stops on Close.
func Connect(ctx context.Context, opts ...ConnectOption) (*Client, error) {
	cfg := &connectConfig{
		startupTimeout: 3 * time.Minute,
		logger:         slog.Default(),
		newEmbedded: func(opts ...EmbeddedTorOption) daemon {
			return NewEmbeddedTor(opts...)
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.external {
		client, err := NewClient(cfg.proxyAddress, cfg.timeout)
		if err != nil {
			return nil, err
		}
		if err := client.CheckConnection(ctx).Error(); err != nil {
			return nil, fmt.Errorf("%w: %s", err, cfg.proxyAddress)
		}
		cfg.logger.Debug("using external Tor proxy", "address", cfg.proxyAddress)
		return client, nil
	}

	cfg.logger.Info("starting embedded Tor daemon", "timeout", cfg.startupTimeout)
	d := cfg.newEmbedded(WithStartupTimeout(cfg.startupTimeout))
	if err := d.Start(ctx); err != nil {
		return nil, err
	}

	client, err := NewClient(d.SocksAddr(), cfg.timeout)
	if err != nil {
		_ = d.Stop() //nolint:errcheck // best effort cleanup
		return nil, err
	}
	if err := client.CheckConnection(ctx).Error(); err != nil {
		_ = d.Stop() //nolint:errcheck // best effort cleanup
		return nil, err
	}
	client.stop = d.Stop
	cfg.logger.Info("embedded Tor daemon ready", "socks", d.SocksAddr())
	return client, nil
}
