package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "GALLERYWATCH"

// envOverrides lists the settings that may come from the environment.
// Pointer fields stay nil when the variable is unset, so only explicitly
// set variables override flag defaults.
type envOverrides struct {
	Timeout           *time.Duration `envconfig:"TIMEOUT"`
	UserAgent         *string        `envconfig:"USER_AGENT"`
	DataDir           *string        `envconfig:"DATA_DIR"`
	AdBlock           *bool          `envconfig:"ADBLOCK"`
	RequestsPerSecond *float64       `envconfig:"RATE"`
	Surface           *string        `envconfig:"SURFACE"`
	ChromePath        *string        `envconfig:"CHROME_PATH"`
	Rules             *string        `envconfig:"RULES"`
}

// ApplyEnv overrides c with GALLERYWATCH_* environment variables.
// Flags explicitly set on the command line are applied afterwards by the
// caller and win over the environment.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.Timeout != nil {
		c.Timeout = *env.Timeout
	}
	if env.UserAgent != nil {
		c.UserAgent = *env.UserAgent
	}
	if env.DataDir != nil {
		c.DBDir = *env.DataDir
	}
	if env.AdBlock != nil {
		c.AdBlock = *env.AdBlock
	}
	if env.RequestsPerSecond != nil {
		c.RequestsPerSecond = *env.RequestsPerSecond
	}
	if env.Surface != nil {
		c.Surface = *env.Surface
	}
	if env.ChromePath != nil {
		c.ChromePath = *env.ChromePath
	}
	if env.Rules != nil {
		c.RulesFilePath = *env.Rules
	}
	return nil
}
