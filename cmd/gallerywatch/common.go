package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/config"
	"github.com/nao1215/gallerywatch/internal/database"
	seclog "github.com/nao1215/gallerywatch/internal/log"
	"github.com/nao1215/gallerywatch/internal/site"
)

// loadConfig builds the configuration shared by every command.
// Defaults come first, then GALLERYWATCH_* variables, then the global
// flags the user set explicitly. The rules file is loaded last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	var err error

	cfg.Verbose = boolFlag(cmd, "verbose")
	cfg.LogJSON = boolFlag(cmd, "log-json")
	if flags.Changed("rules") {
		if cfg.RulesFilePath, err = flags.GetString("rules"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("data-dir") {
		if cfg.DBDir, err = flags.GetString("data-dir"); err != nil {
			return nil, err
		}
	}

	cfg.Rules, err = loadRules(cfg.RulesFilePath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// boolFlag reads a global flag. It is false when the command runs
// without the root command, as in tests of a single subcommand.
func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false
	}
	return v
}

// loadRules reads the rules file. An explicit path must exist; without
// one, a missing file yields empty rules.
func loadRules(path string) (*config.File, error) {
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	rules, err := config.LoadConfigFile(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", found, err)
	}
	return rules, nil
}

// setupLogger creates the masking logger for cfg and writes to w.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return seclog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return seclog.NewSecureLogger(w, cfg.Verbose)
}

// newRegistry compiles the site rules. Invalid sites are skipped with a
// warning so the remaining sites stay usable; the sites command reports
// them as errors instead.
func newRegistry(cfg *config.Config, logger *slog.Logger) *site.Registry {
	registry, err := site.NewRegistry(cfg.Rules, logger)
	if err != nil {
		var ce *site.ConfigError
		if errors.As(err, &ce) {
			logger.Warn("some sites were skipped; run \"gallerywatch sites\" for details")
		}
	}
	return registry
}

// openLibrary opens the library database in cfg.DBDir.
func openLibrary(cfg *config.Config, logger *slog.Logger) (*database.LibraryDB, error) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	logger.Debug("library opened", "path", db.Path())
	return db, nil
}
