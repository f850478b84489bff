package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/config"
)

//go:embed templates/gallerywatch.yaml
var rulesTemplate embed.FS

// configFileName is the default rules file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a gallerywatch rules file",
		Long: `Init writes a rules file with one example site and comments for every field.

Examples:
  # Create .gallerywatch.yaml in the current directory
  gallerywatch init

  # Create the rules file in the XDG config directory
  gallerywatch init --xdg

  # Create the rules file at a specific path
  gallerywatch init -o myrules.yaml

  # Overwrite an existing file
  gallerywatch init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the rules file")
	cmd.Flags().Bool("xdg", false,
		"Write rules.yaml to the XDG config directory instead of --output")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing rules file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	useXDG, err := cmd.Flags().GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		outputPath = filepath.Join(config.XDGConfigDir(), "rules.yaml")
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("rules file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := rulesTemplate.ReadFile("templates/gallerywatch.yaml")
	if err != nil {
		return fmt.Errorf("failed to read rules template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Rules may carry site cookies.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created rules file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to describe the sites you browse:")
	fmt.Fprintln(out, "  - Domain filter and gallery URL patterns")
	fmt.Fprintln(out, "  - Script whitelist and blacklist")
	fmt.Fprintln(out, "  - Elements to remove from every page")
	fmt.Fprintln(out, "\nCheck it with: gallerywatch sites --rules "+outputPath)

	return nil
}
