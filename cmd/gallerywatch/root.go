package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for gallerywatch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallerywatch",
		Short: "Browse gallery sites through per-site interception rules",
		Long: `gallerywatch loads pages of image gallery sites under per-site rules.

Each site in the rules file restricts navigation to its own domain, decides
which scripts and resources may load, removes clutter elements and names the
URL patterns of gallery pages. Gallery pages found while browsing are stored
in a local library that the read command pages through.

Use "gallerywatch init" to create a rules file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringP("rules", "r", "",
		"Rules file path (default: .gallerywatch.yaml in current directory, XDG config or home)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory of the library database (default: XDG data directory)")

	cmd.AddCommand(NewBrowseCmd())
	cmd.AddCommand(NewReadCmd())
	cmd.AddCommand(NewLibraryCmd())
	cmd.AddCommand(NewSitesCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
