package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/site"
)

// errInvalidRules is returned by the sites command when a site failed validation.
var errInvalidRules = errors.New("rules file contains invalid sites")

// NewSitesCmd creates the sites command.
func NewSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Validate the rules file and list its sites",
		Long: `Sites compiles every site of the rules file and lists the ones that are valid.

Invalid gallery patterns, CSS selectors and resource globs are reported one
per line and make the command exit with a non-zero status.`,
		Args: cobra.NoArgs,
		RunE: runSitesCmd,
	}
}

func runSitesCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, os.Stderr)

	registry, regErr := site.NewRegistry(cfg.Rules, logger)

	out := cmd.OutOrStdout()
	if registry.Len() == 0 && regErr == nil {
		fmt.Fprintln(out, "No sites configured. Create a rules file with: gallerywatch init")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tDOMAIN\tPATTERNS\tWHITELIST\tBLACKLIST\tREMOVE")
	for _, name := range registry.Names() {
		p, _ := registry.Lookup(name)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			name,
			p.DomainFilter(),
			len(p.GalleryPatterns()),
			len(p.ScriptWhitelist()),
			len(p.ScriptBlacklist())+len(p.ResourceBlacklist()),
			len(p.RemovableSelectors()),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if regErr == nil {
		return nil
	}

	problems := configErrors(regErr)
	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut)
	for _, ce := range problems {
		fmt.Fprintf(errOut, "invalid: %v\n", ce)
	}
	return fmt.Errorf("%w: %d of %d", errInvalidRules, len(problems), len(cfg.Rules.Sites))
}

// configErrors flattens the joined error of site.NewRegistry.
func configErrors(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

// siteList formats site names for messages.
func siteList(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
