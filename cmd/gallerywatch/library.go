package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/gallerywatch/internal/report"
)

// errReportNotFound is returned when a history entry does not exist.
var errReportNotFound = errors.New("browse report not found")

// NewLibraryCmd creates the library command and its subcommands.
func NewLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the galleries stored in the library",
		Long: `Library lists the stored galleries.

Without --site it prints the number of galleries per site. With --site it
lists that site's galleries with their reading position.

Examples:
  gallerywatch library
  gallerywatch library --site allporncomic --limit 50
  gallerywatch library history
  gallerywatch library report 12`,
		Args: cobra.NoArgs,
		RunE: runLibraryCmd,
	}

	cmd.Flags().StringP("site", "s", "", "List the galleries of this site")
	cmd.Flags().IntP("limit", "l", 100, "Maximum number of galleries to list")
	cmd.Flags().Int("offset", 0, "Number of galleries to skip")

	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newShowReportCmd())

	return cmd
}

func runLibraryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg, cmd.ErrOrStderr())

	siteName, err := cmd.Flags().GetString("site")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	offset, err := cmd.Flags().GetInt("offset")
	if err != nil {
		return err
	}

	db, err := openLibrary(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if siteName == "" {
		sites, err := db.ListSites(ctx)
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			fmt.Fprintln(out, "Library is empty. Store galleries with: gallerywatch browse <url>")
			return nil
		}
		fmt.Fprintln(tw, "SITE\tGALLERIES")
		total := 0
		for _, sc := range sites {
			fmt.Fprintf(tw, "%s\t%d\n", sc.Site, sc.Count)
			total += sc.Count
		}
		fmt.Fprintf(tw, "total\t%d\n", total)
		return tw.Flush()
	}

	records, err := db.ListRecords(ctx, siteName, limit, offset)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No galleries stored for site %s.\n", siteName)
		return nil
	}

	fmt.Fprintln(tw, "ID\tTITLE\tIMAGES\tREAD\tURL")
	for _, rec := range records {
		read := "-"
		if len(rec.Images) > 0 {
			read = fmt.Sprintf("%d/%d", rec.LastReadIndex+1, len(rec.Images))
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", rec.ID, rec.Title, len(rec.Images), read, rec.URL)
	}
	return tw.Flush()
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List browsed URLs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg, cmd.ErrOrStderr())

			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			url := ""
			if len(args) == 1 {
				url = args[0]
			}

			db, err := openLibrary(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.ListHistory(cmd.Context(), url, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No browse history.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tSITE\tGALLERY\tBLOCKED\tURL")
			for _, e := range entries {
				gallery := "no"
				if e.Gallery {
					gallery = "yes"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
					e.ID, e.Timestamp.Format("2006-01-02 15:04"), valueOr(e.Site, "-"), gallery, e.Blocked, e.URL)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntP("limit", "l", 20, "Maximum number of entries to list")

	return cmd
}

func newShowReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <history-id>",
		Short: "Print a stored browse report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid history ID %q: %w", args[0], err)
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg, cmd.ErrOrStderr())

			db, err := openLibrary(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			r, err := db.GetBrowseReport(cmd.Context(), id)
			if err != nil {
				return err
			}
			if r == nil {
				return fmt.Errorf("%w: %d", errReportNotFound, id)
			}

			out := cmd.OutOrStdout()
			var w report.Writer
			switch format {
			case formatSimple:
				w = report.NewSimpleWriter(out, report.WithVerbose(true))
			case formatJSON:
				w = report.NewJSONWriter(out, report.WithPrettyPrint())
			case formatMarkdown:
				w = report.NewMarkdownWriter(out)
			default:
				return fmt.Errorf("%w: %q", errUnknownFormat, format)
			}
			_, err = w.Write(r)
			return err
		},
	}

	cmd.Flags().StringP("format", "f", formatSimple, "Report format: simple, json or markdown")

	return cmd
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
