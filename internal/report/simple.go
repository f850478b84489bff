package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/gallerywatch/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds every judged script and resource to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one report in human-readable format.
func (w *SimpleWriter) Write(report *model.BrowseReport) (int, error) {
	var sb strings.Builder
	w.writeReport(&sb, report)
	return w.output.Write([]byte(sb.String()))
}

// WriteBatch outputs every report and the run summary.
func (w *SimpleWriter) WriteBatch(reports []*model.BrowseReport) (int, error) {
	var sb strings.Builder
	for _, r := range present(reports) {
		w.writeReport(&sb, r)
	}
	w.writeSummary(&sb, model.Summarize(reports))
	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeReport(sb *strings.Builder, r *model.BrowseReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "URL:      %s\n", r.URL)
	if r.Site != "" {
		fmt.Fprintf(sb, "Site:     %s\n", r.Site)
	}
	fmt.Fprintf(sb, "Date:     %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:   %s\n", status(r))

	if r.Gallery.Matched {
		fmt.Fprintf(sb, "Gallery:  yes (pattern %s)\n", r.Gallery.Pattern)
		if r.Gallery.URL != r.URL {
			fmt.Fprintf(sb, "Final:    %s\n", r.Gallery.URL)
		}
	} else {
		sb.WriteString("Gallery:  no\n")
	}

	if rec := r.Record; rec != nil {
		fmt.Fprintf(sb, "Title:    %s\n", rec.Title)
		fmt.Fprintf(sb, "Images:   %d\n", len(rec.Images))
		if rec.ID != 0 {
			fmt.Fprintf(sb, "Library:  #%d\n", rec.ID)
		}
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	w.writeStats(sb, r.Stats)

	if w.verbose && r.Page != nil {
		w.writeElements(sb, "Scripts", r.Page.Scripts)
		w.writeElements(sb, "Resources", r.Page.Resources)
	}
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, s model.InterceptStats) {
	fmt.Fprintf(sb, "  Navigations  allowed %-5d blocked %d\n", s.NavigationsAllowed, s.NavigationsBlocked)
	fmt.Fprintf(sb, "  Scripts      allowed %-5d blocked %d\n", s.ScriptsAllowed, s.ScriptsBlocked)
	fmt.Fprintf(sb, "  Resources    allowed %-5d blocked %d\n", s.ResourcesAllowed, s.ResourcesBlocked)
	fmt.Fprintf(sb, "  Removals     %d (%d failed)\n", s.RemovalRequests, s.RemovalFailures)
}

func (w *SimpleWriter) writeElements(sb *strings.Builder, title string, elems []model.Element) {
	if len(elems) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, e := range elems {
		mark := "+"
		if e.Blocked {
			mark = "x"
		}
		fmt.Fprintf(sb, "  [%s] %-7s %s\n", mark, e.Tag, e.Source)
	}
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  URLs:       %d (%d succeeded, %d failed)\n", s.Total, s.Succeeded, s.Failed)
	fmt.Fprintf(sb, "  Galleries:  %d\n", s.Galleries)
	fmt.Fprintf(sb, "  Blocked:    %d\n", s.Stats.TotalBlocked())
}
