package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/gallerywatch/internal/model"
)

// MarkdownWriter outputs reports in Markdown format using nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs a single report.
func (w *MarkdownWriter) Write(report *model.BrowseReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("gallerywatch Report")
	md.PlainText("")
	w.writeReport(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteBatch outputs every report followed by the run summary.
func (w *MarkdownWriter) WriteBatch(reports []*model.BrowseReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("gallerywatch Report")
	md.PlainText("")

	summary := model.Summarize(reports)
	w.writeSummary(md, summary)

	for _, r := range present(reports) {
		md.H2(r.URL)
		md.PlainText("")
		w.writeReport(md, r)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, r *model.BrowseReport) {
	gallery := "No"
	if r.Gallery.Matched {
		gallery = "Yes (`" + r.Gallery.Pattern + "`)"
	}

	rows := [][]string{
		{"URL", "`" + r.URL + "`"},
		{"Site", valueOrDash(r.Site)},
		{"Date", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", w.getStatusText(r)},
		{"Gallery", gallery},
	}
	if r.Gallery.Matched && r.Gallery.URL != r.URL {
		rows = append(rows, []string{"Final URL", "`" + r.Gallery.URL + "`"})
	}
	if rec := r.Record; rec != nil {
		rows = append(rows,
			[]string{"Title", rec.Title},
			[]string{"Images", strconv.Itoa(len(rec.Images))},
		)
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeStats(md, r.Stats)

	if r.Page != nil {
		w.writeBlocked(md, r.Page)
	}
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(r *model.BrowseReport) string {
	switch {
	case r.TimedOut:
		return "⚠️ Timed Out"
	case r.ErrorMessage != "" || r.Error != nil:
		return "❌ " + status(r)
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, s model.InterceptStats) {
	md.Table(markdown.TableSet{
		Header: []string{"Request", "Allowed", "Blocked"},
		Rows: [][]string{
			{"Navigations", strconv.Itoa(s.NavigationsAllowed), strconv.Itoa(s.NavigationsBlocked)},
			{"Scripts", strconv.Itoa(s.ScriptsAllowed), strconv.Itoa(s.ScriptsBlocked)},
			{"Resources", strconv.Itoa(s.ResourcesAllowed), strconv.Itoa(s.ResourcesBlocked)},
			{"**Total**", "", "**" + strconv.Itoa(s.TotalBlocked()) + "**"},
		},
	})
	md.PlainText("")
}

// writeBlocked lists the scripts and resources interception removed.
func (w *MarkdownWriter) writeBlocked(md *markdown.Markdown, p *model.Page) {
	var rows [][]string
	for _, e := range append(append([]model.Element{}, p.Scripts...), p.Resources...) {
		if e.Blocked {
			rows = append(rows, []string{e.Tag, truncateString(e.Source, 80)})
		}
	}
	if len(rows) == 0 {
		return
	}

	md.Details("Blocked requests", fmt.Sprintf("%d request(s) blocked", len(rows)))
	md.Table(markdown.TableSet{
		Header: []string{"Tag", "Source"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"URLs", strconv.Itoa(s.Total)},
			{"Succeeded", strconv.Itoa(s.Succeeded)},
			{"Failed", strconv.Itoa(s.Failed)},
			{"Galleries", strconv.Itoa(s.Galleries)},
			{"Blocked requests", strconv.Itoa(s.Stats.TotalBlocked())},
		},
	})
	md.PlainText("")

	if s.Stats.TotalBlocked() > 0 {
		w.writePieChart(md, s.Stats)
	}

	switch {
	case s.Failed > 0:
		md.Warningf("%d of %d URL(s) could not be browsed.", s.Failed, s.Total)
	case s.Galleries > 0:
		md.Tip(fmt.Sprintf("%d gallery page(s) detected.", s.Galleries))
	default:
		md.Note("No gallery pages detected.")
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of blocked requests by kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.InterceptStats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Blocked Requests"),
		piechart.WithShowData(true),
	)

	if s.NavigationsBlocked > 0 {
		chart.LabelAndIntValue("Navigations", uint64(s.NavigationsBlocked))
	}
	if s.ScriptsBlocked > 0 {
		chart.LabelAndIntValue("Scripts", uint64(s.ScriptsBlocked))
	}
	if s.ResourcesBlocked > 0 {
		chart.LabelAndIntValue("Resources", uint64(s.ResourcesBlocked))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [gallerywatch](https://github.com/nao1215/gallerywatch)*")
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
