package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/gallerywatch/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent       bool
	indentPrefix string
	indentString string

	// version is stamped on batch output.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the version recorded in batch output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs a single report.
func (w *JSONWriter) Write(report *model.BrowseReport) (int, error) {
	return w.writeJSON(report)
}

// WriteBatch outputs every report of a run with its summary.
func (w *JSONWriter) WriteBatch(reports []*model.BrowseReport) (int, error) {
	return w.writeJSON(NewJSONReport(reports, w.version))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps the reports of one run with metadata.
type JSONReport struct {
	// Version is the gallerywatch version that generated the reports.
	Version string `json:"version,omitempty"`

	// RunID is shared by every report of the run.
	RunID string `json:"run_id,omitempty"`

	// Reports are the browse reports in input order.
	Reports []*model.BrowseReport `json:"reports"`

	// Summary aggregates the reports.
	Summary model.Summary `json:"summary"`
}

// NewJSONReport creates the wrapper for a run.
func NewJSONReport(reports []*model.BrowseReport, version string) *JSONReport {
	kept := present(reports)
	jr := &JSONReport{
		Version: version,
		Reports: kept,
		Summary: model.Summarize(reports),
	}
	if len(kept) > 0 {
		jr.RunID = kept[0].RunID
	}
	return jr
}
