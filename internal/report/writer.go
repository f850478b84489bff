package report

import (
	"io"

	"github.com/nao1215/gallerywatch/internal/model"
)

// Writer defines the interface for report output.
// Implementations write browse results in various formats.
type Writer interface {
	// Write outputs a single browse report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.BrowseReport) (int, error)

	// WriteBatch outputs every report of a run followed by its summary.
	// Nil reports belong to URLs that were never browsed and are skipped.
	WriteBatch(reports []*model.BrowseReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.BrowseReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteBatch outputs the reports to all configured Writers.
func (m *MultiWriter) WriteBatch(reports []*model.BrowseReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteBatch(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// present drops nil entries.
func present(reports []*model.BrowseReport) []*model.BrowseReport {
	out := make([]*model.BrowseReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// status returns a one-line description of how a browse ended.
func status(r *model.BrowseReport) string {
	switch {
	case r.TimedOut:
		return "TIMED OUT"
	case r.ErrorMessage != "":
		return "ERROR - " + r.ErrorMessage
	case r.Error != nil:
		return "ERROR - " + r.Error.Error()
	default:
		return "Complete"
	}
}
