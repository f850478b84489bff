package model

import (
	"time"

	"github.com/google/uuid"
)

// BrowseReport is the result of browsing one URL.
type BrowseReport struct {
	// RunID identifies the browse invocation the report belongs to.
	// All reports of one batch share it.
	RunID string `json:"run_id"`

	// URL is the URL that was requested.
	URL string `json:"url"`

	// Site is the name of the profile used for interception.
	Site string `json:"site"`

	// StartedAt is when the load was issued.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the report was completed.
	FinishedAt time.Time `json:"finished_at"`

	// Gallery is the classification of the loaded URL.
	Gallery GalleryMatch `json:"gallery"`

	// Stats are the interception decisions taken during the load.
	Stats InterceptStats `json:"stats"`

	// Page is the document after interception. Nil when the surface
	// cannot provide one.
	Page *Page `json:"page,omitempty"`

	// HTML is the serialized DOM after interception.
	HTML string `json:"-"`

	// Record is the gallery record extracted from the page, if any.
	Record *ContentRecord `json:"record,omitempty"`

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`

	// TimedOut is true when the load did not complete before its deadline.
	TimedOut bool `json:"timed_out"`

	// Error is the failure that stopped the pipeline. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the text of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewRunID returns a fresh identifier for a browse invocation.
func NewRunID() string {
	return uuid.NewString()
}

// NewBrowseReport creates a report for url within the given run.
func NewBrowseReport(runID, url string) *BrowseReport {
	return &BrowseReport{
		RunID:          runID,
		URL:            url,
		StartedAt:      time.Now(),
		Gallery:        NoMatch(url),
		PerformedSteps: make([]string, 0),
	}
}

// Succeeded reports whether the browse completed without error.
func (r *BrowseReport) Succeeded() bool {
	return r.Error == nil && r.ErrorMessage == "" && !r.TimedOut
}

// Summary aggregates a set of browse reports.
type Summary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Galleries int            `json:"galleries"`
	Stats     InterceptStats `json:"stats"`
}

// Summarize aggregates reports. Nil entries are counted as failures.
func Summarize(reports []*BrowseReport) Summary {
	s := Summary{Total: len(reports)}
	for _, r := range reports {
		if r == nil {
			s.Failed++
			continue
		}
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if r.Gallery.Matched {
			s.Galleries++
		}
		s.Stats = s.Stats.Add(r.Stats)
	}
	return s
}
