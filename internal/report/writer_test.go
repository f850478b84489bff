package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nao1215/gallerywatch/internal/model"
)

const (
	galleryURL = "https://example.com/item/test-gallery/"
	indexURL   = "https://example.com/"
)

// createTestReport creates a gallery report with sample data for testing.
func createTestReport() *model.BrowseReport {
	r := model.NewBrowseReport("run-1", galleryURL)
	r.Site = "example"
	r.Gallery = model.GalleryMatch{
		URL:     galleryURL,
		Matched: true,
		Pattern: `example.com/item/[\w-]+/$`,
		Index:   0,
	}
	r.Stats = model.InterceptStats{
		NavigationsAllowed: 1,
		ScriptsAllowed:     2,
		ScriptsBlocked:     1,
		ResourcesAllowed:   5,
		ResourcesBlocked:   2,
		PagesLoaded:        1,
		Galleries:          1,
		RemovalRequests:    2,
	}
	r.Page = &model.Page{
		URL:   galleryURL,
		Title: "Test Gallery",
		Scripts: []model.Element{
			{Source: "https://example.com/cdn/app.js", Tag: "script"},
			{Source: "https://ads.example.net/pop.js", Tag: "script", Blocked: true},
		},
		Resources: []model.Element{
			{Source: "https://example.com/img/1.jpg", Tag: "img"},
			{Source: "https://ads.example.net/banner.gif", Tag: "img", Blocked: true},
		},
	}
	r.Record = &model.ContentRecord{
		ID:     7,
		Site:   "example",
		URL:    galleryURL,
		Title:  "Test Gallery",
		Images: []string{"https://example.com/img/1.jpg", "https://example.com/img/2.jpg"},
	}
	r.PerformedSteps = []string{"load", "extract", "save"}
	return r
}

func createFailedReport() *model.BrowseReport {
	r := model.NewBrowseReport("run-1", indexURL)
	r.Site = "example"
	r.Error = errors.New("page load failed: navigation blocked")
	r.ErrorMessage = r.Error.Error()
	r.Stats.NavigationsBlocked = 1
	return r
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes gallery report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			galleryURL,
			"Site:     example",
			"Status:   Complete",
			"Gallery:  yes",
			"Title:    Test Gallery",
			"Images:   2",
			"Library:  #7",
			"Scripts      allowed 2     blocked 1",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "pop.js") {
			t.Error("expected element list only in verbose mode")
		}
	})

	t.Run("verbose lists elements", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "[x] script  https://ads.example.net/pop.js") {
			t.Errorf("expected blocked script line, got\n%s", output)
		}
		if !strings.Contains(output, "[+] img     https://example.com/img/1.jpg") {
			t.Errorf("expected allowed image line, got\n%s", output)
		}
	})

	t.Run("writes error status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createFailedReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "ERROR - page load failed") {
			t.Errorf("expected error status, got\n%s", buf.String())
		}
	})

	t.Run("writes timeout status", func(t *testing.T) {
		t.Parallel()

		r := createFailedReport()
		r.TimedOut = true
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "TIMED OUT") {
			t.Errorf("expected timeout status, got\n%s", buf.String())
		}
	})

	t.Run("writes batch summary", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.BrowseReport{createTestReport(), nil, createFailedReport()}
		if _, err := NewSimpleWriter(&buf).WriteBatch(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		if !strings.Contains(output, "URLs:       3 (1 succeeded, 2 failed)") {
			t.Errorf("expected summary line, got\n%s", output)
		}
		if !strings.Contains(output, "Galleries:  1") {
			t.Errorf("expected gallery count, got\n%s", output)
		}
		if !strings.Contains(output, "Blocked:    4") {
			t.Errorf("expected blocked count, got\n%s", output)
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes single report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["url"] != galleryURL {
			t.Errorf("expected url %s, got %v", galleryURL, decoded["url"])
		}
		if _, ok := decoded["html"]; ok {
			t.Error("expected HTML to be left out of JSON")
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("expected compact output with one trailing newline")
		}
	})

	t.Run("pretty prints", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"run_id\"") {
			t.Errorf("expected indented output, got\n%s", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"run_id\"") {
			t.Errorf("expected prefixed tab indentation, got\n%s", buf.String())
		}
	})

	t.Run("writes batch wrapper", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewJSONWriter(&buf, WithVersion("v1.2.3"))
		if _, err := w.WriteBatch([]*model.BrowseReport{createTestReport(), createFailedReport(), nil}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "v1.2.3" {
			t.Errorf("expected version v1.2.3, got %q", decoded.Version)
		}
		if decoded.RunID != "run-1" {
			t.Errorf("expected run ID run-1, got %q", decoded.RunID)
		}
		if len(decoded.Reports) != 2 {
			t.Errorf("expected 2 reports, got %d", len(decoded.Reports))
		}
		if decoded.Summary.Total != 3 || decoded.Summary.Galleries != 1 {
			t.Errorf("unexpected summary %+v", decoded.Summary)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes single report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"# gallerywatch Report",
			"`" + galleryURL + "`",
			"✅ Complete",
			"| Scripts",
			"Blocked requests",
			"https://ads.example.net/banner.gif",
			"Test Gallery",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("writes batch summary with chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.BrowseReport{createTestReport(), createFailedReport()}
		if _, err := NewMarkdownWriter(&buf).WriteBatch(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{
			"## Summary",
			"```mermaid",
			"Blocked Requests",
			"1 of 2 URL(s) could not be browsed.",
			"## " + indexURL,
			"❌ ERROR - page load failed",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("notes when nothing was detected", func(t *testing.T) {
		t.Parallel()

		r := model.NewBrowseReport("run-2", indexURL)
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteBatch([]*model.BrowseReport{r}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No gallery pages detected.") {
			t.Errorf("expected note, got\n%s", buf.String())
		}
		if strings.Contains(buf.String(), "```mermaid") {
			t.Error("expected no chart without blocked requests")
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))

	n, err := mw.Write(createTestReport())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != a.Len()+b.Len() {
		t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("expected both writers to receive output")
	}

	a.Reset()
	b.Reset()
	if _, err := mw.WriteBatch([]*model.BrowseReport{createTestReport()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(a.String(), "SUMMARY") || !strings.Contains(b.String(), "\"summary\"") {
		t.Error("expected both writers to receive the batch")
	}
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "short string", input: "abc", maxLen: 10, want: "abc"},
		{name: "exact length", input: "abcde", maxLen: 5, want: "abcde"},
		{name: "truncated", input: "abcdefghij", maxLen: 8, want: "abcde..."},
		{name: "tiny limit", input: "abcdef", maxLen: 2, want: "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
