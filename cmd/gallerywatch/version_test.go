package main

import (
	"strings"
	"testing"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("getVersion() returned empty string")
	}
	if getCommit() == "" {
		t.Error("getCommit() returned empty string")
	}
	if getDate() == "" {
		t.Error("getDate() returned empty string")
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("full output", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, "", "version")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"gallerywatch version", "commit:", "built:", "go:"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("short output", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, "", "version", "--short")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(out) != getVersion() {
			t.Errorf("expected %q, got %q", getVersion(), out)
		}
	})

	t.Run("rejects arguments", func(t *testing.T) {
		t.Parallel()

		if _, _, err := execute(t, "", "version", "extra"); err == nil {
			t.Error("expected error for extra argument")
		}
	})
}
