package services

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to add %q: %v", name, err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatalf("failed to write %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write zip file: %v", err)
	}
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to add %q: %v", name, err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatalf("failed to write %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExpandSkipsHiddenAndMetadata(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "docs.zip")
	writeZip(t, archive, map[string][]byte{
		"invoice.txt":          []byte("invoice body"),
		".DS_Store":            []byte("junk"),
		"__MACOSX/invoice.txt": []byte("resource fork"),
		"sub/.hidden.txt":      []byte("hidden"),
		"sub/receipt.txt":      []byte("receipt body"),
	})

	ae := NewArchiveExpander(dir, NewFileLifecycle(FileLifecycleConfig{}))
	entries := ae.Expand(archive, "docs.zip")

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.DisplayName] = true
		if _, err := os.Stat(e.Path); err != nil {
			t.Errorf("extracted file missing: %v", err)
		}
	}
	if !names["docs.zip → invoice.txt"] || !names["docs.zip → sub/receipt.txt"] {
		t.Errorf("unexpected display names: %v", names)
	}
}

func TestExpandNestedArchive(t *testing.T) {
	dir := t.TempDir()
	inner := zipBytes(t, map[string][]byte{"deep.txt": []byte("deep content")})
	archive := filepath.Join(dir, "outer.zip")
	writeZip(t, archive, map[string][]byte{
		"top.txt":   []byte("top content"),
		"inner.zip": inner,
	})

	ae := NewArchiveExpander(dir, NewFileLifecycle(FileLifecycleConfig{}))
	entries := ae.Expand(archive, "outer.zip")

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	var foundNested bool
	for _, e := range entries {
		if strings.Contains(e.DisplayName, "inner.zip") && strings.Contains(e.DisplayName, "deep.txt") {
			foundNested = true
		}
	}
	if !foundNested {
		t.Errorf("nested entry display name missing archive chain: %+v", entries)
	}
}

func TestExpandMalformedArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "broken.zip")
	if err := os.WriteFile(archive, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	ae := NewArchiveExpander(dir, NewFileLifecycle(FileLifecycleConfig{}))
	if entries := ae.Expand(archive, "broken.zip"); len(entries) != 0 {
		t.Errorf("malformed archive yielded entries: %+v", entries)
	}
}

func TestIsArchive(t *testing.T) {
	if !IsArchive("bundle.ZIP") {
		t.Error("uppercase extension not recognized")
	}
	if IsArchive("report.pdf") {
		t.Error("pdf recognized as archive")
	}
}
