package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetAbsCacheDir(t *testing.T) {
	def, err := GetAbsCacheDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(def, filepath.Join(".config", "kpiscope", "cache")) {
		t.Fatalf("unexpected default cache dir %s", def)
	}

	rel, err := GetAbsCacheDir("cache")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(rel) {
		t.Fatalf("expected an absolute path, got %s", rel)
	}
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("https://example.service-now.com/incident.do?CSV"); got != "https://example.service-now.com/incident.do?CSV" {
		t.Fatalf("URLs must be left alone, got %s", got)
	}
	if got := ExpandPath("~/export.csv"); strings.HasPrefix(got, "~") {
		t.Fatalf("expected ~ to be expanded, got %s", got)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.csv")
	if FileExists(path) {
		t.Fatalf("missing file reported as existing")
	}
	if err := os.WriteFile(path, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) || FileExists(dir) {
		t.Fatalf("unexpected FileExists results")
	}
}
