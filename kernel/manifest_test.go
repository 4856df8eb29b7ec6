package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oracipher/kernel/logging"
)

func writeBundle(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if manifest != "" {
		if err := os.WriteFile(filepath.Join(dir, manifestFileName), []byte(manifest), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func testLogger(t *testing.T) logging.Logger {
	t.Helper()
	cfg := logging.DefaultConfig()
	cfg.Director = t.TempDir()
	return logging.NewLogger(cfg)
}

func TestScanOne_ValidManifest(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "hello", `{"name":"hello","version":"1.2.0","dependencies":["core>=1.0.0"]}`)

	s := newScanner(root, testLogger(t))
	meta, err := s.scanOne("hello", dir)
	if err != nil {
		t.Fatalf("scanOne: %v", err)
	}
	if meta.Name != "hello" {
		t.Errorf("Name = %q, want hello", meta.Name)
	}
	if meta.Version.String() != "1.2.0" {
		t.Errorf("Version = %v, want 1.2.0", meta.Version)
	}
	if len(meta.Dependencies) != 1 || meta.Dependencies[0].Name != "core" {
		t.Errorf("Dependencies = %v, want one core requirement", meta.Dependencies)
	}
	if meta.EntryFile == "" {
		t.Error("expected an entry file to be found")
	}
}

func TestScanOne_NameFallsBackToDirectoryName(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "fallback", `{"version":"1.0.0"}`)

	s := newScanner(root, testLogger(t))
	meta, err := s.scanOne("fallback", dir)
	if err != nil {
		t.Fatalf("scanOne: %v", err)
	}
	if meta.Name != "fallback" {
		t.Errorf("Name = %q, want fallback", meta.Name)
	}
}

func TestScanOne_MissingManifestFails(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "nomanifest", "")

	s := newScanner(root, testLogger(t))
	if _, err := s.scanOne("nomanifest", dir); err == nil {
		t.Error("expected an error for a missing config.json")
	}
}

func TestScanOne_MalformedJSONFails(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "broken", `{"name": "broken",`)

	s := newScanner(root, testLogger(t))
	if _, err := s.scanOne("broken", dir); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestScanOne_UnparseableRequirementFails(t *testing.T) {
	root := t.TempDir()
	dir := writeBundle(t, root, "badreq", `{"name":"badreq","version":"1.0.0","dependencies":[">=1.0.0"]}`)

	s := newScanner(root, testLogger(t))
	if _, err := s.scanOne("badreq", dir); err == nil {
		t.Error("expected an error for an unparseable requirement")
	}
}

func TestScan_SkipsMalformedAndReturnsValid(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, "good", `{"name":"good","version":"1.0.0"}`)
	writeBundle(t, root, "bad", `{"version":`)

	s := newScanner(root, testLogger(t))
	metas := s.scan()

	if len(metas) != 1 {
		t.Fatalf("scan() returned %d metas, want 1", len(metas))
	}
	if metas[0].Name != "good" {
		t.Errorf("scan()[0].Name = %q, want good", metas[0].Name)
	}
}

func TestScan_EmptyRootYieldsNothing(t *testing.T) {
	root := t.TempDir()
	s := newScanner(root, testLogger(t))
	if metas := s.scan(); len(metas) != 0 {
		t.Errorf("expected no metas from an empty root, got %v", metas)
	}
}
