package kernel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oracipher/kernel/security"
)

func TestNoopAudit_AlwaysPasses(t *testing.T) {
	if findings := NoopAudit("p", "entry.go", []byte("package main")); findings != nil {
		t.Errorf("NoopAudit returned findings: %v", findings)
	}
}

func TestRunAudit_DefaultsToNoop(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.go")
	if err := os.WriteFile(entry, []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	findings, err := runAudit(nil, "p", entry)
	if err != nil {
		t.Fatalf("runAudit: %v", err)
	}
	if findings != nil {
		t.Errorf("expected no findings with a nil hook, got %v", findings)
	}
}

func TestFingerprintAudit_BlocksDenylistedContent(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.go")
	content := []byte("package main\n// malicious\n")
	if err := os.WriteFile(entry, content, 0o644); err != nil {
		t.Fatal(err)
	}

	sum := (&security.SHA256Hash{}).Hash(content)
	hook := fingerprintAudit(map[string]bool{string(sum): true})

	findings, err := runAudit(hook, "p", entry)
	if err != nil {
		t.Fatalf("runAudit: %v", err)
	}
	if len(findings) != 1 || findings[0].Rule != "fingerprint-denylist" {
		t.Errorf("expected one fingerprint-denylist finding, got %v", findings)
	}
}

func TestFingerprintAudit_PassesCleanContent(t *testing.T) {
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.go")
	if err := os.WriteFile(entry, []byte("package main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	hook := fingerprintAudit(map[string]bool{})
	findings, err := runAudit(hook, "p", entry)
	if err != nil {
		t.Fatalf("runAudit: %v", err)
	}
	if findings != nil {
		t.Errorf("expected no findings against an empty denylist, got %v", findings)
	}
}
