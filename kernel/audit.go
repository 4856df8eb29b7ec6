package kernel

import (
	"os"

	"github.com/oracipher/kernel/security"
)

// AuditFinding is one reason an audit hook refused to load a plugin.
type AuditFinding struct {
	Rule    string
	Message string
}

// AuditHook is the pluggable, advisory code-validation hook spec.md S4.5
// step 1 calls out as an external collaborator: "the code-security static
// auditor (treated as a pluggable validation hook with a pass/fail
// contract)". Non-empty findings abort the load with an AuditBlocked
// error; the hook is advisory only (spec.md Non-goals: "protection
// against adversarial plugins").
type AuditHook func(pluginName, entryFile string, content []byte) []AuditFinding

// NoopAudit always passes. It is the default hook when none is configured,
// matching a kernel that trusts every bundle on its plugin root.
func NoopAudit(string, string, []byte) []AuditFinding { return nil }

// fingerprintAudit is a minimal, real audit hook: it computes a SHA-256
// fingerprint of the entry file (grounded on security.SHA256Hash) and
// rejects the load if the file's fingerprint is on the supplied denylist.
// This is the shape an organization's real static analyzer would plug into
// — this kernel ships only the pass/fail contract and a trivial instance
// of it, not a security scanner.
func fingerprintAudit(denylist map[string]bool) AuditHook {
	hasher := &security.SHA256Hash{}
	return func(pluginName, entryFile string, content []byte) []AuditFinding {
		sum := hasher.Hash(content)
		key := string(sum)
		if denylist[key] {
			return []AuditFinding{{
				Rule:    "fingerprint-denylist",
				Message: "entry file fingerprint matches a denied build",
			}}
		}
		return nil
	}
}

// runAudit reads entryFile and invokes hook, used by the supervisor's
// load path before any code is built or opened.
func runAudit(hook AuditHook, pluginName, entryFile string) ([]AuditFinding, error) {
	if hook == nil {
		hook = NoopAudit
	}
	content, err := os.ReadFile(entryFile)
	if err != nil {
		return nil, err
	}
	return hook(pluginName, entryFile, content), nil
}
