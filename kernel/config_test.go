package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptions_MatchesReferenceValues(t *testing.T) {
	o := DefaultOptions()
	require.Equal(t, "plugins", o.PluginRoot)
	require.Equal(t, 5, o.WorkerPoolSize)
	require.Equal(t, []string{"admin"}, o.ProtectedAdminKeys)
	require.Equal(t, "kernel_", o.ProtectedPrefix)
}

func TestProtectedKeyPolicy_ExactAndPrefixMatch(t *testing.T) {
	policy := newProtectedKeyPolicy(DefaultOptions())

	cases := []struct {
		key  string
		want bool
	}{
		{"admin", true},
		{"kernel_version", true},
		{"kernel_", true},
		{"regular_key", false},
		{"adminish", false},
	}
	for _, tc := range cases {
		if got := policy.IsProtected(tc.key); got != tc.want {
			t.Errorf("IsProtected(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestProtectedKeyPolicy_EmptyPrefixNeverMatchesOnPrefixAlone(t *testing.T) {
	o := DefaultOptions()
	o.ProtectedPrefix = ""
	policy := newProtectedKeyPolicy(o)

	if policy.IsProtected("anything") {
		t.Error("empty prefix should never match by prefix")
	}
	if !policy.IsProtected("admin") {
		t.Error("exact admin-key match should still apply with an empty prefix")
	}
}
