package kernel

import (
	"testing"

	"github.com/oracipher/kernel/plugin"
)

func mustVersion(t *testing.T, s string) plugin.Version {
	t.Helper()
	v, err := plugin.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func mustReq(t *testing.T, s string) plugin.Requirement {
	t.Helper()
	r, err := plugin.ParseRequirement(s)
	if err != nil {
		t.Fatalf("ParseRequirement(%q): %v", s, err)
	}
	return r
}

func metaOf(t *testing.T, name, version string, deps ...string) *PluginMeta {
	reqs := make([]plugin.Requirement, len(deps))
	for i, d := range deps {
		reqs[i] = mustReq(t, d)
	}
	return &PluginMeta{Name: name, Version: mustVersion(t, version), Dependencies: reqs}
}

func TestResolve_LinearOrder(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0"),
		"b": metaOf(t, "b", "1.0.0", "a"),
		"c": metaOf(t, "c", "1.0.0", "b"),
	}
	names := []string{"c", "b", "a"} // deliberately out of dependency order
	result := newDepResolver(metas, names).resolve()

	if len(result.Excluded) != 0 {
		t.Fatalf("unexpected exclusions: %v", result.Excluded)
	}
	pos := make(map[string]int, len(result.Order))
	for i, n := range result.Order {
		pos[n] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("order %v violates a before b before c", result.Order)
	}
}

func TestResolve_MissingDependencyExcludes(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0", "ghost"),
	}
	result := newDepResolver(metas, []string{"a"}).resolve()

	if len(result.Order) != 0 {
		t.Errorf("expected nothing loadable, got %v", result.Order)
	}
	if _, bad := result.Excluded["a"]; !bad {
		t.Error("expected a to be excluded for a missing dependency")
	}
}

func TestResolve_VersionMismatchExcludes(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0"),
		"b": metaOf(t, "b", "1.0.0", "a>=2.0.0"),
	}
	result := newDepResolver(metas, []string{"a", "b"}).resolve()

	if _, bad := result.Excluded["b"]; !bad {
		t.Error("expected b to be excluded: a does not satisfy a>=2.0.0")
	}
	if len(result.Order) != 1 || result.Order[0] != "a" {
		t.Errorf("expected only a loadable, got %v", result.Order)
	}
}

func TestResolve_CycleExcludesWholeCycle(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0", "b"),
		"b": metaOf(t, "b", "1.0.0", "a"),
	}
	result := newDepResolver(metas, []string{"a", "b"}).resolve()

	if len(result.Order) != 0 {
		t.Errorf("expected nothing loadable in a 2-cycle, got %v", result.Order)
	}
	if len(result.Excluded) != 2 {
		t.Errorf("expected both cycle members excluded, got %v", result.Excluded)
	}
}

func TestResolve_PartialFailurePropagatesToDependents(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0", "ghost"),
		"b": metaOf(t, "b", "1.0.0", "a"),
		"c": metaOf(t, "c", "1.0.0"), // unrelated, should stay loadable
	}
	result := newDepResolver(metas, []string{"a", "b", "c"}).resolve()

	if _, bad := result.Excluded["a"]; !bad {
		t.Error("expected a excluded directly")
	}
	if _, bad := result.Excluded["b"]; !bad {
		t.Error("expected b excluded transitively through a")
	}
	found := false
	for _, n := range result.Order {
		if n == "c" {
			found = true
		}
	}
	if !found {
		t.Error("expected unrelated plugin c to remain loadable")
	}
}

func TestReverseDeps_TransitiveClosureInOrder(t *testing.T) {
	metas := map[string]*PluginMeta{
		"a": metaOf(t, "a", "1.0.0"),
		"b": metaOf(t, "b", "1.0.0", "a"),
		"c": metaOf(t, "c", "1.0.0", "b"),
		"d": metaOf(t, "d", "1.0.0"), // unrelated
	}
	r := newDepResolver(metas, []string{"a", "b", "c", "d"})
	result := r.resolve()

	rev := r.reverseDeps("a", result.Order)
	if len(rev) != 2 || rev[0] != "b" || rev[1] != "c" {
		t.Errorf("reverseDeps(a) = %v, want [b c] in topological order", rev)
	}
}
