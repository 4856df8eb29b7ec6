package kernel

import (
	"github.com/oracipher/kernel/errors"
)

// color is a DFS node state for the topological sort (spec.md S4.2):
// white = unvisited, grey = on the current recursion stack, black = done.
type color int

const (
	white color = iota
	grey
	black
)

// depResolver computes load order, detects cycles and missing
// dependencies, and builds reverse-dependency trees. It is grounded on the
// teacher's Kahn's-algorithm resolveDependencies (runtime/runtime.go),
// replaced here with spec.md's DFS white/grey/black walk, which is the
// natural way to report *which* node closed a cycle instead of just "a
// cycle exists somewhere".
type depResolver struct {
	metas map[string]*PluginMeta // name -> meta, scan order preserved by names slice
	names []string               // insertion (scan) order
}

func newDepResolver(metas map[string]*PluginMeta, names []string) *depResolver {
	return &depResolver{metas: metas, names: names}
}

// resolveResult is the outcome of one resolve() pass.
type resolveResult struct {
	Order    []string          // plugins safe to load, in dependency order
	Excluded map[string]error  // name -> the error that excluded it (and its dependents)
}

// resolve walks every known plugin via DFS, producing a topological order
// over the plugins that have no cycle or missing dependency in their
// transitive closure. A cycle or missing-dep involving P excludes P and
// every plugin transitively requiring P (spec.md S4.2 "Partial failure"),
// while leaving unrelated plugins loadable.
func (r *depResolver) resolve() resolveResult {
	colors := make(map[string]color, len(r.names))
	order := make([]string, 0, len(r.names))
	excluded := make(map[string]error)

	var visit func(name string, stack []string) error
	visit = func(name string, stack []string) (err error) {
		switch colors[name] {
		case black:
			return nil
		case grey:
			cycle := append(append([]string{}, stack...), name)
			return errors.NewDepCycle(cycle)
		}

		meta, ok := r.metas[name]
		if !ok {
			// Referenced only as someone else's dependency, never scanned.
			return errors.NewDepMissing(name, name)
		}

		colors[name] = grey
		defer func() {
			// A node whose walk failed leaves the stack as done and is
			// excluded with that error, so a later visitor sees the
			// exclusion rather than a false cycle through it.
			if err != nil {
				colors[name] = black
				excluded[name] = err
			}
		}()
		for _, req := range meta.Dependencies {
			dep, ok := r.metas[req.Name]
			if !ok {
				return errors.NewDepMissing(name, req.String())
			}
			if !req.Satisfies(dep.Version) {
				return errors.NewDepMissing(name, req.String())
			}
			if err := visit(req.Name, append(stack, name)); err != nil {
				return err
			}
		}
		colors[name] = black
		order = append(order, name)
		return nil
	}

	for _, name := range r.names {
		if colors[name] != white {
			continue
		}
		if err := visit(name, nil); err != nil {
			excluded[name] = err
		}
	}

	// Exclude every plugin that transitively depends on an excluded one,
	// even if its own subtree was otherwise clean (spec.md S4.2).
	changed := true
	for changed {
		changed = false
		for _, name := range r.names {
			if _, already := excluded[name]; already {
				continue
			}
			meta, ok := r.metas[name]
			if !ok {
				continue
			}
			for _, req := range meta.Dependencies {
				if _, bad := excluded[req.Name]; bad {
					excluded[name] = errors.NewDepMissing(name, req.String())
					changed = true
					break
				}
			}
		}
	}

	final := order[:0:0]
	for _, name := range order {
		if _, bad := excluded[name]; !bad {
			final = append(final, name)
		}
	}

	return resolveResult{Order: final, Excluded: excluded}
}

// reverseDeps computes R = { P : target ∈ deps*(P) }, the transitive
// reverse closure, intersected with the current topological order and
// preserving that order (spec.md S4.2). order must be a valid topological
// order as returned by resolve().
func (r *depResolver) reverseDeps(target string, order []string) []string {
	requiredBy := make(map[string]bool)
	var dependsOnTarget func(name string, seen map[string]bool) bool
	dependsOnTarget = func(name string, seen map[string]bool) bool {
		if seen[name] {
			return false
		}
		seen[name] = true
		meta, ok := r.metas[name]
		if !ok {
			return false
		}
		for _, req := range meta.Dependencies {
			if req.Name == target {
				return true
			}
			if dependsOnTarget(req.Name, seen) {
				return true
			}
		}
		return false
	}

	for _, name := range order {
		if name == target {
			continue
		}
		if dependsOnTarget(name, map[string]bool{}) {
			requiredBy[name] = true
		}
	}

	result := make([]string, 0, len(requiredBy))
	for _, name := range order {
		if requiredBy[name] {
			result = append(result, name)
		}
	}
	return result
}
