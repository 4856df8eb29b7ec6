package plugin

import "context"

// Scope selects which half of the ScopedStore a Get/Set call targets.
// Design note (spec.md S9): a tagged enum at the core boundary, stringly
// typed only where bundles pass scope as a manifest/config value.
type Scope int

const (
	// Global data is visible to every plugin; writes are subject to the
	// protected-key policy (see kernel.ProtectedKeyPolicy).
	Global Scope = iota
	// Local data lives in the caller's own submap and is dropped whole when
	// the caller unloads.
	Local
)

func (s Scope) String() string {
	if s == Local {
		return "local"
	}
	return "global"
}

// ParseScope maps the plugin-facing string form onto the tagged enum.
// Unrecognized strings fall back to Global, matching the bias toward the
// safer default noted in spec.md S4.4 ("write-safe default" is Local for
// writes, but an unrecognized *read* scope should not silently hide data).
func ParseScope(s string) Scope {
	if s == "local" {
		return Local
	}
	return Global
}

// Event is the payload routed through On/Emit/Call.
type Event struct {
	Name   string
	Args   map[string]any
	Source string // owning plugin name of the emitter, set by the facade; "kernel" for Kernel.Publish
}

// EventHandler is a subscriber callback. The context carries the
// aggregate call-timeout for synchronous dispatch; async dispatch passes
// context.Background().
type EventHandler func(ctx context.Context, evt Event) (any, error)

// Subscription is returned by Facade.On so callers rarely need it directly;
// bulk removal on unload is owner-tagged and handled by the kernel.
type Subscription interface {
	Unsubscribe()
}

// Future is the handle returned per-subscriber by an asynchronous Emit.
// Dispatch order of the futures slice matches subscription order; the
// order in which the futures *resolve* is unspecified (spec.md S4.3).
type Future interface {
	// Get blocks until the subscriber returns or ctx is done.
	Get(ctx context.Context) (any, error)
}

// CallResult is one positional entry in the slice returned by a synchronous
// Call. Err is non-nil exactly when the corresponding subscriber returned an
// error or panicked; a panic is recovered and reified here, never
// propagated to the caller or to sibling subscribers (spec.md S4.3, S7).
type CallResult struct {
	Value any
	Err   error
}
