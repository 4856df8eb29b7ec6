package plugin

import (
	"context"
	"time"
)

// Facade is the capability-restricted surface a plugin's Instance is handed
// at construction time. It is the only way plugin code reaches the kernel:
// no other package in this module is importable from a bundle's entry file.
type Facade interface {
	// Log appends a line tagged with this plugin's name to the kernel's
	// logger.
	Log(msg string, args ...any)

	// PluginConfig reads and parses this plugin's own config.json. On
	// absence or parse failure it returns an empty, still-usable
	// ConfigProvider rather than an error (spec.md S4.4).
	PluginConfig() ConfigProvider

	// GetData reads a key from the ScopedStore. scope defaults to Global
	// when called via the zero value of Scope.
	GetData(key string, scope Scope, def any) any

	// SetData writes a key to the ScopedStore. Writes to Global keys
	// matching the protected-key policy are rejected (logged, not
	// returned as an error, per spec.md S4.3) and report ok=false.
	SetData(key string, value any, scope Scope) (ok bool)

	// On registers a handler for an event, owner-tagged with this plugin's
	// name so unload can remove it in bulk.
	On(event string, handler EventHandler) Subscription

	// Emit fans an event out asynchronously to every current subscriber and
	// returns one Future per subscriber, in subscription order.
	Emit(ctx context.Context, event string, args map[string]any) []Future

	// Call fans an event out synchronously, inline on the caller's
	// goroutine, in subscription order, and returns one CallResult per
	// subscriber. timeout is advisory for the aggregate call (spec.md
	// S4.3): once it elapses, Call stops waiting on further subscribers and
	// returns what it has, appending a deadline-exceeded CallResult for
	// each one it did not reach.
	Call(ctx context.Context, event string, timeout time.Duration, args map[string]any) []CallResult

	// SpawnTask starts target in its own goroutine and tracks it as a
	// managed task for this plugin. It fails with ErrNotActive if the stop
	// signal is already set. The facade does not wrap target: cooperative
	// exit via IsActive is target's responsibility.
	SpawnTask(target func(ctx context.Context)) error

	// IsActive reports whether the stop signal has NOT been set yet.
	// Managed tasks are expected to poll this between loop iterations.
	IsActive() bool
}

// ConfigProvider gives plugin code type-safe access to its own manifest.
type ConfigProvider interface {
	Get(key string) (any, bool)
	GetString(key string, def string) string
	GetInt(key string, def int) int
	GetBool(key string, def bool) bool
	Bind(target any) error
}
