// Package plugin holds the types a plugin bundle's entry file links against:
// the Plugin contract, the Facade it is handed, and the event/scope/version
// vocabulary shared between a bundle and the kernel that loads it.
//
// A bundle's entry file is a `package main` that exports a `Plugin` factory
// matching the Factory type below. The kernel builds that file with
// `go build -buildmode=plugin`, opens the result, and looks up the `Plugin`
// symbol by name -- see kernel/loader.go.
package plugin

import "context"

// Instance is what a bundle's Plugin factory must return. Both methods run
// under a supervisor-enforced timeout; see kernel.Options.StartTimeout and
// StopTimeout.
type Instance interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory is the shape the kernel looks up under the symbol name "Plugin" in
// a freshly loaded module. It takes the capability Facade bound to that
// plugin's bundle and returns the running instance.
type Factory func(Facade) Instance

// PluginState is the lifecycle state of one PluginMeta record.
type PluginState int

const (
	StateDiscovered PluginState = iota // found by the scanner, never loaded
	StateLoaded                        // code loaded and facade injected, start() not yet called
	StateActive                        // start() succeeded; instance is live
	StateStopping                      // unload in progress
	StateUnloaded                      // not active; resources released
	StateFailed                        // load/start raised; rolled back to Unloaded
	StateTimedOut                      // start() exceeded its timeout; rolled back to Unloaded
)

func (s PluginState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateLoaded:
		return "loaded"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateUnloaded:
		return "unloaded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Active reports whether this state corresponds to PluginMeta.active == true.
func (s PluginState) Active() bool {
	return s == StateActive
}
