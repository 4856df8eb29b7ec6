package kernel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/oracipher/kernel/concurrency"
	"github.com/oracipher/kernel/errors"
	"github.com/oracipher/kernel/logging"
	"github.com/oracipher/kernel/metrics"
	"github.com/oracipher/kernel/plugin"
	"go.uber.org/zap"
)

// Kernel is the Lifecycle Supervisor (C5, spec.md S4.5): it owns the
// scanner, resolver, registry, and every loaded plugin's PluginMeta, and
// drives the five-state machine (Discovered -> Loaded -> Active ->
// Stopping -> Unloaded, with transient Failed/TimedOut) through Load,
// Unload, Reload, and Shutdown. Grounded on the teacher's
// runtime.Runtime, generalized from its web-plugin install/enable
// lifecycle down to spec.md's narrower start/stop contract and replacing
// its Kahn's-algorithm resolve with kernel/depgraph.go's DFS walk.
type Kernel struct {
	opts   Options
	root   string
	logger logging.Logger

	metas     *metaRegistry
	registry  *registry
	pool      *concurrency.WorkerPool
	metrics   *metrics.Collector
	audit     AuditHook
	throttle  *capabilityThrottle
	policy    *capabilityPolicy        // nil means unrestricted: the gate is opt-in
	forwarder *lifecycleEventForwarder // nil means no external mirroring

	mu       sync.Mutex // serializes Load/Unload/Reload against each other
	shutdown atomic.Bool
}

// New constructs a Kernel from opts, wiring its worker pool, registry, and
// metrics collector, but performing no I/O — call Init to scan and bring
// plugins up.
func New(opts Options, logger logging.Logger, audit AuditHook) *Kernel {
	pool := concurrency.NewWorkerPool(opts.WorkerPoolSize)
	pool.Start()
	// Dispatch results reach callers through each job's Future; drain the
	// pool's shared result channel so workers never block on it.
	go func() {
		for range pool.GetResults() {
		}
	}()

	if audit == nil {
		audit = NoopAudit
	}

	return &Kernel{
		opts:     opts,
		root:     opts.PluginRoot,
		logger:   logger,
		metas:    newMetaRegistry(),
		registry: newRegistry(newProtectedKeyPolicy(opts), pool, logger),
		pool:     pool,
		metrics:  metrics.NewCollector(),
		audit:    audit,
		throttle: newCapabilityThrottle(opts.ThrottleLimit, opts.ThrottleWindow),
	}
}

func (k *Kernel) isShutdown() bool { return k.shutdown.Load() }

// SetPolicy installs a capability policy gate, checked by every Emit, Call,
// and SpawnTask going forward. Passing nil (the default) disables the
// gate, restoring the unrestricted behavior spec.md's core contract
// describes; callers that want the casbin-backed enrichment call this
// once after New.
func (k *Kernel) SetPolicy(p *capabilityPolicy) {
	k.policy = p
}

// Init scans the plugin root, resolves a load order, and loads every
// plugin it admits, in dependency order, best-effort: one plugin's
// failure never aborts bring-up of the rest (spec.md S4.5 "initial
// bring-up"). If sync is non-nil, bundles are mirrored from the remote
// store into the plugin root before the scan begins.
func (k *Kernel) Init(ctx context.Context, sync *remoteBundleSync) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if sync != nil {
		if err := sync.Sync(k.root); err != nil {
			k.logger.Warn("remote bundle mirror failed, scanning local plugin root as-is",
				zap.Error(err))
		}
	}
	return k.rescanAndLoadLocked(ctx)
}

func (k *Kernel) rescanAndLoadLocked(ctx context.Context) error {
	sc := newScanner(k.root, k.logger)
	for _, meta := range sc.scan() {
		k.metas.upsert(meta)
	}

	result := k.resolveLocked()
	for name, err := range result.Excluded {
		k.logger.Warn("plugin excluded from load order", zap.String("plugin", name), zap.Error(err))
		if meta, ok := k.metas.get(name); ok {
			meta.lastErr = err
			meta.state = plugin.StateFailed
		}
	}

	for _, name := range result.Order {
		meta, ok := k.metas.get(name)
		if !ok || meta.active {
			continue
		}
		if err := k.loadOneLocked(ctx, meta); err != nil {
			k.logger.Warn("plugin failed to load during bring-up",
				zap.String("plugin", name), zap.Error(err))
		}
	}
	return nil
}

func (k *Kernel) resolveLocked() resolveResult {
	snap := k.metas.snapshot()
	return newDepResolver(snap, k.metas.orderedNames()).resolve()
}

// Load brings one discovered (or previously failed/unloaded) plugin to
// Active, auditing, building, and starting it in order, rolling back on
// any failure (spec.md S4.5 "Load path").
func (k *Kernel) Load(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	meta, ok := k.metas.get(name)
	if !ok {
		return errors.NewDepMissing(name, name)
	}
	return k.loadOneLocked(ctx, meta)
}

func (k *Kernel) loadOneLocked(ctx context.Context, meta *PluginMeta) error {
	if meta.active {
		return nil
	}

	findings, err := runAudit(k.audit, meta.Name, meta.EntryFile)
	if err != nil {
		meta.state = plugin.StateFailed
		meta.lastErr = errors.NewLoadFailed(meta.Name, err)
		return meta.lastErr
	}
	if len(findings) > 0 {
		appErr := errors.NewAuditBlocked(meta.Name, findings[0].Message)
		meta.state = plugin.StateFailed
		meta.lastErr = appErr
		k.metrics.IncCounter("plugin_load_blocked", map[string]string{"plugin": meta.Name})
		return appErr
	}

	handle, factory, err := buildAndOpen(ctx, meta.Name, meta.EntryFile)
	if err != nil {
		meta.state = plugin.StateFailed
		meta.lastErr = err
		k.metrics.IncCounter("plugin_load_failed", map[string]string{"plugin": meta.Name})
		return err
	}

	f := newFacade(meta.Name, k)
	instance := factory(f)

	startCtx, cancel := context.WithTimeout(ctx, k.opts.StartTimeout)
	defer cancel()

	startErr := runBounded(startCtx, instance.Start)
	if startErr != nil {
		handle.release()
		if startCtx.Err() == context.DeadlineExceeded {
			meta.state = plugin.StateTimedOut
			meta.lastErr = errors.NewStartTimeout(meta.Name)
		} else {
			meta.state = plugin.StateFailed
			meta.lastErr = errors.NewStartFailed(meta.Name, startErr)
		}
		k.metrics.IncCounter("plugin_start_failed", map[string]string{"plugin": meta.Name})
		return meta.lastErr
	}

	meta.moduleHandle = handle
	meta.instance = instance
	meta.facade = f
	meta.active = true
	meta.state = plugin.StateActive
	meta.lastErr = nil
	k.metrics.IncCounter("plugin_loaded", map[string]string{"plugin": meta.Name})
	k.metrics.SetGauge("plugins_active", float64(k.countActiveLocked()), nil)
	k.notifyLifecycle(ctx, "plugin_loaded", map[string]any{"plugin": meta.Name})
	return nil
}

func (k *Kernel) countActiveLocked() int {
	n := 0
	for _, m := range k.metas.snapshot() {
		if m.active {
			n++
		}
	}
	return n
}

// Unload stops and tears down one active plugin (spec.md S4.5 "Unload
// path"): Stop under a timeout, a grace period for its managed tasks,
// owner-tagged event unsubscribe, local-store drop, and module release.
// The record itself remains in the registry, reset to StateUnloaded, so
// a later Load can bring it back up.
func (k *Kernel) Unload(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	meta, ok := k.metas.get(name)
	if !ok {
		return errors.NewDepMissing(name, name)
	}
	return k.unloadOneLocked(ctx, meta)
}

func (k *Kernel) unloadOneLocked(ctx context.Context, meta *PluginMeta) error {
	if !meta.active {
		return nil
	}
	meta.state = plugin.StateStopping
	meta.facade.signalStop()

	stopCtx, cancel := context.WithTimeout(ctx, k.opts.StopTimeout)
	defer cancel()
	stopErr := runBounded(stopCtx, meta.instance.Stop)

	var retErr error
	if stopErr != nil {
		if stopCtx.Err() == context.DeadlineExceeded {
			retErr = errors.NewStopTimeout(meta.Name)
		} else {
			retErr = errors.NewStopRaised(meta.Name, stopErr)
		}
		k.logger.Warn("plugin stop did not complete cleanly",
			zap.String("plugin", meta.Name), zap.Error(retErr))
	}

	if remaining := meta.facade.awaitTasks(k.opts.TaskGrace); remaining > 0 {
		k.logger.Warn("plugin left managed tasks running past grace period",
			zap.String("plugin", meta.Name), zap.Int("remaining", remaining))
	}

	k.registry.unregisterByOwner(meta.Name)
	k.registry.dropOwnerLocal(meta.Name)
	k.throttle.Reset(meta.Name)
	meta.moduleHandle.release()

	meta.moduleHandle = moduleHandle{}
	meta.instance = nil
	meta.facade = nil
	meta.active = false
	meta.state = plugin.StateUnloaded
	meta.lastErr = retErr
	k.metrics.IncCounter("plugin_unloaded", map[string]string{"plugin": meta.Name})
	k.metrics.SetGauge("plugins_active", float64(k.countActiveLocked()), nil)
	k.notifyLifecycle(ctx, "plugin_unloaded", map[string]any{"plugin": meta.Name})
	return retErr
}

// Reload re-scans the plugin root and cycles one plugin through a
// cascading reload (spec.md S4.5 "Cascading reload"): unload it and every
// plugin that transitively depends on it, in reverse topological order,
// rescan, then reload the whole affected set in forward order. If the
// target itself fails to come back up, the reload aborts: dependents stay
// unloaded rather than starting against a broken dependency.
func (k *Kernel) Reload(ctx context.Context, name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.metas.get(name); !ok {
		return errors.NewDepMissing(name, name)
	}

	order := k.resolveLocked().Order
	resolver := newDepResolver(k.metas.snapshot(), k.metas.orderedNames())
	affected := append(resolver.reverseDeps(name, order), name)

	// Unload in reverse topological order: dependents before the target.
	for i := len(affected) - 1; i >= 0; i-- {
		if meta, ok := k.metas.get(affected[i]); ok && meta.active {
			k.unloadOneLocked(ctx, meta)
		}
	}

	for _, meta := range newScanner(k.root, k.logger).scan() {
		k.metas.upsert(meta)
	}
	target, _ := k.metas.get(name)
	if err := k.loadOneLocked(ctx, target); err != nil {
		return err
	}
	for _, dep := range affected[:len(affected)-1] {
		if meta, ok := k.metas.get(dep); ok && k.loadOneLocked(ctx, meta) != nil {
			k.logger.Warn("dependent failed to reload", zap.String("plugin", dep), zap.Error(meta.lastErr))
		}
	}
	return nil
}

// PluginSummary is a read-only view of one discovered plugin, for
// callers outside the kernel package (cmd/kernelctl, kernel/httpapi.go)
// that need name/version/state without reaching into PluginMeta's
// unexported fields.
type PluginSummary struct {
	Name    string
	Version plugin.Version
	State   plugin.PluginState
	Active  bool
	LastErr error
}

// List returns every known plugin's name, version, and current state, in
// scan order.
func (k *Kernel) List() []PluginSummary {
	snap := k.metas.snapshot()
	out := make([]PluginSummary, 0, len(snap))
	for _, name := range k.metas.orderedNames() {
		m := snap[name]
		out = append(out, PluginSummary{
			Name:    m.Name,
			Version: m.Version,
			State:   m.state,
			Active:  m.active,
			LastErr: m.lastErr,
		})
	}
	return out
}

// Publish emits event to every active subscriber via the registry's async
// path, as the kernel itself (not on behalf of any one plugin).
func (k *Kernel) Publish(event string, args map[string]any) []plugin.Future {
	return k.registry.Emit("kernel", event, args)
}

// Shutdown unloads every active plugin in reverse topological order, then
// stops the worker pool without waiting on in-flight dispatches to drain
// (spec.md S4.5 "Shutdown"). After Shutdown returns, every facade's gone()
// check reports true, so a plugin goroutine that outlived its Stop call
// finds the facade inert (see facade) and gets a KernelGone error from
// SpawnTask, instead of touching freed state.
func (k *Kernel) Shutdown(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()

	order := k.resolveLocked().Order
	for i := len(order) - 1; i >= 0; i-- {
		if meta, ok := k.metas.get(order[i]); ok && meta.active {
			k.unloadOneLocked(ctx, meta)
		}
	}

	k.shutdown.Store(true)
	go k.pool.Stop()
}

// runBounded runs fn(ctx) in its own goroutine and returns its error, or
// ctx.Err() if ctx's deadline elapses first. fn is expected to be
// well-behaved plugin code; a fn that never returns after its context is
// canceled leaves its goroutine running (spec.md's Non-goal: no forcible
// kill), matching facade.awaitTasks's same best-effort posture for
// SpawnTask'd work.
func runBounded(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
