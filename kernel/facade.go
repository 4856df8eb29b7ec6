package kernel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oracipher/kernel/errors"
	"github.com/oracipher/kernel/plugin"
)

// facade is the concrete plugin.Facade handed to one loaded plugin's
// Instance. It holds a non-owning back-reference to the Kernel so that a
// plugin can never outlive or keep alive the kernel it belongs to
// (spec.md S4.5's "weak reference" requirement) — the zero value of
// owner is never valid, but the *Kernel it points at may already have
// shut down. From then on SpawnTask returns a KernelGone error wrapping
// plugin.ErrKernelGone, and the other methods report no error: Log does
// nothing, PluginConfig returns an empty config, GetData returns def,
// SetData returns false, On returns an inert subscription, and Emit and
// Call return nil.
type facade struct {
	owner  string // owning plugin's name
	kernel *Kernel

	stopped atomic.Bool // one-shot stop-signal latch, never cleared once set

	tasksMu sync.Mutex
	tasks   map[uint64]*managedTask
	nextID  atomic.Uint64
}

type managedTask struct {
	done   chan struct{}
	cancel context.CancelFunc
}

func newFacade(owner string, k *Kernel) *facade {
	return &facade{
		owner:  owner,
		kernel: k,
		tasks:  make(map[uint64]*managedTask),
	}
}

func (f *facade) Log(msg string, args ...any) {
	if f.gone() {
		return
	}
	f.kernel.logger.Infof("[%s] "+msg, append([]any{f.owner}, args...)...)
}

func (f *facade) PluginConfig() plugin.ConfigProvider {
	if f.gone() {
		return plugin.EmptyConfig()
	}
	meta, ok := f.kernel.metas.get(f.owner)
	if !ok || meta.Settings == nil {
		return plugin.EmptyConfig()
	}
	return plugin.NewManifestConfig(meta.Settings)
}

func (f *facade) GetData(key string, scope plugin.Scope, def any) any {
	if f.gone() {
		return def
	}
	return f.kernel.registry.GetData(f.owner, key, scope, def)
}

func (f *facade) SetData(key string, value any, scope plugin.Scope) bool {
	if f.gone() {
		return false
	}
	return f.kernel.registry.SetData(f.owner, key, value, scope)
}

func (f *facade) On(event string, handler plugin.EventHandler) plugin.Subscription {
	if f.gone() {
		return &subscription{}
	}
	return f.kernel.registry.On(f.owner, event, handler)
}

func (f *facade) Emit(ctx context.Context, event string, args map[string]any) []plugin.Future {
	if f.gone() {
		return nil
	}
	if f.kernel.policy != nil && !f.kernel.policy.Check(f.owner, event, "emit") {
		return []plugin.Future{throttledFuture{reason: "denied by capability policy"}}
	}
	if allowed, _ := f.kernel.throttle.Allow(f.owner); !allowed {
		return []plugin.Future{throttledFuture{reason: "capability call throttled"}}
	}
	return f.kernel.registry.Emit(f.owner, event, args)
}

func (f *facade) Call(ctx context.Context, event string, timeout time.Duration, args map[string]any) []plugin.CallResult {
	if f.gone() {
		return nil
	}
	if f.kernel.policy != nil && !f.kernel.policy.Check(f.owner, event, "call") {
		return []plugin.CallResult{{Err: errors.New(errors.ErrorTypeCallbackError, "denied by capability policy")}}
	}
	if allowed, _ := f.kernel.throttle.Allow(f.owner); !allowed {
		return []plugin.CallResult{{Err: errors.New(errors.ErrorTypeCallbackError, "capability call throttled")}}
	}
	return f.kernel.registry.Call(ctx, f.owner, event, timeout, args)
}

// throttledFuture is the sentinel plugin.Future returned when Emit is
// refused before dispatch (by the throttle or the policy gate): Get
// returns immediately with the refusal reason rather than blocking on a
// dispatch that never happened.
type throttledFuture struct{ reason string }

func (t throttledFuture) Get(context.Context) (any, error) {
	return nil, errors.New(errors.ErrorTypeCallbackError, t.reason)
}

// SpawnTask starts target in its own goroutine, tracked so the supervisor
// can give it a grace period to exit on unload (spec.md S4.5's "best-effort
// zombie detection", never a forcible kill). It refuses once the stop
// signal has already been set: a plugin mid-shutdown should not be able to
// spin up new work.
func (f *facade) SpawnTask(target func(ctx context.Context)) error {
	if f.gone() {
		return errors.NewKernelGone().WithInnerError(plugin.ErrKernelGone)
	}
	if f.stopped.Load() {
		return errors.NewNotActive(f.owner).WithInnerError(plugin.ErrNotActive)
	}
	if f.kernel.policy != nil && !f.kernel.policy.Check(f.owner, "*", "spawn_task") {
		return errors.New(errors.ErrorTypeCallbackError, "denied by capability policy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := f.nextID.Add(1)
	task := &managedTask{done: make(chan struct{}), cancel: cancel}

	f.tasksMu.Lock()
	f.tasks[id] = task
	f.tasksMu.Unlock()

	go func() {
		defer close(task.done)
		defer cancel()
		defer func() {
			f.tasksMu.Lock()
			delete(f.tasks, id)
			f.tasksMu.Unlock()
		}()
		target(ctx)
	}()
	return nil
}

func (f *facade) IsActive() bool {
	return !f.gone() && !f.stopped.Load()
}

func (f *facade) gone() bool {
	return f.kernel == nil || f.kernel.isShutdown()
}

// signalStop sets the one-shot stop latch and cancels every managed task's
// context. Called by the supervisor before invoking Instance.Stop, so any
// SpawnTask'd loop polling IsActive (or waiting on its context) begins
// winding down concurrently with Stop's own timeout window.
func (f *facade) signalStop() {
	f.stopped.Store(true)
	f.tasksMu.Lock()
	for _, t := range f.tasks {
		t.cancel()
	}
	f.tasksMu.Unlock()
}

// awaitTasks waits up to grace for every outstanding managed task to
// finish, returning the number still running when grace elapsed. This is
// the "best-effort zombie detection" spec.md S4.5 calls for: tasks that
// don't respect IsActive are simply abandoned, never killed.
func (f *facade) awaitTasks(grace time.Duration) (remaining int) {
	f.tasksMu.Lock()
	pending := make([]*managedTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		pending = append(pending, t)
	}
	f.tasksMu.Unlock()

	deadline := time.After(grace)
	for _, t := range pending {
		select {
		case <-t.done:
		case <-deadline:
			f.tasksMu.Lock()
			remaining = len(f.tasks)
			f.tasksMu.Unlock()
			return remaining
		}
	}
	return 0
}
