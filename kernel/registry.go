package kernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oracipher/kernel/concurrency"
	"github.com/oracipher/kernel/logging"
	"github.com/oracipher/kernel/plugin"
	"go.uber.org/zap"
)

// registry is the State & Event Registry (C3, spec.md S4.3/S4.4): a
// ScopedStore (global/local key-value data) plus an owner-tagged event
// bus with both an asynchronous (Emit) and a synchronous, inline (Call)
// dispatch path. Grounded on the teacher's runtime/event_bus.go for the
// async snapshot-then-dispatch shape; the synchronous path and the
// owner-tagged bulk unregister are additions the teacher has no
// counterpart for.
type registry struct {
	dataMu sync.RWMutex
	global map[string]any
	local  map[string]map[string]any // owner -> key -> value
	policy ProtectedKeyPolicy

	subMu     sync.RWMutex
	subs      map[string][]subEntry // event name -> subscribers, in subscription order
	nextSubID atomic.Uint64

	pool   *concurrency.WorkerPool
	logger logging.Logger
}

type subEntry struct {
	id      uint64
	owner   string
	handler plugin.EventHandler
}

func newRegistry(policy ProtectedKeyPolicy, pool *concurrency.WorkerPool, logger logging.Logger) *registry {
	return &registry{
		global: make(map[string]any),
		local:  make(map[string]map[string]any),
		policy: policy,
		subs:   make(map[string][]subEntry),
		pool:   pool,
		logger: logger,
	}
}

// GetData reads key from the scope selected for the given owner. A Local
// read that finds no submap for owner (it has never written one) returns
// def, not an error — an empty local store is indistinguishable from an
// absent one (spec.md S4.4).
func (r *registry) GetData(owner, key string, scope plugin.Scope, def any) any {
	r.dataMu.RLock()
	defer r.dataMu.RUnlock()

	if scope == plugin.Local {
		sub, ok := r.local[owner]
		if !ok {
			return def
		}
		if v, ok := sub[key]; ok {
			return v
		}
		return def
	}
	if v, ok := r.global[key]; ok {
		return v
	}
	return def
}

// SetData writes key into the selected scope. A Global write to a
// protected key is refused and logged, never surfaced as an error to the
// caller (spec.md S4.3): the facade method signature has no error return,
// only the ok bool this method reports.
func (r *registry) SetData(owner, key string, value any, scope plugin.Scope) bool {
	if scope == plugin.Global && r.policy.IsProtected(key) {
		r.logger.Warn("rejected write to protected global key",
			zap.String("owner", owner), zap.String("key", key))
		return false
	}

	r.dataMu.Lock()
	defer r.dataMu.Unlock()

	if scope == plugin.Local {
		sub, ok := r.local[owner]
		if !ok {
			sub = make(map[string]any)
			r.local[owner] = sub
		}
		sub[key] = value
		return true
	}
	r.global[key] = value
	return true
}

// dropOwnerLocal discards owner's entire local submap, called when a
// plugin unloads (spec.md S4.4: "local data... is dropped whole when the
// caller unloads").
func (r *registry) dropOwnerLocal(owner string) {
	r.dataMu.Lock()
	defer r.dataMu.Unlock()
	delete(r.local, owner)
}

// On registers handler for event, tagged with owner so unregisterByOwner
// can remove it in bulk on unload.
func (r *registry) On(owner, event string, handler plugin.EventHandler) plugin.Subscription {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSubID.Add(1)
	r.subs[event] = append(r.subs[event], subEntry{id: id, owner: owner, handler: handler})
	return &subscription{reg: r, event: event, id: id}
}

// unregisterByOwner removes every subscription tagged with owner, across
// every event, used by the supervisor's unload path (spec.md S4.5).
func (r *registry) unregisterByOwner(owner string) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for event, entries := range r.subs {
		kept := entries[:0:0]
		for _, e := range entries {
			if e.owner != owner {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(r.subs, event)
		} else {
			r.subs[event] = kept
		}
	}
}

// snapshot copies the current subscriber list for event under the read
// lock, then releases it before dispatch begins — the same pattern as
// the teacher's fanOut, required so a handler that calls On/Unsubscribe
// from within its own callback can never deadlock on subMu.
func (r *registry) snapshot(event string) []subEntry {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	return append([]subEntry(nil), r.subs[event]...)
}

// Emit fans event out asynchronously: each subscriber runs as one job on
// the shared worker pool, and the caller gets back one Future per
// subscriber, in subscription order, exactly mirroring Facade.Emit's
// contract.
func (r *registry) Emit(source, event string, args map[string]any) []plugin.Future {
	entries := r.snapshot(event)
	evt := plugin.Event{Name: event, Args: args, Source: source}

	futures := make([]plugin.Future, 0, len(entries))
	for _, e := range entries {
		cf := concurrency.NewFuture()
		job := &dispatchJob{handler: e.handler, ctx: context.Background(), evt: evt, future: cf}
		if err := r.pool.Submit(job); err != nil {
			cf.Complete(&dispatchResult{err: fmt.Errorf("dispatch not submitted: %w", err)})
		}
		futures = append(futures, &futureAdapter{f: cf})
	}
	return futures
}

// Call fans event out synchronously, strictly inline on the caller's
// goroutine — never delegated to the worker pool, since a pool worker
// could itself be the caller of a Call whose subscriber needs another
// pool worker, deadlocking the pool (spec.md S4.3's open question,
// resolved toward inline dispatch). timeout bounds the aggregate call:
// once the deadline passes, remaining subscribers are not invoked and get
// a deadline-exceeded CallResult instead.
func (r *registry) Call(ctx context.Context, source, event string, timeout time.Duration, args map[string]any) []plugin.CallResult {
	entries := r.snapshot(event)
	evt := plugin.Event{Name: event, Args: args, Source: source}

	deadline := time.Now().Add(timeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	results := make([]plugin.CallResult, 0, len(entries))
	for _, e := range entries {
		if timeout > 0 && time.Now().After(deadline) {
			results = append(results, plugin.CallResult{Err: context.DeadlineExceeded})
			continue
		}
		results = append(results, invokeInline(ctx, e.handler, evt))
	}
	return results
}

// invokeInline calls handler directly, recovering a panic into a
// CallResult error rather than letting it escape into the caller's stack
// (spec.md S7: a subscriber panic is reified, never propagated).
func invokeInline(ctx context.Context, handler plugin.EventHandler, evt plugin.Event) (res plugin.CallResult) {
	defer func() {
		if p := recover(); p != nil {
			res = plugin.CallResult{Err: fmt.Errorf("panic in event handler: %v", p)}
		}
	}()
	v, err := handler(ctx, evt)
	return plugin.CallResult{Value: v, Err: err}
}

// dispatchJob adapts one async subscriber invocation into a
// concurrency.Job, completing its own Future as its last step so the
// result carries the handler's return value, not just an error (the pool's
// shared Result channel only models the latter).
type dispatchJob struct {
	handler plugin.EventHandler
	ctx     context.Context
	evt     plugin.Event
	future  *concurrency.Future
}

func (j *dispatchJob) Execute() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in event handler: %v", p)
			j.future.Complete(&dispatchResult{err: err})
		}
	}()
	v, err := j.handler(j.ctx, j.evt)
	j.future.Complete(&dispatchResult{value: v, err: err})
	return err
}

// dispatchResult carries a handler's return value through a
// concurrency.Future, which only requires GetError().
type dispatchResult struct {
	value any
	err   error
}

func (r *dispatchResult) GetError() error { return r.err }

// futureAdapter implements plugin.Future (context-aware Get) over a
// concurrency.Future (unconditionally blocking Get), since the pool
// package has no notion of a caller-supplied deadline.
type futureAdapter struct {
	f *concurrency.Future
}

func (a *futureAdapter) Get(ctx context.Context) (any, error) {
	done := make(chan concurrency.Result, 1)
	go func() { done <- a.f.Get() }()

	select {
	case res := <-done:
		dr, _ := res.(*dispatchResult)
		if dr == nil {
			return nil, res.GetError()
		}
		return dr.value, dr.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// subscription implements plugin.Subscription.
type subscription struct {
	reg   *registry
	event string
	id    uint64
}

func (s *subscription) Unsubscribe() {
	s.reg.subMu.Lock()
	defer s.reg.subMu.Unlock()

	entries := s.reg.subs[s.event]
	for i, e := range entries {
		if e.id == s.id {
			s.reg.subs[s.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}
