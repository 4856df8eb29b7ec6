package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/oracipher/kernel/plugin"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	opts := DefaultOptions()
	opts.ThrottleLimit = 1000
	k := New(opts, testLogger(t), nil)
	t.Cleanup(func() { k.pool.Stop() })
	return k
}

func TestFacade_LogAndDataDelegateToKernel(t *testing.T) {
	k := newTestKernel(t)
	f := newFacade("p1", k)

	f.Log("hello %s", "world") // should not panic

	if ok := f.SetData("k", "v", plugin.Local); !ok {
		t.Fatal("expected local write to succeed")
	}
	if got := f.GetData("k", plugin.Local, nil); got != "v" {
		t.Errorf("GetData = %v, want v", got)
	}
}

func TestFacade_PluginConfig_EmptyWhenNoSettings(t *testing.T) {
	k := newTestKernel(t)
	k.metas.upsert(&PluginMeta{Name: "p1"})
	f := newFacade("p1", k)

	cfg := f.PluginConfig()
	if _, ok := cfg.Get("anything"); ok {
		t.Error("expected an empty config provider when no settings were recorded")
	}
}

func TestFacade_PluginConfig_ReadsManifestSettings(t *testing.T) {
	k := newTestKernel(t)
	k.metas.upsert(&PluginMeta{Name: "p1", Settings: map[string]any{"greeting": "hi"}})
	f := newFacade("p1", k)

	cfg := f.PluginConfig()
	if got := cfg.GetString("greeting", ""); got != "hi" {
		t.Errorf("GetString(greeting) = %q, want hi", got)
	}
}

func TestFacade_GoneAfterKernelShutdown(t *testing.T) {
	k := newTestKernel(t)
	f := newFacade("p1", k)

	if !f.IsActive() {
		t.Fatal("facade should be active before shutdown")
	}

	k.shutdown.Store(true)

	if f.IsActive() {
		t.Error("expected IsActive false once the kernel has shut down")
	}
	if ok := f.SetData("k", "v", plugin.Global); ok {
		t.Error("expected SetData to refuse once the kernel is gone")
	}
	if err := f.SpawnTask(func(ctx context.Context) {}); err == nil {
		t.Error("expected SpawnTask to fail once the kernel is gone")
	}
}

func TestFacade_SpawnTask_RefusedAfterSignalStop(t *testing.T) {
	k := newTestKernel(t)
	f := newFacade("p1", k)

	f.signalStop()
	if err := f.SpawnTask(func(ctx context.Context) {}); err == nil {
		t.Error("expected SpawnTask to fail after signalStop")
	}
}

func TestFacade_AwaitTasks_WaitsForCooperativeExit(t *testing.T) {
	k := newTestKernel(t)
	f := newFacade("p1", k)

	if err := f.SpawnTask(func(ctx context.Context) {
		<-ctx.Done()
	}); err != nil {
		t.Fatalf("SpawnTask: %v", err)
	}

	f.signalStop()
	if remaining := f.awaitTasks(50 * time.Millisecond); remaining != 0 {
		t.Errorf("expected the task to exit once its context is canceled, remaining=%d", remaining)
	}
}

func TestFacade_AwaitTasks_ReportsRemainingOnGraceTimeout(t *testing.T) {
	k := newTestKernel(t)
	f := newFacade("p1", k)

	if err := f.SpawnTask(func(ctx context.Context) {
		time.Sleep(time.Second)
	}); err != nil {
		t.Fatalf("SpawnTask: %v", err)
	}

	if remaining := f.awaitTasks(10 * time.Millisecond); remaining != 1 {
		t.Errorf("expected 1 task still running after grace elapses, got %d", remaining)
	}
}

func TestFacade_EmitCall_DelegateToRegistry(t *testing.T) {
	k := newTestKernel(t)
	owner := newFacade("owner", k)
	subscriber := newFacade("subscriber", k)

	subscriber.On("evt", func(ctx context.Context, evt plugin.Event) (any, error) {
		return "handled", nil
	})

	results := owner.Call(context.Background(), "evt", time.Second, nil)
	if len(results) != 1 || results[0].Value != "handled" {
		t.Errorf("Call results = %+v, want one handled result", results)
	}

	futures := owner.Emit(context.Background(), "evt", nil)
	if len(futures) != 1 {
		t.Fatalf("expected 1 future, got %d", len(futures))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := futures[0].Get(ctx)
	if err != nil || v != "handled" {
		t.Errorf("Emit future = (%v, %v), want (handled, nil)", v, err)
	}
}
