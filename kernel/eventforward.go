package kernel

import (
	"context"

	redis "github.com/go-redis/redis/v8"
	"github.com/oracipher/kernel/json"
	"github.com/oracipher/kernel/logging"
	"go.uber.org/zap"
)

// lifecycleEventForwarder mirrors the kernel's plugin_loaded and
// plugin_unloaded notifications onto a Redis channel, so a fleet of kernel
// processes (or an external observability pipeline) can watch load/unload
// events without
// holding an in-process subscription (spec.md S9 "Enrichment ideas"
// mentions cross-process observability). Optional: a Kernel with no
// forwarder attached behaves exactly as spec.md's core describes.
type lifecycleEventForwarder struct {
	client  *redis.Client
	channel string
	logger  logging.Logger
}

// forwardedEvent is the wire shape published to channel.
type forwardedEvent struct {
	Name   string         `json:"name"`
	Source string         `json:"source"`
	Args   map[string]any `json:"args,omitempty"`
}

// NewLifecycleEventForwarder builds a forwarder publishing to channel on
// client, for a caller to attach with Kernel.AttachLifecycleForwarding.
func NewLifecycleEventForwarder(client *redis.Client, channel string, logger logging.Logger) *lifecycleEventForwarder {
	return &lifecycleEventForwarder{client: client, channel: channel, logger: logger}
}

// Forward publishes one event to Redis, logging (not returning) a failure
// since a forwarder is best-effort observability, never load-bearing for
// the kernel's own lifecycle.
func (f *lifecycleEventForwarder) Forward(ctx context.Context, source, event string, args map[string]any) {
	payload, err := json.Marshal(forwardedEvent{Name: event, Source: source, Args: args})
	if err != nil {
		f.logger.Warn("lifecycle event forward: marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.logger.Warn("lifecycle event forward: publish failed", zap.String("event", event), zap.Error(err))
	}
}

// AttachLifecycleForwarding wires f to receive every subsequent
// load/unload lifecycle transition. Pass nil to detach.
func (k *Kernel) AttachLifecycleForwarding(f *lifecycleEventForwarder) {
	k.forwarder = f
}

// notifyLifecycle forwards an event if a forwarder is attached; a no-op
// otherwise.
func (k *Kernel) notifyLifecycle(ctx context.Context, event string, args map[string]any) {
	if k.forwarder == nil {
		return
	}
	k.forwarder.Forward(ctx, "kernel", event, args)
}
