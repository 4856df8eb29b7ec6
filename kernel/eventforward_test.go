package kernel

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	redis "github.com/go-redis/redis/v8"
)

func integrationRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run redis integration tests")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		t.Fatalf("invalid REDIS_TEST_ADDR %q: %v", addr, err)
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_TEST_PASSWORD")})
}

func TestLifecycleEventForwarder_PublishesToChannel(t *testing.T) {
	client := integrationRedisClient(t)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	channel := "kernel_lifecycle_test"
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	forwarder := NewLifecycleEventForwarder(client, channel, testLogger(t))
	forwarder.Forward(ctx, "kernel", "plugin_loaded", map[string]any{"name": "hello"})

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !strings.Contains(msg.Payload, `"plugin_loaded"`) {
		t.Errorf("payload = %s, want it to mention plugin_loaded", msg.Payload)
	}
	if !strings.Contains(msg.Payload, `"hello"`) {
		t.Errorf("payload = %s, want it to carry the forwarded args", msg.Payload)
	}
}

func TestKernel_NotifyLifecycle_NoopWithoutForwarder(t *testing.T) {
	k := newTestKernel(t)
	// No forwarder attached: this must not panic or block.
	k.notifyLifecycle(context.Background(), "plugin_loaded", map[string]any{"name": "hello"})
}
