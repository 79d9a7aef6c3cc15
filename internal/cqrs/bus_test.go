package cqrs_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IcodeNet/employee-scheduling-api/internal/api/jsonrpcx"
	"github.com/IcodeNet/employee-scheduling-api/internal/cqrs"
	"github.com/IcodeNet/employee-scheduling-api/internal/cqrs/handlers"
	"github.com/IcodeNet/employee-scheduling-api/internal/domain/setting"
	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	received []jsonrpcx.JsonRpcNotification
}

func (r *recordingBroadcaster) BroadcastToUsers(_ []string, n jsonrpcx.JsonRpcNotification) {
	r.BroadcastToAll(n)
}

func (r *recordingBroadcaster) BroadcastToAll(n jsonrpcx.JsonRpcNotification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, n)
}

func (r *recordingBroadcaster) methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.received))
	for _, n := range r.received {
		out = append(out, n.Method)
	}
	return out
}

func startBus(t *testing.T, cfg cqrs.BusConfig) (*cqrs.Bus, *recordingBroadcaster) {
	t.Helper()
	bus, err := cqrs.NewBus(cfg, logger.NewNop())
	require.NoError(t, err)

	broadcaster := &recordingBroadcaster{}
	require.NoError(t, bus.AddHandlers(handlers.NewSSEEventHandler(broadcaster, logger.NewNop()).Handlers()...))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = bus.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("event router did not start")
	}
	return bus, broadcaster
}

func TestBus_GoChannelDeliversSettingEvents(t *testing.T) {
	bus, broadcaster := startBus(t, cqrs.BusConfig{Transport: cqrs.TransportGoChannel})
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, &setting.SettingCreatedEvent{SettingID: "s1", Version: 1, Timestamp: time.Now()}))
	require.NoError(t, bus.Publish(ctx, &setting.SettingUpdatedEvent{
		SettingID: "s1",
		Version:   2,
		Changes:   map[string]interface{}{"currencySymbol": "€"},
		Timestamp: time.Now(),
	}))
	require.NoError(t, bus.Publish(ctx, &setting.SettingRemovedEvent{SettingID: "s1", Timestamp: time.Now()}))

	assert.Eventually(t, func() bool {
		return len(broadcaster.methods()) == 3
	}, 5*time.Second, 20*time.Millisecond)
	assert.ElementsMatch(t, []string{
		handlers.MethodSettingCreated,
		handlers.MethodSettingUpdated,
		handlers.MethodSettingRemoved,
	}, broadcaster.methods())
}

func TestBus_RedisStream(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set, skipping redis stream test")
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	prefix := fmt.Sprintf("test-%d", time.Now().UnixNano())

	bus, broadcaster := startBus(t, cqrs.BusConfig{
		Transport:     cqrs.TransportRedisStream,
		TopicPrefix:   prefix,
		Redis:         client,
		ConsumerGroup: prefix + "-server",
	})

	require.NoError(t, bus.Publish(context.Background(), &setting.SettingRemovedEvent{SettingID: "s9", Timestamp: time.Now()}))

	assert.Eventually(t, func() bool {
		return len(broadcaster.methods()) == 1
	}, 10*time.Second, 50*time.Millisecond)
	assert.EqualValues(t, 1, client.Exists(context.Background(), prefix+"-events.SettingRemovedEvent").Val())
}

func TestNewBus_Validation(t *testing.T) {
	_, err := cqrs.NewBus(cqrs.BusConfig{Transport: "kafka"}, logger.NewNop())
	assert.Error(t, err)

	_, err = cqrs.NewBus(cqrs.BusConfig{Transport: cqrs.TransportRedisStream}, logger.NewNop())
	assert.Error(t, err)
}
