package document

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IcodeNet/employee-scheduling-api/pkg/logger"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBackend_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Backend {
		_, client := newMiniredisClient(t)
		return NewRedisBackend(client, WithKeyPrefix("test:"))
	})
}

func TestRedisBackend_KeyLayout(t *testing.T) {
	mr, client := newMiniredisClient(t)
	backend := NewRedisBackend(client, WithKeyPrefix("app:"))
	ctx := context.Background()

	v, err := backend.Insert(ctx, "s1", Fields{"type": "setting", "language": "en"}, Durability{})
	require.NoError(t, err)

	assert.True(t, mr.Exists("app:doc:s1"))
	assert.Equal(t, v.String(), mr.HGet("app:doc:s1", "cas"))
	assert.JSONEq(t, `{"type":"setting","language":"en"}`, mr.HGet("app:doc:s1", "body"))

	members, err := mr.Members("app:idx:type:setting")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, members)

	require.NoError(t, backend.Remove(ctx, "s1", Durability{}))
	assert.False(t, mr.Exists("app:doc:s1"))
	assert.Zero(t, client.SCard(ctx, "app:idx:type:setting").Val())
}

func TestRedisBackend_QuerySkipsStaleIndexEntries(t *testing.T) {
	mr, client := newMiniredisClient(t)
	backend := NewRedisBackend(client)
	ctx := context.Background()

	_, err := backend.Insert(ctx, "s1", Fields{"type": "setting"}, Durability{})
	require.NoError(t, err)
	_, err = mr.SetAdd("idx:type:setting", "ghost")
	require.NoError(t, err)

	recs, err := backend.Query(ctx, "setting")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s1", recs[0].ID)
}

func TestRedisBackend_ReplaceMovesTypeIndex(t *testing.T) {
	mr, client := newMiniredisClient(t)
	backend := NewRedisBackend(client)
	ctx := context.Background()

	v, err := backend.Insert(ctx, "d1", Fields{"type": "draft"}, Durability{})
	require.NoError(t, err)

	_, err = backend.Replace(ctx, "d1", Fields{"type": "setting"}, v, Durability{})
	require.NoError(t, err)

	assert.Zero(t, client.SCard(ctx, "idx:type:draft").Val())
	members, err := mr.Members("idx:type:setting")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, members)
}

func TestRedisBackend_ConnectionFailureIsBackendError(t *testing.T) {
	mr, client := newMiniredisClient(t)
	repo := newTestRepository(t, "setting", NewRedisBackend(client))
	mr.Close()

	_, err := repo.FindByID(context.Background(), "any")
	require.Error(t, err)
	assert.True(t, IsBackend(err), "got %v", err)
	assert.False(t, IsNotFound(err))
}

func TestRedisBackend_UnconfirmedDurabilityIsDistinguishable(t *testing.T) {
	// miniredis implements neither WAIT nor WAITAOF, so every acknowledgement fails
	levels := []DurabilityLevel{DurabilityMajority, DurabilityPersistToMajority}

	for _, level := range levels {
		t.Run(string(level), func(t *testing.T) {
			_, client := newMiniredisClient(t)
			backend := NewRedisBackend(client)
			ctx := context.Background()

			repo, err := NewRepository("setting", backend,
				WithLogger(logger.NewNop()),
				WithDurability(Durability{Level: level, Timeout: time.Second}))
			require.NoError(t, err)

			_, err = repo.Insert(ctx, settingFields(), "s1")
			require.Error(t, err)
			assert.True(t, IsBackend(err), "got %v", err)
			assert.True(t, IsDurabilityUnconfirmed(err), "got %v", err)
			assert.False(t, IsAlreadyExists(err))

			// the write landed; a re-read shows it
			found, err := repo.FindByID(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, settingFields(), found.Fields)

			_, err = repo.Update(ctx, found)
			assert.True(t, IsDurabilityUnconfirmed(err), "got %v", err)

			err = repo.Remove(ctx, "s1")
			assert.True(t, IsDurabilityUnconfirmed(err), "got %v", err)
			_, err = repo.FindByID(ctx, "s1")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestRedisAckTargetFor(t *testing.T) {
	tests := []struct {
		name string
		d    Durability
		want redisAckTarget
	}{
		{"none", Durability{Level: DurabilityNone}, redisAckTarget{}},
		{"unset", Durability{}, redisAckTarget{}},
		{"majority uses default replicas", Durability{Level: DurabilityMajority}, redisAckTarget{replicas: 2}},
		{"majority honours replicate_to", Durability{Level: DurabilityMajority, ReplicateTo: 3}, redisAckTarget{replicas: 3}},
		{"persist to majority", Durability{Level: DurabilityPersistToMajority}, redisAckTarget{replicas: 2, aof: true}},
		{"replicate_to only", Durability{ReplicateTo: 1}, redisAckTarget{replicas: 1}},
		{"persist_to only", Durability{PersistTo: 1}, redisAckTarget{aof: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redisAckTargetFor(tt.d, 2))
		})
	}

	target := redisAckTarget{replicas: 2}
	assert.True(t, target.metReplicas(2))
	assert.True(t, target.metReplicas(3))
	assert.False(t, target.metReplicas(1))

	assert.True(t, target.metAOF([]int64{1, 2}))
	assert.False(t, target.metAOF([]int64{0, 2}))
	assert.False(t, target.metAOF([]int64{1, 1}))
	assert.False(t, target.metAOF([]int64{1}))
}

// interfereOnIncr runs fn once, from another connection, while the first
// watched transaction is between its checks and EXEC
type interfereOnIncr struct {
	once sync.Once
	fn   func(ctx context.Context)
}

func (h *interfereOnIncr) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *interfereOnIncr) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "incr" {
			h.once.Do(func() { h.fn(ctx) })
		}
		return next(ctx, cmd)
	}
}

func (h *interfereOnIncr) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisBackend_InsertRaceResolvesOnCurrentState(t *testing.T) {
	t.Run("key created and removed again is not a conflict", func(t *testing.T) {
		mr, client := newMiniredisClient(t)
		other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = other.Close() })

		client.AddHook(&interfereOnIncr{fn: func(ctx context.Context) {
			other.HSet(ctx, "doc:s1", "cas", 99, "body", `{"type":"setting"}`)
			other.Del(ctx, "doc:s1")
		}})

		v, err := NewRedisBackend(client).Insert(context.Background(), "s1", Fields{"type": "setting", "language": "en"}, Durability{})
		require.NoError(t, err)
		assert.Equal(t, v.String(), mr.HGet("doc:s1", "cas"))
		assert.JSONEq(t, `{"type":"setting","language":"en"}`, mr.HGet("doc:s1", "body"))
	})

	t.Run("key created concurrently is a conflict", func(t *testing.T) {
		mr, client := newMiniredisClient(t)
		other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = other.Close() })

		client.AddHook(&interfereOnIncr{fn: func(ctx context.Context) {
			other.HSet(ctx, "doc:s1", "cas", 99, "body", `{"type":"setting"}`)
		}})

		_, err := NewRedisBackend(client).Insert(context.Background(), "s1", Fields{"type": "setting"}, Durability{})
		assert.ErrorIs(t, err, ErrKeyExists)
		assert.Equal(t, "99", mr.HGet("doc:s1", "cas"))
	})
}
