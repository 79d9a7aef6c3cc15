package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldCAS  = "cas"
	redisFieldBody = "body"

	writeAttempts = 3
)

// RedisBackend stores each document as a hash <prefix>doc:<id> holding the
// version and the JSON body, and keeps one set of ids per type
// (<prefix>idx:type:<type>). Versions come from INCR <prefix>cas.
type RedisBackend struct {
	client           redis.UniversalClient
	prefix           string
	majorityReplicas int
}

// RedisOption configures a RedisBackend
type RedisOption func(*RedisBackend)

// WithKeyPrefix namespaces every key the backend touches
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisBackend) {
		r.prefix = prefix
	}
}

// WithMajorityReplicas sets how many replicas WAIT must reach for the
// majority durability levels (default 1)
func WithMajorityReplicas(n int) RedisOption {
	return func(r *RedisBackend) {
		r.majorityReplicas = n
	}
}

// NewRedisBackend creates a Redis document backend
func NewRedisBackend(client redis.UniversalClient, opts ...RedisOption) *RedisBackend {
	r := &RedisBackend{client: client, majorityReplicas: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisBackend) docKey(id string) string {
	return fmt.Sprintf("%sdoc:%s", r.prefix, id)
}

func (r *RedisBackend) typeKey(docType string) string {
	return fmt.Sprintf("%sidx:type:%s", r.prefix, docType)
}

func (r *RedisBackend) casKey() string {
	return r.prefix + "cas"
}

func (r *RedisBackend) Get(ctx context.Context, id string) (Record, error) {
	vals, err := r.client.HMGet(ctx, r.docKey(id), redisFieldCAS, redisFieldBody).Result()
	if err != nil {
		return Record{}, err
	}
	return redisRecord(id, vals)
}

func (r *RedisBackend) Query(ctx context.Context, docType string) ([]Record, error) {
	ids, err := r.client.SMembers(ctx, r.typeKey(docType)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, r.docKey(id), redisFieldCAS, redisFieldBody)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(ids))
	for i, cmd := range cmds {
		rec, err := redisRecord(ids[i], cmd.Val())
		if errors.Is(err, ErrKeyNotFound) {
			// index entry outlived its document
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisBackend) Insert(ctx context.Context, id string, body Fields, d Durability) (Version, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	key := r.docKey(id)
	var cas int64

	insert := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrKeyExists
		}

		cas, err = tx.Incr(ctx, r.casKey()).Result()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, redisFieldCAS, cas, redisFieldBody, string(raw))
			pipe.SAdd(ctx, r.typeKey(recordType(body)), id)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < writeAttempts; attempt++ {
		err = r.client.Watch(ctx, insert, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		// the key was touched before EXEC; it only conflicts if it is still there
		n, existsErr := r.client.Exists(ctx, key).Result()
		if existsErr != nil {
			return 0, existsErr
		}
		if n > 0 {
			return 0, ErrKeyExists
		}
	}
	if err != nil {
		return 0, err
	}

	if err := r.awaitDurability(ctx, d); err != nil {
		return 0, err
	}
	return Version(cas), nil
}

func (r *RedisBackend) Replace(ctx context.Context, id string, body Fields, expected Version, d Durability) (Version, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize document: %w", err)
	}

	key := r.docKey(id)
	newType := recordType(body)
	var cas int64

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, redisFieldCAS, redisFieldBody).Result()
		if err != nil {
			return err
		}
		current, err := redisRecord(id, vals)
		if err != nil {
			return err
		}
		if current.Version != expected {
			return ErrCASMismatch
		}

		cas, err = tx.Incr(ctx, r.casKey()).Result()
		if err != nil {
			return err
		}

		oldType := recordType(current.Body)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, redisFieldCAS, cas, redisFieldBody, string(raw))
			if oldType != newType {
				pipe.SRem(ctx, r.typeKey(oldType), id)
			}
			pipe.SAdd(ctx, r.typeKey(newType), id)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// another writer changed the document after our version check
		return 0, ErrCASMismatch
	}
	if err != nil {
		return 0, err
	}

	if err := r.awaitDurability(ctx, d); err != nil {
		return 0, err
	}
	return Version(cas), nil
}

func (r *RedisBackend) Remove(ctx context.Context, id string, d Durability) error {
	key := r.docKey(id)

	remove := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, redisFieldBody).Result()
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		if err != nil {
			return err
		}

		var body Fields
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return fmt.Errorf("failed to deserialize document %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.typeKey(recordType(body)), id)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		err = r.client.Watch(ctx, remove, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return err
	}

	return r.awaitDurability(ctx, d)
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// awaitDurability blocks until the write reached the replicas and AOF
// persistence the policy asks for. The write is already applied when this
// runs, so every failure is reported as ErrDurabilityUnconfirmed.
func (r *RedisBackend) awaitDurability(ctx context.Context, d Durability) error {
	target := redisAckTargetFor(d, r.majorityReplicas)
	timeout := durationOrZero(d.Timeout).Milliseconds()

	switch {
	case target.aof:
		res, err := r.client.Do(ctx, "WAITAOF", 1, target.replicas, timeout).Int64Slice()
		if err != nil {
			return fmt.Errorf("%w: waitaof: %w", ErrDurabilityUnconfirmed, err)
		}
		if !target.metAOF(res) {
			return fmt.Errorf("%w: persistence acknowledgements %v, want local=1 replicas=%d",
				ErrDurabilityUnconfirmed, res, target.replicas)
		}
	case target.replicas > 0:
		n, err := r.client.Do(ctx, "WAIT", target.replicas, timeout).Int64()
		if err != nil {
			return fmt.Errorf("%w: wait: %w", ErrDurabilityUnconfirmed, err)
		}
		if !target.metReplicas(n) {
			return fmt.Errorf("%w: %d of %d replicas acknowledged",
				ErrDurabilityUnconfirmed, n, target.replicas)
		}
	}
	return nil
}

// redisAckTarget is what WAIT or WAITAOF must report for a write to count as durable
type redisAckTarget struct {
	replicas int
	aof      bool
}

// redisAckTargetFor maps the durability policy onto replica and AOF
// acknowledgements. The majority levels fall back to majorityReplicas when
// ReplicateTo is unset.
func redisAckTargetFor(d Durability, majorityReplicas int) redisAckTarget {
	if !d.RequiresAck() {
		return redisAckTarget{}
	}

	replicas := d.ReplicateTo
	if replicas == 0 && (d.Level == DurabilityMajority || d.Level == DurabilityPersistToMajority) {
		replicas = majorityReplicas
	}
	return redisAckTarget{
		replicas: replicas,
		aof:      d.PersistTo > 0 || d.Level == DurabilityPersistToMajority,
	}
}

func (t redisAckTarget) metReplicas(acked int64) bool {
	return acked >= int64(t.replicas)
}

// metAOF checks a WAITAOF reply: [local fsyncs, replica fsyncs]
func (t redisAckTarget) metAOF(res []int64) bool {
	return len(res) == 2 && res[0] >= 1 && res[1] >= int64(t.replicas)
}

func durationOrZero(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func redisRecord(id string, vals []interface{}) (Record, error) {
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return Record{}, ErrKeyNotFound
	}

	casStr, ok := vals[0].(string)
	if !ok {
		return Record{}, fmt.Errorf("unexpected cas value for %s", id)
	}
	cas, err := strconv.ParseUint(casStr, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid cas for %s: %w", id, err)
	}

	raw, ok := vals[1].(string)
	if !ok {
		return Record{}, fmt.Errorf("unexpected body value for %s", id)
	}
	var body Fields
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return Record{}, fmt.Errorf("failed to deserialize document %s: %w", id, err)
	}

	return Record{ID: id, Version: Version(cas), Body: body}, nil
}
