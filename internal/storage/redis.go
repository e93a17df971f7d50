package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps keys in a single hash and announces every change on a
// pub/sub channel so console processes on different hosts stay in sync.
type RedisStore struct {
	client  *redis.Client
	hash    string
	channel string
	id      string
	logger  *zap.Logger
}

var _ Storage = (*RedisStore)(nil)

// NewRedisStore wraps a connected client. prefix namespaces the hash and channel.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "pod-console"
	}
	return &RedisStore{
		client:  client,
		hash:    prefix + ":storage",
		channel: prefix + ":storage:events",
		id:      uuid.NewString(),
		logger:  logger,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.HGet(ctx, s.hash, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// writeScript reads, writes and publishes atomically.
// ARGV: key, value, source, remove ("1" or "0").
var writeScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], ARGV[1])
if ARGV[4] == '1' then
  if not old then return 0 end
  redis.call('HDEL', KEYS[1], ARGV[1])
else
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
  if old == ARGV[2] then return 0 end
end
local event = {key = ARGV[1], old_value = old or '', new_value = '', source = ARGV[3]}
if ARGV[4] ~= '1' then event.new_value = ARGV[2] end
redis.call('PUBLISH', KEYS[2], cjson.encode(event))
return 1
`)

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.write(ctx, key, value, false)
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.write(ctx, key, "", true)
}

func (s *RedisStore) write(ctx context.Context, key, value string, remove bool) error {
	flag := "0"
	if remove {
		flag = "1"
	}
	err := writeScript.Run(ctx, s.client, []string{s.hash, s.channel}, key, value, s.id, flag).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Watch(ctx context.Context, handler Handler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.logger.Warn("invalid storage event", zap.Error(err))
					continue
				}
				if event.Source == s.id {
					continue
				}
				handler(event)
			}
		}
	}()
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client is owned by persistence.Redis.
func (s *RedisStore) Close() error {
	return nil
}
