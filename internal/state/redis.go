package state

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dpe27/restpoll/config"
	"github.com/dpe27/restpoll/internal/poll"
	"github.com/dpe27/restpoll/pkg/log"
	"github.com/dpe27/restpoll/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "restpoll:state:"

// NewRedisClient builds the client shared by the state store and the DLQ.
func NewRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            cfg.RedisAddr(),
		Password:        cfg.Redis.Password,
		ClientName:      cfg.Redis.ClientName,
		Username:        cfg.Redis.Username,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		PoolSize:        cfg.Redis.PoolSize,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxActiveConns,
		ConnMaxIdleTime: time.Duration(cfg.Redis.MaxIdleTime) * time.Minute,
		ConnMaxLifetime: time.Duration(cfg.Redis.MaxLifeTime) * time.Minute,
	})
}

type redisStore struct {
	logger *log.Logger
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore stores each state as JSON under restpoll:state:<key>. Every
// save refreshes ttl so abandoned runs expire on their own.
func NewRedisStore(client redis.Cmdable, ttl time.Duration, logger *log.Logger) Store {
	if logger == nil {
		logger = log.With()
	}
	return &redisStore{
		logger: logger.With("service", "state"),
		client: client,
		ttl:    ttl,
	}
}

func (r *redisStore) Load(ctx context.Context, key string) (*poll.ExecutionState, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error(ctx, "Failed to load execution state", "key", key, "error", err)
		return nil, err
	}

	s, err := decodeState(data)
	if err != nil {
		r.logger.Error(ctx, utils.ErrorUnmarshalState, "key", key, "error", err)
		return nil, err
	}
	return s, nil
}

func (r *redisStore) Save(ctx context.Context, key string, state poll.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		r.logger.Error(ctx, utils.ErrorMarshalState, "error", err)
		return err
	}

	if err := r.client.Set(ctx, redisKey(key), data, r.ttl).Err(); err != nil {
		r.logger.Error(ctx, "Failed to save execution state", "key", key, "error", err)
		return err
	}
	r.logger.Debug(ctx, "Saved execution state", "key", key, "attempts", state.Attempts)
	return nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		r.logger.Error(ctx, "Failed to delete execution state", "key", key, "error", err)
		return err
	}
	return nil
}

func (r *redisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		r.logger.Error(ctx, "Failed to scan execution states", "error", err)
		return nil, err
	}
	return keys, nil
}

func redisKey(key string) string {
	return keyPrefix + key
}

func decodeState(data []byte) (*poll.ExecutionState, error) {
	var s poll.ExecutionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
