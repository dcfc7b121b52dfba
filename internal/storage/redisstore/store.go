// Package redisstore keeps token history in Redis.
//
// Layout, under a configurable prefix:
//
//	{prefix}tokens:seq            INCR counter handing out record ids
//	{prefix}tokens:records        hash id -> JSON record
//	{prefix}tokens:user:{userID}  sorted set of zero-padded ids scored by created_at (µs)
//	{prefix}tokens:users          set of user ids
//
// Members with equal scores sort lexically, so zero-padding the ids makes
// the highest member among equal timestamps the latest insert.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/models"
	"marketplace-oauth/internal/storage"

	"github.com/go-redis/redis/v8"
)

// DefaultPrefix namespaces every key the store writes
const DefaultPrefix = "marketplace-oauth:"

func init() {
	storage.Register("redis", func(ctx context.Context, opts storage.Options) (storage.TokenStore, error) {
		if opts.Redis == nil {
			return nil, errors.ConfigError("redis token store requires REDIS_ADDRESS")
		}
		return New(opts.Redis.GetGoRedisClient(), DefaultPrefix), nil
	})
}

// Store is a token store backed by Redis
type Store struct {
	rdb    *redis.Client
	prefix string
}

func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) seqKey() string { return s.prefix + "tokens:seq" }

func (s *Store) recordsKey() string { return s.prefix + "tokens:records" }

func (s *Store) usersKey() string { return s.prefix + "tokens:users" }

func (s *Store) userKey(userID string) string { return s.prefix + "tokens:user:" + userID }

func member(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func (s *Store) Save(ctx context.Context, token *models.TokenRecord) (*models.TokenRecord, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}

	stored := token.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC().Truncate(time.Microsecond)

	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, errors.InternalError("failed to allocate token id", err)
	}
	stored.ID = id

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.InternalError("failed to marshal token", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.recordsKey(), member(id), data)
		pipe.ZAdd(ctx, s.userKey(stored.UserID), &redis.Z{
			Score:  float64(stored.CreatedAt.UnixMicro()),
			Member: member(id),
		})
		pipe.SAdd(ctx, s.usersKey(), stored.UserID)
		return nil
	})
	if err != nil {
		return nil, errors.InternalError("failed to save token", err).WithContext("user_id", stored.UserID)
	}

	return stored, nil
}

func (s *Store) Current(ctx context.Context, userID string) (*models.TokenRecord, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.userKey(userID), 0, 0).Result()
	if err != nil {
		return nil, errors.InternalError("failed to load current token", err).WithContext("user_id", userID)
	}
	if len(ids) == 0 {
		return nil, errors.TokenNotFoundError(userID)
	}

	tokens, err := s.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.TokenNotFoundError(userID)
	}
	return tokens[0], nil
}

func (s *Store) History(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	ids, err := s.rdb.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.InternalError("failed to load token history", err).WithContext("user_id", userID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.load(ctx, ids)
}

func (s *Store) load(ctx context.Context, ids []string) ([]*models.TokenRecord, error) {
	values, err := s.rdb.HMGet(ctx, s.recordsKey(), ids...).Result()
	if err != nil {
		return nil, errors.InternalError("failed to load token records", err)
	}

	tokens := make([]*models.TokenRecord, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// index entry without a record, the write was interrupted
			continue
		}
		var token models.TokenRecord
		if err := json.Unmarshal([]byte(raw), &token); err != nil {
			return nil, errors.InternalError("failed to decode token "+ids[i], err)
		}
		tokens = append(tokens, &token)
	}
	return tokens, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	users, err := s.rdb.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, errors.InternalError("failed to list users", err)
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) Health(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis unreachable", err)
	}
	return nil
}

// Close is a no-op; the client is owned by whoever created it
func (s *Store) Close() error {
	return nil
}

var _ storage.TokenStore = (*Store)(nil)
