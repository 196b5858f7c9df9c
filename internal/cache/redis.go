// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/metrics"
)

// redisChunk is the number of pages a Reader loads per LRANGE.
const redisChunk = 100

// RedisStore keeps the page log in a Redis list. The snapshot lives in a
// second list, and a marker key records that a snapshot was taken so an
// empty snapshot can be told apart from none at all.
type RedisStore struct {
	client    *redis.Client
	key       string
	backupKey string
	markerKey string
	db        int
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// NewRedisStore returns a store for the list at key. The store owns client
// and closes it on Close.
func NewRedisStore(client *redis.Client, key string, opts Options) *RedisStore {
	return &RedisStore{
		client:    client,
		key:       key,
		backupKey: key + ":backup",
		markerKey: key + ":backup:taken",
		db:        client.Options().DB,
		logger:    opts.logger(),
		metrics:   opts.Metrics,
	}
}

// Key returns the list key of the page log.
func (s *RedisStore) Key() string {
	return s.key
}

// Append pushes pages onto the list with a single RPUSH.
func (s *RedisStore) Append(ctx context.Context, pages ...string) error {
	if len(pages) == 0 {
		return nil
	}
	values := make([]interface{}, len(pages))
	for i, p := range pages {
		values[i] = p
	}
	if err := s.client.RPush(ctx, s.key, values...).Err(); err != nil {
		return s.storageError("append", err)
	}

	s.metrics.PagesAppended(len(pages))
	s.logger.Debug().Int("pages", len(pages)).Msg("Appended pages to cache")
	return nil
}

// Retrieve replays the pages present when it is called, in append order.
func (s *RedisStore) Retrieve(ctx context.Context) (*Reader, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return nil, s.storageError("retrieve", err)
	}
	total, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return nil, s.storageError("retrieve", err)
	}

	var (
		offset  int64
		pending []string
	)
	fetch := func(ctx context.Context) (string, bool, error) {
		if len(pending) == 0 {
			if offset >= total {
				return "", false, nil
			}
			stop := offset + redisChunk - 1
			if stop >= total {
				stop = total - 1
			}
			batch, err := s.client.LRange(ctx, s.key, offset, stop).Result()
			if err != nil {
				return "", false, s.storageError("retrieve", err)
			}
			if len(batch) == 0 {
				return "", false, nil
			}
			offset += int64(len(batch))
			pending = batch
		}
		page := pending[0]
		pending = pending[1:]
		return page, true, nil
	}
	return newReader(fetch, nil), nil
}

// Backup copies the list to the snapshot key atomically.
func (s *RedisStore) Backup(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.backupKey)
		pipe.Copy(ctx, s.key, s.backupKey, s.db, true)
		pipe.Set(ctx, s.markerKey, "1", 0)
		return nil
	})
	if err != nil {
		return s.storageError("backup", err)
	}

	s.metrics.CacheOperation("backup")
	s.logger.Info().Str("backup", s.backupKey).Msg("Cache backed up")
	return nil
}

// Recover replaces the list with the snapshot. Without a snapshot it is a
// no-op.
func (s *RedisStore) Recover(ctx context.Context) error {
	taken, err := s.client.Exists(ctx, s.markerKey).Result()
	if err != nil {
		return s.storageError("recover", err)
	}
	if taken == 0 {
		s.logger.Warn().Msg("No cache backup to recover from")
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.Copy(ctx, s.backupKey, s.key, s.db, true)
		return nil
	})
	if err != nil {
		return s.storageError("recover", err)
	}

	s.metrics.CacheOperation("recover")
	s.logger.Info().Str("backup", s.backupKey).Msg("Cache recovered from backup")
	return nil
}

// Clean snapshots the list and then deletes it.
func (s *RedisStore) Clean(ctx context.Context) error {
	if err := s.Backup(ctx); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return s.storageError("clean", err)
	}

	s.metrics.CacheOperation("clean")
	s.logger.Info().Str("key", s.key).Msg("Cache cleaned")
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("cache %s interrupted: %w", op, err)
	}
	return fmt.Errorf("cache %s failed on %s (%w): %w", op, s.key, relayerrors.ErrCacheUnavailable, err)
}
