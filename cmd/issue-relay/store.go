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

package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sirseerhq/issue-relay/internal/cache"
	"github.com/sirseerhq/issue-relay/internal/config"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
)

// openStore opens the cache of owner/repo on the configured backend.
func openStore(ctx context.Context, cfg *config.Config, owner, repo string, opts cache.Options) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s (%w): %w", cfg.Cache.RedisAddr, relayerrors.ErrCacheUnavailable, err)
		}
		return cache.NewRedisStore(client, cfg.RedisKey(owner, repo), opts), nil
	default:
		return cache.OpenSQLite(cfg.RepoCacheDir(owner, repo), opts)
	}
}
