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

package issues

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/issue-relay/internal/cache"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/github"
	"github.com/sirseerhq/issue-relay/internal/logging"
	"github.com/sirseerhq/issue-relay/internal/metrics"
)

const (
	sourceLive  = "live"
	sourceCache = "cache"
)

// Options configures a Backend.
type Options struct {
	// QueueSize is the cache queue capacity. Zero uses cache.DefaultQueueSize.
	QueueSize int

	// Logger receives fetch diagnostics. Nil discards them.
	Logger *zerolog.Logger

	// Metrics counts emitted issues per source.
	Metrics *metrics.Metrics
}

// Backend fetches the issues of one repository, optionally writing every
// page through a cache so the run can be replayed later.
type Backend struct {
	client  *github.Client
	store   cache.Store
	queue   *cache.Queue
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewBackend creates a backend. store may be nil, in which case pages are
// not cached and FetchFromCache fails with ErrCacheUnavailable.
func NewBackend(client *github.Client, store cache.Store, opts Options) *Backend {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = logging.Component(*opts.Logger, "issues")
	}

	b := &Backend{
		client:  client,
		store:   store,
		logger:  logger,
		metrics: opts.Metrics,
	}
	if store != nil {
		b.queue = cache.NewQueue(store, opts.QueueSize)
	}
	return b
}

// Queue returns the cache queue, or nil when caching is disabled.
func (b *Backend) Queue() *cache.Queue {
	return b.queue
}

// Store returns the cache store, or nil when caching is disabled.
func (b *Backend) Store() cache.Store {
	return b.store
}

// Fetch walks the repository's issues updated since from. Pages left in the
// queue by an earlier aborted fetch are discarded first. Each page is
// flushed to the cache before its issues are returned.
func (b *Backend) Fetch(from time.Time) *Iterator {
	var persist func(context.Context, string) error
	if b.queue != nil {
		b.queue.Purge()
		persist = b.persist
	}

	b.logger.Info().
		Str("owner", b.client.Owner()).
		Str("repository", b.client.Repository()).
		Time("from", from).
		Msg("Fetching issues")

	return &Iterator{
		pages:   b.client.Issues(from),
		persist: persist,
		source:  sourceLive,
		logger:  b.logger,
		metrics: b.metrics,
	}
}

// FetchFromCache replays the cached pages. It fails with
// ErrCacheUnavailable when no cache is configured or the cache cannot be
// read.
func (b *Backend) FetchFromCache(ctx context.Context) (*Iterator, error) {
	if b.store == nil {
		return nil, fmt.Errorf("cache instance was not provided: %w", relayerrors.ErrCacheUnavailable)
	}

	reader, err := b.store.Retrieve(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.Info().Msg("Fetching issues from cache")

	return &Iterator{
		pages:   reader,
		source:  sourceCache,
		logger:  b.logger,
		metrics: b.metrics,
	}, nil
}

func (b *Backend) persist(ctx context.Context, page string) error {
	if err := b.queue.Enqueue(page); err != nil {
		return err
	}
	return b.queue.Flush(ctx)
}
