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

	"github.com/rs/zerolog"

	"github.com/sirseerhq/issue-relay/internal/logging"
	"github.com/sirseerhq/issue-relay/internal/metrics"
)

// Store is an ordered, append-only log of raw page payloads.
type Store interface {
	// Append durably appends pages in order, all or nothing.
	Append(ctx context.Context, pages ...string) error

	// Retrieve replays the persisted pages in append order. Pages appended
	// after Retrieve returns are not part of the replay.
	Retrieve(ctx context.Context) (*Reader, error)

	// Backup snapshots the current log so a later Recover can restore it.
	Backup(ctx context.Context) error

	// Recover restores the last Backup over the current log. Without a
	// snapshot it leaves the log untouched.
	Recover(ctx context.Context) error

	// Clean discards every persisted page. The previous content is kept as
	// the snapshot, so a failed run after Clean still recovers it.
	Clean(ctx context.Context) error

	// Close releases the underlying storage handle.
	Close() error
}

// Options configures a Store.
type Options struct {
	// Logger receives cache diagnostics. Nil discards them.
	Logger *zerolog.Logger

	// Metrics records appended pages and maintenance operations.
	Metrics *metrics.Metrics
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return logging.Component(*o.Logger, "cache")
}

// Reader replays persisted pages one at a time.
type Reader struct {
	fetch   func(ctx context.Context) (string, bool, error)
	closeFn func() error

	page string
	err  error
	done bool
}

func newReader(fetch func(ctx context.Context) (string, bool, error), closeFn func() error) *Reader {
	return &Reader{fetch: fetch, closeFn: closeFn}
}

// Next advances to the next page. It returns false at the end of the log,
// after an error, or after Close.
func (r *Reader) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	page, ok, err := r.fetch(ctx)
	if err != nil {
		r.err = err
		r.finish()
		return false
	}
	if !ok {
		r.finish()
		return false
	}
	r.page = page
	return true
}

// Page returns the current page payload.
func (r *Reader) Page() string {
	return r.page
}

// Err returns the error that stopped the replay, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close stops the replay early. It is safe to call more than once.
func (r *Reader) Close() error {
	return r.finish()
}

func (r *Reader) finish() error {
	if r.done {
		return nil
	}
	r.done = true
	r.page = ""
	if r.closeFn != nil {
		return r.closeFn()
	}
	return nil
}
