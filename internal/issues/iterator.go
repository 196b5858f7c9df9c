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

	"github.com/rs/zerolog"

	"github.com/sirseerhq/issue-relay/internal/metrics"
)

// pageSource is a forward-only sequence of raw pages. Both
// *github.PageIterator and *cache.Reader satisfy it.
type pageSource interface {
	Next(ctx context.Context) bool
	Page() string
	Err() error
	Close() error
}

// Iterator yields issues one at a time. The next page is not requested
// until every issue of the current page has been consumed.
type Iterator struct {
	pages   pageSource
	persist func(context.Context, string) error
	source  string
	logger  zerolog.Logger
	metrics *metrics.Metrics

	items []Item
	pos   int
	item  Item

	pageCount  int
	issueCount int

	err  error
	done bool
}

// Next advances to the next issue. It returns false when the pages are
// exhausted, after an error, or after Close.
func (it *Iterator) Next(ctx context.Context) bool {
	for {
		if it.pos < len(it.items) {
			it.item = it.items[it.pos]
			it.pos++
			it.issueCount++
			it.metrics.IssueEmitted(it.source)
			return true
		}
		if it.done {
			return false
		}

		if !it.pages.Next(ctx) {
			if err := it.pages.Err(); err != nil {
				it.fail(fmt.Errorf("failed to fetch page %d: %w", it.pageCount+1, err))
				return false
			}
			it.finish()
			return false
		}

		page := it.pages.Page()
		it.pageCount++

		if it.persist != nil {
			if err := it.persist(ctx, page); err != nil {
				it.fail(fmt.Errorf("failed to cache page %d: %w", it.pageCount, err))
				return false
			}
		}

		items, err := Decode(page)
		if err != nil {
			it.fail(fmt.Errorf("failed to decode page %d: %w", it.pageCount, err))
			return false
		}
		it.items, it.pos = items, 0
	}
}

// Item returns the current issue.
func (it *Iterator) Item() Item {
	return it.item
}

// Err returns the error that stopped the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Pages returns the number of pages read so far.
func (it *Iterator) Pages() int {
	return it.pageCount
}

// Close stops the iteration and releases the page source. Pages not yet
// read are never requested. It is safe to call more than once.
func (it *Iterator) Close() error {
	it.items, it.pos = nil, 0
	return it.finish()
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.items, it.pos = nil, 0
	it.finish()
}

func (it *Iterator) finish() error {
	if it.done {
		return nil
	}
	it.done = true
	it.item = Item{}

	it.logger.Info().
		Str("source", it.source).
		Int("pages", it.pageCount).
		Int("issues", it.issueCount).
		Msg("Fetch finished")

	return it.pages.Close()
}
