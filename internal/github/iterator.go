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

package github

import (
	"context"
)

// PageIterator walks the issues listing one page per Next call. It holds the
// pagination cursor: the URL of the next page, the current page number and
// the last page number announced by the server. Only one request is in
// flight at a time and page N+1 is not requested until Next is called again.
type PageIterator struct {
	client *Client

	next     string
	number   int
	lastPage int

	page string
	err  error
	done bool
}

// Next fetches the next page. It returns false when the previous response
// had no "next" link, when a response body is empty, after an error, or
// after Close.
func (it *PageIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if it.next == "" {
		it.finish()
		return false
	}

	body, links, err := it.client.get(ctx, it.next)
	if err != nil {
		it.err = err
		it.finish()
		return false
	}

	it.number++
	it.client.metrics.PageFetched()
	if links.last != "" {
		if n := pageNumber(links.last); n > 0 {
			it.lastPage = n
		}
	}
	if it.lastPage > 0 {
		it.client.logger.Debug().
			Int("page", it.number).
			Int("last_page", it.lastPage).
			Msg("Page")
	}

	// The server's link is followed verbatim, never rebuilt.
	it.next = links.next

	if body == "" {
		it.finish()
		return false
	}

	it.page = body
	return true
}

// Page returns the raw body of the current page.
func (it *PageIterator) Page() string {
	return it.page
}

// Number returns the 1-based number of the current page.
func (it *PageIterator) Number() int {
	return it.number
}

// LastPage returns the total page count announced by the "last" link, or 0
// if the server has not sent one.
func (it *PageIterator) LastPage() int {
	return it.lastPage
}

// Err returns the error that stopped the walk, if any.
func (it *PageIterator) Err() error {
	return it.err
}

// Close abandons the walk. Remaining pages are never requested. It is safe
// to call more than once.
func (it *PageIterator) Close() error {
	it.finish()
	return nil
}

func (it *PageIterator) finish() {
	if it.done {
		return
	}
	it.done = true
	it.page = ""
	it.next = ""
	it.client.CloseIdleConnections()
}
