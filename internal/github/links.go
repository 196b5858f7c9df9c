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
	"net/http"
	"net/url"
	"strconv"

	"github.com/tomnomnom/linkheader"
)

// pageLinks holds the pagination relations of one response.
type pageLinks struct {
	next string
	last string
}

// parseLinks reads the "next" and "last" relations from every Link header
// of h. URLs are returned verbatim; the server may put opaque parameters in
// them.
func parseLinks(h http.Header) pageLinks {
	var links pageLinks
	for _, l := range linkheader.ParseMultiple(h.Values("Link")) {
		switch l.Rel {
		case "next":
			if links.next == "" {
				links.next = l.URL
			}
		case "last":
			if links.last == "" {
				links.last = l.URL
			}
		}
	}
	return links
}

// pageNumber extracts the "page" query parameter of a pagination link.
// It returns 0 when the link carries no page number.
func pageNumber(link string) int {
	u, err := url.Parse(link)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
