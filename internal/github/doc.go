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

// Package github provides a client for walking GitHub's REST issues listing
// page by page. It follows the "next" relation of the Link header exactly as
// the server sends it and hands each raw response body to the caller
// without parsing it, so the same bytes can be cached and replayed later.
//
// The package includes:
//   - A Client that builds the initial issues URL and performs authenticated GETs
//   - A PageIterator that lazily requests one page per Next call
//   - Transports for authentication, response size limiting and rate-limit observation
//   - StatusError for non-success responses, classified with the giterror package
//
// Basic usage:
//
//	client := github.NewClient("golang", "go", github.Options{Token: token})
//	pages := client.Issues(since)
//	defer pages.Close()
//	for pages.Next(ctx) {
//	    raw := pages.Page()
//	    // Persist or decode raw
//	}
//	if err := pages.Err(); err != nil {
//	    // Handle error
//	}
package github
