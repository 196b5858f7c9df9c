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

// Package testutil provides common test helpers for issue-relay
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// RecordedRequest is what the mock server saw of one request.
type RecordedRequest struct {
	Path          string
	RawQuery      string
	Authorization string
	UserAgent     string
}

// IssueServer serves a fixed sequence of raw issue pages the way GitHub
// does: the first page under /repos/{owner}/{repo}/issues, later pages under
// an opaque /repositories/{id}/issues URL announced through the Link header.
type IssueServer struct {
	*httptest.Server

	mu         sync.Mutex
	pages      []string
	requests   []RecordedRequest
	failPage   int
	failStatus int
	failBody   string
	remaining  int
}

// NewIssueServer starts a server for pages. The server is closed when the
// test ends.
func NewIssueServer(t *testing.T, pages ...string) *IssueServer {
	t.Helper()
	s := &IssueServer{
		pages:     pages,
		remaining: 5000,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// FailAt makes the server answer requests for page with status and body.
func (s *IssueServer) FailAt(page, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPage = page
	s.failStatus = status
	s.failBody = body
}

// SetRateLimitRemaining sets the quota reported by the next response.
func (s *IssueServer) SetRateLimitRemaining(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining = n
}

// Requests returns the requests received so far, in order.
func (s *IssueServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of requests received so far.
func (s *IssueServer) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// PageURL returns the Link URL the server announces for page n.
func (s *IssueServer) PageURL(n int) string {
	return fmt.Sprintf("%s/repositories/1296269/issues?per_page=30&page=%d&cursor=opaque-%d", s.URL, n, n)
}

func (s *IssueServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		UserAgent:     r.Header.Get("User-Agent"),
	})
	remaining := s.remaining
	if s.remaining > 0 {
		s.remaining--
	}
	failPage, failStatus, failBody := s.failPage, s.failStatus, s.failBody
	pages := s.pages
	s.mu.Unlock()

	if !strings.HasSuffix(r.URL.Path, "/issues") {
		http.NotFound(w, r)
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			http.Error(w, `{"message":"Bad page"}`, http.StatusBadRequest)
			return
		}
		page = n
	}

	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))

	if page == failPage {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(failStatus)
		_, _ = w.Write([]byte(failBody))
		return
	}

	if page > len(pages) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		return
	}

	var links []string
	if page < len(pages) {
		links = append(links,
			fmt.Sprintf(`<%s>; rel="next"`, s.PageURL(page+1)),
			fmt.Sprintf(`<%s>; rel="last"`, s.PageURL(len(pages))),
		)
	}
	if page > 1 {
		links = append(links,
			fmt.Sprintf(`<%s>; rel="prev"`, s.PageURL(page-1)),
			fmt.Sprintf(`<%s>; rel="first"`, s.PageURL(1)),
		)
	}
	if len(links) > 0 {
		w.Header().Set("Link", strings.Join(links, ", "))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write([]byte(pages[page-1]))
}

// IssuePage builds the raw JSON body of a page holding issues with IDs
// first..last, updated one hour apart starting at 2015-01-01T00:00:00Z.
func IssuePage(first, last int) string {
	base := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	issues := make([]map[string]interface{}, 0, last-first+1)
	for id := first; id <= last; id++ {
		issues = append(issues, map[string]interface{}{
			"id":         id,
			"number":     id,
			"title":      fmt.Sprintf("Issue %d", id),
			"state":      "open",
			"updated_at": base.Add(time.Duration(id) * time.Hour).Format(time.RFC3339),
			"user": map[string]interface{}{
				"login": fmt.Sprintf("user%d", id),
			},
		})
	}
	data, err := json.Marshal(issues)
	if err != nil {
		panic(err)
	}
	return string(data)
}
