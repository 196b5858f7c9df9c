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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/metrics"
	"github.com/sirseerhq/issue-relay/test/testutil"
)

func newTestClient(t *testing.T, server *testutil.IssueServer) *Client {
	t.Helper()
	return NewClient("octo", "hello", Options{
		BaseURL: server.URL,
		Token:   "secret",
	})
}

func collectPages(t *testing.T, it *PageIterator) []string {
	t.Helper()
	var pages []string
	for it.Next(context.Background()) {
		pages = append(pages, it.Page())
	}
	return pages
}

func TestIssuesURL(t *testing.T) {
	client := NewClient("octo", "hello", Options{})

	tests := []struct {
		name      string
		from      time.Time
		wantSince string
	}{
		{
			name:      "zero from uses default",
			from:      time.Time{},
			wantSince: "1970-01-01T00:00:00Z",
		},
		{
			name:      "explicit from",
			from:      time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			wantSince: "2015-01-01T00:00:00Z",
		},
		{
			name:      "non-UTC from is normalized",
			from:      time.Date(2015, 1, 1, 2, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			wantSince: "2015-01-01T00:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(client.IssuesURL(tt.from))
			if err != nil {
				t.Fatalf("IssuesURL() is not a URL: %v", err)
			}
			if got := u.Scheme + "://" + u.Host + u.Path; got != "https://api.github.com/repos/octo/hello/issues" {
				t.Errorf("endpoint = %s, want https://api.github.com/repos/octo/hello/issues", got)
			}

			q := u.Query()
			want := map[string]string{
				"per_page":  "30",
				"state":     "all",
				"sort":      "updated",
				"direction": "asc",
				"since":     tt.wantSince,
			}
			for key, value := range want {
				if q.Get(key) != value {
					t.Errorf("%s = %q, want %q", key, q.Get(key), value)
				}
			}
		})
	}
}

func TestIssuesURLBaseOverride(t *testing.T) {
	client := NewClient("octo", "hello", Options{BaseURL: "https://ghe.example.com/api/v3/"})
	got := client.IssuesURL(time.Time{})
	if !strings.HasPrefix(got, "https://ghe.example.com/api/v3/repos/octo/hello/issues?") {
		t.Errorf("IssuesURL() = %s, want GHE prefix", got)
	}
}

func TestPageIterator_FollowsNextUntilExhausted(t *testing.T) {
	pages := []string{testutil.IssuePage(1, 2), testutil.IssuePage(3, 4), testutil.IssuePage(5, 5)}
	server := testutil.NewIssueServer(t, pages...)
	client := newTestClient(t, server)

	it := client.Issues(time.Time{})
	defer it.Close()
	got := collectPages(t, it)

	if err := it.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if len(got) != len(pages) {
		t.Fatalf("got %d pages, want %d", len(got), len(pages))
	}
	for i := range pages {
		if got[i] != pages[i] {
			t.Errorf("page %d = %s, want %s", i+1, got[i], pages[i])
		}
	}

	reqs := server.Requests()
	if len(reqs) != 3 {
		t.Fatalf("server saw %d requests, want 3", len(reqs))
	}
	if reqs[0].Path != "/repos/octo/hello/issues" {
		t.Errorf("first request path = %s", reqs[0].Path)
	}
	// Later pages use the server's link verbatim, opaque cursor included.
	for i, req := range reqs[1:] {
		wantQuery := strings.SplitN(server.PageURL(i+2), "?", 2)[1]
		if req.Path != "/repositories/1296269/issues" || req.RawQuery != wantQuery {
			t.Errorf("request %d = %s?%s, want link %s", i+2, req.Path, req.RawQuery, server.PageURL(i+2))
		}
	}
	for i, req := range reqs {
		if req.Authorization != "token secret" {
			t.Errorf("request %d Authorization = %q, want %q", i+1, req.Authorization, "token secret")
		}
		if !strings.HasPrefix(req.UserAgent, "issue-relay/") {
			t.Errorf("request %d User-Agent = %q", i+1, req.UserAgent)
		}
	}

	if it.Next(context.Background()) {
		t.Error("Next() after exhaustion = true, want false")
	}
	if server.RequestCount() != 3 {
		t.Errorf("Next() after exhaustion issued a request")
	}
}

func TestPageIterator_LastPage(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]", "[]", "[]", "[]")
	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()

	if !it.Next(context.Background()) {
		t.Fatalf("Next() = false, err = %v", it.Err())
	}
	if it.Number() != 1 || it.LastPage() != 4 {
		t.Errorf("page %d/%d, want 1/4", it.Number(), it.LastPage())
	}

	for it.Next(context.Background()) {
	}
	if it.Number() != 4 || it.LastPage() != 4 {
		t.Errorf("page %d/%d, want 4/4", it.Number(), it.LastPage())
	}
}

func TestPageIterator_YieldsEmptyArray(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]")
	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()

	got := collectPages(t, it)
	if len(got) != 1 || got[0] != "[]" {
		t.Errorf("pages = %q, want [\"[]\"]", got)
	}
}

func TestPageIterator_EmptyBodyEndsWalk(t *testing.T) {
	server := testutil.NewIssueServer(t, testutil.IssuePage(1, 1), "", testutil.IssuePage(2, 2))
	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()

	got := collectPages(t, it)
	if len(got) != 1 {
		t.Errorf("got %d pages, want 1", len(got))
	}
	if it.Err() != nil {
		t.Errorf("Err() = %v, want nil", it.Err())
	}
	if server.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d, want 2", server.RequestCount())
	}
}

func TestPageIterator_CloseStopsWalk(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]", "[]", "[]")
	it := newTestClient(t, server).Issues(time.Time{})

	if !it.Next(context.Background()) {
		t.Fatalf("Next() = false, err = %v", it.Err())
	}
	if err := it.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if it.Next(context.Background()) {
		t.Error("Next() after Close = true, want false")
	}
	if err := it.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if server.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", server.RequestCount())
	}
}

func TestPageIterator_LazyStart(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]")
	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()

	if server.RequestCount() != 0 {
		t.Errorf("Issues() issued %d requests before Next", server.RequestCount())
	}
}

func TestPageIterator_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		remaining int
		want      error
	}{
		{"bad credentials", http.StatusUnauthorized, `{"message":"Bad credentials"}`, 60, relayerrors.ErrInvalidToken},
		{"forbidden", http.StatusForbidden, `{"message":"Resource not accessible"}`, 60, relayerrors.ErrInvalidToken},
		{"not found", http.StatusNotFound, `{"message":"Not Found"}`, 60, relayerrors.ErrRepoNotFound},
		{"quota exhausted", http.StatusForbidden, `{"message":"API rate limit exceeded for user"}`, 0, relayerrors.ErrRateLimit},
		{"secondary limit", http.StatusTooManyRequests, `{"message":"slow down"}`, 60, relayerrors.ErrRateLimit},
		{"server error", http.StatusInternalServerError, `oops`, 60, relayerrors.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := testutil.NewIssueServer(t, "[]", "[]")
			server.FailAt(2, tt.status, tt.body)
			server.SetRateLimitRemaining(tt.remaining)
			if tt.remaining > 0 {
				// The first page consumes one unit.
				server.SetRateLimitRemaining(tt.remaining + 1)
			}

			it := newTestClient(t, server).Issues(time.Time{})
			defer it.Close()

			got := collectPages(t, it)
			if len(got) != 1 {
				t.Errorf("got %d pages before the failure, want 1", len(got))
			}

			err := it.Err()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Err() = %v, want %v", err, tt.want)
			}
			if relayerrors.KindOf(err) != relayerrors.KindTransport {
				t.Errorf("KindOf() = %v, want transport", relayerrors.KindOf(err))
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Err() = %v, want *StatusError in chain", err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
			}
		})
	}
}

func TestPageIterator_NetworkError(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]")
	client := newTestClient(t, server)
	server.Close()

	it := client.Issues(time.Time{})
	defer it.Close()

	if it.Next(context.Background()) {
		t.Fatal("Next() against a closed server = true")
	}
	if !errors.Is(it.Err(), relayerrors.ErrNetworkFailure) {
		t.Errorf("Err() = %v, want ErrNetworkFailure", it.Err())
	}
}

// roundTripFunc is a base transport answering without a network. Its
// responses carry no Request, as custom transports are allowed to do.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubResponse(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestClient_CustomTransport(t *testing.T) {
	var seen []*http.Request
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req)
		if req.URL.Query().Get("page") == "2" {
			return stubResponse(http.StatusNotFound, nil, `{"message":"Not Found"}`), nil
		}
		header := http.Header{}
		header.Set("Link", `<https://ghe.example.com/api/v3/repositories/9/issues?page=2>; rel="next"`)
		return stubResponse(http.StatusOK, header, `[{"id":1}]`), nil
	})

	client := NewClient("octo", "hello", Options{
		BaseURL:   "https://ghe.example.com/api/v3",
		Token:     "secret",
		Transport: base,
	})
	it := client.Issues(time.Time{})
	defer it.Close()

	pages := collectPages(t, it)
	if len(pages) != 1 || pages[0] != `[{"id":1}]` {
		t.Fatalf("pages = %q, want the first page only", pages)
	}

	err := it.Err()
	if !errors.Is(err, relayerrors.ErrRepoNotFound) {
		t.Fatalf("Err() = %v, want ErrRepoNotFound", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Err() = %v, want a *StatusError in the chain", err)
	}
	wantURL := "https://ghe.example.com/api/v3/repositories/9/issues?page=2"
	if statusErr.URL != wantURL {
		t.Errorf("StatusError.URL = %q, want %q", statusErr.URL, wantURL)
	}

	if len(seen) != 2 {
		t.Fatalf("base transport saw %d requests, want 2", len(seen))
	}
	for _, req := range seen {
		if got := req.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("Authorization = %q, want %q", got, "token secret")
		}
	}
	if seen[0].URL.Path != "/api/v3/repos/octo/hello/issues" {
		t.Errorf("first request path = %s", seen[0].URL.Path)
	}
}

func TestPageIterator_ContextCanceled(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]")
	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if it.Next(ctx) {
		t.Fatal("Next() with canceled context = true")
	}
	if !errors.Is(it.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want context.Canceled in chain", it.Err())
	}
}

func TestRateLimitObservation(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]", "[]")
	server.SetRateLimitRemaining(42)

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New() = %v", err)
	}

	client := NewClient("octo", "hello", Options{
		BaseURL: server.URL,
		Token:   "secret",
		Logger:  &logger,
		Metrics: m,
	})
	it := client.Issues(time.Time{})
	defer it.Close()
	collectPages(t, it)

	if !strings.Contains(logs.String(), `"remaining":41`) {
		t.Errorf("logs missing last remaining quota:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), `"url":"`+server.URL+`/repos/octo/hello/issues?`) {
		t.Errorf("logs missing request URL:\n%s", logs.String())
	}

	if got := gatherValue(t, reg, "issue_relay_rate_limit_remaining"); got != 41 {
		t.Errorf("rate limit gauge = %v, want 41", got)
	}
	if got := gatherValue(t, reg, "issue_relay_pages_fetched_total"); got != 2 {
		t.Errorf("pages fetched = %v, want 2", got)
	}
}

func TestRateLimitExhaustionIsNotRetried(t *testing.T) {
	server := testutil.NewIssueServer(t, "[]", "[]")
	server.SetRateLimitRemaining(1)
	server.FailAt(2, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)

	it := newTestClient(t, server).Issues(time.Time{})
	defer it.Close()
	collectPages(t, it)

	if !errors.Is(it.Err(), relayerrors.ErrRateLimit) {
		t.Errorf("Err() = %v, want ErrRateLimit", it.Err())
	}
	if server.RequestCount() != 2 {
		t.Errorf("RequestCount() = %d, want 2 (no retry)", server.RequestCount())
	}
}

func gatherValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("Gather() = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
