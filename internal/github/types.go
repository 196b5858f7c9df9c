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
	"time"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/issue-relay/internal/metrics"
)

// Issues listing parameters. They are fixed: the walk always covers open and
// closed issues, oldest update first.
const (
	// DefaultBaseURL is the public GitHub API origin.
	DefaultBaseURL = "https://api.github.com"

	// PerPage is the page size requested from the issues endpoint.
	PerPage = 30

	issueState     = "all"
	issueSort      = "updated"
	issueDirection = "asc"

	// maxResponseSize caps a single page body.
	maxResponseSize = 10 * 1024 * 1024
)

// DefaultFromDate is the lower bound used when no from-date is given. It
// predates every issue, so the walk starts at the oldest update.
var DefaultFromDate = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options configures a Client.
type Options struct {
	// BaseURL overrides the API origin, e.g. https://ghe.example.com/api/v3
	// for GitHub Enterprise. Empty means DefaultBaseURL.
	BaseURL string

	// Token is sent as "Authorization: token <Token>" on every request.
	Token string

	// InsecureSkipVerify disables TLS certificate verification. Off by
	// default; only meant for self-hosted instances with private CAs that
	// cannot be added to the system pool.
	InsecureSkipVerify bool

	// Timeout bounds each request. Zero leaves requests unbounded, so a
	// stalled response blocks the walk until the context is canceled.
	Timeout time.Duration

	// Transport is the base RoundTripper under the auth and rate-limit
	// layers. Nil uses a clone of http.DefaultTransport; InsecureSkipVerify
	// only applies to that default.
	Transport http.RoundTripper

	// Logger receives request diagnostics. The zero value discards them.
	Logger *zerolog.Logger

	// Metrics records request and page counters. Nil records nothing.
	Metrics *metrics.Metrics
}
