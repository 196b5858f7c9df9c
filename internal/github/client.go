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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/giterror"
	"github.com/sirseerhq/issue-relay/internal/logging"
	"github.com/sirseerhq/issue-relay/internal/metrics"
)

// Client fetches the issues of a single repository from the REST API.
type Client struct {
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	inspector  giterror.Inspector
}

// NewClient creates a client for owner/repo. Requests go to opts.BaseURL,
// or the public API when it is empty, and carry opts.Token.
func NewClient(owner, repo string, opts Options) *Client {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logging.Component(logger, "github")

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	if opts.InsecureSkipVerify {
		logger.Warn().Str("base_url", baseURL).Msg("TLS certificate verification is disabled")
	}

	return &Client{
		owner:   owner,
		repo:    repo,
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: newTransport(opts, logger),
			Timeout:   opts.Timeout,
		},
		logger:    logger,
		metrics:   opts.Metrics,
		inspector: giterror.NewInspector(),
	}
}

// Owner returns the repository owner.
func (c *Client) Owner() string { return c.owner }

// Repository returns the repository name.
func (c *Client) Repository() string { return c.repo }

// IssuesURL returns the URL of the first issues page updated at or after
// from. A zero from means DefaultFromDate.
func (c *Client) IssuesURL(from time.Time) string {
	if from.IsZero() {
		from = DefaultFromDate
	}

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(PerPage))
	params.Set("state", issueState)
	params.Set("sort", issueSort)
	params.Set("direction", issueDirection)
	params.Set("since", from.UTC().Format(time.RFC3339))

	return fmt.Sprintf("%s/repos/%s/%s/issues?%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), params.Encode())
}

// Issues returns an iterator over the raw issue pages updated at or after
// from. Nothing is requested until the first call to Next.
func (c *Client) Issues(from time.Time) *PageIterator {
	return &PageIterator{
		client: c,
		next:   c.IssuesURL(from),
	}
}

// get performs one authenticated GET and returns the body and pagination
// links of a successful response.
func (c *Client) get(ctx context.Context, rawURL string) (string, pageLinks, error) {
	c.logger.Debug().Str("url", rawURL).Msg("Get GitHub issues")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", pageLinks{}, fmt.Errorf("invalid request URL %q (%w): %w", rawURL, relayerrors.ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pageLinks{}, c.mapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pageLinks{}, c.mapError(fmt.Errorf("failed to read response from %s: %w", rawURL, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", pageLinks{}, c.mapError(newStatusError(rawURL, resp, body))
	}

	return string(body), parseLinks(resp.Header), nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}
