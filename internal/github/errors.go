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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
)

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	StatusCode int
	URL        string
	Message    string

	// RateLimitRemaining is the X-RateLimit-Remaining value of the
	// response, or -1 when the header was absent.
	RateLimitRemaining int
}

func newStatusError(rawURL string, resp *http.Response, body []byte) *StatusError {
	remaining, ok := headerInt(resp.Header, "X-RateLimit-Remaining")
	if !ok {
		remaining = -1
	}
	return &StatusError{
		StatusCode:         resp.StatusCode,
		URL:                rawURL,
		Message:            errorMessage(body),
		RateLimitRemaining: remaining,
	}
}

// Error implements error.
func (e *StatusError) Error() string {
	msg := fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// QuotaExhausted reports whether the response said no requests remain.
func (e *StatusError) QuotaExhausted() bool {
	return e.RateLimitRemaining == 0
}

// errorMessage extracts GitHub's {"message": "..."} or falls back to a
// trimmed prefix of the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// mapError maps request failures to our domain errors with actionable messages
func (c *Client) mapError(err error) error {
	if err == nil {
		return nil
	}

	// Check rate limit first, as 403 can be both auth and rate limit
	if c.inspector.IsRateLimitError(err) {
		return fmt.Errorf("GitHub API rate limit exceeded (%w): %w", relayerrors.ErrRateLimit, err)
	}

	if c.inspector.IsAuthError(err) {
		return fmt.Errorf("GitHub API authentication failed. Please provide a valid token via --token flag or GITHUB_TOKEN environment variable (%w): %w", relayerrors.ErrInvalidToken, err)
	}

	if c.inspector.IsNotFoundError(err) {
		return fmt.Errorf("repository '%s/%s' not found. Please check the repository name and your access permissions (%w): %w", c.owner, c.repo, relayerrors.ErrRepoNotFound, err)
	}

	if c.inspector.IsNetworkError(err) {
		return fmt.Errorf("network error connecting to GitHub API (%w): %w", relayerrors.ErrNetworkFailure, err)
	}

	return fmt.Errorf("failed to fetch issues (%w): %w", relayerrors.ErrTransport, err)
}
