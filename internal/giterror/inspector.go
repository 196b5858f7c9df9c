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

package giterror

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// StatusCoder is implemented by errors that carry the HTTP status of a
// failed response.
type StatusCoder interface {
	HTTPStatus() int
}

// QuotaReporter is implemented by errors that know whether the response
// reported an exhausted rate-limit quota.
type QuotaReporter interface {
	QuotaExhausted() bool
}

// Inspector provides methods for analyzing GitHub API errors.
type Inspector interface {
	// IsAuthError returns true if the error represents an authentication or authorization failure.
	IsAuthError(err error) bool

	// IsNotFoundError returns true if the error represents a resource not found error.
	IsNotFoundError(err error) bool

	// IsRateLimitError returns true if the error represents a rate limit error.
	IsRateLimitError(err error) bool

	// IsNetworkError returns true if the error represents a network connectivity error.
	IsNetworkError(err error) bool
}

// GitHubErrorInspector implements the Inspector interface for GitHub REST API errors.
type GitHubErrorInspector struct{}

// NewInspector creates a new GitHubErrorInspector.
func NewInspector() Inspector {
	return &GitHubErrorInspector{}
}

// IsRateLimitError checks if the error is a rate limit error. GitHub reports
// an exhausted primary quota as 403 with X-RateLimit-Remaining: 0 and
// secondary limits as 429 or a 403 whose message mentions the limit.
func (i *GitHubErrorInspector) IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	if code, ok := statusOf(err); ok {
		switch code {
		case http.StatusTooManyRequests:
			return true
		case http.StatusForbidden:
			var quota QuotaReporter
			if errors.As(err, &quota) && quota.QuotaExhausted() {
				return true
			}
			return strings.Contains(errStr, "rate limit")
		default:
			return false
		}
	}
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsAuthError checks if the error is an authentication or authorization error.
// A 403 caused by rate limiting is not an auth error.
func (i *GitHubErrorInspector) IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := statusOf(err); ok {
		switch code {
		case http.StatusUnauthorized:
			return true
		case http.StatusForbidden:
			return !i.IsRateLimitError(err)
		default:
			return false
		}
	}
	if isConnectionLevel(err) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "bad credentials") ||
		strings.Contains(errStr, "authentication")
}

// IsNotFoundError checks if the error is a not found error.
func (i *GitHubErrorInspector) IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := statusOf(err); ok {
		return code == http.StatusNotFound || code == http.StatusGone
	}
	if isConnectionLevel(err) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "not found")
}

// IsNetworkError checks if the error is a network connectivity error.
func (i *GitHubErrorInspector) IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := statusOf(err); ok {
		// The server answered.
		return false
	}
	if isConnectionLevel(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "tls handshake") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "network is unreachable")
}

func statusOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus(), true
	}
	return 0, false
}

// isConnectionLevel reports whether err came from the connection rather than
// from a response. Such messages embed addresses whose port numbers must not
// be mistaken for status codes.
func isConnectionLevel(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
