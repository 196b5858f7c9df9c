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

// Package errors defines sentinel errors for consistent error handling across the application.
// These errors map to specific exit codes in the CLI for proper scripting support, and
// group into a small set of kinds that decide whether a failed run rolls the cache back.
package errors

import "errors"

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrInvalidToken indicates GitHub authentication failed.
	// Maps to exit code 2.
	ErrInvalidToken = errors.New("invalid github token")

	// ErrRepoNotFound indicates the specified repository does not exist or is not accessible.
	// Maps to exit code 2.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrNetworkFailure indicates a network connection problem.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrRateLimit indicates GitHub API rate limit has been exceeded.
	// Maps to exit code 2.
	ErrRateLimit = errors.New("github rate limit exceeded")

	// ErrTransport indicates a request failed or returned a non-success status.
	ErrTransport = errors.New("transport failure")

	// ErrDecode indicates a page payload could not be decoded into issues.
	ErrDecode = errors.New("malformed page payload")

	// ErrCacheUnavailable indicates no cache was configured or its storage
	// cannot be opened or read.
	// Maps to exit code 4.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrQueueFull indicates a page was enqueued while the cache queue was at capacity.
	ErrQueueFull = errors.New("cache queue full")

	// ErrSink indicates the output sink rejected a write.
	// Maps to exit code 5. A sink failure never triggers cache recovery.
	ErrSink = errors.New("output write failed")
)

// Kind groups errors by the failure policy the caller applies to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindCacheUnavailable
	KindTransport
	KindDecode
	KindSink
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindCacheUnavailable:
		return "cache_unavailable"
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err by walking its chain. Sink wins over the
// other kinds so that a write failure is never mistaken for a fetch failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrSink):
		return KindSink
	case errors.Is(err, ErrCacheUnavailable):
		return KindCacheUnavailable
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransport),
		errors.Is(err, ErrNetworkFailure),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrRepoNotFound),
		errors.Is(err, ErrRateLimit):
		return KindTransport
	default:
		return KindUnknown
	}
}

// ShouldRecover reports whether a failed run must roll the cache back to
// its last backup. Everything except a sink failure does.
func ShouldRecover(err error) bool {
	return err != nil && KindOf(err) != KindSink
}
