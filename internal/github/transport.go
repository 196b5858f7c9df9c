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
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sirseerhq/issue-relay/internal/metrics"
	"github.com/sirseerhq/issue-relay/pkg/version"
)

// newTransport builds the request pipeline:
// rate-limit observer -> auth -> base transport.
func newTransport(opts Options, logger zerolog.Logger) http.RoundTripper {
	base := opts.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 2
		t.IdleConnTimeout = 90 * time.Second
		t.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: opts.InsecureSkipVerify, // #nosec G402 - explicit opt-in
		}
		base = t
	}

	return &rateLimitTransport{
		base: &authTransport{
			token: opts.Token,
			base:  base,
		},
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// limitedReader wraps a ReadCloser with a size limit to prevent excessive memory usage.
type limitedReader struct {
	io.ReadCloser
	limit int64
	read  int64
}

// Read implements io.Reader with size limit enforcement.
func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.read >= lr.limit {
		return 0, fmt.Errorf("response size exceeded limit of %d bytes", lr.limit)
	}

	remaining := lr.limit - lr.read
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	n, err = lr.ReadCloser.Read(p)
	lr.read += int64(n)

	return n, err
}

// authTransport adds authentication header and safety limits to HTTP requests
type authTransport struct {
	token string
	base  http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	req = req.Clone(req.Context())

	if t.token != "" {
		req.Header.Set("Authorization", "token "+t.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.Body != nil {
		resp.Body = &limitedReader{
			ReadCloser: resp.Body,
			limit:      maxResponseSize,
		}
	}

	return resp, nil
}

// rateLimitTransport reports the remaining API quota of every response.
// It only observes: an exhausted quota surfaces as the server's error
// response, never as a wait or a retry.
type rateLimitTransport struct {
	base    http.RoundTripper
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// RoundTrip implements http.RoundTripper with rate limit observation.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.metrics.ObserveRequest(0, elapsed.Seconds())
		return nil, err
	}
	t.metrics.ObserveRequest(resp.StatusCode, elapsed.Seconds())

	remaining, ok := headerInt(resp.Header, "X-RateLimit-Remaining")
	if !ok {
		return resp, nil
	}
	t.metrics.SetRateLimitRemaining(remaining)

	event := t.logger.Debug()
	if remaining == 0 {
		event = t.logger.Warn()
	}
	if reset, ok := headerInt(resp.Header, "X-RateLimit-Reset"); ok {
		event = event.Time("reset", time.Unix(int64(reset), 0))
	}
	event.Int("remaining", remaining).Msg("Rate limit")

	return resp, nil
}

func headerInt(h http.Header, key string) (int, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
