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

// Package metrics defines the Prometheus collectors recorded during a fetch.
// Collectors are registered on a caller-supplied registry rather than the
// global default, so a process (or a test) can run several fetches with
// independent counters.
//
// Available metrics:
//   - issue_relay_requests_total{status} (Counter): GitHub requests by HTTP status class
//   - issue_relay_pages_fetched_total (Counter): pages received from the API
//   - issue_relay_issues_emitted_total{source} (Counter): issues yielded, source=live|cache
//   - issue_relay_rate_limit_remaining (Gauge): last X-RateLimit-Remaining value
//   - issue_relay_cache_pages_appended_total (Counter): pages made durable in the cache
//   - issue_relay_cache_operations_total{operation} (Counter): backup, recover, clean
//   - issue_relay_request_duration_seconds (Histogram): GitHub request latency
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors for one registry. All methods are safe on
// a nil receiver, which records nothing.
type Metrics struct {
	requests           *prometheus.CounterVec
	pagesFetched       prometheus.Counter
	issuesEmitted      *prometheus.CounterVec
	rateLimitRemaining prometheus.Gauge
	pagesAppended      prometheus.Counter
	cacheOperations    *prometheus.CounterVec
	requestDuration    prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_relay_requests_total",
			Help: "Total GitHub API requests by HTTP status class",
		}, []string{"status"}),
		pagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_relay_pages_fetched_total",
			Help: "Total issue pages received from the GitHub API",
		}),
		issuesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_relay_issues_emitted_total",
			Help: "Total issues yielded to the consumer",
		}, []string{"source"}),
		rateLimitRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "issue_relay_rate_limit_remaining",
			Help: "Remaining GitHub API quota reported by the last response",
		}),
		pagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issue_relay_cache_pages_appended_total",
			Help: "Total pages durably appended to the cache",
		}),
		cacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_relay_cache_operations_total",
			Help: "Cache maintenance operations by type",
		}, []string{"operation"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "issue_relay_request_duration_seconds",
			Help:    "GitHub API request latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.requests,
		m.pagesFetched,
		m.issuesEmitted,
		m.rateLimitRemaining,
		m.pagesAppended,
		m.cacheOperations,
		m.requestDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(statusClass(statusCode)).Inc()
	m.requestDuration.Observe(seconds)
}

// PageFetched records a page received from the API.
func (m *Metrics) PageFetched() {
	if m == nil {
		return
	}
	m.pagesFetched.Inc()
}

// IssueEmitted records an issue handed to the consumer.
func (m *Metrics) IssueEmitted(source string) {
	if m == nil {
		return
	}
	m.issuesEmitted.WithLabelValues(source).Inc()
}

// SetRateLimitRemaining records the latest remaining quota.
func (m *Metrics) SetRateLimitRemaining(remaining int) {
	if m == nil {
		return
	}
	m.rateLimitRemaining.Set(float64(remaining))
}

// PagesAppended records pages made durable in the cache.
func (m *Metrics) PagesAppended(n int) {
	if m == nil {
		return
	}
	m.pagesAppended.Add(float64(n))
}

// CacheOperation records a backup, recover or clean.
func (m *Metrics) CacheOperation(op string) {
	if m == nil {
		return
	}
	m.cacheOperations.WithLabelValues(op).Inc()
}

// WriteTextfile writes every metric gathered from g to path in the
// Prometheus text format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 200 || code >= 600:
		return "other"
	default:
		return fmt.Sprintf("%dxx", code/100)
	}
}
