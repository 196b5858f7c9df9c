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

package metadata

import (
	"time"
)

// FetchMetadata is the record saved after each successful run. It captures
// what was fetched, how, and the results, and links to the previous run for
// the same repository.
type FetchMetadata struct {
	RelayVersion  string       `json:"relay_version"`
	MethodVersion string       `json:"method_version"`
	FetchID       string       `json:"fetch_id"`
	Parameters    FetchParams  `json:"parameters"`
	Results       FetchResults `json:"results"`
	Incremental   bool         `json:"incremental"`
	PreviousFetch *FetchRef    `json:"previous_fetch,omitempty"`
}

// FetchParams captures the inputs of a run.
type FetchParams struct {
	Owner        string     `json:"owner"`
	Repository   string     `json:"repository"`
	BaseURL      string     `json:"base_url"`
	Since        *time.Time `json:"since,omitempty"`
	FromCache    bool       `json:"from_cache"`
	CacheBackend string     `json:"cache_backend,omitempty"`
	CacheCleaned bool       `json:"cache_cleaned"`
}

// FetchResults contains the statistics of a completed run.
type FetchResults struct {
	TotalIssues  int       `json:"total_issues"`
	Pages        int       `json:"pages"`
	FirstIssue   int       `json:"first_issue_number"`
	LastIssue    int       `json:"last_issue_number"`
	OldestUpdate time.Time `json:"oldest_updated_at"`
	NewestUpdate time.Time `json:"newest_updated_at"`
	Duration     string    `json:"fetch_duration"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}

// FetchRef is a lightweight reference to an earlier run.
type FetchRef struct {
	FetchID     string    `json:"fetch_id"`
	CompletedAt time.Time `json:"completed_at"`
}
