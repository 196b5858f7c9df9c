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

// Package metadata tracks the statistics of a fetch run and persists them
// as a JSON record next to the cache. Each record names the run's
// parameters, the number of issues and pages seen, the range of issue
// numbers and updated_at timestamps, and links to the previous record for
// the same repository so a series of runs forms an audit trail.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// MethodVersion identifies how issues were collected.
	MethodVersion = "rest-issues-v1"
)

// Tracker collects statistics during a fetch run. Create one at the start
// of each run and record every emitted issue.
type Tracker struct {
	startTime time.Time
	pages     int
	stats     IssueStats
}

// IssueStats holds the running statistics of the issues seen.
type IssueStats struct {
	TotalIssues  int       // Total number of issues emitted
	FirstIssue   int       // Lowest issue number seen
	LastIssue    int       // Highest issue number seen
	OldestUpdate time.Time // Earliest updated_at
	NewestUpdate time.Time // Latest updated_at
}

// New creates a tracker started at the current time.
func New() *Tracker {
	return &Tracker{
		startTime: time.Now(),
	}
}

// SetPages records how many pages the run read.
func (t *Tracker) SetPages(n int) {
	t.pages = n
}

// RecordIssue updates the statistics with one issue. updatedAt is the raw
// updated_at value; values that do not parse as RFC 3339 only count
// towards the total.
func (t *Tracker) RecordIssue(number int, updatedAt string) {
	t.stats.TotalIssues++

	if number > 0 {
		if t.stats.FirstIssue == 0 || number < t.stats.FirstIssue {
			t.stats.FirstIssue = number
		}
		if number > t.stats.LastIssue {
			t.stats.LastIssue = number
		}
	}

	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return
	}
	if t.stats.OldestUpdate.IsZero() || ts.Before(t.stats.OldestUpdate) {
		t.stats.OldestUpdate = ts
	}
	if ts.After(t.stats.NewestUpdate) {
		t.stats.NewestUpdate = ts
	}
}

// Stats returns the statistics recorded so far.
func (t *Tracker) Stats() IssueStats {
	return t.stats
}

// GenerateMetadata builds the record of the run. A run with a Since date is
// incremental.
func (t *Tracker) GenerateMetadata(relayVersion string, params FetchParams, previousFetch *FetchRef) *FetchMetadata {
	completedAt := time.Now()
	duration := completedAt.Sub(t.startTime)
	incremental := params.Since != nil

	fetchID := fmt.Sprintf("%s-%d", getFetchType(params.FromCache, incremental), t.startTime.Unix())

	return &FetchMetadata{
		RelayVersion:  relayVersion,
		MethodVersion: MethodVersion,
		FetchID:       fetchID,
		Parameters:    params,
		Results: FetchResults{
			TotalIssues:  t.stats.TotalIssues,
			Pages:        t.pages,
			FirstIssue:   t.stats.FirstIssue,
			LastIssue:    t.stats.LastIssue,
			OldestUpdate: t.stats.OldestUpdate,
			NewestUpdate: t.stats.NewestUpdate,
			Duration:     duration.String(),
			StartedAt:    t.startTime,
			CompletedAt:  completedAt,
		},
		Incremental:   incremental,
		PreviousFetch: previousFetch,
	}
}

// SaveMetadata writes the record to dir as fetch-metadata-{timestamp}.json.
// The file is written to a temporary name, synced and renamed into place.
func SaveMetadata(metadata *FetchMetadata, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	filename := fmt.Sprintf("fetch-metadata-%d.json", metadata.Results.StartedAt.Unix())
	path := filepath.Join(dir, filename)

	tmpFile := path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(metadata); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to sync metadata file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to close metadata file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to save metadata file: %w", err)
	}

	return nil
}

// LoadLatestMetadata loads the most recent record in dir for repo
// ("owner/name"). It returns nil when there is none.
func LoadLatestMetadata(dir, repo string) (*FetchMetadata, error) {
	pattern := filepath.Join(dir, "fetch-metadata-*.json")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}

	if len(files) == 0 {
		return nil, nil
	}

	var latestFile string
	var latestTime time.Time
	for _, file := range files {
		info, statErr := os.Stat(file)
		if statErr != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = file
		}
	}

	if latestFile == "" {
		return nil, nil
	}

	file, err := os.Open(latestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer file.Close()

	var metadata FetchMetadata
	if err := json.NewDecoder(file).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	fullRepo := fmt.Sprintf("%s/%s", metadata.Parameters.Owner, metadata.Parameters.Repository)
	if fullRepo != repo {
		return nil, nil
	}

	return &metadata, nil
}

func getFetchType(fromCache, incremental bool) string {
	switch {
	case fromCache:
		return "cache"
	case incremental:
		return "incremental"
	default:
		return "full"
	}
}
