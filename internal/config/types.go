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

// Package config types define the configuration structures used throughout
// issue-relay. These types represent settings that can be loaded from YAML
// configuration files, environment variables, or command-line flags.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config represents the complete configuration for issue-relay.
type Config struct {
	GitHub       GitHubConfig          `yaml:"github"`
	Cache        CacheConfig           `yaml:"cache"`
	Logging      LoggingConfig         `yaml:"logging"`
	Metrics      MetricsConfig         `yaml:"metrics"`
	Output       OutputConfig          `yaml:"output"`
	Repositories map[string]RepoConfig `yaml:"repositories"`
}

// GitHubConfig contains the API endpoint and authentication settings. A
// custom endpoint points the tool at a GitHub Enterprise deployment.
type GitHubConfig struct {
	APIEndpoint        string        `yaml:"api_endpoint"`
	TokenEnv           string        `yaml:"token_env"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// CacheConfig selects where fetched pages are cached.
type CacheConfig struct {
	Backend   string `yaml:"backend"`
	Dir       string `yaml:"dir"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	QueueSize int    `yaml:"queue_size"`
}

// LoggingConfig controls diagnostic output on stderr.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// OutputConfig controls how issues are rendered.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// RepoConfig contains repository-specific overrides.
type RepoConfig struct {
	QueueSize int    `yaml:"queue_size"`
	Backend   string `yaml:"backend"`
}

// DefaultCacheDir is the cache root used when none is configured.
func DefaultCacheDir() string {
	return filepath.Join(xdg.ConfigHome, "issue-relay", "cache")
}

// DefaultConfig returns a Config with defaults suitable for github.com.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIEndpoint: "https://api.github.com",
			TokenEnv:    "GITHUB_TOKEN",
		},
		Cache: CacheConfig{
			Backend:   BackendSQLite,
			Dir:       DefaultCacheDir(),
			RedisAddr: "localhost:6379",
			QueueSize: 16,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Output: OutputConfig{
			Format: "ndjson",
		},
		Repositories: make(map[string]RepoConfig),
	}
}
