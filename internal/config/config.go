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

// Package config provides configuration management for issue-relay with
// support for multiple configuration sources and a well-defined precedence
// order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables
//  3. Repository-specific configuration
//  4. Global configuration file
//  5. Built-in defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from multiple sources and applies them in
// the correct precedence order. If configPath is provided, it loads from
// that specific file. Otherwise, it searches standard locations:
//   - .issue-relay.yaml (current directory)
//   - .issue-relay.yml (current directory)
//   - $XDG_CONFIG_HOME/issue-relay/config.yaml
//   - $XDG_CONFIG_HOME/issue-relay/config.yml
//
// Environment variables are applied after loading the config file.
// Returns an error if the specified config file cannot be loaded, but will
// succeed with defaults if no config file is found in standard locations.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		for _, path := range defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)
	cfg.Metrics.Textfile = expandPath(cfg.Metrics.Textfile)

	return cfg, nil
}

// LoadConfigForRepo loads configuration and applies the overrides of repo
// ("owner/name").
func LoadConfigForRepo(configPath, repo string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if repoConfig, ok := cfg.Repositories[repo]; ok {
		if repoConfig.QueueSize > 0 {
			cfg.Cache.QueueSize = repoConfig.QueueSize
		}
		if repoConfig.Backend != "" {
			cfg.Cache.Backend = repoConfig.Backend
		}
	}

	return cfg, nil
}

func defaultPaths() []string {
	return []string{
		".issue-relay.yaml",
		".issue-relay.yml",
		filepath.Join(xdg.ConfigHome, "issue-relay", "config.yaml"),
		filepath.Join(xdg.ConfigHome, "issue-relay", "config.yml"),
	}
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if endpoint := os.Getenv("GITHUB_API_ENDPOINT"); endpoint != "" {
		cfg.GitHub.APIEndpoint = endpoint
	}
	if insecure := os.Getenv("ISSUE_RELAY_INSECURE_SKIP_VERIFY"); insecure != "" {
		cfg.GitHub.InsecureSkipVerify = parseBool(insecure)
	}

	if dir := os.Getenv("ISSUE_RELAY_CACHE_DIR"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if backend := os.Getenv("ISSUE_RELAY_CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = strings.ToLower(backend)
	}
	if addr := os.Getenv("ISSUE_RELAY_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if size := os.Getenv("ISSUE_RELAY_QUEUE_SIZE"); size != "" {
		if n, err := parsePositiveInt(size); err == nil {
			cfg.Cache.QueueSize = n
		}
	}

	if level := os.Getenv("ISSUE_RELAY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home := os.Getenv("HOME")
		if home == "" {
			home = os.Getenv("USERPROFILE") // Windows
		}
		path = filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// Token returns the GitHub token from the configured environment variable,
// falling back to GITHUB_TOKEN.
func (c *Config) Token() string {
	if c.GitHub.TokenEnv != "" {
		if tok := os.Getenv(c.GitHub.TokenEnv); tok != "" {
			return tok
		}
	}
	return os.Getenv("GITHUB_TOKEN")
}

// RepoCacheDir returns the cache directory of one repository.
func (c *Config) RepoCacheDir(owner, repo string) string {
	return filepath.Join(c.Cache.Dir, owner+"_"+repo)
}

// RedisKey returns the Redis list key of one repository.
func (c *Config) RedisKey(owner, repo string) string {
	return "issue-relay:" + owner + "_" + repo
}

// Validate checks that the configuration holds usable values.
func (c *Config) Validate() error {
	if c.GitHub.APIEndpoint == "" {
		return fmt.Errorf("GitHub API endpoint cannot be empty")
	}
	if c.GitHub.Timeout < 0 {
		return fmt.Errorf("GitHub timeout cannot be negative, got: %s", c.GitHub.Timeout)
	}
	switch c.Cache.Backend {
	case BackendSQLite:
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache directory cannot be empty")
		}
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (want %q or %q)", c.Cache.Backend, BackendSQLite, BackendRedis)
	}
	if c.Cache.QueueSize <= 0 {
		return fmt.Errorf("cache queue size must be positive, got: %d", c.Cache.QueueSize)
	}
	switch strings.ToLower(c.Output.Format) {
	case "ndjson", "pretty":
	default:
		return fmt.Errorf("unknown output format %q (want \"ndjson\" or \"pretty\")", c.Output.Format)
	}
	return nil
}
