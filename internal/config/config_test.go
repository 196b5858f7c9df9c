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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.GitHub.APIEndpoint != "https://api.github.com" {
		t.Errorf("APIEndpoint = %s, want https://api.github.com", cfg.GitHub.APIEndpoint)
	}
	if cfg.GitHub.TokenEnv != "GITHUB_TOKEN" {
		t.Errorf("TokenEnv = %s, want GITHUB_TOKEN", cfg.GitHub.TokenEnv)
	}
	if cfg.GitHub.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = true, want false")
	}

	if cfg.Cache.Backend != BackendSQLite {
		t.Errorf("Backend = %s, want %s", cfg.Cache.Backend, BackendSQLite)
	}
	if !strings.HasSuffix(cfg.Cache.Dir, filepath.Join("issue-relay", "cache")) {
		t.Errorf("Dir = %s, want suffix issue-relay/cache", cfg.Cache.Dir)
	}
	if cfg.Cache.QueueSize != 16 {
		t.Errorf("QueueSize = %d, want 16", cfg.Cache.QueueSize)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Output.Format != "ndjson" {
		t.Errorf("Format = %s, want ndjson", cfg.Output.Format)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
github:
  api_endpoint: https://github.enterprise.com/api/v3
  token_env: GITHUB_ENTERPRISE_TOKEN
  insecure_skip_verify: true
  timeout: 45s

cache:
  backend: redis
  redis_addr: redis.internal:6379
  redis_db: 3
  queue_size: 4

logging:
  level: debug
  pretty: true

metrics:
  textfile: /var/lib/node_exporter/issue_relay.prom

output:
  format: pretty

repositories:
  "org/repo":
    queue_size: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.GitHub.APIEndpoint != "https://github.enterprise.com/api/v3" {
		t.Errorf("APIEndpoint = %s, want https://github.enterprise.com/api/v3", cfg.GitHub.APIEndpoint)
	}
	if cfg.GitHub.TokenEnv != "GITHUB_ENTERPRISE_TOKEN" {
		t.Errorf("TokenEnv = %s, want GITHUB_ENTERPRISE_TOKEN", cfg.GitHub.TokenEnv)
	}
	if !cfg.GitHub.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true")
	}
	if cfg.GitHub.Timeout != 45*time.Second {
		t.Errorf("Timeout = %s, want 45s", cfg.GitHub.Timeout)
	}

	if cfg.Cache.Backend != BackendRedis {
		t.Errorf("Backend = %s, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.RedisAddr != "redis.internal:6379" || cfg.Cache.RedisDB != 3 {
		t.Errorf("Redis = %s/%d, want redis.internal:6379/3", cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	}
	if cfg.Cache.QueueSize != 4 {
		t.Errorf("QueueSize = %d, want 4", cfg.Cache.QueueSize)
	}
	// Unset keys keep their defaults.
	if cfg.Cache.Dir != DefaultCacheDir() {
		t.Errorf("Dir = %s, want default %s", cfg.Cache.Dir, DefaultCacheDir())
	}

	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Errorf("Logging = %+v, want debug/pretty", cfg.Logging)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/issue_relay.prom" {
		t.Errorf("Textfile = %s", cfg.Metrics.Textfile)
	}
	if cfg.Output.Format != "pretty" {
		t.Errorf("Format = %s, want pretty", cfg.Output.Format)
	}

	if repoConfig, ok := cfg.Repositories["org/repo"]; !ok {
		t.Error("Repository org/repo not found")
	} else if repoConfig.QueueSize != 2 {
		t.Errorf("Repository QueueSize = %d, want 2", repoConfig.QueueSize)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("LoadConfig() with a missing explicit file should fail")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("cache: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("LoadConfig() with invalid YAML should fail")
	}
}

func TestLoadConfigForRepo(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
cache:
  queue_size: 8
repositories:
  "octocat/hello-world":
    queue_size: 2
    backend: redis
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigForRepo(configPath, "octocat/hello-world")
	if err != nil {
		t.Fatalf("LoadConfigForRepo failed: %v", err)
	}
	if cfg.Cache.QueueSize != 2 || cfg.Cache.Backend != BackendRedis {
		t.Errorf("Cache = %+v, want queue_size 2 and redis", cfg.Cache)
	}

	cfg, err = LoadConfigForRepo(configPath, "octocat/other")
	if err != nil {
		t.Fatalf("LoadConfigForRepo failed: %v", err)
	}
	if cfg.Cache.QueueSize != 8 || cfg.Cache.Backend != BackendSQLite {
		t.Errorf("Cache = %+v, want queue_size 8 and sqlite", cfg.Cache)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GITHUB_API_ENDPOINT", "https://custom.api.com")
	t.Setenv("ISSUE_RELAY_INSECURE_SKIP_VERIFY", "yes")
	t.Setenv("ISSUE_RELAY_CACHE_DIR", "/env/cache")
	t.Setenv("ISSUE_RELAY_CACHE_BACKEND", "REDIS")
	t.Setenv("ISSUE_RELAY_REDIS_ADDR", "cache:6380")
	t.Setenv("ISSUE_RELAY_QUEUE_SIZE", "32")
	t.Setenv("ISSUE_RELAY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.GitHub.APIEndpoint != "https://custom.api.com" {
		t.Errorf("APIEndpoint = %s, want https://custom.api.com", cfg.GitHub.APIEndpoint)
	}
	if !cfg.GitHub.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false, want true")
	}
	if cfg.Cache.Dir != "/env/cache" {
		t.Errorf("Dir = %s, want /env/cache", cfg.Cache.Dir)
	}
	if cfg.Cache.Backend != BackendRedis {
		t.Errorf("Backend = %s, want redis", cfg.Cache.Backend)
	}
	if cfg.Cache.RedisAddr != "cache:6380" {
		t.Errorf("RedisAddr = %s, want cache:6380", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.QueueSize != 32 {
		t.Errorf("QueueSize = %d, want 32", cfg.Cache.QueueSize)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "default-token")
	t.Setenv("GHE_TOKEN", "")

	cfg := DefaultConfig()
	if got := cfg.Token(); got != "default-token" {
		t.Errorf("Token() = %q, want default-token", got)
	}

	cfg.GitHub.TokenEnv = "GHE_TOKEN"
	if got := cfg.Token(); got != "default-token" {
		t.Errorf("Token() with unset custom env = %q, want fallback default-token", got)
	}

	t.Setenv("GHE_TOKEN", "enterprise-token")
	if got := cfg.Token(); got != "enterprise-token" {
		t.Errorf("Token() = %q, want enterprise-token", got)
	}
}

func TestRepoLocations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Dir = "/data/cache"

	if got := cfg.RepoCacheDir("octocat", "hello-world"); got != filepath.Join("/data/cache", "octocat_hello-world") {
		t.Errorf("RepoCacheDir() = %s", got)
	}
	if got := cfg.RedisKey("octocat", "hello-world"); got != "issue-relay:octocat_hello-world" {
		t.Errorf("RedisKey() = %s", got)
	}
}

func TestValidate(t *testing.T) {
	withChange := func(change func(*Config)) *Config {
		cfg := DefaultConfig()
		change(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{
			name:    "valid config",
			config:  DefaultConfig(),
			wantErr: "",
		},
		{
			name:    "valid redis config",
			config:  withChange(func(c *Config) { c.Cache.Backend = BackendRedis }),
			wantErr: "",
		},
		{
			name:    "empty API endpoint",
			config:  withChange(func(c *Config) { c.GitHub.APIEndpoint = "" }),
			wantErr: "GitHub API endpoint cannot be empty",
		},
		{
			name:    "negative timeout",
			config:  withChange(func(c *Config) { c.GitHub.Timeout = -time.Second }),
			wantErr: "timeout cannot be negative",
		},
		{
			name:    "unknown backend",
			config:  withChange(func(c *Config) { c.Cache.Backend = "memcached" }),
			wantErr: "unknown cache backend",
		},
		{
			name:    "empty cache dir",
			config:  withChange(func(c *Config) { c.Cache.Dir = "" }),
			wantErr: "cache directory cannot be empty",
		},
		{
			name: "empty redis address",
			config: withChange(func(c *Config) {
				c.Cache.Backend = BackendRedis
				c.Cache.RedisAddr = ""
			}),
			wantErr: "redis address cannot be empty",
		},
		{
			name:    "zero queue size",
			config:  withChange(func(c *Config) { c.Cache.QueueSize = 0 }),
			wantErr: "queue size must be positive",
		},
		{
			name:    "unknown format",
			config:  withChange(func(c *Config) { c.Output.Format = "csv" }),
			wantErr: "unknown output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() error = nil, want %s", tt.wantErr)
				} else if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("Validate() error = %v, want containing %s", err, tt.wantErr)
				}
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home := os.Getenv("HOME")
	if home == "" {
		home = os.Getenv("USERPROFILE")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandPath(tt.input); got != tt.want {
			t.Errorf("expandPath(%s) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"1", true},
		{"on", true},
		{"false", false},
		{"no", false},
		{"0", false},
		{"off", false},
		{"", false},
		{"random", false},
	}

	for _, tt := range tests {
		if got := parseBool(tt.input); got != tt.want {
			t.Errorf("parseBool(%s) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParsePositiveInt(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"50", 50, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parsePositiveInt(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePositiveInt(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePositiveInt(%s) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
