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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sirseerhq/issue-relay/internal/cache"
	"github.com/sirseerhq/issue-relay/internal/config"
	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
	"github.com/sirseerhq/issue-relay/internal/github"
	"github.com/sirseerhq/issue-relay/internal/issues"
	"github.com/sirseerhq/issue-relay/internal/logging"
	"github.com/sirseerhq/issue-relay/internal/metadata"
	"github.com/sirseerhq/issue-relay/internal/metrics"
	"github.com/sirseerhq/issue-relay/internal/output"
	"github.com/sirseerhq/issue-relay/pkg/version"
)

// fetchOptions holds the fetch command's flag values.
type fetchOptions struct {
	owner        string
	repository   string
	token        string
	baseURL      string
	fromDate     string
	outputFile   string
	format       string
	cachePath    string
	cacheBackend string
	redisAddr    string
	configPath   string
	logLevel     string
	metricsFile  string
	noCache      bool
	cleanCache   bool
	fetchCache   bool
	insecure     bool

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

func newFetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <owner>/<repo>",
		Short: "Fetch the issues of a GitHub repository",
		Long: `Fetch the issues of a GitHub repository, oldest update first, and write
them as JSON to stdout or a file.

The repository is given as <owner>/<repo>, or with --owner and --repository.
For example: octocat/hello-world, kubernetes/kubernetes

Authentication is required for live fetches:
  - Use --token flag to provide token directly
  - Or set GITHUB_TOKEN (or the variable named by github.token_env)

Fetched pages are cached under the cache directory, one subdirectory per
repository. Use --fetch-cache to replay the cache instead of calling the API,
--clean-cache to start from an empty cache and --no-cache to disable it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				owner, repo, err := parseRepository(args[0])
				if err != nil {
					return err
				}
				opts.owner, opts.repository = owner, repo
			}
			opts.changed = cmd.Flags().Changed
			return runFetch(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	addFetchFlags(cmd.Flags(), &opts)
	return cmd
}

func addFetchFlags(fs *pflag.FlagSet, opts *fetchOptions) {
	fs.StringVar(&opts.owner, "owner", "", "GitHub owner (alternative to the <owner>/<repo> argument)")
	fs.StringVar(&opts.repository, "repository", "", "GitHub repository (alternative to the <owner>/<repo> argument)")
	fs.StringVar(&opts.token, "token", "", "GitHub personal access token (overrides GITHUB_TOKEN env var)")
	fs.StringVar(&opts.baseURL, "base-url", "", "GitHub API base URL, e.g. https://ghe.example.com/api/v3")
	fs.StringVar(&opts.fromDate, "from-date", "", "Fetch issues updated at or after this date (YYYY-MM-DD or RFC 3339)")
	fs.StringVar(&opts.outputFile, "output", "", "Output file path (default: stdout)")
	fs.StringVar(&opts.format, "format", "", "Output format: ndjson or pretty (default: ndjson)")

	fs.StringVar(&opts.cachePath, "cache-path", "", "Cache root directory (default: $XDG_CONFIG_HOME/issue-relay/cache)")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Do not cache fetched pages")
	fs.BoolVar(&opts.cleanCache, "clean-cache", false, "Empty the repository cache before fetching")
	fs.BoolVar(&opts.fetchCache, "fetch-cache", false, "Replay issues from the cache instead of the API")
	fs.StringVar(&opts.cacheBackend, "cache-backend", "", "Cache backend: sqlite or redis (default: sqlite)")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the redis cache backend")

	fs.BoolVar(&opts.insecure, "insecure", false, "Skip TLS certificate verification (self-hosted instances only)")
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after a successful run")
}

// runFetch executes the fetch command.
func runFetch(ctx context.Context, opts fetchOptions, stdout, stderr io.Writer) error {
	if opts.owner == "" || opts.repository == "" {
		return fmt.Errorf("repository required. Expected: <owner>/<repo> or --owner and --repository")
	}
	owner, repo := opts.owner, opts.repository

	cfg, err := loadConfig(opts, owner, repo)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	if cfg.Logging.Level != "" {
		logCfg.Level = logging.Level(cfg.Logging.Level)
	}
	logCfg.Pretty = cfg.Logging.Pretty
	logCfg.Output = stderr
	logger := logging.New(logCfg)

	from, err := parseFromDate(opts.fromDate)
	if err != nil {
		return err
	}

	token := opts.token
	if token == "" {
		token = cfg.Token()
	}
	if token == "" && !opts.fetchCache {
		return fmt.Errorf("GitHub token not found. Set %s or use --token flag: %w", cfg.GitHub.TokenEnv, relayerrors.ErrInvalidToken)
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	var writer output.RecordWriter
	if opts.outputFile == "" {
		writer = output.NewWriter(stdout, format)
	} else {
		fileWriter, fErr := output.NewFileWriter(opts.outputFile, format)
		if fErr != nil {
			return fErr
		}
		writer = fileWriter
	}
	defer writer.Close()

	var store cache.Store
	if !opts.noCache {
		store, err = openStore(ctx, cfg, owner, repo, cache.Options{Logger: &logger, Metrics: m})
		if err != nil {
			return err
		}
		defer store.Close()

		if opts.cleanCache {
			err = store.Clean(ctx)
		} else {
			err = store.Backup(ctx)
		}
		if err != nil {
			return err
		}
	}

	client := github.NewClient(owner, repo, github.Options{
		BaseURL:            cfg.GitHub.APIEndpoint,
		Token:              token,
		InsecureSkipVerify: cfg.GitHub.InsecureSkipVerify,
		Timeout:            cfg.GitHub.Timeout,
		Logger:             &logger,
		Metrics:            m,
	})
	backend := issues.NewBackend(client, store, issues.Options{
		QueueSize: cfg.Cache.QueueSize,
		Logger:    &logger,
		Metrics:   m,
	})

	tracker := metadata.New()
	err = streamIssues(ctx, backend, opts.fetchCache, from, writer, tracker)
	if err == nil {
		err = writer.Close()
	}
	if err != nil {
		logger.Error().
			Err(err).
			Str("kind", relayerrors.KindOf(err).String()).
			Msg("Fetch failed")

		if store != nil && relayerrors.ShouldRecover(err) {
			// The run context may already be canceled; recovery must still happen.
			if rerr := store.Recover(context.Background()); rerr != nil {
				logger.Error().Err(rerr).Msg("Failed to recover cache")
				return errors.Join(err, rerr)
			}
		}
		return err
	}

	stats := tracker.Stats()
	if store != nil {
		saveRunMetadata(logger, cfg, opts, owner, repo, from, tracker)
	}
	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile, registry); err != nil {
			logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics")
		}
	}

	if stats.TotalIssues > 0 {
		fmt.Fprintf(stderr, "Successfully fetched %d issues from %s/%s\n", stats.TotalIssues, owner, repo)
	} else {
		fmt.Fprintf(stderr, "No issues found in %s/%s\n", owner, repo)
	}
	return nil
}

// streamIssues writes every issue of the selected source to writer.
func streamIssues(ctx context.Context, backend *issues.Backend, fromCache bool, from time.Time, writer output.RecordWriter, tracker *metadata.Tracker) error {
	var it *issues.Iterator
	if fromCache {
		var err error
		it, err = backend.FetchFromCache(ctx)
		if err != nil {
			return err
		}
	} else {
		it = backend.Fetch(from)
	}
	defer it.Close()

	for it.Next(ctx) {
		item := it.Item()
		if err := writer.Write(item); err != nil {
			return err
		}
		tracker.RecordIssue(item.Number, item.UpdatedAt)
	}
	tracker.SetPages(it.Pages())
	return it.Err()
}

// loadConfig loads the configuration and applies the command-line flags,
// which take precedence over every other source.
func loadConfig(opts fetchOptions, owner, repo string) (*config.Config, error) {
	cfg, err := config.LoadConfigForRepo(opts.configPath, owner+"/"+repo)
	if err != nil {
		return nil, err
	}

	changed := opts.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if opts.baseURL != "" {
		cfg.GitHub.APIEndpoint = opts.baseURL
	}
	if changed("insecure") {
		cfg.GitHub.InsecureSkipVerify = opts.insecure
	}
	if opts.cachePath != "" {
		cfg.Cache.Dir = opts.cachePath
	}
	if opts.cacheBackend != "" {
		cfg.Cache.Backend = strings.ToLower(opts.cacheBackend)
	}
	if opts.redisAddr != "" {
		cfg.Cache.RedisAddr = opts.redisAddr
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.metricsFile != "" {
		cfg.Metrics.Textfile = opts.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// saveRunMetadata records the run next to the repository cache. Failures
// are logged; the issues have already been delivered.
func saveRunMetadata(logger zerolog.Logger, cfg *config.Config, opts fetchOptions, owner, repo string, from time.Time, tracker *metadata.Tracker) {
	dir := cfg.RepoCacheDir(owner, repo)

	params := metadata.FetchParams{
		Owner:        owner,
		Repository:   repo,
		BaseURL:      cfg.GitHub.APIEndpoint,
		FromCache:    opts.fetchCache,
		CacheBackend: cfg.Cache.Backend,
		CacheCleaned: opts.cleanCache,
	}
	if !from.IsZero() && !opts.fetchCache {
		since := from
		params.Since = &since
	}

	var previous *metadata.FetchRef
	if last, err := metadata.LoadLatestMetadata(dir, owner+"/"+repo); err != nil {
		logger.Warn().Err(err).Msg("Failed to load previous fetch metadata")
	} else if last != nil {
		previous = &metadata.FetchRef{
			FetchID:     last.FetchID,
			CompletedAt: last.Results.CompletedAt,
		}
	}

	md := tracker.GenerateMetadata(version.Version, params, previous)
	if err := metadata.SaveMetadata(md, dir); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("Failed to save fetch metadata")
		return
	}
	logger.Info().Str("fetch_id", md.FetchID).Str("dir", dir).Msg("Saved fetch metadata")
}

// parseRepository parses an owner/repo string into owner and repo components
func parseRepository(repoArg string) (owner, repo string, err error) {
	parts := strings.Split(repoArg, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}

	return owner, repo, nil
}

// dateLayouts are the accepted --from-date formats, tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDate parses a date in one of dateLayouts. Dates without a zone are UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q. Expected YYYY-MM-DD or RFC 3339", s)
}

// parseFromDate parses the --from-date flag. An empty value means the
// default lower bound.
func parseFromDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return parseDate(s)
}

// mapErrorToExitCode maps internal errors to appropriate exit codes
func mapErrorToExitCode(err error) int {
	if err == nil {
		return 0
	}

	// A failed write wins: the fetch itself may have been fine.
	if errors.Is(err, relayerrors.ErrSink) {
		return 5
	}

	if errors.Is(err, relayerrors.ErrCacheUnavailable) {
		return 4
	}

	if errors.Is(err, relayerrors.ErrInvalidToken) ||
		errors.Is(err, relayerrors.ErrRepoNotFound) ||
		errors.Is(err, relayerrors.ErrRateLimit) {
		return 2 // Authentication/authorization errors
	}

	if errors.Is(err, relayerrors.ErrNetworkFailure) {
		return 3 // Network errors
	}

	return 1 // General error
}
