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

// Package main implements the issue-relay command-line interface.
// The tool fetches every issue of a GitHub repository, oldest update first,
// and writes them as JSON to stdout or a file. Fetched pages are cached so
// a later run can replay them without touching the API.
//
// Usage:
//
//	issue-relay fetch <owner>/<repo> [flags]
//
// Example:
//
//	export GITHUB_TOKEN=your_token
//	issue-relay fetch octocat/hello-world --from-date 2015-01-01 --output issues.ndjson
//	issue-relay fetch octocat/hello-world --fetch-cache --format pretty
//
// Before each run the repository cache is backed up (or, with
// --clean-cache, emptied). If the run fails for any reason other than a
// failed output write, the cache is rolled back to that backup.
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication, not found or rate limit error
//   - 3: Network error
//   - 4: Cache unavailable
//   - 5: Output write failed
package main
