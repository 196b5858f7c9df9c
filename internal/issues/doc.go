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

// Package issues turns raw issue pages into a stream of individual issues.
//
// The same decoder serves live fetches and cache replay, so both paths
// produce identical item sequences for identical pages. During a live fetch
// every page is flushed to the cache before any of its issues is handed to
// the caller.
package issues
