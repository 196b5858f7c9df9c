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

// Package cache persists raw issue pages so a fetch can later be replayed
// without network access.
//
// A Store is an append-only log of opaque page payloads. Pages are replayed
// in the order they were appended, and every Append is all-or-nothing: a
// page is either durable in full or absent. Before a run the caller takes a
// Backup; if the run fails, Recover puts the log back to that snapshot.
//
// Two stores are provided:
//   - SQLiteStore, a single database file per repository (the default)
//   - RedisStore, a Redis list per repository
//
// The Queue sits between the fetcher and a Store. Pages are enqueued as they
// arrive and flushed to the Store before any issue decoded from them is
// handed to the consumer.
//
// Stores are not safe for use by more than one process at a time.
package cache
