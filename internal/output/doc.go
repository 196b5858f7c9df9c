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

// Package output writes fetched issues to a sink, one record at a time.
//
// Two formats are supported. FormatNDJSON writes each record as a compact
// JSON object on its own line. FormatPretty writes each record indented by
// four spaces with object keys sorted, followed by a newline.
//
// Writes are never buffered across records, so a consumer reading the sink
// sees every issue as soon as it has been fetched. Any failure to write to
// the sink is reported wrapped in errors.ErrSink so callers can tell it
// apart from fetch failures.
//
// Example usage:
//
//	w, err := output.NewFileWriter("issues.json", output.FormatNDJSON)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	for it.Next(ctx) {
//	    if err := w.Write(it.Item()); err != nil {
//	        return err
//	    }
//	}
package output
