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

package issues

import (
	"encoding/json"
	"fmt"
	"math"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
)

// Item is one issue decoded from a page. Raw holds the issue exactly as the
// server sent it; the other fields are read from it for bookkeeping.
type Item struct {
	ID        int64
	Number    int
	UpdatedAt string
	Raw       json.RawMessage
}

// MarshalJSON returns the issue's original bytes.
func (i Item) MarshalJSON() ([]byte, error) {
	if len(i.Raw) == 0 {
		return []byte("null"), nil
	}
	return i.Raw, nil
}

// itemHeader holds the bookkeeping fields of an issue undecoded, so a field
// with an unexpected type never rejects the issue itself.
type itemHeader struct {
	ID        json.RawMessage `json:"id"`
	Number    json.RawMessage `json:"number"`
	UpdatedAt json.RawMessage `json:"updated_at"`
}

// Decode splits a page into its issues, in page order. A page holding JSON
// null decodes to no issues. A page that is not a JSON array fails with
// ErrDecode. Elements are passed through as sent; ID, Number and UpdatedAt
// stay zero when an element is not an object or a field does not parse.
func Decode(page string) ([]Item, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(page), &raws); err != nil {
		return nil, fmt.Errorf("%w: %w", relayerrors.ErrDecode, err)
	}

	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		item := Item{Raw: raw}
		var h itemHeader
		if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &h) == nil {
			item.ID, _ = intField(h.ID)
			number, _ := intField(h.Number)
			item.Number = int(number)
			_ = json.Unmarshal(h.UpdatedAt, &item.UpdatedAt)
		}
		items = append(items, item)
	}
	return items, nil
}

// intField reads an integral JSON number, accepting exponent forms such as
// 1e3. Anything else reports false.
func intField(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
