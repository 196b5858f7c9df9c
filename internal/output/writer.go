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

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	relayerrors "github.com/sirseerhq/issue-relay/internal/errors"
)

// Format selects how records are rendered.
type Format string

const (
	FormatNDJSON Format = "ndjson"
	FormatPretty Format = "pretty"
)

// ParseFormat validates a format name. An empty name means FormatNDJSON.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatNDJSON:
		return FormatNDJSON, nil
	case FormatPretty:
		return FormatPretty, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want %q or %q)", name, FormatNDJSON, FormatPretty)
	}
}

// Writer streams records to an io.Writer or file.
// It is safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	output    io.Writer
	format    Format
	count     int
	closeFunc func() error
}

// NewWriter creates a writer that renders records in format to w.
func NewWriter(w io.Writer, format Format) *Writer {
	if format == "" {
		format = FormatNDJSON
	}
	return &Writer{
		output: w,
		format: format,
	}
}

// NewFileWriter creates a writer that renders records in format to a new
// file. The caller must call Close when done.
func NewFileWriter(filename string, format Format) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file (%w): %w", relayerrors.ErrSink, err)
	}

	w := NewWriter(file, format)
	w.closeFunc = file.Close
	return w, nil
}

// Write renders a single record and writes it in one call to the sink.
func (w *Writer) Write(record interface{}) error {
	data, err := w.render(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.output.Write(data); err != nil {
		return fmt.Errorf("failed to write record (%w): %w", relayerrors.ErrSink, err)
	}
	w.count++
	return nil
}

func (w *Writer) render(record interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if w.format != FormatPretty {
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	// Round-trip through a generic value so object keys come out sorted.
	// UseNumber keeps numbers exactly as they were written.
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	enc.SetIndent("", "    ")
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close closes the underlying file, if the writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closeFunc == nil {
		return nil
	}
	closeFn := w.closeFunc
	w.closeFunc = nil
	if err := closeFn(); err != nil {
		return fmt.Errorf("failed to close output (%w): %w", relayerrors.ErrSink, err)
	}
	return nil
}
