// Copyright 2025 Analyst Assist Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package csvsum samples the head of an uploaded CSV file and computes the
// per-column summary fed into the analysis prompt, plus an optional bar-chart
// configuration for datasets carrying category and revenue columns.
package csvsum

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MaxSampleRows caps how many data rows are read from an upload. The sample
// is enough for schema and trend hints without shipping the whole file to the
// model.
const MaxSampleRows = 10

// ErrNoRows is returned when the file has no parseable data rows.
var ErrNoRows = errors.New("failed to parse CSV or empty file")

// Summary holds the sampled rows and per-column aggregates for an upload.
type Summary struct {
	Headers      []string
	Rows         []map[string]string
	UniqueCounts map[string]int
	Totals       map[string]float64
}

// Summarize reads the header and up to MaxSampleRows data rows. For each
// column it counts distinct observed values (blank counts as a value) and,
// for cells that parse as numbers, accumulates a running sum.
func Summarize(r io.Reader) (*Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, ErrNoRows
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	summary := &Summary{
		Headers:      headers,
		Rows:         []map[string]string{},
		UniqueCounts: make(map[string]int),
		Totals:       make(map[string]float64),
	}

	unique := make(map[string]map[string]bool)
	for _, col := range headers {
		unique[col] = make(map[string]bool)
	}

	for len(summary.Rows) < MaxSampleRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		row := make(map[string]string, len(headers))
		for i, col := range headers {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			row[col] = value

			unique[col][value] = true
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				summary.Totals[col] += n
			}
		}
		summary.Rows = append(summary.Rows, row)
	}

	if len(summary.Rows) == 0 {
		return nil, ErrNoRows
	}

	for _, col := range headers {
		summary.UniqueCounts[col] = len(unique[col])
	}

	return summary, nil
}

// Text renders the two-line-per-column summary string included in the prompt:
// unique-value counts for every column, then totals for numeric columns, in
// header order.
func (s *Summary) Text() string {
	var b strings.Builder

	for i, col := range s.Headers {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %d unique values", col, s.UniqueCounts[col])
	}

	for _, col := range s.Headers {
		if total, ok := s.Totals[col]; ok {
			fmt.Fprintf(&b, "\n%s: total %s", col, strconv.FormatFloat(total, 'f', -1, 64))
		}
	}

	return b.String()
}

// HasColumn reports whether the header set includes the named column.
func (s *Summary) HasColumn(name string) bool {
	for _, col := range s.Headers {
		if col == name {
			return true
		}
	}
	return false
}
