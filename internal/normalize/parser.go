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

package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseMode records how much structure the parser could recover, so callers
// can distinguish a fully structured result from a best-effort one.
type ParseMode string

const (
	// ModeStrict means the payload parsed as JSON with no preprocessing
	ModeStrict ParseMode = "strict"
	// ModeFenced means the payload parsed after removing a ```json fence
	ModeFenced ParseMode = "fenced"
	// ModeDegraded means parsing failed and the raw text was wrapped as-is
	ModeDegraded ParseMode = "degraded"
	// ModeHeuristic means structure was text-mined from prose
	ModeHeuristic ParseMode = "heuristic"
)

// DegradedReasoning is the reasoning line attached to fallback records.
const DegradedReasoning = "Unable to parse reasoning; raw response provided"

// Analysis is the canonical record for a single-answer response.
type Analysis struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Reasoning []string   `json:"reasoning"`
	Mode      ParseMode  `json:"-"`
}

// Report is the schema-constrained payload requested for CSV analysis.
type Report struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	Methods         []string `json:"methods"`
	FutureAnalysis  []string `json:"future_analysis"`
	Tools           []string `json:"tools"`
}

// ParseAnalysis interprets raw model output. In strict mode the payload must
// be valid JSON; a parse failure is a hard error because a schema-constrained
// request is not expected to violate its schema. In free-form mode a
// surrounding ```json fence is stripped before parsing, and on failure the
// function degrades to a fallback record wrapping the raw text. The free-form
// path never returns an error.
func ParseAnalysis(raw string, strictSchema bool) (*Analysis, error) {
	if strictSchema {
		var analysis Analysis
		if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
			return nil, fmt.Errorf("schema-constrained response is not valid JSON: %w", err)
		}
		analysis.Mode = ModeStrict
		normalizeAnalysis(&analysis)
		return &analysis, nil
	}

	stripped, fenced := StripFence(raw)

	var analysis Analysis
	if err := json.Unmarshal([]byte(stripped), &analysis); err == nil {
		analysis.Mode = ModeStrict
		if fenced {
			analysis.Mode = ModeFenced
		}
		normalizeAnalysis(&analysis)
		return &analysis, nil
	}

	// Terminal recovery path for malformed model output.
	return &Analysis{
		Answer:    raw,
		Citations: []Citation{},
		Reasoning: []string{DegradedReasoning},
		Mode:      ModeDegraded,
	}, nil
}

// ParseReport parses the schema-constrained CSV analysis payload. A fence is
// tolerated because some models wrap even schema output in a code block.
func ParseReport(raw string) (*Report, error) {
	stripped, _ := StripFence(raw)

	var report Report
	if err := json.Unmarshal([]byte(stripped), &report); err != nil {
		return nil, fmt.Errorf("schema-constrained response is not valid JSON: %w", err)
	}
	return &report, nil
}

// StripFence removes a leading ```json (or bare ```) line and a trailing ```
// from raw, reporting whether a fence was present.
func StripFence(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed, false
	}

	body := strings.TrimPrefix(trimmed, "```json")
	if body == trimmed {
		body = strings.TrimPrefix(trimmed, "```")
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body), true
}

// normalizeAnalysis replaces nil slices so the JSON contract always carries
// arrays, never null.
func normalizeAnalysis(a *Analysis) {
	if a.Citations == nil {
		a.Citations = []Citation{}
	}
	if a.Reasoning == nil {
		a.Reasoning = []string{}
	}
}

// SplitLines breaks answer text into trimmed, non-empty lines for the
// formatted answer array returned to the client.
func SplitLines(text string) []string {
	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
