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
	"fmt"
	"regexp"
	"strconv"
)

// Citation maps an inline [n] reference to its source URL. When the API did
// not supply a source for the index, Source holds a synthesized placeholder.
type Citation struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
}

var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// ExtractInlineCitations scans text for [n] markers, deduplicates the indices
// preserving first-seen order, and resolves each 1-based index against
// apiCitations. Indices past the end of apiCitations get a "Reference n"
// placeholder. Neither input is mutated; text without markers yields an empty
// slice.
func ExtractInlineCitations(text string, apiCitations []string) []Citation {
	matches := citationMarkerPattern.FindAllStringSubmatch(text, -1)

	citations := []Citation{}
	seen := make(map[int]bool)

	for _, match := range matches {
		index, err := strconv.Atoi(match[1])
		if err != nil || index < 1 {
			continue
		}
		if seen[index] {
			continue
		}
		seen[index] = true

		source := fmt.Sprintf("Reference %d", index)
		if index <= len(apiCitations) && apiCitations[index-1] != "" {
			source = apiCitations[index-1]
		}

		citations = append(citations, Citation{Index: index, Source: source})
	}

	return citations
}
