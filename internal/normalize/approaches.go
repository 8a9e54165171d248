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
	"regexp"
	"strings"
)

// Approach is one analysis approach mined from loosely formatted prose.
type Approach struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
}

// ApproachSet is the result of the multi-approach extraction. Mode is always
// ModeHeuristic: the structure was recovered by pattern matching, not schema.
type ApproachSet struct {
	Approaches []Approach `json:"approaches"`
	Mode       ParseMode  `json:"-"`
}

// Numbered bold headings open each approach segment: "**1. Title**" or
// "1. **Title**" or a bare "1. Title" line.
var approachHeadingPattern = regexp.MustCompile(`(?m)^\s*(?:\*\*\s*)?\d+[.)]\s*(.+?)\s*$`)

var (
	approachLabelPattern  = regexp.MustCompile(`(?is)approach:\s*(.+?)\s*(?:\n\s*(?:tools|reasoning):|\z)`)
	toolsLabelPattern     = regexp.MustCompile(`(?is)tools:\s*(.+?)\s*(?:\n\s*(?:approach|reasoning):|\z)`)
	reasoningLabelPattern = regexp.MustCompile(`(?is)reasoning:\s*(.+?)\s*(?:\n\s*(?:approach|tools):|\z)`)
)

// ParseApproaches splits raw text into per-approach segments on numbered bold
// headings and mines "Approach:"/"Tools:"/"Reasoning:" subsections out of each
// segment. Any absent subsection yields an empty string or list. The function
// never fails; text with no recognizable headings yields an empty set.
func ParseApproaches(raw string) *ApproachSet {
	set := &ApproachSet{
		Approaches: []Approach{},
		Mode:       ModeHeuristic,
	}

	headings := approachHeadingPattern.FindAllStringSubmatchIndex(raw, -1)
	for i, heading := range headings {
		title := strings.Trim(raw[heading[2]:heading[3]], "* \t")

		segmentStart := heading[1]
		segmentEnd := len(raw)
		if i+1 < len(headings) {
			segmentEnd = headings[i+1][0]
		}
		segment := raw[segmentStart:segmentEnd]

		description := firstSubmatch(approachLabelPattern, segment)
		reasoning := firstSubmatch(reasoningLabelPattern, segment)
		if description == "" {
			description = reasoning
		} else if reasoning != "" {
			description = description + "\n" + reasoning
		}

		set.Approaches = append(set.Approaches, Approach{
			Title:       StripMarkdown(title),
			Description: StripMarkdown(strings.TrimSpace(description)),
			Tools:       splitToolList(firstSubmatch(toolsLabelPattern, segment)),
		})
	}

	return set
}

func firstSubmatch(pattern *regexp.Regexp, text string) string {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// splitToolList breaks a mined tools subsection into individual tool names,
// accepting comma-separated runs and bulleted lines.
func splitToolList(text string) []string {
	tools := []string{}
	if text == "" {
		return tools
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• \t"))
		if line == "" {
			continue
		}
		for _, item := range strings.Split(line, ",") {
			item = strings.TrimSpace(StripMarkdown(item))
			item = strings.TrimSuffix(item, ".")
			if item != "" {
				tools = append(tools, item)
			}
		}
	}

	return tools
}
