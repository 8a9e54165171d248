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

// Package normalize turns free-form Sonar model output into the stable JSON
// contract returned to the browser client: markdown stripping, inline citation
// extraction, and strict/degraded response parsing.
package normalize

import "regexp"

// The model emits light markdown even when asked for plain text. These
// constructs do not recursively nest in practice, so one pass of independent
// substitutions is enough. Bold runs first so that "**x**" does not leave
// stray single asterisks for the emphasis pass.
var (
	boldPattern      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnderPattern = regexp.MustCompile(`__(.*?)__`)
	emphasisPattern  = regexp.MustCompile(`\*(.*?)\*`)
	emphUnderPattern = regexp.MustCompile(`_(.*?)_`)
	imagePattern     = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	headingPattern   = regexp.MustCompile(`#+\s`)
)

// StripMarkdown removes emphasis markers (keeping the inner text), image
// embeds (removed entirely), and heading markers (leaving the heading text).
func StripMarkdown(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = boldUnderPattern.ReplaceAllString(text, "$1")
	text = emphasisPattern.ReplaceAllString(text, "$1")
	text = emphUnderPattern.ReplaceAllString(text, "$1")
	text = imagePattern.ReplaceAllString(text, "")
	text = headingPattern.ReplaceAllString(text, "")
	return text
}
