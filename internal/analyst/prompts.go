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

package analyst

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kishanraj41/analyst-assist/internal/csvsum"
	"github.com/kishanraj41/analyst-assist/internal/sonar"
)

// SystemPrompt sets the data-analyst persona and the raw-URL citation format
// for every conversation.
const SystemPrompt = "You are an expert data analyst. Provide detailed, actionable insights with clear reasoning. Return citations as raw URLs corresponding to inline references (e.g., [1])."

// AnalysisSchemaName identifies the structured output schema for CSV analysis.
const AnalysisSchemaName = "ecommerce_analysis"

// BuildQueryPrompt wraps a free-text question with response guidance.
func BuildQueryPrompt(question string) string {
	return question + "\nProvide a detailed response with specific examples. Return citations as raw URLs corresponding to inline references (e.g., [1])."
}

// BuildAnalysisPrompt renders the CSV analysis prompt from the sampled data.
func BuildAnalysisPrompt(summary *csvsum.Summary) string {
	sampleData, err := json.MarshalIndent(summary.Rows, "", "  ")
	if err != nil {
		sampleData = []byte("[]")
	}

	var b strings.Builder
	b.WriteString("You are a data analyst analyzing an e-commerce CSV dataset.\n")
	fmt.Fprintf(&b, "- Columns: %s\n", strings.Join(summary.Headers, ", "))
	fmt.Fprintf(&b, "- Sample data (up to %d rows): %s\n", csvsum.MaxSampleRows, sampleData)
	fmt.Fprintf(&b, "- Summary: %s\n", summary.Text())
	b.WriteString(`Provide a detailed analysis with:
- Insights: Specific trends, patterns, or outliers (e.g., revenue by category, payment method distribution, return rates by device or country, seasonal trends in order_date).
- Recommendations: Actionable business strategies (e.g., optimize shipping for high-cost regions, target high-return devices, promote popular payment methods).
- Analysis Methods: Methods used (e.g., aggregation, frequency analysis).
- Future Analysis: Detailed methods with best practices (e.g., ANOVA in PySpark for category revenue, k-means clustering in scikit-learn for customer segmentation, interactive Tableau dashboards with filters).
- Tools: Tools for future analysis (e.g., PySpark, Tableau, scikit-learn).
Ensure each section is comprehensive with specific examples. Return citations as raw URLs corresponding to inline references (e.g., [1]).
Return a JSON object matching the schema provided in the response_format.`)

	return b.String()
}

// AnalysisResponseFormat is the schema-constrained output request for the CSV
// analysis endpoint. Every section is a string array and no extra properties
// are permitted.
func AnalysisResponseFormat() *sonar.ResponseFormat {
	items := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}

	return &sonar.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &sonar.JSONSchema{
			Name: AnalysisSchemaName,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"insights":        items,
					"recommendations": items,
					"methods":         items,
					"future_analysis": items,
					"tools":           items,
				},
				"required":             []string{"insights", "recommendations", "methods", "future_analysis", "tools"},
				"additionalProperties": false,
			},
		},
	}
}
