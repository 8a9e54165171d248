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

package csvsum

import "strconv"

const (
	categoryColumn = "category"
	revenueColumn  = "revenue"
)

// chartPalette is the fixed five-color palette, cycled when the dataset has
// more than five categories. The colors match the browser client's theme.
var chartPalette = []string{"#FF007A", "#00D4FF", "#9D00FF", "#FFD700", "#E6E6FA"}

// ChartConfig is a Chart.js-shaped bar chart description rendered directly by
// the browser client.
type ChartConfig struct {
	Type    string         `json:"type"`
	Data    ChartData      `json:"data"`
	Options map[string]any `json:"options"`
}

// ChartData holds the chart labels and datasets.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one plotted series.
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderColor     []string  `json:"borderColor"`
	BorderWidth     int       `json:"borderWidth"`
}

// Chart builds a revenue-by-category bar chart when the sampled columns
// include both "category" and "revenue"; otherwise it returns nil. Revenue is
// summed per distinct category in first-seen row order, with unparsable
// entries treated as zero and blank categories bucketed as "Unknown".
func (s *Summary) Chart() *ChartConfig {
	if len(s.Rows) == 0 || !s.HasColumn(categoryColumn) || !s.HasColumn(revenueColumn) {
		return nil
	}

	labels := []string{}
	totals := make(map[string]float64)

	for _, row := range s.Rows {
		category := row[categoryColumn]
		if category == "" {
			category = "Unknown"
		}
		if _, seen := totals[category]; !seen {
			labels = append(labels, category)
		}

		revenue, err := strconv.ParseFloat(row[revenueColumn], 64)
		if err != nil {
			revenue = 0
		}
		totals[category] += revenue
	}

	data := make([]float64, len(labels))
	colors := make([]string, len(labels))
	for i, label := range labels {
		data[i] = totals[label]
		colors[i] = chartPalette[i%len(chartPalette)]
	}

	return &ChartConfig{
		Type: "bar",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{{
				Label:           "Revenue by Category ($)",
				Data:            data,
				BackgroundColor: colors,
				BorderColor:     colors,
				BorderWidth:     1,
			}},
		},
		Options: map[string]any{
			"animation":  false,
			"responsive": true,
			"plugins": map[string]any{
				"legend": map[string]any{"display": true},
				"title": map[string]any{
					"display": true,
					"text":    "Revenue by Category",
				},
			},
			"scales": map[string]any{
				"y": map[string]any{"beginAtZero": true},
			},
		},
	}
}
