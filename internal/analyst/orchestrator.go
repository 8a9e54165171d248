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

// Package analyst orchestrates a single analyst request: validate, build the
// prompt, call the Sonar API through the retry executor, normalize the
// response, and record the exchange in the conversation store. Normalization
// never fails; malformed model output degrades to a best-effort payload with
// the parse mode reported alongside the result.
package analyst

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kishanraj41/analyst-assist/internal/csvsum"
	"github.com/kishanraj41/analyst-assist/internal/history"
	"github.com/kishanraj41/analyst-assist/internal/normalize"
	"github.com/kishanraj41/analyst-assist/internal/resilience"
	"github.com/kishanraj41/analyst-assist/internal/sonar"
)

// Completer abstracts the Sonar client for testing.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req sonar.ChatRequest) (*sonar.ChatResponse, error)
}

// Options configures the orchestrator.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float32
	// StrictSchema requests schema-constrained JSON for CSV analysis. When
	// off, the prose response is text-mined into approaches instead.
	StrictSchema bool
	Retry        resilience.RetryConfig
}

// DefaultOptions returns the standard orchestrator settings.
func DefaultOptions() Options {
	return Options{
		Model:        sonar.DefaultModel,
		MaxTokens:    sonar.DefaultMaxTokens,
		Temperature:  0.2,
		StrictSchema: true,
		Retry:        resilience.DefaultRetryConfig(),
	}
}

// Response is the canonical payload both endpoints return. Answer is set for
// question queries, Approaches for CSV analysis; the other is omitted.
type Response struct {
	Answer      []string             `json:"answer,omitempty"`
	Approaches  []normalize.Approach `json:"approaches,omitempty"`
	Citations   []normalize.Citation `json:"citations"`
	Reasoning   []string             `json:"reasoning"`
	ParseMode   normalize.ParseMode  `json:"parseMode"`
	ChartConfig *csvsum.ChartConfig  `json:"chartConfig,omitempty"`
}

// Orchestrator drives the per-request flow.
type Orchestrator struct {
	completer Completer
	history   *history.Store
	logger    *zap.Logger
	opts      Options
}

// New creates an orchestrator. The history store is injected so its bounds
// are owned by the caller.
func New(completer Completer, store *history.Store, logger *zap.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		completer: completer,
		history:   store,
		logger:    logger,
		opts:      opts,
	}
}

// AnswerQuestion handles a free-text analyst question. Prior turns for the
// user are replayed as context and the exchange is appended to the store
// after a successful call.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, userID, question string) (*Response, error) {
	if userID == "" || question == "" {
		return nil, resilience.NewValidationError("userId and question are required")
	}

	prompt := BuildQueryPrompt(question)

	content, apiCitations, err := o.complete(ctx, userID, prompt, nil)
	if err != nil {
		return nil, resilience.NewUpstreamError("Failed to fetch response from Sonar API", err)
	}

	// Free-form parsing never fails; it degrades
	analysis, _ := normalize.ParseAnalysis(content, false)

	if analysis.Mode == normalize.ModeStrict || analysis.Mode == normalize.ModeFenced {
		citations := analysis.Citations
		if len(citations) == 0 {
			citations = normalize.ExtractInlineCitations(analysis.Answer, apiCitations)
		}
		return &Response{
			Answer:    normalize.SplitLines(normalize.StripMarkdown(analysis.Answer)),
			Citations: citations,
			Reasoning: analysis.Reasoning,
			ParseMode: analysis.Mode,
		}, nil
	}

	// Prose path: the common case for this endpoint
	stripped := normalize.StripMarkdown(content)
	return &Response{
		Answer:    normalize.SplitLines(stripped),
		Citations: normalize.ExtractInlineCitations(stripped, apiCitations),
		Reasoning: []string{
			fmt.Sprintf("Queried Sonar API with: %q", question),
			"Generated detailed response with citations.",
		},
		ParseMode: analysis.Mode,
	}, nil
}

// AnalyzeCSV handles an uploaded CSV. The file is sampled and summarized, the
// summary drives a schema-constrained analysis request, and the structured
// sections come back as approaches alongside an optional chart config.
func (o *Orchestrator) AnalyzeCSV(ctx context.Context, userID string, file io.Reader) (*Response, error) {
	if userID == "" || file == nil {
		return nil, resilience.NewValidationError("userId and file are required")
	}

	summary, err := csvsum.Summarize(file)
	if err != nil {
		return nil, resilience.NewEmptyInputError("Failed to parse CSV or empty file", err)
	}

	o.logger.Debug("Parsed CSV sample",
		zap.Strings("headers", summary.Headers),
		zap.Int("rows", len(summary.Rows)))

	prompt := BuildAnalysisPrompt(summary)

	var format *sonar.ResponseFormat
	if o.opts.StrictSchema {
		format = AnalysisResponseFormat()
	}

	content, apiCitations, err := o.complete(ctx, userID, prompt, format)
	if err != nil {
		return nil, resilience.NewUpstreamError("Failed to fetch response from Sonar API", err)
	}

	reasoning := []string{
		fmt.Sprintf("Parsed CSV with schema: %s", strings.Join(summary.Headers, ", ")),
		fmt.Sprintf("Summarized data: %s...", summaryPreview(summary)),
		"Generated detailed analysis with Sonar API",
	}

	resp := &Response{
		Reasoning:   reasoning,
		ChartConfig: summary.Chart(),
	}

	if o.opts.StrictSchema {
		report, err := normalize.ParseReport(content)
		if err != nil {
			// Schema violations are not recovered locally
			return nil, resilience.NewUpstreamError("Sonar API returned malformed structured output", err)
		}
		resp.Approaches = reportSections(report)
		resp.Citations = indexCitations(apiCitations)
		resp.ParseMode = normalize.ModeStrict
		return resp, nil
	}

	stripped := normalize.StripMarkdown(content)
	set := normalize.ParseApproaches(content)
	resp.Approaches = set.Approaches
	resp.Citations = normalize.ExtractInlineCitations(stripped, apiCitations)
	resp.ParseMode = set.Mode
	return resp, nil
}

// complete sends one chat completion through the retry executor, replaying
// the user's history as context, and appends the exchange on success.
func (o *Orchestrator) complete(ctx context.Context, userID, prompt string, format *sonar.ResponseFormat) (string, []string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
	}
	for _, turn := range o.history.History(userID) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := sonar.ChatRequest{
		Model:           o.opts.Model,
		Messages:        messages,
		MaxTokens:       o.opts.MaxTokens,
		Temperature:     o.opts.Temperature,
		ReturnCitations: true,
		ResponseFormat:  format,
	}

	var resp *sonar.ChatResponse
	err := resilience.Retry(ctx, o.logger, o.opts.Retry, func(ctx context.Context) error {
		r, err := o.completer.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	content := resp.Choices[0].Message.Content

	o.history.Append(userID, history.Turn{Role: history.RoleUser, Content: prompt})
	o.history.Append(userID, history.Turn{Role: history.RoleAssistant, Content: content})

	return content, resp.Citations, nil
}

// reportSections converts the structured report into the four presentation
// sections the browser client renders.
func reportSections(report *normalize.Report) []normalize.Approach {
	tools := report.Tools
	if len(tools) == 0 {
		tools = []string{"None specified"}
	}

	return []normalize.Approach{
		{
			Title:       "Key Insights",
			Description: joinOr(report.Insights, "No insights provided"),
			Tools:       []string{},
		},
		{
			Title:       "Business Recommendations",
			Description: joinOr(report.Recommendations, "No recommendations provided"),
			Tools:       []string{},
		},
		{
			Title:       "Analysis Methods",
			Description: joinOr(report.Methods, "No methods provided"),
			Tools:       []string{},
		},
		{
			Title:       "Future Analysis",
			Description: joinOr(report.FutureAnalysis, "No future analysis provided"),
			Tools:       tools,
		},
	}
}

func joinOr(lines []string, fallback string) string {
	if len(lines) == 0 {
		return fallback
	}
	return strings.Join(lines, "\n")
}

// indexCitations wraps raw source URLs in the canonical citation shape.
func indexCitations(apiCitations []string) []normalize.Citation {
	citations := make([]normalize.Citation, 0, len(apiCitations))
	for i, source := range apiCitations {
		citations = append(citations, normalize.Citation{Index: i + 1, Source: source})
	}
	return citations
}

// summaryPreview returns the first two summary lines for the reasoning trail.
func summaryPreview(summary *csvsum.Summary) string {
	lines := strings.Split(summary.Text(), "\n")
	if len(lines) > 2 {
		lines = lines[:2]
	}
	return strings.Join(lines, "; ")
}
