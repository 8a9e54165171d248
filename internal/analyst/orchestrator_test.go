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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kishanraj41/analyst-assist/internal/history"
	"github.com/kishanraj41/analyst-assist/internal/normalize"
	"github.com/kishanraj41/analyst-assist/internal/resilience"
	"github.com/kishanraj41/analyst-assist/internal/sonar"
)

type fakeCompleter struct {
	requests []sonar.ChatRequest
	respond  func(req sonar.ChatRequest) (*sonar.ChatResponse, error)
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req sonar.ChatRequest) (*sonar.ChatResponse, error) {
	f.requests = append(f.requests, req)
	return f.respond(req)
}

func textResponse(content string, citations ...string) *sonar.ChatResponse {
	return &sonar.ChatResponse{
		Citations: citations,
		Choices: []sonar.Choice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func newTestOrchestrator(completer Completer) *Orchestrator {
	opts := DefaultOptions()
	opts.Retry = resilience.RetryConfig{MaxAttempts: 3, Delay: 0}
	return New(completer, history.NewStore(history.DefaultConfig()), zap.NewNop(), opts)
}

func TestAnswerQuestionValidation(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{})

	for _, tc := range []struct{ userID, question string }{
		{"", "why"},
		{"alice", ""},
		{"", ""},
	} {
		_, err := o.AnswerQuestion(context.Background(), tc.userID, tc.question)

		var serviceErr *resilience.ServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, resilience.ErrorCodeValidation, serviceErr.Code)
		assert.Equal(t, 400, serviceErr.StatusCode)
	}
}

func TestAnswerQuestionProse(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse(
				"**Returns** are driven by device mix [1].\n\nMobile return rates are higher [2].",
				"https://example.com/a", "https://example.com/b",
			), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnswerQuestion(context.Background(), "alice", "What drives returns?")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"Returns are driven by device mix [1].",
		"Mobile return rates are higher [2].",
	}, resp.Answer)
	assert.Equal(t, []normalize.Citation{
		{Index: 1, Source: "https://example.com/a"},
		{Index: 2, Source: "https://example.com/b"},
	}, resp.Citations)
	assert.Equal(t, normalize.ModeDegraded, resp.ParseMode)
	require.Len(t, resp.Reasoning, 2)
	assert.Contains(t, resp.Reasoning[0], "What drives returns?")

	// One call, system prompt first, question wrapped with guidance
	require.Len(t, completer.requests, 1)
	messages := completer.requests[0].Messages
	require.Len(t, messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, SystemPrompt, messages[0].Content)
	assert.Contains(t, messages[1].Content, "What drives returns?")
	assert.True(t, completer.requests[0].ReturnCitations)
}

func TestAnswerQuestionStructuredJSON(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse("```json\n{\"answer\":\"x\",\"citations\":[],\"reasoning\":[\"direct\"]}\n```"), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnswerQuestion(context.Background(), "alice", "q")

	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, resp.Answer)
	assert.Equal(t, []string{"direct"}, resp.Reasoning)
	assert.Equal(t, normalize.ModeFenced, resp.ParseMode)
}

func TestAnswerQuestionReplaysHistory(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse("Answer."), nil
		},
	}
	o := newTestOrchestrator(completer)

	_, err := o.AnswerQuestion(context.Background(), "alice", "first question")
	require.NoError(t, err)

	_, err = o.AnswerQuestion(context.Background(), "alice", "follow-up")
	require.NoError(t, err)

	require.Len(t, completer.requests, 2)
	// Second request carries the first exchange between system and new prompt
	messages := completer.requests[1].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, messages[1].Role)
	assert.Contains(t, messages[1].Content, "first question")
	assert.Equal(t, openai.ChatMessageRoleAssistant, messages[2].Role)
	assert.Equal(t, "Answer.", messages[2].Content)
	assert.Contains(t, messages[3].Content, "follow-up")
}

func TestAnswerQuestionHistoryIsolatedPerUser(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse("Answer."), nil
		},
	}
	o := newTestOrchestrator(completer)

	_, err := o.AnswerQuestion(context.Background(), "alice", "alice question")
	require.NoError(t, err)

	_, err = o.AnswerQuestion(context.Background(), "bob", "bob question")
	require.NoError(t, err)

	require.Len(t, completer.requests, 2)
	assert.Len(t, completer.requests[1].Messages, 2)
}

func TestAnswerQuestionUpstreamFailure(t *testing.T) {
	upstreamErr := errors.New("connection refused")
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return nil, upstreamErr
		},
	}
	o := newTestOrchestrator(completer)

	_, err := o.AnswerQuestion(context.Background(), "alice", "q")

	var serviceErr *resilience.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, resilience.ErrorCodeUpstream, serviceErr.Code)
	assert.Equal(t, 500, serviceErr.StatusCode)
	assert.ErrorIs(t, err, upstreamErr)

	// Full retry budget spent before giving up
	assert.Len(t, completer.requests, 3)

	// Failed exchanges are not recorded
	_, err = o.AnswerQuestion(context.Background(), "alice", "q")
	require.Error(t, err)
	assert.Len(t, completer.requests[3].Messages, 2)
}

func TestAnswerQuestionRecoversWithinRetryBudget(t *testing.T) {
	calls := 0
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return textResponse("Recovered."), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnswerQuestion(context.Background(), "alice", "q")

	require.NoError(t, err)
	assert.Equal(t, []string{"Recovered."}, resp.Answer)
	assert.Equal(t, 3, calls)
}

const sampleCSV = "category,revenue\nA,10\nB,5\nA,3\n"

func TestAnalyzeCSVStructured(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(req sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse(
				`{"insights":["Category A leads revenue"],"recommendations":["Promote A"],"methods":["aggregation"],"future_analysis":["ANOVA in PySpark"],"tools":["PySpark","Tableau"]}`,
				"https://example.com/a",
			), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Len(t, resp.Approaches, 4)
	assert.Equal(t, "Key Insights", resp.Approaches[0].Title)
	assert.Equal(t, "Category A leads revenue", resp.Approaches[0].Description)
	assert.Equal(t, "Future Analysis", resp.Approaches[3].Title)
	assert.Equal(t, []string{"PySpark", "Tableau"}, resp.Approaches[3].Tools)
	assert.Equal(t, []normalize.Citation{{Index: 1, Source: "https://example.com/a"}}, resp.Citations)
	assert.Equal(t, normalize.ModeStrict, resp.ParseMode)

	require.NotNil(t, resp.ChartConfig)
	assert.Equal(t, []string{"A", "B"}, resp.ChartConfig.Data.Labels)
	assert.Equal(t, []float64{13, 5}, resp.ChartConfig.Data.Datasets[0].Data)

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	assert.Equal(t, AnalysisSchemaName, req.ResponseFormat.JSONSchema.Name)
	assert.Contains(t, req.Messages[1].Content, "category, revenue")
	assert.Contains(t, req.Messages[1].Content, "revenue: total 18")
}

func TestAnalyzeCSVStructuredEmptySections(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse(`{"insights":[],"recommendations":[],"methods":[],"future_analysis":[],"tools":[]}`), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader(sampleCSV))

	require.NoError(t, err)
	assert.Equal(t, "No insights provided", resp.Approaches[0].Description)
	assert.Equal(t, "No recommendations provided", resp.Approaches[1].Description)
	assert.Equal(t, []string{"None specified"}, resp.Approaches[3].Tools)
}

func TestAnalyzeCSVMalformedStructuredOutput(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse("not json at all"), nil
		},
	}
	o := newTestOrchestrator(completer)

	_, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader(sampleCSV))

	var serviceErr *resilience.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, resilience.ErrorCodeUpstream, serviceErr.Code)
	assert.Equal(t, 500, serviceErr.StatusCode)
}

func TestAnalyzeCSVHeuristicMode(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse("**1. Revenue Concentration**\nApproach: Aggregate revenue per category.\nTools: PySpark, Tableau\nReasoning: Category A dominates."), nil
		},
	}
	opts := DefaultOptions()
	opts.StrictSchema = false
	opts.Retry = resilience.RetryConfig{MaxAttempts: 1, Delay: 0}
	o := New(completer, history.NewStore(history.DefaultConfig()), zap.NewNop(), opts)

	resp, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader(sampleCSV))

	require.NoError(t, err)
	assert.Nil(t, completer.requests[0].ResponseFormat)
	require.Len(t, resp.Approaches, 1)
	assert.Equal(t, "Revenue Concentration", resp.Approaches[0].Title)
	assert.Equal(t, []string{"PySpark", "Tableau"}, resp.Approaches[0].Tools)
	assert.Equal(t, normalize.ModeHeuristic, resp.ParseMode)
}

func TestAnalyzeCSVEmptyFile(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			t.Fatal("completer must not be called for an empty file")
			return nil, nil
		},
	}
	o := newTestOrchestrator(completer)

	_, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader("category,revenue\n"))

	var serviceErr *resilience.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, resilience.ErrorCodeEmptyInput, serviceErr.Code)
	assert.Equal(t, 500, serviceErr.StatusCode)
	assert.Equal(t, "Failed to parse CSV or empty file", serviceErr.Message)
}

func TestAnalyzeCSVValidation(t *testing.T) {
	o := newTestOrchestrator(&fakeCompleter{})

	_, err := o.AnalyzeCSV(context.Background(), "", strings.NewReader(sampleCSV))

	var serviceErr *resilience.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, resilience.ErrorCodeValidation, serviceErr.Code)

	_, err = o.AnalyzeCSV(context.Background(), "alice", nil)
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, resilience.ErrorCodeValidation, serviceErr.Code)
}

func TestAnalyzeCSVNoChartWithoutRevenueColumns(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(sonar.ChatRequest) (*sonar.ChatResponse, error) {
			return textResponse(`{"insights":["i"],"recommendations":["r"],"methods":["m"],"future_analysis":["f"],"tools":["t"]}`), nil
		},
	}
	o := newTestOrchestrator(completer)

	resp, err := o.AnalyzeCSV(context.Background(), "alice", strings.NewReader("region,sales\nEU,10\n"))

	require.NoError(t, err)
	assert.Nil(t, resp.ChartConfig)
}
