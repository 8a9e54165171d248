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

// Package sonar implements the HTTP client for the Perplexity Sonar chat
// completions API. The wire format is OpenAI-compatible, so requests reuse
// the go-openai message type, but Sonar extends the response with a
// top-level citations array that the stock SDK cannot decode. The client
// is hand-rolled for that reason.
package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the Perplexity API endpoint
	DefaultBaseURL = "https://api.perplexity.ai"
	// DefaultModel is the Sonar model used for analyst queries
	DefaultModel = "sonar-pro"
	// DefaultMaxTokens caps the completion length
	DefaultMaxTokens = 4096
	// DefaultTimeout bounds a single completion round trip
	DefaultTimeout = 2 * time.Minute
)

// ChatRequest is a Sonar chat completion request. ReturnCitations asks the
// API to resolve inline [n] markers against real source URLs.
type ChatRequest struct {
	Model           string                         `json:"model"`
	Messages        []openai.ChatCompletionMessage `json:"messages"`
	MaxTokens       int                            `json:"max_tokens,omitempty"`
	Temperature     float32                        `json:"temperature,omitempty"`
	ReturnCitations bool                           `json:"return_citations"`
	ResponseFormat  *ResponseFormat                `json:"response_format,omitempty"`
}

// ResponseFormat requests schema-constrained JSON output.
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names and carries the schema the completion must satisfy.
type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// ChatResponse is the subset of the Sonar response the service consumes.
// Citations is the top-level source URL list, indexed by the inline [n]
// markers in the content (n is one-based).
type ChatResponse struct {
	ID        string   `json:"id"`
	Model     string   `json:"model"`
	Citations []string `json:"citations"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int                          `json:"index"`
	FinishReason string                       `json:"finish_reason"`
	Message      openai.ChatCompletionMessage `json:"message"`
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is a non-2xx response from the Sonar API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sonar API error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to the Sonar chat completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets a custom round-trip timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a Sonar API client. The API key is required; startup
// should fail before a client without one is constructed.
func NewClient(apiKey string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("sonar API key is required")
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// CreateChatCompletion sends a chat completion request and decodes the
// response, including the Sonar citations array.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	c.logger.Debug("Sending Sonar chat completion request",
		zap.String("model", req.Model),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("structured", req.ResponseFormat != nil),
	)

	resp, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode Sonar response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from Sonar")
	}

	c.logger.Debug("Sonar chat completion succeeded",
		zap.String("finish_reason", chatResp.Choices[0].FinishReason),
		zap.Int("citation_count", len(chatResp.Citations)),
		zap.Int("total_tokens", chatResp.Usage.TotalTokens),
	)

	return &chatResp, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.parseError(resp)
	}

	return resp, nil
}

func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "unreadable error body"}
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	c.logger.Warn("Sonar API returned an error",
		zap.Int("status_code", resp.StatusCode),
		zap.String("message", message),
	)

	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
