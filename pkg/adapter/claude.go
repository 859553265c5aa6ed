package adapter

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
)

// ClaudeMessages is the subset of the Messages API the client uses
type ClaudeMessages interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// ClaudeClient answers single-turn prompts through the Messages API
type ClaudeClient struct {
	messages  ClaudeMessages
	model     anthropic.Model
	maxTokens int64
}

type ClaudeOption func(*ClaudeClient)

// WithClaudeModel sets the model name
func WithClaudeModel(model string) ClaudeOption {
	return func(c *ClaudeClient) {
		c.model = anthropic.Model(model)
	}
}

// WithClaudeMaxTokens sets the max tokens of one answer
func WithClaudeMaxTokens(n int64) ClaudeOption {
	return func(c *ClaudeClient) {
		c.maxTokens = n
	}
}

// WithClaudeMessages replaces the Messages API, mainly for tests
func WithClaudeMessages(m ClaudeMessages) ClaudeOption {
	return func(c *ClaudeClient) {
		c.messages = m
	}
}

// NewClaude creates a new Claude API client
func NewClaude(apiKey string, opts ...ClaudeOption) *ClaudeClient {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	c := &ClaudeClient{
		messages:  &client.Messages,
		model:     anthropic.Model("claude-sonnet-4-5"),
		maxTokens: 2048,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt with the system instruction and returns the text answer
func (c *ClaudeClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call Claude", goerr.V("model", c.model))
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	if b.Len() == 0 {
		return "", goerr.New("no text in Claude response", goerr.V("stop_reason", resp.StopReason))
	}
	return b.String(), nil
}
