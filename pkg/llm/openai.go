// Package llm talks to the chat-completion endpoint that writes the answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/perbu/tactiekbot/pkg/qa"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// OpenAIChat sends prompts as a single user message to an OpenAI-compatible
// chat-completion API.
type OpenAIChat struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIChat creates a chat client. baseURL may be empty to use the public API
// endpoint.
func NewOpenAIChat(apiKey, baseURL, model string, temperature float32, maxTokens int) (*OpenAIChat, error) {
	if apiKey == "" {
		return nil, errors.New("llm: OpenAI API key is empty")
	}
	if model == "" {
		return nil, errors.New("llm: model name is empty")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIChat{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Complete returns the content of the first choice for prompt.
func (c *OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	// go-openai omits a zero temperature from the request, which makes the
	// API fall back to its default of 1.
	temperature := c.temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *OpenAIChat) Model() string {
	return c.model
}

var _ qa.Generator = (*OpenAIChat)(nil)
