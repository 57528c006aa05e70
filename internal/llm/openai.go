package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider talks to an OpenAI-compatible chat completions endpoint.
// The same adapter serves a local ollama server and the hosted OpenAI API.
type OpenAIProvider struct {
	client  *openai.Client
	name    string
	model   string
	timeout time.Duration
}

// NewOllamaProvider creates a provider for a local ollama server. No API key
// is needed.
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OpenAIProvider {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		name:    ProviderOllama,
		model:   model,
		timeout: timeout,
	}
}

// NewOpenAIProvider creates a provider for the hosted OpenAI API.
func NewOpenAIProvider(apiKey, model string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(cfg),
		name:    ProviderOpenAI,
		model:   model,
		timeout: timeout,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.name }

// Model returns the configured model.
func (p *OpenAIProvider) Model() string { return p.model }

// Chat sends a non-streaming completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		Temperature: defaultTemperature,
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var text string
	meta := map[string]any{}
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if reason := resp.Choices[0].FinishReason; reason != "" {
			meta["finish_reason"] = string(reason)
		}
	}
	if resp.Usage.TotalTokens > 0 {
		meta["tokens_in"] = resp.Usage.PromptTokens
		meta["tokens_out"] = resp.Usage.CompletionTokens
	}

	return &Response{
		Text:     replyOrFallback(text),
		Provider: p.name,
		Model:    p.model,
		Meta:     meta,
	}, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Body: truncateBody(apiErr.Message)}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &StatusError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Body: truncateBody(body)}
	}
	return transportError(p.name, err)
}
