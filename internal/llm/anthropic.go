package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 1024

// AnthropicProvider is the Anthropic Messages API provider.
type AnthropicProvider struct {
	client  *anthropic.Client
	model   string
	timeout time.Duration
}

// NewAnthropicProvider creates an Anthropic provider. The key is required.
func NewAnthropicProvider(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &AnthropicProvider{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Model returns the configured model.
func (p *AnthropicProvider) Model() string { return p.model }

// Chat sends the conversation as alternating user and assistant turns.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	turns := anthropicTurns(messages)
	params := make([]anthropic.MessageParam, len(turns))
	for i, msg := range turns {
		params[i] = anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		}
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(p.model),
		MaxTokens:   anthropic.F(int64(anthropicMaxTokens)),
		Messages:    anthropic.F(params),
		Temperature: anthropic.F(defaultTemperature),
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &StatusError{
				Provider:   ProviderAnthropic,
				StatusCode: apiErr.StatusCode,
				Body:       truncateBody(apiErr.Error()),
			}
		}
		return nil, transportError(ProviderAnthropic, err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			b.WriteString(block.Text)
		}
	}

	return &Response{
		Text:     replyOrFallback(strings.TrimSpace(b.String())),
		Provider: ProviderAnthropic,
		Model:    p.model,
		Meta: map[string]any{
			"stop_reason": string(resp.StopReason),
			"tokens_in":   resp.Usage.InputTokens,
			"tokens_out":  resp.Usage.OutputTokens,
		},
	}, nil
}

// anthropicTurns folds system text into the first user turn and merges
// consecutive turns with the same role. The result always starts with a
// user turn.
func anthropicTurns(messages []Message) []Message {
	var system []string
	var turns []Message
	for _, m := range messages {
		role := m.Role
		switch role {
		case "system":
			system = append(system, m.Content)
			continue
		case "user":
		default:
			role = "assistant"
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		turns = append(turns, Message{Role: role, Content: m.Content})
	}

	if len(turns) == 0 || turns[0].Role != "user" {
		turns = append([]Message{{Role: "user", Content: ""}}, turns...)
	}
	if len(system) > 0 {
		prefix := strings.Join(system, "\n\n")
		if turns[0].Content == "" {
			turns[0].Content = prefix
		} else {
			turns[0].Content = prefix + "\n\n" + turns[0].Content
		}
	}
	return turns
}
