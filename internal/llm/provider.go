// Package llm provides the chat provider adapters and the cached response
// service used by the gym assistant.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/RomanRochniak/CapstoneGym/internal/config"
)

// Provider names accepted by AI_PROVIDER.
const (
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	// FallbackReply is returned when a provider answers with empty text.
	FallbackReply = "I didn't get a response. Please try again."

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 20 * time.Second

	defaultTemperature = 0.7
	maxErrorBody       = 2000
)

var (
	// ErrTimeout is returned when the provider does not answer in time.
	ErrTimeout = errors.New("llm: request timed out")
	// ErrMissingAPIKey is returned when a remote provider has no key configured.
	ErrMissingAPIKey = errors.New("llm: API key is not configured")
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is a provider reply. Meta carries provider specific extras that
// are stored with the assistant message.
type Response struct {
	Text     string         `json:"text"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Provider is a chat completion backend.
type Provider interface {
	Name() string
	Model() string
	Chat(ctx context.Context, messages []Message) (*Response, error)
}

// StatusError is a non-success HTTP status returned by a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewProvider builds the provider selected by cfg.AIProvider. Unknown names
// fall back to ollama.
func NewProvider(cfg *config.Config) (Provider, error) {
	timeout := cfg.AITimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	switch cfg.AIProvider {
	case ProviderGemini:
		return NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, timeout)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, timeout)
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, timeout)
	default:
		return NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, timeout), nil
	}
}

// unconfiguredProvider stands in for a remote provider whose key is
// missing. Every call fails with ErrMissingAPIKey.
type unconfiguredProvider struct {
	name string
}

// Unconfigured returns a provider named name that rejects every request
// with ErrMissingAPIKey.
func Unconfigured(name string) Provider {
	return unconfiguredProvider{name: name}
}

func (p unconfiguredProvider) Name() string  { return p.name }
func (p unconfiguredProvider) Model() string { return "" }

func (p unconfiguredProvider) Chat(context.Context, []Message) (*Response, error) {
	return nil, fmt.Errorf("%s: %w", p.name, ErrMissingAPIKey)
}

// transportError maps deadline and network timeouts to ErrTimeout.
func transportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", provider, ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", provider, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", provider, err)
}

func truncateBody(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorBody {
		return s
	}
	return string(r[:maxErrorBody])
}

func replyOrFallback(text string) string {
	if text == "" {
		return FallbackReply
	}
	return text
}
