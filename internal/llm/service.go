package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/RomanRochniak/CapstoneGym/internal/kv"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
	"github.com/RomanRochniak/CapstoneGym/pkg/metrics"
)

// SystemPrompt is the fixed instruction given to every provider.
const SystemPrompt = "You are RoshaClub AI Fitness Assistant. " +
	"You help with gym motivation, general training guidance, and explain how the RoshaClub site works " +
	"(programs, memberships, trainers, community). " +
	"You MUST use only the provided SITE_CONTEXT for names, prices, programs, trainers, and memberships. " +
	"If something is not in SITE_CONTEXT, say you don't know and suggest where on the site to check. " +
	"Rules: do NOT provide medical advice, diagnosis, or injury treatment. " +
	"If the user asks for a personalized plan, diet plan, supplements for health conditions, or anything medical, " +
	"recommend contacting a real trainer. " +
	"Keep answers short, practical, and professional."

const (
	// DefaultCacheTTL is how long a successful reply is reused.
	DefaultCacheTTL = 120 * time.Second

	cacheKeyMessages = 12
	cacheKeyHexLen   = 24
)

// Service builds prompts, consults the response cache and calls the
// configured provider.
type Service struct {
	provider Provider
	cache    kv.Store
	ttl      time.Duration
	logger   *logger.Logger
}

// NewService creates a response service. A non-positive ttl means
// DefaultCacheTTL.
func NewService(provider Provider, cache kv.Store, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		logger:   log.Named("llm"),
	}
}

// GenerateResponse answers userMessage given prior history. siteContext and
// suggestions are embedded in the system message as JSON when non-nil.
// Identical message lists within the cache TTL share one provider call.
func (s *Service) GenerateResponse(ctx context.Context, userMessage string, history []Message, siteContext, suggestions any) (*Response, error) {
	messages, err := BuildMessages(userMessage, history, siteContext, suggestions)
	if err != nil {
		return nil, err
	}

	name, model := s.provider.Name(), s.provider.Model()
	key := CacheKey(name, model, messages)

	if cached, ok := s.cache.Get(ctx, key); ok {
		if resp, ok := cached.(*Response); ok {
			metrics.RecordCacheLookup(name, true)
			return resp.clone(), nil
		}
	}
	metrics.RecordCacheLookup(name, false)

	resp, err := s.call(ctx, messages)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, resp.clone(), s.ttl)
	return resp, nil
}

func (s *Service) call(ctx context.Context, messages []Message) (*Response, error) {
	name, model := s.provider.Name(), s.provider.Model()

	ctx, span := otel.Tracer("llm").Start(ctx, "llm.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", name),
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(messages)),
	)

	start := time.Now()
	resp, err := s.provider.Chat(ctx, messages)
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		fields := []zap.Field{
			zap.String("provider", name),
			zap.String("model", model),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		}
		if errors.Is(err, ErrTimeout) {
			outcome = "timeout"
			s.logger.Warn("LLM request timed out", fields...)
		} else {
			s.logger.Error("LLM request failed", fields...)
		}
		metrics.RecordLLMRequest(name, model, outcome, elapsed.Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}

	metrics.RecordLLMRequest(name, model, "ok", elapsed.Seconds())
	span.SetStatus(codes.Ok, "")
	s.logger.Debug("LLM request completed",
		zap.String("provider", name),
		zap.String("model", model),
		zap.Duration("latency", elapsed),
	)
	return resp, nil
}

// BuildMessages assembles the system message, history and user message.
func BuildMessages(userMessage string, history []Message, siteContext, suggestions any) ([]Message, error) {
	var system strings.Builder
	system.WriteString(SystemPrompt)

	if siteContext != nil {
		data, err := json.Marshal(siteContext)
		if err != nil {
			return nil, fmt.Errorf("llm: encode site context: %w", err)
		}
		system.WriteString(" SITE_CONTEXT (authoritative, do not invent): ")
		system.Write(data)
	}
	if suggestions != nil {
		data, err := json.Marshal(suggestions)
		if err != nil {
			return nil, fmt.Errorf("llm: encode suggestions: %w", err)
		}
		system.WriteString(" SUGGESTIONS (candidates picked by backend): ")
		system.Write(data)
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: system.String()})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userMessage})
	return messages, nil
}

// CacheKey derives the response cache key from the provider, the model and
// the last messages of the conversation.
func CacheKey(provider, model string, messages []Message) string {
	tail := messages
	if len(tail) > cacheKeyMessages {
		tail = tail[len(tail)-cacheKeyMessages:]
	}
	parts := make([]string, len(tail))
	for i, m := range tail {
		parts[i] = m.Role + ":" + m.Content
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("ai:resp:%s:%s:%s", provider, model, hex.EncodeToString(sum[:])[:cacheKeyHexLen])
}

func (r *Response) clone() *Response {
	out := *r
	if r.Meta != nil {
		out.Meta = make(map[string]any, len(r.Meta))
		for k, v := range r.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}
