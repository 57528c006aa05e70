package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiProvider calls the Gemini generateContent REST endpoint.
type GeminiProvider struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

// NewGeminiProvider creates a Gemini provider. The key is required.
func NewGeminiProvider(baseURL, apiKey, model string, timeout time.Duration) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &GeminiProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Model returns the configured model.
func (p *GeminiProvider) Model() string { return p.model }

// Chat flattens messages into a single prompt and requests one candidate.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: flattenPrompt(messages)}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ProviderGemini, redact(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ProviderGemini, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Provider:   ProviderGemini,
			StatusCode: resp.StatusCode,
			Body:       truncateBody(string(respBody)),
		}
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	var text string
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		text = strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)
	}

	meta := map[string]any{}
	if u := result.UsageMetadata; u != nil {
		meta["tokens_in"] = u.PromptTokenCount
		meta["tokens_out"] = u.CandidatesTokenCount
	}

	return &Response{
		Text:     replyOrFallback(text),
		Provider: ProviderGemini,
		Model:    p.model,
		Meta:     meta,
	}, nil
}

// flattenPrompt renders messages as role-prefixed lines followed by an
// assistant cue. Roles other than system and user are rendered as ASSISTANT.
func flattenPrompt(messages []Message) string {
	lines := make([]string, 0, len(messages)+1)
	for _, m := range messages {
		switch m.Role {
		case "system":
			lines = append(lines, "SYSTEM: "+m.Content)
		case "user":
			lines = append(lines, "USER: "+m.Content)
		default:
			lines = append(lines, "ASSISTANT: "+m.Content)
		}
	}
	lines = append(lines, "ASSISTANT:")
	return strings.Join(lines, "\n")
}

// redact drops the request URL, which carries the API key, from transport
// errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
