// Package llm provides a uniform client over the chat-completion style
// APIs of OpenAI, Anthropic, and Google, used by both metadata extraction
// and retrieval reranking.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/northbound-policy/ingest/internal/apperr"
	"github.com/northbound-policy/ingest/internal/config"
)

// Provider identifies a logical LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Client is the minimal contract the pipeline depends on: produce a JSON
// (or plain text) completion from a system prompt and user text.
type Client interface {
	GenerateStructured(ctx context.Context, prompt, text string) (string, error)
}

// FromConfig builds a Client for the named provider, reading its
// credentials out of cfg.LLM.
func FromConfig(cfg *config.Config, provider string) (Client, error) {
	httpClient := &http.Client{Timeout: 60 * time.Second}
	switch Provider(provider) {
	case ProviderOpenAI:
		p := cfg.LLM.OpenAI
		if p.APIKey == "" || p.Model == "" {
			return nil, apperr.New(apperr.KindMetadataFailed, "openai provider is not fully configured")
		}
		return &openAIClient{apiKey: p.APIKey, baseURL: p.BaseURL, model: p.Model, http: httpClient}, nil
	case ProviderAnthropic:
		p := cfg.LLM.Anthropic
		if p.APIKey == "" || p.Model == "" {
			return nil, apperr.New(apperr.KindMetadataFailed, "anthropic provider is not fully configured")
		}
		return &anthropicClient{apiKey: p.APIKey, model: p.Model, http: httpClient}, nil
	case ProviderGoogle:
		p := cfg.LLM.Google
		if p.APIKey == "" || p.Model == "" {
			return nil, apperr.New(apperr.KindMetadataFailed, "google provider is not fully configured")
		}
		return &googleClient{apiKey: p.APIKey, model: p.Model, http: httpClient}, nil
	default:
		return nil, apperr.New(apperr.KindMetadataFailed, "unsupported llm provider: "+provider)
	}
}

// parseJSONObject extracts a JSON object from free-form model output,
// first trying the whole string then the outermost {...} span.
func parseJSONObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	var probe map[string]any
	if err := json.Unmarshal([]byte(content), &probe); err == nil {
		return content, nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return "", apperr.New(apperr.KindMetadataFailed, "no JSON object found in model output")
	}
	snippet := content[start : end+1]
	if err := json.Unmarshal([]byte(snippet), &probe); err != nil {
		return "", apperr.Wrap(apperr.KindMetadataFailed, err, "model output is not valid JSON")
	}
	return snippet, nil
}

type openAIClient struct {
	apiKey, baseURL, model string
	http                   *http.Client
}

type openAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) GenerateStructured(ctx context.Context, prompt, text string) (string, error) {
	body := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "system", Content: "You are a JSON-only extractor. Respond with a single JSON object and no extra text."},
			{Role: "user", Content: prompt + "\n\n" + text},
		},
		Temperature:    0.0,
		ResponseFormat: &openAIResponseFormat{Type: "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint += "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamTransient, err, "openai request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.New(apperr.KindProviderQuotaExceeded, "openai rate limit exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("openai chat completion failed with status %d", resp.StatusCode))
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", apperr.New(apperr.KindMetadataFailed, "openai returned no choices")
	}
	return parseJSONObject(parsed.Choices[0].Message.Content)
}

type anthropicClient struct {
	apiKey, model string
	http          *http.Client
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicTextContent `json:"content"`
}

type anthropicTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagesResponse struct {
	Content []anthropicTextContent `json:"content"`
}

func (c *anthropicClient) GenerateStructured(ctx context.Context, prompt, text string) (string, error) {
	body := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    "You are a JSON-only extractor. Respond with a single JSON object and no extra text.",
		Messages: []anthropicMessage{
			{Role: "user", Content: []anthropicTextContent{{Type: "text", Text: prompt + "\n\n" + text}}},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamTransient, err, "anthropic request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.New(apperr.KindProviderQuotaExceeded, "anthropic rate limit exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("anthropic messages request failed with status %d", resp.StatusCode))
	}

	var parsed anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Content) == 0 {
		return "", apperr.New(apperr.KindMetadataFailed, "anthropic returned no content")
	}
	return parseJSONObject(parsed.Content[0].Text)
}

type googleClient struct {
	apiKey, model string
	http          *http.Client
}

type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func (c *googleClient) GenerateStructured(ctx context.Context, prompt, text string) (string, error) {
	body := googleGenerateContentRequest{
		Contents: []googleContent{{Parts: []googlePart{{Text: prompt + "\n\n" + text}}}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		c.model, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.KindUpstreamTransient, err, "google request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", apperr.New(apperr.KindProviderQuotaExceeded, "google rate limit exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("google generateContent failed with status %d", resp.StatusCode))
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", apperr.New(apperr.KindMetadataFailed, "google returned no candidates")
	}
	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return parseJSONObject(sb.String())
}
