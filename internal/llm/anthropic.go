package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"twin/internal/httpclient"
	"twin/internal/logging"
)

const (
	anthropicProviderName       = "anthropic"
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	defaultAnthropicVersion     = "2023-06-01"
	anthropicVersionHeaderKey   = "anthropic-version"
	anthropicRequestHeaderKey   = "x-api-key"
	anthropicMessagesPath       = "/messages"
	anthropicRequestContentType = "application/json"
	maxErrorBodyPreview         = 512
)

// DefaultAnthropicResponseLimit caps a Messages API response body.
const DefaultAnthropicResponseLimit = 8 << 20

// AnthropicConfig configures the Messages API provider.
type AnthropicConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// ResponseLimit caps the response body; zero uses DefaultAnthropicResponseLimit.
	ResponseLimit int64
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// AnthropicProvider calls the Anthropic Messages API directly over HTTP.
type AnthropicProvider struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limit      int64
	logger     logging.Logger
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	TopP        float64            `json:"top_p"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicProvider validates cfg and builds a provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("anthropic provider requires a model")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic provider requires an API key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := cfg.ResponseLimit
	if limit <= 0 {
		limit = DefaultAnthropicResponseLimit
	}
	return &AnthropicProvider{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: client,
		limit:      limit,
		logger:     logging.NewComponentLogger("AnthropicProvider"),
	}, nil
}

// NewAnthropicGateway is NewGateway over an AnthropicProvider.
func NewAnthropicGateway(cfg AnthropicConfig, gw GatewayConfig, opts ...Option) (*ProviderGateway, error) {
	provider, err := NewAnthropicProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewGateway(provider, gw, opts...)
}

func (p *AnthropicProvider) Name() string {
	return anthropicProviderName
}

func (p *AnthropicProvider) Converse(ctx context.Context, req Request) (Result, error) {
	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   req.Params.MaxTokens,
		System:      req.System,
		Messages:    make([]anthropicMessage, 0, len(req.Messages)),
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
	}
	for _, msg := range req.Messages {
		payload.Messages = append(payload.Messages, anthropicMessage{
			Role:    msg.Role,
			Content: []anthropicContentBlock{{Type: "text", Text: msg.Content}},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := p.baseURL + anthropicMessagesPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", anthropicRequestContentType)
	httpReq.Header.Set(anthropicRequestHeaderKey, p.apiKey)
	httpReq.Header.Set(anthropicVersionHeaderKey, defaultAnthropicVersion)

	p.logger.Debug("URL: POST %s", endpoint)
	p.logger.Debug("Model: %s", p.model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("anthropic request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, p.limit)
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	p.logger.Debug("Status: %d %s", resp.StatusCode, resp.Status)

	var apiResp anthropicResponse
	decodeErr := json.Unmarshal(respBody, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decodeErr == nil && apiResp.Error != nil && apiResp.Error.Message != "" {
			return Result{}, fmt.Errorf("anthropic status %d: %s: %s", resp.StatusCode, apiResp.Error.Type, apiResp.Error.Message)
		}
		return Result{}, fmt.Errorf("anthropic status %d: %s", resp.StatusCode, preview(respBody))
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return Result{}, fmt.Errorf("anthropic error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var parts []string
	for _, block := range apiResp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	result := Result{
		Text:       strings.Join(parts, ""),
		StopReason: apiResp.StopReason,
	}
	if apiResp.Usage != nil {
		result.TokensUsed = apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens
	}
	return result, nil
}

func preview(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyPreview {
		text = text[:maxErrorBodyPreview] + "... (truncated)"
	}
	return text
}
