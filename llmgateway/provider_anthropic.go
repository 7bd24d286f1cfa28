package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/internal/tlsutil"
)

// AnthropicConfig configures the Anthropic-style HTTP provider.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AnthropicProvider calls an Anthropic-compatible messages API:
// x-api-key header auth, a separate system field, content-block
// responses.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client *http.Client
	logger *zap.Logger
}

func NewAnthropicProvider(cfg AnthropicConfig, logger *zap.Logger) *AnthropicProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &AnthropicProvider{cfg: cfg, client: &http.Client{Timeout: timeout, Transport: tlsutil.SecureTransport()}, logger: logger}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// IsReasoningModel is false for every Anthropic chat model the gateway
// targets: none of them reject the temperature field.
func (p *AnthropicProvider) IsReasoningModel(model string) bool { return false }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature *float32            `json:"temperature,omitempty"`
	TopP        *float32            `json:"top_p,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Call(ctx context.Context, req Request) (Response, error) {
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   4096,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, errs.Wrap(errs.KindValidation, "encode anthropic request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/messages", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return Response{}, errs.Wrap(errs.KindTransient, "build anthropic request", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, errs.Wrap(errs.KindTransient, "anthropic request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, errs.New(errs.KindThrottled, "anthropic rate limited")
	}
	if resp.StatusCode >= 500 {
		return Response{}, errs.New(errs.KindTransient, "anthropic server error: "+string(respBody))
	}
	if resp.StatusCode >= 400 {
		return Response{}, errs.New(errs.KindProvider, "anthropic request rejected: "+string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, errs.Wrap(errs.KindValidation, "decode anthropic response", err)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return Response{
		Text:         text.String(),
		FinishReason: parsed.StopReason,
		Usage:        Usage{PromptTokens: parsed.Usage.InputTokens, CompletionTokens: parsed.Usage.OutputTokens},
	}, nil
}
