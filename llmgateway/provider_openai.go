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

// OpenAIConfig configures the OpenAI-compatible chat completions
// provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Organization   string
	Timeout        time.Duration
	ReasoningModels []string // model names that reject temperature (§4.8)
}

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint:
// Bearer auth, optional Organization header, JSON chat-completions
// body.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{cfg: cfg, client: &http.Client{Timeout: timeout, Transport: tlsutil.SecureTransport()}, logger: logger}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) IsReasoningModel(model string) bool {
	for _, m := range p.cfg.ReasoningModels {
		if m == model {
			return true
		}
	}
	return false
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model           string          `json:"model"`
	Messages        []openaiMessage `json:"messages"`
	Temperature     *float32        `json:"temperature,omitempty"`
	TopP            *float32        `json:"top_p,omitempty"`
	ResponseFormat  *responseFormat `json:"response_format,omitempty"`
	ReasoningEffort string          `json:"reasoning_effort,omitempty"`
	Verbosity       string          `json:"verbosity,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openaiResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Call(ctx context.Context, req Request) (Response, error) {
	body := openaiRequest{
		Model:           req.Model,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		ReasoningEffort: req.ReasoningEffort,
		Verbosity:       req.Verbosity,
	}
	if req.ResponseFormat == "json" {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openaiMessage{Role: m.Role, Content: m.Content})
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return Response{}, errs.Wrap(errs.KindValidation, "encode openai request", err)
	}

	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return Response{}, errs.Wrap(errs.KindTransient, "build openai request", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+p.cfg.APIKey)
	if p.cfg.Organization != "" {
		httpReq.Header.Set("openai-organization", p.cfg.Organization)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, errs.Wrap(errs.KindTransient, "openai request failed", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, errs.New(errs.KindThrottled, "openai rate limited")
	}
	if resp.StatusCode >= 500 {
		return Response{}, errs.New(errs.KindTransient, "openai server error: "+string(respBody))
	}
	if resp.StatusCode >= 400 {
		return Response{}, errs.New(errs.KindProvider, "openai request rejected: "+string(respBody))
	}

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, errs.Wrap(errs.KindValidation, "decode openai response", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, errs.New(errs.KindProvider, "openai response had no choices")
	}

	choice := parsed.Choices[0]
	return Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        Usage{PromptTokens: parsed.Usage.PromptTokens, CompletionTokens: parsed.Usage.CompletionTokens},
	}, nil
}
