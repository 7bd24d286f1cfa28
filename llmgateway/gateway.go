// Package llmgateway implements the LLM Gateway (C9): a provider-
// abstracted contract for metadata extraction and free-form generation,
// with deterministic sampling parameters, reasoning-model handling, and
// a bounded retry policy that does not retry schema-validation
// failures.
//
// Follows a Provider interface shape (Completion/Stream/HealthCheck/
// Name) narrowed to the two operations this module needs and an
// exponential-backoff retryer, generalized across providers via the
// same request/response schema so tasks stay provider-agnostic.
package llmgateway

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
)

// Request is the provider-agnostic call shape (§6: "{model, messages[],
// temperature?, top_p?, response_format?, reasoning?, verbosity?}").
type Request struct {
	Model          string
	Messages       []Message
	Temperature    *float32
	TopP           *float32
	ResponseFormat string // "" (free text) or "json"
	ReasoningEffort string
	Verbosity      string
	Timeout        time.Duration
}

type Message struct {
	Role    string
	Content string
}

// Response carries either free text or a JSON payload, per §6.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Metadata is the structured output of extract_metadata.
type Metadata struct {
	Title       string
	Constraints string
	Tags        []string
	Language    string
}

// Provider is a single LLM backend. The gateway is multi-provider;
// callers select per-call.
type Provider interface {
	Name() string
	IsReasoningModel(model string) bool
	Call(ctx context.Context, req Request) (Response, error)
}

// Gateway is the public LLM Gateway contract (§4.8).
type Gateway struct {
	providers map[string]Provider
	logger    *zap.Logger
}

func New(logger *zap.Logger, providers ...Provider) *Gateway {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Gateway{providers: m, logger: logger}
}

// retryAttempts, retryBaseDelay, retryMaxDelay implement §4.8's retry
// policy: "3 attempts with exponential backoff (base 10s, cap 2min)".
const (
	retryAttempts  = 3
	retryBaseDelay = 10 * time.Second
	retryMaxDelay  = 2 * time.Minute
)

// ExtractMetadata implements extract_metadata(url, hints) -> Metadata.
// The caller supplies the already-fetched page text as pageText and any
// additional extraction hints in hints; the gateway composes the
// deterministic extraction prompt and parses a JSON response.
func (g *Gateway) ExtractMetadata(ctx context.Context, provider, pageText string, hints []string) (Metadata, error) {
	prompt := buildExtractionPrompt(pageText, hints)
	resp, err := g.call(ctx, provider, prompt, "json")
	if err != nil {
		return Metadata{}, err
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(resp.Text), &meta); err != nil {
		return Metadata{}, errs.Wrap(errs.KindValidation, "parse extracted metadata json", err)
	}
	return meta, nil
}

// Generate implements generate(prompt, opts) -> Text.
func (g *Gateway) Generate(ctx context.Context, provider, model, prompt string) (string, error) {
	resp, err := g.callModel(ctx, provider, model, prompt, "")
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (g *Gateway) call(ctx context.Context, provider, prompt, format string) (Response, error) {
	return g.callModel(ctx, provider, "", prompt, format)
}

func (g *Gateway) callModel(ctx context.Context, providerName, model, prompt, format string) (Response, error) {
	p, ok := g.providers[providerName]
	if !ok {
		return Response{}, errs.New(errs.KindValidation, "unknown llm provider: "+providerName)
	}

	req := Request{
		Model:          model,
		Messages:       []Message{{Role: "user", Content: prompt}},
		ResponseFormat: format,
		Timeout:        30 * time.Minute,
	}
	applyParameterPolicy(&req, p)

	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		resp, err := p.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errs.Is(err, errs.KindValidation) {
			// Schema validation failures are not retried on the same
			// provider (§4.8): return to the caller immediately.
			return Response{}, err
		}

		g.logger.Warn("llm call failed, retrying", zap.String("provider", providerName),
			zap.Int("attempt", attempt), zap.Error(err))

		if attempt == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
	return Response{}, errs.Wrap(errs.KindProvider, "llm call exhausted retries", lastErr)
}

// applyParameterPolicy implements §4.8's parameter policy: deterministic
// sampling by default, or reasoning-effort/verbosity for models that
// reject temperature entirely.
func applyParameterPolicy(req *Request, p Provider) {
	if p.IsReasoningModel(req.Model) {
		req.Temperature = nil
		req.TopP = nil
		req.ReasoningEffort = "high"
		req.Verbosity = "low"
		return
	}
	temp := float32(0.0)
	topP := float32(1.0)
	req.Temperature = &temp
	req.TopP = &topP
}

func buildExtractionPrompt(pageText string, hints []string) string {
	prompt := "Extract the problem title, constraints, tags, and source language from the following page as JSON with keys title, constraints, tags, language.\n\n" + pageText
	for _, h := range hints {
		prompt += "\n\nHint: " + h
	}
	return prompt
}
