package llmgateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/algojudge/corejudge/errs"
	"github.com/algojudge/corejudge/llmgateway"
)

type fakeProvider struct {
	name        string
	reasoning   map[string]bool
	calls       int
	failUntil   int
	lastReq     llmgateway.Request
	respondWith llmgateway.Response
	err         error
}

func (f *fakeProvider) Name() string                      { return f.name }
func (f *fakeProvider) IsReasoningModel(model string) bool { return f.reasoning[model] }
func (f *fakeProvider) Call(ctx context.Context, req llmgateway.Request) (llmgateway.Response, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failUntil {
		return llmgateway.Response{}, errs.New(errs.KindTransient, "temporary failure")
	}
	if f.err != nil {
		return llmgateway.Response{}, f.err
	}
	return f.respondWith, nil
}

func TestGenerateAppliesDeterministicDefaults(t *testing.T) {
	fp := &fakeProvider{name: "fake", respondWith: llmgateway.Response{Text: "hello"}}
	gw := llmgateway.New(zap.NewNop(), fp)

	out, err := gw.Generate(context.Background(), "fake", "chat-model", "say hi")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
	require.NotNil(t, fp.lastReq.Temperature)
	require.Equal(t, float32(0.0), *fp.lastReq.Temperature)
	require.NotNil(t, fp.lastReq.TopP)
	require.Equal(t, float32(1.0), *fp.lastReq.TopP)
}

func TestReasoningModelOmitsTemperature(t *testing.T) {
	fp := &fakeProvider{name: "fake", reasoning: map[string]bool{"o-reasoner": true}, respondWith: llmgateway.Response{Text: "ok"}}
	gw := llmgateway.New(zap.NewNop(), fp)

	_, err := gw.Generate(context.Background(), "fake", "o-reasoner", "think")
	require.NoError(t, err)
	require.Nil(t, fp.lastReq.Temperature)
	require.Nil(t, fp.lastReq.TopP)
	require.Equal(t, "high", fp.lastReq.ReasoningEffort)
	require.Equal(t, "low", fp.lastReq.Verbosity)
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	fp := &fakeProvider{name: "fake", failUntil: 2, respondWith: llmgateway.Response{Text: "recovered"}}
	gw := llmgateway.New(zap.NewNop(), fp)

	out, err := gw.Generate(context.Background(), "fake", "chat-model", "retry me")
	require.NoError(t, err)
	require.Equal(t, "recovered", out)
	require.Equal(t, 3, fp.calls)
}

func TestValidationFailureIsNotRetried(t *testing.T) {
	fp := &fakeProvider{name: "fake", err: errs.New(errs.KindValidation, "bad schema")}
	gw := llmgateway.New(zap.NewNop(), fp)

	_, err := gw.Generate(context.Background(), "fake", "chat-model", "bad")
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.KindValidation))
	require.Equal(t, 1, fp.calls)
}

func TestUnknownProviderIsValidationError(t *testing.T) {
	gw := llmgateway.New(zap.NewNop())
	_, err := gw.Generate(context.Background(), "missing", "model", "hi")
	require.True(t, errs.Is(err, errs.KindValidation))
}
