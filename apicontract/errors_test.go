package apicontract_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/algojudge/corejudge/apicontract"
	"github.com/algojudge/corejudge/errs"
)

func TestFromError_CoreError(t *testing.T) {
	err := errs.New(errs.KindRateLimited, "daily hint quota exceeded")

	resp := apicontract.FromError(err)

	assert.Equal(t, "rate_limited", resp.Code)
	assert.Equal(t, "daily hint quota exceeded", resp.Message)
	assert.False(t, resp.Retryable)
}

func TestFromError_WrappedCoreError(t *testing.T) {
	inner := errs.New(errs.KindThrottled, "store rejected write")
	wrapped := fmt.Errorf("create problem: %w", inner)

	resp := apicontract.FromError(wrapped)

	assert.Equal(t, "throttled", resp.Code)
	assert.True(t, resp.Retryable)
}

func TestFromError_UnknownError(t *testing.T) {
	resp := apicontract.FromError(errors.New("boom"))

	assert.Equal(t, "unknown", resp.Code)
	assert.Equal(t, "boom", resp.Message)
	assert.False(t, resp.Retryable)
}
