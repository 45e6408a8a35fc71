package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHelpersSetRetryability(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsRetryable(WrapTransient("search", "pubmed", base)))
	assert.False(t, IsRetryable(WrapPermanent("search", "pubmed", base)))
	assert.False(t, IsRetryable(WrapValidation("parse", base)))
	assert.False(t, IsRetryable(WrapNotFound("fetch", "pubmed", base)))
}

func TestWithStatusCodeAdjustsType(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		errType   ErrorType
	}{
		{429, true, ErrorTypeTransient},
		{503, true, ErrorTypeTransient},
		{408, true, ErrorTypeTransient},
		{404, false, ErrorTypePermanent},
		{400, false, ErrorTypePermanent},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d", tc.code), func(t *testing.T) {
			e := New(ErrorTypePermanent, "search", "pubmed", errors.New("boom")).
				WithStatusCode(tc.code)
			assert.Equal(t, tc.retryable, e.Retryable)
			assert.Equal(t, tc.errType, e.Type)
			assert.Equal(t, tc.code, e.StatusCode)
		})
	}
}

func TestIsMatchesBaseErrors(t *testing.T) {
	assert.ErrorIs(t, WrapNotFound("fetch", "pubmed", errors.New("gone")), ErrNotFound)
	assert.ErrorIs(t, WrapValidation("parse", errors.New("bad")), ErrInvalidInput)
	assert.ErrorIs(t, WrapCancelled("dispatch", errors.New("ctx")), ErrCancelled)
	assert.ErrorIs(t, WrapConfig("load", errors.New("bad env")), ErrConfiguration)
	assert.NotErrorIs(t, WrapTransient("search", "pubmed", errors.New("boom")), ErrNotFound)
}

func TestUnwrapPreservesCause(t *testing.T) {
	base := errors.New("root cause")
	wrapped := WrapTransient("search", "pubmed", fmt.Errorf("outer: %w", base))
	assert.ErrorIs(t, wrapped, base)
}

func TestRetryAfterHint(t *testing.T) {
	e := New(ErrorTypeTransient, "search", "pubmed", errors.New("slow down")).
		WithRetryAfter(30 * time.Second)

	d, ok := RetryAfter(e)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	_, ok = RetryAfter(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorStringIncludesProvider(t *testing.T) {
	withProvider := New(ErrorTypeTransient, "search", "pubmed", errors.New("boom"))
	assert.Contains(t, withProvider.Error(), "pubmed")

	withoutProvider := WrapValidation("parse", errors.New("bad"))
	assert.NotContains(t, withoutProvider.Error(), "pubmed")
}
