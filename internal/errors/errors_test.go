package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wallet-sync/internal/types"
)

func TestCategorize(t *testing.T) {
	t.Run("passes through categorized errors", func(t *testing.T) {
		orig := NewDuplicateWalletError("0xabc", types.ChainEthereum)
		got := Categorize(orig)
		assert.Same(t, orig, got)
	})

	t.Run("unwraps wrapped categorized errors", func(t *testing.T) {
		orig := NewProviderTransientError("alchemy", errors.New("timeout"))
		wrapped := fmt.Errorf("fetch page: %w", orig)
		got := Categorize(wrapped)
		assert.Same(t, orig, got)
	})

	t.Run("defaults to internal", func(t *testing.T) {
		got := Categorize(errors.New("boom"))
		assert.Equal(t, CategorySystem, got.Category)
		assert.Equal(t, http.StatusInternalServerError, got.StatusCode)
	})

	t.Run("nil in, nil out", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewProviderTransientError("alchemy", errors.New("503"))))
	// Parse failures are never retried
	assert.False(t, IsTransient(NewProviderSchemaError("alchemy", errors.New("bad json"))))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestTaxonomyStatusCodes(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, GetHTTPStatusCode(NewUnauthorizedError("bad signature")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatusCode(NewDuplicateWalletError("0xabc", types.ChainBase)))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatusCode(NewNotFoundError("wallet", "0xabc")))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatusCode(NewInvalidAddressError("xyz", types.ChainEthereum)))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatusCode(NewChunkFailureError("chunk-1", errors.New("gave up"))))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewProviderTransientError("solana-rpc", cause)
	assert.ErrorIs(t, err, cause)
}
