package ultra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSymbolVerifiedMint(t *testing.T) {
	calls := 0
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/token/"+testInputMint, r.URL.Path)
		json.NewEncoder(w).Encode(TokenMeta{Symbol: "USDC", Name: "USD Coin", Decimals: 6, Tags: []string{"verified"}})
	}))
	defer service.Close()

	resolver := NewTokenResolver(service.URL, nil, zap.NewNop())

	require.Equal(t, "USDC", resolver.Symbol(context.Background(), testInputMint))

	// Second lookup hits the cache.
	require.Equal(t, "USDC", resolver.Symbol(context.Background(), testInputMint))
	require.Equal(t, 1, calls)
}

func TestSymbolUnverifiedMintFallsBackToShortForm(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(TokenMeta{Symbol: "SCAM", Name: "Totally Legit"})
	}))
	defer service.Close()

	resolver := NewTokenResolver(service.URL, nil, zap.NewNop())
	require.Equal(t, ShortMint(testInputMint), resolver.Symbol(context.Background(), testInputMint))
}

func TestSymbolLookupFailureFallsBackToShortForm(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer service.Close()

	resolver := NewTokenResolver(service.URL, nil, zap.NewNop())
	require.Equal(t, ShortMint(testInputMint), resolver.Symbol(context.Background(), testInputMint))
}

func TestSymbolNativeAndWrappedSOL(t *testing.T) {
	resolver := NewTokenResolver("http://unused.example", nil, zap.NewNop())

	require.Equal(t, "SOL", resolver.Symbol(context.Background(), "SOL"))
	require.Equal(t, "SOL", resolver.Symbol(context.Background(), WSOLMint))
}

func TestShortMint(t *testing.T) {
	require.Equal(t, "EPjF…Dt1v", ShortMint(testInputMint))
	require.Equal(t, "short", ShortMint("short"))
}
