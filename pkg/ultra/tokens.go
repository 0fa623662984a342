package ultra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// WSOLMint is the wrapped-SOL mint, shown as plain SOL.
const WSOLMint = "So11111111111111111111111111111111111111112"

// TokenMeta is the metadata service's view of one mint.
type TokenMeta struct {
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	LogoURI  string   `json:"logoURI,omitempty"`
	Decimals int      `json:"decimals"`
	Price    float64  `json:"price,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Verified reports whether the metadata service vouches for the mint.
func (m *TokenMeta) Verified() bool {
	for _, tag := range m.Tags {
		if tag == "verified" {
			return true
		}
	}
	return false
}

// TokenResolver maps mints to display symbols. Lookups are paced to
// stay under the metadata service's rate limits and cached per mint.
// In-flight lookups stop at context cancellation: a superseded refresh
// must not keep writing into the cache.
type TokenResolver struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewTokenResolver creates a resolver against the token metadata service.
func NewTokenResolver(baseURL string, httpClient *http.Client, logger *zap.Logger) *TokenResolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenResolver{
		baseURL: baseURL,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		logger:  logger,
		cache:   make(map[string]string),
	}
}

// Symbol returns a display name for the mint: the verified symbol when
// the service knows it, otherwise a truncated mint. It never fails;
// display names are best-effort.
func (r *TokenResolver) Symbol(ctx context.Context, mint string) string {
	if mint == "SOL" || mint == WSOLMint {
		return "SOL"
	}

	r.mu.RLock()
	symbol, ok := r.cache[mint]
	r.mu.RUnlock()
	if ok {
		return symbol
	}

	symbol = ShortMint(mint)
	meta, err := r.fetch(ctx, mint)
	if err != nil {
		r.logger.Debug("token metadata lookup failed", zap.String("mint", mint), zap.Error(err))
		return symbol
	}
	if meta.Verified() && meta.Symbol != "" {
		symbol = meta.Symbol
	}

	if ctx.Err() != nil {
		// Superseded request: do not touch shared state.
		return symbol
	}

	r.mu.Lock()
	r.cache[mint] = symbol
	r.mu.Unlock()
	return symbol
}

func (r *TokenResolver) fetch(ctx context.Context, mint string) (*TokenMeta, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/token/"+mint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata fetch for %s: status %d", mint, resp.StatusCode)
	}

	var meta TokenMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ShortMint renders a mint in the compact head…tail form used when no
// symbol is known.
func ShortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:4] + "…" + mint[len(mint)-4:]
}
