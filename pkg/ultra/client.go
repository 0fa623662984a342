// Package ultra talks to the external order provider: quoting a swap
// returns an unsigned transaction plus an opaque request id, and
// executing submits the client-signed transaction paired with that id.
package ultra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// Order is an unsigned swap transaction and the request id it must be
// executed with. The pairing is positional: an order's id is only valid
// for the exact transaction it was issued alongside.
type Order struct {
	Transaction string `json:"transaction"`
	RequestID   string `json:"requestId"`
}

// ExecuteResult is the provider's execution response.
type ExecuteResult struct {
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Code      int    `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// TakerBalance is one entry of the provider's balance view.
type TakerBalance struct {
	Amount   float64 `json:"amount"`
	UIAmount float64 `json:"uiAmount,omitempty"`
}

// QuoteError is a well-formed non-2xx response from the quoting
// endpoint (no route found, amount too small, ...). It is not an
// endpoint failure and must not trigger RPC rotation.
type QuoteError struct {
	StatusCode int
	Body       string
}

func (e *QuoteError) Error() string {
	return fmt.Sprintf("order request failed (%d): %s", e.StatusCode, e.Body)
}

// ExecutionError is a definitive on-chain failure reported by the
// provider. A transport error from ExecuteOrder is deliberately NOT an
// ExecutionError: the order may already have been consumed, so the
// outcome is unknown and must never be retried blindly.
type ExecutionError struct {
	Code    int
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (code %d): %s", e.Code, e.Message)
}

// Client is an order provider client. The base URL is injectable so
// tests can point it at a fake provider.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a provider client. A nil httpClient gets a sane
// default timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Balances returns the provider's balance view for a taker wallet.
func (c *Client) Balances(ctx context.Context, taker string) (map[string]TakerBalance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/balances/"+taker, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch balances")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &QuoteError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var balances map[string]TakerBalance
	if err := json.NewDecoder(resp.Body).Decode(&balances); err != nil {
		return nil, errors.Wrap(err, "decode balances")
	}
	return balances, nil
}

// CreateOrder asks the provider for an unsigned swap transaction. The
// amount is the raw base-unit string and is passed through verbatim;
// it must never go through a float.
func (c *Client) CreateOrder(ctx context.Context, taker, inputMint, outputMint, amount string) (*Order, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", amount)
	params.Set("taker", taker)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/order?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &QuoteError{StatusCode: resp.StatusCode, Body: readBody(resp.Body)}
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	if order.Transaction == "" || order.RequestID == "" {
		return nil, &QuoteError{StatusCode: resp.StatusCode, Body: "order response missing transaction or requestId"}
	}
	return &order, nil
}

// ExecuteOrder submits a signed transaction with its paired request id
// and returns the on-chain signature. Success causes an irreversible
// fund transfer; callers must treat transport errors here as
// unknown-outcome, not as a clean failure.
func (c *Client) ExecuteOrder(ctx context.Context, signedTransaction, requestID string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"signedTransaction": signedTransaction,
		"requestId":         requestID,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "execute order")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read execute response")
	}

	var result ExecuteResult
	if jsonErr := json.Unmarshal(body, &result); jsonErr != nil || result.Status == "" {
		return "", &ExecutionError{Code: resp.StatusCode, Message: string(body)}
	}

	if result.Status != "Success" || result.Signature == "" {
		return "", &ExecutionError{Code: result.Code, Message: result.Error}
	}
	return result.Signature, nil
}

// IsProviderError reports whether err is a definitive provider response
// rather than a transport failure.
func IsProviderError(err error) bool {
	var quoteErr *QuoteError
	var execErr *ExecutionError
	return errors.As(err, &quoteErr) || errors.As(err, &execErr)
}

func readBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(body)
}
