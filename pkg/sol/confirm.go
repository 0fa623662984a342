package sol

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Confirmer waits for a broadcast signature to land, using the node's
// WebSocket signatureSubscribe feed. The subscription is one-shot: the
// node fires a single notification and removes it.
type Confirmer struct {
	wsURL  string
	logger *zap.Logger
}

// NewConfirmer creates a confirmer against the WebSocket port of the
// given HTTP(S) RPC endpoint.
func NewConfirmer(rpcURL string, logger *zap.Logger) *Confirmer {
	return &Confirmer{
		wsURL:  httpToWsURL(rpcURL),
		logger: logger,
	}
}

// httpToWsURL converts an HTTP(S) RPC URL to a WebSocket URL
func httpToWsURL(httpURL string) string {
	wsURL := strings.Replace(httpURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return wsURL
}

// rpcRequest represents a JSON-RPC request
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcEnvelope covers both subscription confirmations and notifications.
type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Method  string          `json:"method,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	Params  *struct {
		Result struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
		Subscription uint64 `json:"subscription"`
	} `json:"params,omitempty"`
}

// rpcError represents a JSON-RPC error
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WaitForSignature blocks until the signature is confirmed, fails
// on-chain, or ctx ends.
func (c *Confirmer) WaitForSignature(ctx context.Context, signature string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return errors.Wrapf(err, "dial %s", c.wsURL)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return errors.Wrap(err, "subscribe signature")
	}

	for {
		var msg rpcEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read notification")
		}

		if msg.Error != nil {
			return errors.Errorf("signatureSubscribe failed: %d %s", msg.Error.Code, msg.Error.Message)
		}

		if msg.Method != "signatureNotification" || msg.Params == nil {
			// Subscription confirmation or unrelated message.
			continue
		}

		if txErr := msg.Params.Result.Value.Err; txErr != nil {
			return errors.Errorf("transaction %s failed on-chain: %v", signature, txErr)
		}

		c.logger.Debug("signature confirmed", zap.String("signature", signature))
		return nil
	}
}
