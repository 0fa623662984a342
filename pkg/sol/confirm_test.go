package sol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wsNode upgrades to WebSocket, acks the subscription, then fires one
// signatureNotification carrying the given on-chain error value.
func wsNode(t *testing.T, onchainErr interface{}, notify bool) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var req rpcRequest
		require.NoError(t, conn.ReadJSON(&req))
		require.Equal(t, "signatureSubscribe", req.Method)

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0", "id": req.ID, "result": 23,
		}))

		if !notify {
			// Hold the subscription open until the client hangs up.
			var discard rpcEnvelope
			_ = conn.ReadJSON(&discard)
			return
		}

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"result":       map[string]interface{}{"value": map[string]interface{}{"err": onchainErr}},
				"subscription": 23,
			},
		}))
	}))
}

func TestWaitForSignatureConfirmed(t *testing.T) {
	node := wsNode(t, nil, true)
	defer node.Close()

	c := NewConfirmer(node.URL, zap.NewNop())
	require.NoError(t, c.WaitForSignature(context.Background(), testSignature))
}

func TestHTTPToWsURL(t *testing.T) {
	require.Equal(t, "wss://node.example/rpc", httpToWsURL("https://node.example/rpc"))
	require.Equal(t, "ws://localhost:8899", httpToWsURL("http://localhost:8899"))
}

func TestWaitForSignatureOnChainFailure(t *testing.T) {
	node := wsNode(t, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, true)
	defer node.Close()

	c := NewConfirmer(node.URL, zap.NewNop())
	err := c.WaitForSignature(context.Background(), testSignature)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed on-chain")
}

func TestWaitForSignatureContextCancel(t *testing.T) {
	node := wsNode(t, nil, false)
	defer node.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewConfirmer(node.URL, zap.NewNop())
	err := c.WaitForSignature(ctx, testSignature)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
