package sol

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSignature = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

func sendingNode(t *testing.T, rejectSend bool) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		w.Header().Set("Content-Type", "application/json")

		switch call.Method {
		case "sendTransaction":
			if rejectSend {
				fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32002,"message":"Transaction simulation failed: Blockhash not found"}}`, call.ID)
				return
			}
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"%s"}`, call.ID, testSignature)
		case "getLatestBlockhash":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":{"context":{"slot":1},"value":{"blockhash":"%s","lastValidBlockHeight":100}}}`, call.ID, mintA)
		default:
			t.Fatalf("unexpected rpc method %s", call.Method)
		}
	}))
}

func TestBroadcastReturnsSignature(t *testing.T) {
	node := sendingNode(t, false)
	defer node.Close()

	b := NewBroadcaster(NewRotator([]string{node.URL}, 100, zap.NewNop()))

	sig, err := b.Broadcast(context.Background(), base64.StdEncoding.EncodeToString([]byte("signed")))
	require.NoError(t, err)
	require.Equal(t, testSignature, sig)
}

func TestBroadcastWrapsNodeRejection(t *testing.T) {
	node := sendingNode(t, true)
	defer node.Close()

	b := NewBroadcaster(NewRotator([]string{node.URL}, 100, zap.NewNop()))

	_, err := b.Broadcast(context.Background(), base64.StdEncoding.EncodeToString([]byte("signed")))
	require.Error(t, err)

	var broadcastErr *BroadcastError
	require.ErrorAs(t, err, &broadcastErr)
	require.Contains(t, broadcastErr.Error(), "Blockhash not found")
}

func TestBuildCloseTransaction(t *testing.T) {
	node := sendingNode(t, false)
	defer node.Close()

	b := NewBroadcaster(NewRotator([]string{node.URL}, 100, zap.NewNop()))
	owner := solana.MustPublicKeyFromBase58(testOwner)
	account := solana.MustPublicKeyFromBase58(accountB)

	blob, err := b.BuildCloseTransaction(context.Background(), owner, account)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 1)
	program, err := tx.Message.Program(tx.Message.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	require.Equal(t, solana.TokenProgramID, program)

	// The owner pays fees and receives the rent deposit.
	require.Equal(t, owner, tx.Message.AccountKeys[0])
}
