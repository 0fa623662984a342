package sol

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

const defaultRateLimit = 20

// Client binds one node endpoint to a rate-limited RPC client.
type Client struct {
	endpoint string
	rpc      *rpc.Client
	limiter  *rate.Limiter
}

// NewClient creates a client for a single endpoint. reqLimitPerSecond
// caps outgoing requests; values <= 0 fall back to the default.
func NewClient(endpoint string, reqLimitPerSecond int) *Client {
	if reqLimitPerSecond <= 0 {
		reqLimitPerSecond = defaultRateLimit
	}

	return &Client{
		endpoint: endpoint,
		rpc:      rpc.New(endpoint),
		limiter:  rate.NewLimiter(rate.Limit(reqLimitPerSecond), reqLimitPerSecond),
	}
}

// Endpoint returns the URL this client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetBalance returns the owner's native balance in lamports.
func (c *Client) GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	return out.Value, nil
}

// GetTokenAccountsByOwner returns every token-program account the owner
// holds, parsed by the node. Zero-balance accounts are included.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]*rpc.TokenAccount, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.rpc.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: solana.TokenProgramID.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetLatestBlockhash returns a recent blockhash for transaction assembly.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Hash{}, err
	}

	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, err
	}
	return out.Value.Blockhash, nil
}

// SendEncodedTransaction submits a base64-encoded signed transaction to
// the node and returns its signature.
func (c *Client) SendEncodedTransaction(ctx context.Context, encodedTx string) (solana.Signature, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return solana.Signature{}, err
	}

	return c.rpc.SendEncodedTransaction(ctx, encodedTx)
}
