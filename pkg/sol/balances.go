package sol

import (
	"context"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// NativeKey is the sentinel balance-map key for the native SOL balance.
const NativeKey = "SOL"

// Balance is one wallet holding, keyed by mint in the balance map.
// RawAmount is the exact base-unit quantity and is the only field that
// may be used to construct transactions; Amount is display-only.
type Balance struct {
	Amount       float64 `json:"amount"`
	RawAmount    string  `json:"rawAmount,omitempty"`
	TokenAccount string  `json:"tokenAccount,omitempty"`
}

// BalanceReader reads wallet state through the rotator.
type BalanceReader struct {
	rotator *Rotator
}

// NewBalanceReader creates a reader over the given endpoint pool.
func NewBalanceReader(rotator *Rotator) *BalanceReader {
	return &BalanceReader{rotator: rotator}
}

// parsedTokenAccount mirrors the jsonParsed spl-token account layout.
type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string   `json:"amount"`
				Decimals int      `json:"decimals"`
				UIAmount *float64 `json:"uiAmount"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

// Read returns every balance the owner holds: the native balance under
// NativeKey plus one entry per token account, zero balances included
// (they are what the close-all flow reclaims rent from). Both reads run
// against the same endpoint, so the result is one consistent pass and
// is never merged across nodes.
func (b *BalanceReader) Read(ctx context.Context, owner solana.PublicKey) (map[string]Balance, error) {
	var balances map[string]Balance

	err := b.rotator.WithFailover(ctx, func(ctx context.Context, client *Client) error {
		var (
			lamports uint64
			accounts []*rpc.TokenAccount
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			lamports, err = client.GetBalance(gctx, owner)
			return err
		})
		g.Go(func() error {
			var err error
			accounts, err = client.GetTokenAccountsByOwner(gctx, owner)
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		out := make(map[string]Balance, len(accounts)+1)
		out[NativeKey] = Balance{Amount: float64(lamports) / float64(solana.LAMPORTS_PER_SOL)}

		for _, account := range accounts {
			var parsed parsedTokenAccount
			if err := json.Unmarshal(account.Account.Data.GetRawJSON(), &parsed); err != nil {
				return errors.Wrapf(err, "parse token account %s", account.Pubkey)
			}

			info := parsed.Parsed.Info
			var uiAmount float64
			if info.TokenAmount.UIAmount != nil {
				uiAmount = *info.TokenAmount.UIAmount
			}

			out[info.Mint] = Balance{
				Amount:       uiAmount,
				RawAmount:    info.TokenAmount.Amount,
				TokenAccount: account.Pubkey.String(),
			}
		}

		balances = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	return balances, nil
}
