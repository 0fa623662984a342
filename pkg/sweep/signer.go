package sweep

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// ErrCannotBatchSign means the configured signer cannot sign a whole
// batch in one interaction. The batch is aborted before any execution.
var ErrCannotBatchSign = errors.New("wallet cannot batch-sign")

// Signer signs a batch of transactions in a single interaction. One
// call covers the entire batch; callers must not loop over items.
type Signer interface {
	SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// LocalSigner signs with an in-process keypair. Used by the CLI; the
// web flow signs in the user's wallet instead.
type LocalSigner struct {
	key solana.PrivateKey
}

// NewLocalSigner parses a base58-encoded 64-byte ed25519 keypair.
func NewLocalSigner(base58Key string) (*LocalSigner, error) {
	raw, err := base58.Decode(base58Key)
	if err != nil {
		return nil, errors.Wrap(err, "decode private key")
	}
	if len(raw) != 64 {
		return nil, errors.Errorf("private key must be 64 bytes, got %d", len(raw))
	}
	return &LocalSigner{key: solana.PrivateKey(raw)}, nil
}

// PublicKey returns the signing wallet's address.
func (s *LocalSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignAllTransactions partially signs every transaction with the local
// key. Partial signing keeps provider-prepared fee-payer signatures
// intact.
func (s *LocalSigner) SignAllTransactions(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	owner := s.key.PublicKey()
	for i, tx := range txs {
		_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
			if key.Equals(owner) {
				return &s.key
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "sign transaction %d", i)
		}
	}
	return txs, nil
}
