package sweep

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

func TestNewLocalSignerRejectsBadKeys(t *testing.T) {
	_, err := NewLocalSigner("not-base58-0OIl")
	require.Error(t, err)

	// Valid base58 but not a 64-byte keypair.
	_, err = NewLocalSigner(base58.Encode([]byte("too short")))
	require.Error(t, err)
}

func TestLocalSignerSignsBatch(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	signer, err := NewLocalSigner(base58.Encode(key))
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), signer.PublicKey())

	ix := solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(signer.PublicKey()).SIGNER().WRITE()},
		[]byte("close"),
	)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.MustHashFromBase58(targetMint),
		solana.TransactionPayer(signer.PublicKey()),
	)
	require.NoError(t, err)

	signed, err := signer.SignAllTransactions(context.Background(), []*solana.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, signed, 1)
	require.NotEmpty(t, signed[0].Signatures)
	require.False(t, signed[0].Signatures[0].IsZero())
}
