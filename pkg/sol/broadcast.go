package sol

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// BroadcastError wraps a node rejection of a locally-constructed
// transaction (double-submission, stale blockhash, ...) after the
// rotator exhausted its endpoints.
type BroadcastError struct {
	Err error
}

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("broadcast rejected: %v", e.Err)
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// Broadcaster submits signed transactions straight to a node and builds
// the close-account transactions that skip the order provider entirely.
type Broadcaster struct {
	rotator *Rotator
}

// NewBroadcaster creates a broadcaster over the given endpoint pool.
func NewBroadcaster(rotator *Rotator) *Broadcaster {
	return &Broadcaster{rotator: rotator}
}

// Broadcast sends a base64-encoded signed transaction through the
// rotator and returns the on-chain signature.
func (b *Broadcaster) Broadcast(ctx context.Context, signedTransaction string) (string, error) {
	var signature solana.Signature

	err := b.rotator.WithFailover(ctx, func(ctx context.Context, client *Client) error {
		sig, err := client.SendEncodedTransaction(ctx, signedTransaction)
		if err != nil {
			return err
		}
		signature = sig
		return nil
	})
	if err != nil {
		return "", &BroadcastError{Err: err}
	}

	return signature.String(), nil
}

// BuildCloseTransaction assembles an unsigned transaction closing the
// given token account, sending its rent deposit back to the owner.
// Returned base64-encoded, ready for client-side signing.
func (b *Broadcaster) BuildCloseTransaction(ctx context.Context, owner, tokenAccount solana.PublicKey) (string, error) {
	var blob string

	err := b.rotator.WithFailover(ctx, func(ctx context.Context, client *Client) error {
		blockhash, err := client.GetLatestBlockhash(ctx)
		if err != nil {
			return err
		}

		closeIx, err := token.NewCloseAccountInstruction(
			tokenAccount,
			owner, // rent destination
			owner, // authority
			nil,
		).ValidateAndBuild()
		if err != nil {
			return err
		}

		tx, err := solana.NewTransaction(
			[]solana.Instruction{closeIx},
			blockhash,
			solana.TransactionPayer(owner),
		)
		if err != nil {
			return err
		}

		raw, err := tx.MarshalBinary()
		if err != nil {
			return err
		}

		blob = base64.StdEncoding.EncodeToString(raw)
		return nil
	})
	if err != nil {
		return "", err
	}

	return blob, nil
}
