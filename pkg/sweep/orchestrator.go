package sweep

import (
	"context"
	"encoding/base64"
	"sort"
	"sync"

	"cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sweeper/pkg/sol"
	"sweeper/pkg/ultra"
)

// BalanceSource reads the wallet state a batch starts from and the
// state it leaves behind.
type BalanceSource interface {
	Read(ctx context.Context, owner solana.PublicKey) (map[string]sol.Balance, error)
}

// OrderClient quotes and executes swaps through the order provider.
type OrderClient interface {
	CreateOrder(ctx context.Context, taker, inputMint, outputMint, amount string) (*ultra.Order, error)
	ExecuteOrder(ctx context.Context, signedTransaction, requestID string) (string, error)
}

// Broadcaster builds close-account transactions and submits signed
// transactions straight to a node.
type Broadcaster interface {
	BuildCloseTransaction(ctx context.Context, owner, tokenAccount solana.PublicKey) (string, error)
	Broadcast(ctx context.Context, signedTransaction string) (string, error)
}

// SymbolResolver maps mints to display names for the transaction log.
type SymbolResolver interface {
	Symbol(ctx context.Context, mint string) string
}

// Confirmer optionally waits for broadcast signatures to land.
type Confirmer interface {
	WaitForSignature(ctx context.Context, signature string) error
}

// Deps wires the orchestrator's collaborators. Balances, Orders,
// Broadcaster, Signer and Logger are required; Symbols and Confirmer
// are optional.
type Deps struct {
	Balances    BalanceSource
	Orders      OrderClient
	Broadcaster Broadcaster
	Signer      Signer
	Symbols     SymbolResolver
	Confirmer   Confirmer
	Log         *Log
	Logger      *zap.Logger

	// TargetMint is the sweep destination; it is never swept itself.
	TargetMint string
	// KeepMints are user-flagged mints excluded from sweeps.
	KeepMints []string
}

// Orchestrator coordinates multi-item sweep and close batches.
type Orchestrator struct {
	balances    BalanceSource
	orders      OrderClient
	broadcaster Broadcaster
	signer      Signer
	symbols     SymbolResolver
	confirmer   Confirmer
	log         *Log
	logger      *zap.Logger

	targetMint string
	keep       map[string]struct{}
}

// New creates an orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	keep := make(map[string]struct{}, len(deps.KeepMints))
	for _, mint := range deps.KeepMints {
		keep[mint] = struct{}{}
	}

	log := deps.Log
	if log == nil {
		log = NewLog()
	}

	return &Orchestrator{
		balances:    deps.Balances,
		orders:      deps.Orders,
		broadcaster: deps.Broadcaster,
		signer:      deps.Signer,
		symbols:     deps.Symbols,
		confirmer:   deps.Confirmer,
		log:         log,
		logger:      deps.Logger,
		targetMint:  deps.TargetMint,
		keep:        keep,
	}
}

// Log returns the session transaction history.
func (o *Orchestrator) Log() *Log {
	return o.log
}

// SweepAll converts every sweepable balance into the target token:
// quote each candidate concurrently, sign the surviving transactions in
// one batched prompt, execute concurrently, and reconcile per item.
// One item's failure never blocks its siblings. Balances are re-read
// into the report whatever happens.
func (o *Orchestrator) SweepAll(ctx context.Context, owner solana.PublicKey) (*Report, error) {
	report := &Report{}
	defer o.refreshBalances(ctx, owner, report)

	balances, err := o.balances.Read(ctx, owner)
	if err != nil {
		return report, errors.Wrap(err, "read balances")
	}

	items := o.sweepCandidates(balances)
	if len(items) == 0 {
		report.Reason = "no tokens to sweep (or all are kept)"
		return report, nil
	}
	report.Items = items

	o.quoteAll(ctx, owner, items)

	if err := o.signAll(ctx, items); err != nil {
		report.Reason = "transaction signing refused"
		return report, err
	}

	o.executeAll(ctx, items)
	o.reconcile(ctx, items, report)
	return report, nil
}

// SweepOne sweeps a single mint through the same pipeline.
func (o *Orchestrator) SweepOne(ctx context.Context, owner solana.PublicKey, mint string) (*Report, error) {
	report := &Report{}
	defer o.refreshBalances(ctx, owner, report)

	balances, err := o.balances.Read(ctx, owner)
	if err != nil {
		return report, errors.Wrap(err, "read balances")
	}

	balance, ok := balances[mint]
	if !ok || balance.RawAmount == "" {
		return report, errors.Errorf("no balance for mint %s", mint)
	}
	raw, ok := math.NewIntFromString(balance.RawAmount)
	if !ok || !raw.IsPositive() {
		report.Reason = "nothing to sweep"
		return report, nil
	}

	items := []*Item{{
		Index:        0,
		Mint:         mint,
		TokenAccount: balance.TokenAccount,
		RawAmount:    balance.RawAmount,
		Outcome:      Outcome{Status: StatusPending},
	}}
	report.Items = items

	o.quoteAll(ctx, owner, items)
	if err := o.signAll(ctx, items); err != nil {
		report.Reason = "transaction signing refused"
		return report, err
	}
	o.executeAll(ctx, items)
	o.reconcile(ctx, items, report)
	return report, nil
}

// CloseAll reclaims rent from every emptied token account: build one
// close transaction per zero-balance account, sign once, broadcast
// concurrently.
func (o *Orchestrator) CloseAll(ctx context.Context, owner solana.PublicKey) (*Report, error) {
	report := &Report{}
	defer o.refreshBalances(ctx, owner, report)

	balances, err := o.balances.Read(ctx, owner)
	if err != nil {
		return report, errors.Wrap(err, "read balances")
	}

	items := o.closeCandidates(balances)
	if len(items) == 0 {
		report.Reason = "no closeable accounts"
		return report, nil
	}
	report.Items = items

	o.buildCloseAll(ctx, owner, items)

	if err := o.signAll(ctx, items); err != nil {
		report.Reason = "transaction signing refused"
		return report, err
	}

	o.broadcastAll(ctx, items)
	o.reconcile(ctx, items, report)
	return report, nil
}

// CloseOne closes a single token account.
func (o *Orchestrator) CloseOne(ctx context.Context, owner solana.PublicKey, tokenAccount string) (*Report, error) {
	report := &Report{}
	defer o.refreshBalances(ctx, owner, report)

	balances, err := o.balances.Read(ctx, owner)
	if err != nil {
		return report, errors.Wrap(err, "read balances")
	}

	var mint string
	for m, b := range balances {
		if b.TokenAccount == tokenAccount {
			mint = m
			break
		}
	}
	if mint == "" {
		return report, errors.Errorf("no token account %s for this wallet", tokenAccount)
	}

	items := []*Item{{
		Index:        0,
		Mint:         mint,
		TokenAccount: tokenAccount,
		RawAmount:    balances[mint].RawAmount,
		Outcome:      Outcome{Status: StatusPending},
	}}
	report.Items = items

	o.buildCloseAll(ctx, owner, items)
	if err := o.signAll(ctx, items); err != nil {
		report.Reason = "transaction signing refused"
		return report, err
	}
	o.broadcastAll(ctx, items)
	o.reconcile(ctx, items, report)
	return report, nil
}

// sweepCandidates selects positive balances, skipping the native entry,
// the target token, and user-kept mints. Mints are sorted so item
// indices are deterministic.
func (o *Orchestrator) sweepCandidates(balances map[string]sol.Balance) []*Item {
	mints := sortedMints(balances)

	var items []*Item
	for _, mint := range mints {
		if mint == sol.NativeKey || mint == o.targetMint {
			continue
		}
		if _, kept := o.keep[mint]; kept {
			continue
		}

		balance := balances[mint]
		raw, ok := math.NewIntFromString(balance.RawAmount)
		if !ok || !raw.IsPositive() {
			continue
		}

		items = append(items, &Item{
			Index:        len(items),
			Mint:         mint,
			TokenAccount: balance.TokenAccount,
			RawAmount:    balance.RawAmount,
			Outcome:      Outcome{Status: StatusPending},
		})
	}
	return items
}

// closeCandidates selects zero-balance token accounts.
func (o *Orchestrator) closeCandidates(balances map[string]sol.Balance) []*Item {
	mints := sortedMints(balances)

	var items []*Item
	for _, mint := range mints {
		if mint == sol.NativeKey || mint == o.targetMint {
			continue
		}

		balance := balances[mint]
		if balance.TokenAccount == "" {
			continue
		}
		raw, ok := math.NewIntFromString(balance.RawAmount)
		if !ok || !raw.IsZero() {
			continue
		}

		items = append(items, &Item{
			Index:        len(items),
			Mint:         mint,
			TokenAccount: balance.TokenAccount,
			RawAmount:    balance.RawAmount,
			Outcome:      Outcome{Status: StatusPending},
		})
	}
	return items
}

// quoteAll requests one unsigned order per item concurrently. A failed
// quote marks its item failed; siblings proceed. Surviving blobs are
// decoded in place.
func (o *Orchestrator) quoteAll(ctx context.Context, owner solana.PublicKey, items []*Item) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()

			order, err := o.orders.CreateOrder(ctx, owner.String(), it.Mint, o.targetMint, it.RawAmount)
			if err != nil {
				it.fail(err)
				o.logger.Warn("quote failed",
					zap.Int("index", it.Index),
					zap.String("mint", it.Mint),
					zap.Error(err),
				)
				return
			}
			it.Order = order
		}(item)
	}
	wg.Wait()

	for _, item := range items {
		if !item.pending() {
			continue
		}
		tx, err := decodeTransaction(item.Order.Transaction)
		if err != nil {
			item.fail(err)
			o.logger.Warn("order transaction undecodable",
				zap.Int("index", item.Index),
				zap.String("mint", item.Mint),
				zap.Error(err),
			)
			continue
		}
		item.Tx = tx
	}
}

// buildCloseAll constructs one close transaction per item concurrently.
func (o *Orchestrator) buildCloseAll(ctx context.Context, owner solana.PublicKey, items []*Item) {
	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()

			account, err := solana.PublicKeyFromBase58(it.TokenAccount)
			if err != nil {
				it.fail(errors.Wrapf(err, "token account %s", it.TokenAccount))
				return
			}

			blob, err := o.broadcaster.BuildCloseTransaction(ctx, owner, account)
			if err != nil {
				it.fail(err)
				o.logger.Warn("close transaction build failed",
					zap.Int("index", it.Index),
					zap.String("tokenAccount", it.TokenAccount),
					zap.Error(err),
				)
				return
			}

			tx, err := decodeTransaction(blob)
			if err != nil {
				it.fail(err)
				return
			}
			it.Tx = tx
		}(item)
	}
	wg.Wait()
}

// signAll signs every surviving transaction in ONE signer interaction.
// A refusal aborts the whole batch before anything is submitted.
func (o *Orchestrator) signAll(ctx context.Context, items []*Item) error {
	if o.signer == nil {
		return ErrCannotBatchSign
	}

	var (
		txs  []*solana.Transaction
		live []*Item
	)
	for _, item := range items {
		if item.pending() && item.Tx != nil {
			txs = append(txs, item.Tx)
			live = append(live, item)
		}
	}
	if len(txs) == 0 {
		return nil
	}

	signed, err := o.signer.SignAllTransactions(ctx, txs)
	if err != nil {
		return errors.Wrap(err, "batch signing")
	}
	if len(signed) != len(txs) {
		return errors.Errorf("signer returned %d transactions, want %d", len(signed), len(txs))
	}

	// live runs parallel to txs, so index i pairs item and signature.
	for i, item := range live {
		item.Tx = signed[i]
	}
	return nil
}

// executeAll submits every signed order concurrently. Outcomes are
// collected independently: a provider Failure marks the item failed, a
// transport error marks it unknown (the order may have been consumed
// already, so it is never re-executed), and nothing cancels siblings.
func (o *Orchestrator) executeAll(ctx context.Context, items []*Item) {
	var wg sync.WaitGroup
	for _, item := range items {
		if !item.pending() || item.Tx == nil {
			continue
		}

		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()

			blob, err := encodeTransaction(it.Tx)
			if err != nil {
				it.fail(err)
				return
			}

			signature, err := o.orders.ExecuteOrder(ctx, blob, it.Order.RequestID)
			if err != nil {
				if ultra.IsProviderError(err) {
					it.fail(err)
				} else {
					it.Outcome = Outcome{Status: StatusUnknown, Err: err}
				}
				return
			}
			it.Outcome = Outcome{Status: StatusSucceeded, Signature: signature}
		}(item)
	}
	wg.Wait()
}

// broadcastAll submits every signed close transaction concurrently.
func (o *Orchestrator) broadcastAll(ctx context.Context, items []*Item) {
	var wg sync.WaitGroup
	for _, item := range items {
		if !item.pending() || item.Tx == nil {
			continue
		}

		wg.Add(1)
		go func(it *Item) {
			defer wg.Done()

			blob, err := encodeTransaction(it.Tx)
			if err != nil {
				it.fail(err)
				return
			}

			signature, err := o.broadcaster.Broadcast(ctx, blob)
			if err != nil {
				it.fail(err)
				return
			}
			it.Outcome = Outcome{Status: StatusSucceeded, Signature: signature}

			if o.confirmer != nil {
				if err := o.confirmer.WaitForSignature(ctx, signature); err != nil {
					// Advisory only: the node accepted the transaction.
					o.logger.Warn("confirmation wait failed",
						zap.String("signature", signature),
						zap.Error(err),
					)
				}
			}
		}(item)
	}
	wg.Wait()
}

// reconcile walks items by index, appends log entries for successes,
// and aggregates counts. Failures are logged, not raised: the batch
// reports a best-effort summary.
func (o *Orchestrator) reconcile(ctx context.Context, items []*Item, report *Report) {
	for _, item := range items {
		switch item.Outcome.Status {
		case StatusSucceeded:
			report.Succeeded++
			o.log.Append(item.Outcome.Signature, o.symbolOf(ctx, item.Mint))
		case StatusFailed:
			report.Failed++
			if report.Reason == "" {
				report.Reason = userMessage(item.Outcome.Err)
			}
			o.logger.Warn("batch item failed",
				zap.Int("index", item.Index),
				zap.String("mint", item.Mint),
				zap.Error(item.Outcome.Err),
			)
		case StatusUnknown:
			report.Unknown++
			o.logger.Warn("batch item outcome unknown, not retrying",
				zap.Int("index", item.Index),
				zap.String("mint", item.Mint),
				zap.Error(item.Outcome.Err),
			)
		}
	}
}

// refreshBalances re-reads wallet state into the report. Runs whether
// the batch succeeded or not, so callers always see the post-batch
// state.
func (o *Orchestrator) refreshBalances(ctx context.Context, owner solana.PublicKey, report *Report) {
	balances, err := o.balances.Read(ctx, owner)
	if err != nil {
		o.logger.Warn("balance refresh after batch failed", zap.Error(err))
		return
	}
	report.Balances = balances
}

func (o *Orchestrator) symbolOf(ctx context.Context, mint string) string {
	if o.symbols == nil {
		return ultra.ShortMint(mint)
	}
	return o.symbols.Symbol(ctx, mint)
}

func decodeTransaction(blob string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction blob")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, errors.Wrap(err, "deserialize transaction")
	}
	return tx, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "serialize transaction")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// userMessage extracts a plain-text message from structured provider
// errors, falling back to the raw error text.
func userMessage(err error) string {
	if err == nil {
		return "batch failed"
	}

	var execErr *ultra.ExecutionError
	if errors.As(err, &execErr) && execErr.Message != "" {
		return execErr.Message
	}
	var quoteErr *ultra.QuoteError
	if errors.As(err, &quoteErr) && quoteErr.Body != "" {
		return quoteErr.Body
	}
	return err.Error()
}

func sortedMints(balances map[string]sol.Balance) []string {
	mints := make([]string, 0, len(balances))
	for mint := range balances {
		mints = append(mints, mint)
	}
	sort.Strings(mints)
	return mints
}
