package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"sweeper/pkg/config"
	"sweeper/pkg/sol"
	"sweeper/pkg/sweep"
	"sweeper/pkg/ultra"
)

var (
	rpcEndpoints = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (uses RPC_ENDPOINTS if empty)")
	mode         = flag.String("mode", "balances", "Operation: balances, sweep, or close")
	owner        = flag.String("owner", "", "Wallet address (derived from WALLET_PRIVATE_KEY if empty)")
	targetMint   = flag.String("target", "", "Sweep destination mint (uses TARGET_MINT if empty)")
	keepMints    = flag.String("keep", "", "Comma-separated mints to never sweep (adds to KEEP_MINTS)")
	rateLimit    = flag.Int("ratelimit", 20, "RPC requests per second per endpoint")
	confirm      = flag.Bool("confirm", false, "Wait for close transactions to confirm over WebSocket")
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env file: %v\n", err)
	}

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	endpoints := config.RPCEndpoints()
	if *rpcEndpoints != "" {
		endpoints = strings.Split(*rpcEndpoints, ",")
		for i := range endpoints {
			endpoints[i] = strings.TrimSpace(endpoints[i])
		}
	}
	if len(endpoints) == 0 {
		logger.Fatal("no RPC endpoints configured; set RPC_ENDPOINTS or use -rpc")
	}

	target := *targetMint
	if target == "" {
		target = config.TargetMint()
	}
	keep := config.KeepMints()
	if *keepMints != "" {
		keep = append(keep, strings.Split(*keepMints, ",")...)
	}

	var signer *sweep.LocalSigner
	if key := config.WalletPrivateKey(); key != "" {
		signer, err = sweep.NewLocalSigner(key)
		if err != nil {
			logger.Fatal("invalid WALLET_PRIVATE_KEY", zap.Error(err))
		}
	}

	var ownerKey solana.PublicKey
	switch {
	case *owner != "":
		ownerKey, err = solana.PublicKeyFromBase58(*owner)
		if err != nil {
			logger.Fatal("invalid -owner address", zap.Error(err))
		}
	case signer != nil:
		ownerKey = signer.PublicKey()
	default:
		logger.Fatal("no wallet: set WALLET_PRIVATE_KEY or pass -owner")
	}

	rotator := sol.NewRotator(endpoints, *rateLimit, logger)
	reader := sol.NewBalanceReader(rotator)
	orders := ultra.NewClient(config.UltraAPIURL(), nil)

	var confirmer sweep.Confirmer
	if *confirm {
		confirmer = sol.NewConfirmer(endpoints[0], logger)
	}

	orchestrator := sweep.New(sweep.Deps{
		Balances:    reader,
		Orders:      orders,
		Broadcaster: sol.NewBroadcaster(rotator),
		Signer:      signerOrNil(signer),
		Symbols:     ultra.NewTokenResolver(config.TokenAPIURL(), nil, logger),
		Confirmer:   confirmer,
		Log:         sweep.NewLog(),
		Logger:      logger,
		TargetMint:  target,
		KeepMints:   keep,
	})

	ctx := context.Background()

	switch *mode {
	case "balances":
		printBalances(ctx, logger, reader, orders, ownerKey)
	case "sweep":
		report, err := orchestrator.SweepAll(ctx, ownerKey)
		printReport(report, orchestrator.Log())
		if err != nil {
			logger.Fatal("sweep failed", zap.Error(err))
		}
	case "close":
		report, err := orchestrator.CloseAll(ctx, ownerKey)
		printReport(report, orchestrator.Log())
		if err != nil {
			logger.Fatal("close failed", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q (want balances, sweep, or close)\n", *mode)
		os.Exit(1)
	}
}

// signerOrNil avoids storing a typed-nil pointer in the Signer interface.
func signerOrNil(s *sweep.LocalSigner) sweep.Signer {
	if s == nil {
		return nil
	}
	return s
}

func printBalances(ctx context.Context, logger *zap.Logger, reader *sol.BalanceReader, orders *ultra.Client, owner solana.PublicKey) {
	balances, err := reader.Read(ctx, owner)
	if err != nil {
		logger.Fatal("balance read failed", zap.Error(err))
	}
	printJSON(balances)

	// Provider-side view, useful for cross-checking the node's answer.
	taker, err := orders.Balances(ctx, owner.String())
	if err != nil {
		logger.Warn("provider balance view unavailable", zap.Error(err))
		return
	}
	printJSON(taker)
}

func printReport(report *sweep.Report, log *sweep.Log) {
	if report == nil {
		return
	}
	if report.NothingToDo() {
		fmt.Println(report.Reason)
		return
	}

	fmt.Printf("items: %d, succeeded: %d, failed: %d, unknown: %d\n",
		len(report.Items), report.Succeeded, report.Failed, report.Unknown)
	if report.Reason != "" {
		fmt.Printf("note: %s\n", report.Reason)
	}
	for _, entry := range log.Entries() {
		fmt.Printf("  %s (%s)\n", entry.Signature, strings.Join(entry.Tokens, ", "))
	}
}

func printJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(v)
}
