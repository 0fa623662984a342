package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sweeper/pkg/config"
	"sweeper/pkg/sol"
	"sweeper/pkg/ultra"
)

var (
	rpcEndpoints = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (uses RPC_ENDPOINTS if empty)")
	port         = flag.Int("port", 8080, "HTTP server port")
	rateLimit    = flag.Int("ratelimit", 20, "RPC requests per second per endpoint")
	ultraAPI     = flag.String("ultra", "", "Order provider base URL (uses ULTRA_API_URL if empty)")
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

	var endpoints []string
	if *rpcEndpoints != "" {
		endpoints = strings.Split(*rpcEndpoints, ",")
		for i := range endpoints {
			endpoints[i] = strings.TrimSpace(endpoints[i])
		}
	} else {
		endpoints = config.RPCEndpoints()
	}
	if len(endpoints) == 0 {
		logger.Fatal("no RPC endpoints configured; set RPC_ENDPOINTS or use -rpc")
	}

	ultraURL := *ultraAPI
	if ultraURL == "" {
		ultraURL = config.UltraAPIURL()
	}

	rotator := sol.NewRotator(endpoints, *rateLimit, logger)
	srv := &server{
		rotator:     rotator,
		reader:      sol.NewBalanceReader(rotator),
		broadcaster: sol.NewBroadcaster(rotator),
		ultra:       ultra.NewClient(ultraURL, nil),
		logger:      logger,
		startTime:   time.Now(),
	}

	logger.Info("starting sweeper service",
		zap.Int("port", *port),
		zap.Int("endpoints", len(endpoints)),
		zap.String("ultra", ultraURL),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/balances", srv.handleBalances)
	mux.HandleFunc("/api/order", srv.handleOrder)
	mux.HandleFunc("/api/execute", srv.handleExecute)
	mux.HandleFunc("/api/broadcast", srv.handleBroadcast)
	mux.HandleFunc("/api/closeAccount", srv.handleCloseAccount)
	mux.HandleFunc("/health", srv.handleHealth)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: corsMiddleware(mux),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}
