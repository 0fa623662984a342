package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sweeper/pkg/sol"
	"sweeper/pkg/ultra"
)

// server exposes the sweeper's internal HTTP surface to the UI layer.
type server struct {
	rotator     *sol.Rotator
	reader      *sol.BalanceReader
	broadcaster *sol.Broadcaster
	ultra       *ultra.Client
	logger      *zap.Logger
	startTime   time.Time
}

// parseAddress validates a base58 32-byte account address before it
// ever reaches a node.
func parseAddress(raw string) (solana.PublicKey, error) {
	decoded, err := base58.Decode(raw)
	if err != nil {
		return solana.PublicKey{}, errors.Wrap(err, "invalid base58 address")
	}
	if len(decoded) != solana.PublicKeyLength {
		return solana.PublicKey{}, errors.Errorf("address must be %d bytes, got %d", solana.PublicKeyLength, len(decoded))
	}
	return solana.PublicKeyFromBytes(decoded), nil
}

func (s *server) handleBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req balancesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.User == "" {
		writeError(w, `missing "user" field in request body`, http.StatusBadRequest)
		return
	}

	owner, err := parseAddress(req.User)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	balances, err := s.reader.Read(r.Context(), owner)
	if err != nil {
		s.logger.Error("balance read failed", zap.String("owner", req.User), zap.Error(err))
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, balancesResponse(balances))
}

func (s *server) handleOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" || req.InputMint == "" || req.OutputMint == "" || req.Amount == "" {
		writeError(w, "missing required fields: user, inputMint, outputMint, amount", http.StatusBadRequest)
		return
	}

	order, err := s.ultra.CreateOrder(r.Context(), req.User, req.InputMint, req.OutputMint, req.Amount)
	if err != nil {
		s.logger.Warn("order creation failed", zap.String("inputMint", req.InputMint), zap.Error(err))
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, order)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SignedTransaction == "" || req.RequestID == "" {
		writeError(w, "missing signedTransaction or requestId", http.StatusBadRequest)
		return
	}

	signature, err := s.ultra.ExecuteOrder(r.Context(), req.SignedTransaction, req.RequestID)
	if err != nil {
		s.logger.Warn("order execution failed", zap.String("requestId", req.RequestID), zap.Error(err))
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, signatureResponse{Signature: signature})
}

func (s *server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SignedTransaction == "" {
		writeError(w, "missing signedTransaction", http.StatusBadRequest)
		return
	}

	signature, err := s.broadcaster.Broadcast(r.Context(), req.SignedTransaction)
	if err != nil {
		s.logger.Warn("broadcast failed", zap.Error(err))
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, signatureResponse{Signature: signature})
}

func (s *server) handleCloseAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req closeAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.User == "" || req.TokenAccount == "" {
		writeError(w, "missing user or tokenAccount", http.StatusBadRequest)
		return
	}

	owner, err := parseAddress(req.User)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	account, err := parseAddress(req.TokenAccount)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	blob, err := s.broadcaster.BuildCloseTransaction(r.Context(), owner, account)
	if err != nil {
		s.logger.Error("close transaction build failed", zap.String("tokenAccount", req.TokenAccount), zap.Error(err))
		writeError(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, transactionResponse{Transaction: blob})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthResponse{
		Status:    "healthy",
		Endpoints: s.rotator.Size(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

// statusFor maps error classes to HTTP statuses: provider refusals are
// upstream errors, everything else is internal.
func statusFor(err error) int {
	if ultra.IsProviderError(err) {
		return http.StatusBadGateway
	}
	if errors.Is(err, sol.ErrNoEndpoints) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
