package main

import "sweeper/pkg/sol"

type balancesRequest struct {
	User string `json:"user"`
}

type orderRequest struct {
	User       string `json:"user"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	Amount     string `json:"amount"`
}

type executeRequest struct {
	SignedTransaction string `json:"signedTransaction"`
	RequestID         string `json:"requestId"`
}

type broadcastRequest struct {
	SignedTransaction string `json:"signedTransaction"`
}

type closeAccountRequest struct {
	User         string `json:"user"`
	TokenAccount string `json:"tokenAccount"`
}

type signatureResponse struct {
	Signature string `json:"signature"`
}

type transactionResponse struct {
	Transaction string `json:"transaction"`
}

type balancesResponse map[string]sol.Balance

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Endpoints int    `json:"endpoints"`
	Uptime    string `json:"uptime"`
}
