package config

import (
	"bufio"
	"os"
	"strings"
)

// Default provider endpoints and target token used when the environment
// does not override them.
const (
	DefaultUltraAPIURL = "https://lite-api.jup.ag/ultra/v1"
	DefaultTokenAPIURL = "https://lite-api.jup.ag/tokens/v1"

	// JUP mint, the default sweep destination.
	DefaultTargetMint = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
)

// LoadEnv loads environment variables from a .env file if it exists
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		// .env file is optional
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Only set if not already set in environment
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}

// RPCEndpoints returns the ordered node endpoint list from RPC_ENDPOINTS.
// An empty or unset variable yields a nil slice; the rotator fails fast on it.
func RPCEndpoints() []string {
	return splitList(os.Getenv("RPC_ENDPOINTS"))
}

// UltraAPIURL returns the base URL of the order provider.
func UltraAPIURL() string {
	if v := os.Getenv("ULTRA_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return DefaultUltraAPIURL
}

// TokenAPIURL returns the base URL of the token metadata service.
func TokenAPIURL() string {
	if v := os.Getenv("TOKEN_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return DefaultTokenAPIURL
}

// TargetMint returns the mint every sweep converts into.
func TargetMint() string {
	if v := os.Getenv("TARGET_MINT"); v != "" {
		return v
	}
	return DefaultTargetMint
}

// KeepMints returns mints the user flagged to never sweep
// (KEEP_MINTS, comma-separated).
func KeepMints() []string {
	return splitList(os.Getenv("KEEP_MINTS"))
}

// WalletPrivateKey returns the base58 signing key for the CLI, if set.
func WalletPrivateKey() string {
	return os.Getenv("WALLET_PRIVATE_KEY")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
