package sweep

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAndClear(t *testing.T) {
	log := NewLog()
	require.Empty(t, log.Entries())

	log.Append("sig-1", "USDC")
	log.Append("sig-2", "BONK", "WIF")

	entries := log.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "sig-1", entries[0].Signature)
	require.Equal(t, []string{"BONK", "WIF"}, entries[1].Tokens)

	// Entries hands out a copy.
	entries[0].Signature = "mutated"
	require.Equal(t, "sig-1", log.Entries()[0].Signature)

	log.Clear()
	require.Empty(t, log.Entries())
}
