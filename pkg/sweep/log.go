package sweep

import "sync"

// LogEntry maps one on-chain signature to the display names of the
// tokens it involved.
type LogEntry struct {
	Signature string   `json:"signature"`
	Tokens    []string `json:"tokens"`
}

// Log is the append-only session history shown to the user. It lives
// for the session only and is cleared on explicit request.
type Log struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewLog creates an empty transaction log.
func NewLog() *Log {
	return &Log{}
}

// Append records a signature with its token names.
func (l *Log) Append(signature string, tokens ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Signature: signature, Tokens: tokens})
}

// Entries returns a copy of the history in append order.
func (l *Log) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops the history.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
