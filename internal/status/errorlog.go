package status

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultErrorLogLimit is the number of messages a run keeps in memory.
	DefaultErrorLogLimit = 100

	// PersistedErrorCount is the number of most recent messages persisted.
	PersistedErrorCount = 20

	// PersistedErrorBytes caps the persisted, newline-joined messages.
	PersistedErrorBytes = 8 * 1024
)

// ErrorLog is a bounded list of error messages. Once full, the oldest message
// is dropped for every new one. It is not safe for concurrent use.
type ErrorLog struct {
	limit   int
	entries []string
}

// NewErrorLog creates an ErrorLog holding at most limit messages.
func NewErrorLog(limit int) *ErrorLog {
	if limit <= 0 {
		limit = DefaultErrorLogLimit
	}
	return &ErrorLog{limit: limit}
}

// Add appends a message, dropping the oldest past the limit.
func (l *ErrorLog) Add(msg string) {
	if len(l.entries) == l.limit {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.limit-1]
	}
	l.entries = append(l.entries, msg)
}

// Len returns the number of retained messages.
func (l *ErrorLog) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the retained messages, oldest first.
func (l *ErrorLog) Entries() []string {
	return append([]string(nil), l.entries...)
}

// JoinErrors encodes the most recent PersistedErrorCount messages for storage,
// newline separated and truncated to PersistedErrorBytes. Newlines inside a
// message are flattened.
func JoinErrors(msgs []string) string {
	if len(msgs) > PersistedErrorCount {
		msgs = msgs[len(msgs)-PersistedErrorCount:]
	}
	flat := make([]string, len(msgs))
	for i, m := range msgs {
		flat[i] = strings.ReplaceAll(m, "\n", " ")
	}
	joined := strings.Join(flat, "\n")
	if len(joined) > PersistedErrorBytes {
		cut := PersistedErrorBytes
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}

// SplitErrors decodes a value produced by JoinErrors.
func SplitErrors(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
