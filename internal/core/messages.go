package core

// messages.go translates persistence errors into messages safe to hand back
// to the caller. Per-row failures during an import are reported as data in
// Failed[], so the raw store error (driver details, SQL, hosts) must never
// leak into them.
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.

import "strings"

type errorPattern struct {
	pattern string
	message string
}

var persistencePatterns = []errorPattern{
	{"duplicate key", "a record with this key already exists"},
	{"unique constraint", "a record with this key already exists"},
	{"violates unique", "a record with this key already exists"},
	{"foreign key", "a referenced record does not exist"},
	{"connection refused", "the record store is unavailable, try again shortly"},
	{"connection reset", "the record store connection was interrupted, try again"},
	{"deadlock", "the record store was busy, try again"},
	{"context canceled", "the operation was cancelled"},
	{"context deadline exceeded", "the operation timed out"},
	{"timeout", "the operation timed out"},
}

// persistenceMessage returns a user-safe description of a store failure.
// Unclassified errors collapse to a generic message rather than exposing
// internal store details.
func persistenceMessage(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	for _, p := range persistencePatterns {
		if strings.Contains(lower, p.pattern) {
			return p.message
		}
	}
	return "the record could not be saved"
}
