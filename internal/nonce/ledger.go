// Package nonce defines the replay-nonce ledger backing HMAC verification.
package nonce

import (
	"context"
	"time"
)

// Ledger records nonce values so a signed request can never verify twice.
type Ledger interface {
	// Remember records the nonce atomically; returns errs.ErrDuplicateNonce
	// if the value has been seen before.
	Remember(ctx context.Context, nonce string, seenAt time.Time) error
	// PurgeBefore deletes nonces seen at or before the cutoff. Idempotent
	// maintenance; bounds table growth, not correctness.
	PurgeBefore(ctx context.Context, cutoff time.Time) error
}
