// Package chain defines the per-network boundary between the escrow engine
// and a ledger network, plus a built-in simulated network for tests and
// development.
package chain

import (
	"context"
	"errors"
)

// ErrAdapter marks transport/RPC failures talking to a ledger network.
// Implementations wrap their transient transport errors with it so callers
// can identify retryable failures via errors.Is.
var ErrAdapter = errors.New("chain adapter failure")

// Adapter is implemented once per ledger network. Every method that touches
// the network takes a context; a canceled context must abort the call
// without committing partial state.
type Adapter interface {
	// GenerateKeypair creates a fresh keypair and returns the canonical
	// address plus the raw secret key bytes. The caller owns the secret and
	// is responsible for scrubbing it.
	GenerateKeypair(ctx context.Context) (address string, secret []byte, err error)

	// GetBalance returns the spendable balance of an address in the
	// network's smallest unit.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// BuildSignBroadcast constructs, signs, and broadcasts a single payment
	// of amount from the keypair behind secret to toAddress, returning the
	// network transaction reference. The secret is only read for the
	// duration of the call.
	BuildSignBroadcast(ctx context.Context, secret []byte, toAddress string, amount uint64) (txRef string, err error)

	// WaitForConfirmation blocks until the transaction is confirmed or the
	// attempt budget is exhausted. It returns (false, nil) on budget
	// exhaustion; the transaction may still confirm later.
	WaitForConfirmation(ctx context.Context, txRef string, maxAttempts int) (bool, error)

	// ValidateAddress reports whether address is canonical for this network.
	ValidateAddress(address string) bool
}
