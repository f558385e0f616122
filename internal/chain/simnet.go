package chain

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/Klingon-tech/klingnet-escrow/pkg/crypto"
	"github.com/Klingon-tech/klingnet-escrow/pkg/types"
	"github.com/rs/zerolog"
)

// simTx is an in-flight simnet transaction.
type simTx struct {
	from      string
	to        string
	amount    uint64
	remaining int // confirmation polls left before the tx counts as confirmed
}

// Simnet is an in-process ledger: balances live in a map, payments are
// Schnorr-signed and verified against the sender's registered pubkey, and
// confirmation latency is a configurable number of polls. It backs tests,
// development mode, and the CLI's local mode.
type Simnet struct {
	mu        sync.Mutex
	balances  map[string]uint64
	pubkeys   map[string][]byte // address -> compressed pubkey
	txs       map[string]*simTx
	txCounter uint64

	confirmAfter int           // polls before a broadcast tx confirms
	pollDelay    time.Duration // sleep between confirmation polls
	broadcastErr error         // injected broadcast failure
	balanceErr   error         // injected balance query failure

	logger zerolog.Logger
}

// NewSimnet creates an empty simulated ledger. Transactions confirm on the
// first WaitForConfirmation poll unless SetConfirmAfter raises the latency.
func NewSimnet() *Simnet {
	return &Simnet{
		balances:     make(map[string]uint64),
		pubkeys:      make(map[string][]byte),
		txs:          make(map[string]*simTx),
		confirmAfter: 1,
		logger:       log.Chain,
	}
}

// Fund credits an address out of thin air. Test/dev helper standing in for
// an external wallet deposit.
func (s *Simnet) Fund(address string, amount uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] += amount
}

// SetConfirmAfter sets how many confirmation polls a broadcast transaction
// needs before it reports confirmed.
func (s *Simnet) SetConfirmAfter(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if polls < 1 {
		polls = 1
	}
	s.confirmAfter = polls
}

// SetPollDelay sets the sleep between confirmation polls.
func (s *Simnet) SetPollDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollDelay = d
}

// FailBroadcast injects an error for subsequent BuildSignBroadcast calls.
// Pass nil to clear.
func (s *Simnet) FailBroadcast(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastErr = err
}

// FailBalance injects an error for subsequent GetBalance calls.
// Pass nil to clear.
func (s *Simnet) FailBalance(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceErr = err
}

// GenerateKeypair creates a new secp256k1 keypair and registers its address.
func (s *Simnet) GenerateKeypair(ctx context.Context) (string, []byte, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrAdapter, err)
	}
	pub := key.PublicKey()
	addr := crypto.AddressFromPubKey(pub).String()

	s.mu.Lock()
	s.pubkeys[addr] = pub
	if _, ok := s.balances[addr]; !ok {
		s.balances[addr] = 0
	}
	s.mu.Unlock()

	secret := key.Serialize()
	key.Zero()
	return addr, secret, nil
}

// GetBalance returns the current balance of an address.
func (s *Simnet) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balanceErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrAdapter, s.balanceErr)
	}
	if _, err := types.ParseAddress(address); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAdapter, err)
	}
	return s.balances[address], nil
}

// BuildSignBroadcast signs a payment with the secret key, verifies the
// signature against the sender's registered pubkey, debits the sender, and
// queues the transaction for confirmation.
func (s *Simnet) BuildSignBroadcast(ctx context.Context, secret []byte, toAddress string, amount uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapter, err)
	}
	defer key.Zero()

	pub := key.PublicKey()
	from := crypto.AddressFromPubKey(pub).String()

	if _, err := types.ParseAddress(toAddress); err != nil {
		return "", fmt.Errorf("%w: invalid destination: %v", ErrAdapter, err)
	}
	if amount == 0 {
		return "", fmt.Errorf("%w: zero-amount payment", ErrAdapter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broadcastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapter, s.broadcastErr)
	}
	if s.balances[from] < amount {
		return "", fmt.Errorf("%w: balance %d below payment %d", ErrAdapter, s.balances[from], amount)
	}

	s.txCounter++
	digest := s.txDigest(from, toAddress, amount, s.txCounter)
	sig, err := key.Sign(digest[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapter, err)
	}
	if !crypto.Verify(digest[:], sig, pub) {
		return "", fmt.Errorf("%w: signature self-check failed", ErrAdapter)
	}

	s.balances[from] -= amount
	s.balances[toAddress] += amount

	txRef := digest.String()
	s.txs[txRef] = &simTx{
		from:      from,
		to:        toAddress,
		amount:    amount,
		remaining: s.confirmAfter,
	}

	s.logger.Debug().
		Str("tx_ref", txRef).
		Str("to", toAddress).
		Uint64("amount", amount).
		Msg("broadcast payment")

	return txRef, nil
}

// WaitForConfirmation polls the queued transaction until it confirms or the
// attempt budget runs out.
func (s *Simnet) WaitForConfirmation(ctx context.Context, txRef string, maxAttempts int) (bool, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		s.mu.Lock()
		tx, ok := s.txs[txRef]
		if !ok {
			s.mu.Unlock()
			return false, fmt.Errorf("%w: unknown transaction %s", ErrAdapter, txRef)
		}
		if tx.remaining > 0 {
			tx.remaining--
		}
		confirmed := tx.remaining == 0
		delay := s.pollDelay
		s.mu.Unlock()

		if confirmed {
			return true, nil
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return false, nil
}

// ValidateAddress reports whether address parses as a simnet address.
func (s *Simnet) ValidateAddress(address string) bool {
	_, err := types.ParseAddress(address)
	return err == nil
}

// txDigest computes the signing digest for a payment.
func (s *Simnet) txDigest(from, to string, amount, nonce uint64) types.Hash {
	buf := make([]byte, 0, len(from)+len(to)+16)
	buf = append(buf, from...)
	buf = append(buf, to...)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return crypto.Hash(buf)
}
