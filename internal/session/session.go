// Package session holds the custody unit of the escrow engine: the session
// record, its forward-only status machine, and the persistent store the
// engine mutates it through.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/vault"
)

// Sentinel errors for the engine's failure taxonomy. Callers discriminate
// with errors.Is; messages carry session and operation context.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrNotFound            = errors.New("session not found")
	ErrNotFunded           = errors.New("session not funded")
	ErrInsufficientFunds   = errors.New("insufficient escrow funds")
	ErrConfirmationTimeout = errors.New("confirmation not observed within budget")
)

// Status is a session lifecycle state. Transitions only move forward.
type Status string

const (
	StatusCreated          Status = "created"
	StatusAwaitingDeposits Status = "awaiting_deposits"
	StatusFunded           Status = "funded"
	StatusSettled          Status = "settled"
	StatusRefunded         Status = "refunded"
)

// Terminal returns true for end states.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusRefunded
}

// CanTransition reports whether the move from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusAwaitingDeposits || next == StatusRefunded
	case StatusAwaitingDeposits:
		return next == StatusFunded || next == StatusRefunded
	case StatusFunded:
		return next == StatusSettled
	default:
		return false
	}
}

// Player is a joined participant.
type Player struct {
	ID               string    `json:"id"`
	Address          string    `json:"address"`
	JoinedAt         time.Time `json:"joined_at"`
	DepositConfirmed bool      `json:"deposit_confirmed"`
}

// Session is one unit of custody: an escrow keypair, the players staking
// into it, and the settlement outcome.
type Session struct {
	ID             string         `json:"id"`
	EscrowAddress  string         `json:"escrow_address"`
	EncryptedKey   *vault.Package `json:"encrypted_key"`
	StakePerPlayer uint64         `json:"stake_per_player"`
	Capacity       int            `json:"capacity"`
	Players        []Player       `json:"players"`
	Status         Status         `json:"status"`

	// ObservedBalance is the last polled escrow balance. Advisory only;
	// payout math re-queries the chain.
	ObservedBalance uint64 `json:"observed_balance"`

	// PayoutTxRef is set exactly once on settlement and doubles as the
	// idempotency witness for replayed settle calls.
	PayoutTxRef   string `json:"payout_tx_ref,omitempty"`
	WinnerAddress string `json:"winner_address,omitempty"`

	// RefundTxRefs records the refund payments, set exactly once when the
	// session moves to Refunded.
	RefundTxRefs []string `json:"refund_tx_refs,omitempty"`

	// MinRetained and FeeReserve are withheld from the escrow balance when
	// computing the payout amount. Chain-economics values, injected per
	// deployment and fixed at session creation.
	MinRetained uint64 `json:"min_retained"`
	FeeReserve  uint64 `json:"fee_reserve"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpectedPot is the funding threshold: stake times joined players.
func (s *Session) ExpectedPot() uint64 {
	return s.StakePerPlayer * uint64(len(s.Players))
}

// PlayerByAddress returns the joined player with the given canonical
// address, or nil.
func (s *Session) PlayerByAddress(address string) *Player {
	for i := range s.Players {
		if s.Players[i].Address == address {
			return &s.Players[i]
		}
	}
	return nil
}

// HasPlayer reports whether address belongs to a joined player.
func (s *Session) HasPlayer(address string) bool {
	return s.PlayerByAddress(address) != nil
}

// Transition moves the session to next, enforcing the forward-only graph.
func (s *Session) Transition(next Status) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("%w: session %s: %s -> %s", ErrInvalidTransition, s.ID, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// NewID generates an opaque 32-character session identifier.
func NewID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
