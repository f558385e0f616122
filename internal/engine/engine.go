// Package engine implements the custodial escrow and reward distribution
// core: session creation, joins, deposit monitoring, and exactly-once
// settlement over a pluggable chain adapter.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/chain"
	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/Klingon-tech/klingnet-escrow/internal/resolver"
	"github.com/Klingon-tech/klingnet-escrow/internal/session"
	"github.com/Klingon-tech/klingnet-escrow/internal/vault"
	"github.com/rs/zerolog"
)

// Config holds engine tunables. Reserve values are chain-economics
// decisions supplied by the operator.
type Config struct {
	// MinRetainedBalance is kept in the escrow account after payout
	// (e.g. a chain's minimum account balance).
	MinRetainedBalance uint64
	// FeeReserve is withheld from the payout to cover the network fee.
	FeeReserve uint64
	// ConfirmAttempts bounds the settlement confirmation poll loop.
	ConfirmAttempts int
	// DefaultCapacity is used when CreateSession is called with capacity 0.
	DefaultCapacity int
}

// DefaultConfig returns production defaults for the two-party variant.
func DefaultConfig() Config {
	return Config{
		MinRetainedBalance: 100_000,
		FeeReserve:         1_000,
		ConfirmAttempts:    6,
		DefaultCapacity:    2,
	}
}

// Engine drives the session lifecycle. All mutations of a session's status
// and settlement fields run inside the store's per-session lock; sessions
// never contend with each other.
type Engine struct {
	store    session.Store
	vault    *vault.Vault
	adapter  chain.Adapter
	resolver *resolver.Resolver
	cfg      Config
	logger   zerolog.Logger
}

// New creates an engine.
func New(store session.Store, v *vault.Vault, adapter chain.Adapter, res *resolver.Resolver, cfg Config) *Engine {
	if cfg.ConfirmAttempts < 1 {
		cfg.ConfirmAttempts = DefaultConfig().ConfirmAttempts
	}
	if cfg.DefaultCapacity < 1 {
		cfg.DefaultCapacity = DefaultConfig().DefaultCapacity
	}
	return &Engine{
		store:    store,
		vault:    v,
		adapter:  adapter,
		resolver: res,
		cfg:      cfg,
		logger:   log.Engine,
	}
}

// CreateSession generates a custodial escrow keypair, seals the key, and
// persists a new session in the Created state.
func (e *Engine) CreateSession(ctx context.Context, stakePerPlayer uint64, capacity int) (*session.Session, error) {
	if stakePerPlayer == 0 {
		return nil, fmt.Errorf("%w: stake must be positive", session.ErrValidation)
	}
	if capacity == 0 {
		capacity = e.cfg.DefaultCapacity
	}
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1", session.ErrValidation)
	}

	id, err := session.NewID()
	if err != nil {
		return nil, err
	}

	address, secret, err := e.adapter.GenerateKeypair(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session %s: generate keypair: %w", id, err)
	}
	encrypted, err := e.vault.Encrypt(secret)
	zeroBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("create session %s: seal escrow key: %w", id, err)
	}

	now := time.Now().UTC()
	s := &session.Session{
		ID:             id,
		EscrowAddress:  address,
		EncryptedKey:   encrypted,
		StakePerPlayer: stakePerPlayer,
		Capacity:       capacity,
		Status:         session.StatusCreated,
		MinRetained:    e.cfg.MinRetainedBalance,
		FeeReserve:     e.cfg.FeeReserve,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.Create(s); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("session_id", id).
		Str("escrow_address", address).
		Uint64("stake", stakePerPlayer).
		Int("capacity", capacity).
		Msg("session created")

	return s, nil
}

// JoinResult tells the caller where the new player should send their stake.
type JoinResult struct {
	SessionID     string `json:"session_id"`
	PlayerID      string `json:"player_id"`
	EscrowAddress string `json:"escrow_address"`
}

// JoinSession resolves the player's address and appends them to the
// session. The first join moves the session from Created to
// AwaitingDeposits.
func (e *Engine) JoinSession(ctx context.Context, sessionID, addressInput string) (*JoinResult, error) {
	address, err := e.resolver.Resolve(ctx, addressInput)
	if err != nil {
		return nil, fmt.Errorf("%w: join session %s: %v", session.ErrValidation, sessionID, err)
	}

	playerID, err := session.NewID()
	if err != nil {
		return nil, err
	}

	var result *JoinResult
	err = e.store.WithLock(sessionID, func() error {
		s, err := e.store.Get(sessionID)
		if err != nil {
			return err
		}

		if s.Status != session.StatusCreated && s.Status != session.StatusAwaitingDeposits {
			return fmt.Errorf("%w: session %s: cannot join in status %s", session.ErrInvalidTransition, s.ID, s.Status)
		}
		if len(s.Players) >= s.Capacity {
			return fmt.Errorf("%w: session %s: capacity %d reached", session.ErrValidation, s.ID, s.Capacity)
		}
		if s.HasPlayer(address) {
			return fmt.Errorf("%w: session %s: address %s already joined", session.ErrValidation, s.ID, address)
		}

		s.Players = append(s.Players, session.Player{
			ID:       playerID,
			Address:  address,
			JoinedAt: time.Now().UTC(),
		})
		if s.Status == session.StatusCreated {
			if err := s.Transition(session.StatusAwaitingDeposits); err != nil {
				return err
			}
		} else {
			s.UpdatedAt = time.Now().UTC()
		}
		if err := e.store.Update(s); err != nil {
			return err
		}

		result = &JoinResult{
			SessionID:     s.ID,
			PlayerID:      playerID,
			EscrowAddress: s.EscrowAddress,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("session_id", sessionID).
		Str("player_id", playerID).
		Msg("player joined")

	return result, nil
}

// GetSession returns the session by id.
func (e *Engine) GetSession(sessionID string) (*session.Session, error) {
	return e.store.Get(sessionID)
}

// ListSessions returns sessions, optionally filtered by status
// (empty filter = all). Used for operator reconciliation.
func (e *Engine) ListSessions(status session.Status) ([]*session.Session, error) {
	all, err := e.store.List()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	filtered := all[:0]
	for _, s := range all {
		if s.Status == status {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
