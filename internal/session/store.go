package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-escrow/internal/storage"
)

// Store persists sessions and owns the per-session critical section.
// All status and settlement-field mutations must run inside WithLock for
// the session in question; reads may go through Get directly.
type Store interface {
	// Create persists a new session. Fails if the id already exists.
	Create(s *Session) error
	// Get returns the session by id, or ErrNotFound.
	Get(id string) (*Session, error)
	// Update overwrites an existing session. Fails with ErrNotFound if the
	// session was never created.
	Update(s *Session) error
	// List returns all sessions in unspecified order.
	List() ([]*Session, error)
	// WithLock runs fn while holding the session's exclusive lock.
	// Locks are per-session; operations on different sessions never
	// contend.
	WithLock(id string, fn func() error) error
	Close() error
}

// Session record keyspace within the backing DB.
var prefixSession = []byte("s/")

// DBStore implements Store over a storage.DB (memory for tests, badger in
// production). Sessions are stored as JSON under "s/<id>".
type DBStore struct {
	db storage.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDBStore creates a session store backed by the given database.
func NewDBStore(db storage.DB) *DBStore {
	return &DBStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

func sessionKey(id string) []byte {
	return append(append([]byte{}, prefixSession...), id...)
}

// Create persists a new session.
func (st *DBStore) Create(s *Session) error {
	if s.ID == "" {
		return fmt.Errorf("%w: session id is empty", ErrValidation)
	}
	key := sessionKey(s.ID)
	exists, err := st.db.Has(key)
	if err != nil {
		return fmt.Errorf("session exists check: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: session %s already exists", ErrValidation, s.ID)
	}
	return st.write(key, s)
}

// Get returns the session by id.
func (st *DBStore) Get(id string) (*Session, error) {
	data, err := st.db.Get(sessionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session %s unmarshal: %w", id, err)
	}
	return &s, nil
}

// Update overwrites an existing session.
func (st *DBStore) Update(s *Session) error {
	key := sessionKey(s.ID)
	exists, err := st.db.Has(key)
	if err != nil {
		return fmt.Errorf("session exists check: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	return st.write(key, s)
}

// List returns all stored sessions.
func (st *DBStore) List() ([]*Session, error) {
	var out []*Session
	err := st.db.ForEach(prefixSession, func(key, value []byte) error {
		var s Session
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("session %s unmarshal: %w", key, err)
		}
		out = append(out, &s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WithLock runs fn while holding the session's exclusive lock.
func (st *DBStore) WithLock(id string, fn func() error) error {
	mu := st.sessionLock(id)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// sessionLock returns the mutex for a session, creating it on first use.
// Lock entries are never removed: sessions are few and long-lived, and a
// stale entry is just an idle mutex.
func (st *DBStore) sessionLock(id string) *sync.Mutex {
	st.mu.Lock()
	defer st.mu.Unlock()
	mu, ok := st.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		st.locks[id] = mu
	}
	return mu
}

// Close closes the backing database.
func (st *DBStore) Close() error {
	return st.db.Close()
}

func (st *DBStore) write(key []byte, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session %s marshal: %w", s.ID, err)
	}
	if err := st.db.Put(key, data); err != nil {
		return fmt.Errorf("session %s put: %w", s.ID, err)
	}
	return nil
}
