// Package vault encrypts custodial escrow keys at rest.
//
// Keys are sealed with AES-256-GCM under a key derived from the server's
// master passphrase via PBKDF2-SHA256. Every encryption uses a fresh random
// salt and nonce, so identical plaintexts never produce related ciphertexts
// and the master passphrase is never used as a cipher key directly.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Encryption constants.
const (
	// SaltSize is the PBKDF2 salt length in bytes.
	SaltSize = 32
	// NonceSize is the AES-GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the AES-GCM authentication tag length in bytes.
	TagSize = 16
	// KeySize is the derived AES-256 key length in bytes.
	KeySize = 32

	// DefaultIterations is the PBKDF2 iteration count for new packages.
	DefaultIterations = 150_000
	// MinIterations is the lowest iteration count Decrypt will accept.
	MinIterations = 1
)

// ErrAuthentication is returned when a package fails to authenticate:
// the ciphertext or tag was tampered with, or the master passphrase is wrong.
var ErrAuthentication = errors.New("vault: authentication failed")

// Package is an encrypted secret. All byte fields marshal as base64 in JSON,
// making the package storage- and transport-safe as-is.
type Package struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Tag        []byte `json:"tag"`
	Ciphertext []byte `json:"ciphertext"`
	// Iterations records the PBKDF2 cost used at encryption time so older
	// packages stay decryptable after the default is raised.
	Iterations int `json:"iterations"`
}

// Vault seals and opens secrets under a master passphrase.
// The passphrase is held for the vault's lifetime and never logged;
// derived cipher keys live only for the duration of a single call.
type Vault struct {
	passphrase []byte
	iterations int
}

// New creates a vault using the given master passphrase and the default
// PBKDF2 cost. The passphrase must be non-empty.
func New(passphrase []byte) (*Vault, error) {
	return NewWithIterations(passphrase, DefaultIterations)
}

// NewWithIterations creates a vault with an explicit PBKDF2 iteration count.
// Intended for tests; production callers should use New.
func NewWithIterations(passphrase []byte, iterations int) (*Vault, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("vault: empty master passphrase")
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("vault: iterations must be >= %d", MinIterations)
	}
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &Vault{passphrase: p, iterations: iterations}, nil
}

// deriveKey derives the AES-256 key for one operation.
func (v *Vault) deriveKey(salt []byte, iterations int) []byte {
	return pbkdf2.Key(v.passphrase, salt, iterations, KeySize, sha256.New)
}

// Encrypt seals secret into a new Package.
func (v *Vault) Encrypt(secret []byte) (*Package, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("vault: generate salt: %w", err)
	}

	key := v.deriveKey(salt, v.iterations)
	defer zero(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("vault: generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext; split it into its own field
	// for the stored tuple.
	sealed := aead.Seal(nil, nonce, secret, nil)
	split := len(sealed) - TagSize

	pkg := &Package{
		Salt:       salt,
		Nonce:      nonce,
		Tag:        sealed[split:],
		Ciphertext: sealed[:split],
		Iterations: v.iterations,
	}
	return pkg, nil
}

// Decrypt opens a Package and returns the secret bytes.
// Returns ErrAuthentication if the tag does not verify; corrupted
// plaintext is never returned.
func (v *Vault) Decrypt(pkg *Package) ([]byte, error) {
	if pkg == nil {
		return nil, fmt.Errorf("vault: nil package")
	}
	if len(pkg.Salt) != SaltSize {
		return nil, fmt.Errorf("vault: salt must be %d bytes, got %d", SaltSize, len(pkg.Salt))
	}
	if len(pkg.Nonce) != NonceSize {
		return nil, fmt.Errorf("vault: nonce must be %d bytes, got %d", NonceSize, len(pkg.Nonce))
	}
	if len(pkg.Tag) != TagSize {
		return nil, fmt.Errorf("vault: tag must be %d bytes, got %d", TagSize, len(pkg.Tag))
	}
	iterations := pkg.Iterations
	if iterations < MinIterations {
		return nil, fmt.Errorf("vault: invalid iteration count %d", iterations)
	}

	key := v.deriveKey(pkg.Salt, iterations)
	defer zero(key)

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(pkg.Ciphertext)+TagSize)
	sealed = append(sealed, pkg.Ciphertext...)
	sealed = append(sealed, pkg.Tag...)

	secret, err := aead.Open(nil, pkg.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return secret, nil
}

// newGCM builds an AES-256-GCM AEAD from a derived key.
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: create gcm: %w", err)
	}
	return aead, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
