// Package masterkey derives the vault master passphrase from a BIP-39
// mnemonic, so operators can back up the escrow vault on paper.
package masterkey

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// SeedSize is the length of a BIP-39 derived seed in bytes.
const SeedSize = 64

// Derivation path for the vault key: m/44'/8560'/0'.
const (
	purposeBIP44 = bip32.FirstHardenedChild + 44
	coinType     = bip32.FirstHardenedChild + 8560
	accountVault = bip32.FirstHardenedChild + 0
)

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks a mnemonic per BIP-39 (word count, word list,
// checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic derives a 512-bit seed from a mnemonic and optional
// passphrase using PBKDF2-SHA512 as specified in BIP-39.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return seed, nil
}

// DeriveVaultKey derives the 32-byte vault master key at m/44'/8560'/0'
// from a BIP-39 seed. The caller should zero the result when done.
func DeriveVaultKey(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, idx := range []uint32{purposeBIP44, coinType, accountVault} {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}
	out := make([]byte, 32)
	copy(out, key.Key)
	return out, nil
}
