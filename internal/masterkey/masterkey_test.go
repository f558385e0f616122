package masterkey

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateMnemonic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if words := strings.Fields(mnemonic); len(words) != 24 {
		t.Errorf("mnemonic has %d words, want 24", len(words))
	}
	if !ValidateMnemonic(mnemonic) {
		t.Error("generated mnemonic does not validate")
	}

	other, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}
	if mnemonic == other {
		t.Error("two generated mnemonics are equal")
	}
}

func TestValidateMnemonic(t *testing.T) {
	if ValidateMnemonic("not a real mnemonic at all") {
		t.Error("garbage mnemonic validated")
	}
	if ValidateMnemonic("") {
		t.Error("empty mnemonic validated")
	}
}

func TestDeriveVaultKey_Deterministic(t *testing.T) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("GenerateMnemonic() error: %v", err)
	}

	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		t.Fatalf("SeedFromMnemonic() error: %v", err)
	}
	if len(seed) != SeedSize {
		t.Fatalf("seed length = %d, want %d", len(seed), SeedSize)
	}

	a, err := DeriveVaultKey(seed)
	if err != nil {
		t.Fatalf("DeriveVaultKey() error: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("vault key length = %d, want 32", len(a))
	}

	// Same mnemonic, same key.
	seed2, _ := SeedFromMnemonic(mnemonic, "")
	b, err := DeriveVaultKey(seed2)
	if err != nil {
		t.Fatalf("DeriveVaultKey() error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("derivation is not deterministic")
	}

	// A BIP-39 passphrase changes the key.
	seed3, _ := SeedFromMnemonic(mnemonic, "extra")
	c, err := DeriveVaultKey(seed3)
	if err != nil {
		t.Fatalf("DeriveVaultKey() error: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Error("passphrase did not change the derived key")
	}
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	if _, err := SeedFromMnemonic("bad words here", ""); err == nil {
		t.Error("invalid mnemonic should fail")
	}
}

func TestDeriveVaultKey_BadSeed(t *testing.T) {
	if _, err := DeriveVaultKey(make([]byte, 16)); err == nil {
		t.Error("short seed should fail")
	}
}
