package vault

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

// fastVault returns a vault with a minimal PBKDF2 cost for fast tests.
func fastVault(t *testing.T, passphrase string) *Vault {
	t.Helper()
	v, err := NewWithIterations([]byte(passphrase), 10)
	if err != nil {
		t.Fatalf("NewWithIterations() error: %v", err)
	}
	return v
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	v := fastVault(t, "correct horse battery staple")
	secret := []byte("escrow private key bytes")

	pkg, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if len(pkg.Salt) != SaltSize {
		t.Errorf("salt = %d bytes, want %d", len(pkg.Salt), SaltSize)
	}
	if len(pkg.Nonce) != NonceSize {
		t.Errorf("nonce = %d bytes, want %d", len(pkg.Nonce), NonceSize)
	}
	if len(pkg.Tag) != TagSize {
		t.Errorf("tag = %d bytes, want %d", len(pkg.Tag), TagSize)
	}
	if pkg.Iterations != 10 {
		t.Errorf("iterations = %d, want 10", pkg.Iterations)
	}

	got, err := v.Decrypt(pkg)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Errorf("decrypted = %q, want %q", got, secret)
	}
}

func TestEncrypt_FreshSaltAndNonce(t *testing.T) {
	v := fastVault(t, "pass")
	secret := []byte("same secret")

	a, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if bytes.Equal(a.Salt, b.Salt) {
		t.Error("two encryptions share a salt")
	}
	if bytes.Equal(a.Nonce, b.Nonce) {
		t.Error("two encryptions share a nonce")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Error("two encryptions of the same secret produced equal ciphertexts")
	}
}

func TestDecrypt_WrongPassphrase(t *testing.T) {
	v := fastVault(t, "correct")
	pkg, err := v.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	wrong := fastVault(t, "wrong")
	if _, err := wrong.Decrypt(pkg); !errors.Is(err, ErrAuthentication) {
		t.Errorf("Decrypt with wrong passphrase = %v, want ErrAuthentication", err)
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	v := fastVault(t, "pass")

	fields := []struct {
		name string
		flip func(p *Package)
	}{
		{"ciphertext", func(p *Package) { p.Ciphertext[0] ^= 0x01 }},
		{"tag", func(p *Package) { p.Tag[0] ^= 0x01 }},
		{"nonce", func(p *Package) { p.Nonce[0] ^= 0x01 }},
		{"salt", func(p *Package) { p.Salt[0] ^= 0x01 }},
	}

	for _, tc := range fields {
		t.Run(tc.name, func(t *testing.T) {
			pkg, err := v.Encrypt([]byte("secret"))
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}
			tc.flip(pkg)
			if _, err := v.Decrypt(pkg); !errors.Is(err, ErrAuthentication) {
				t.Errorf("Decrypt after flipping %s = %v, want ErrAuthentication", tc.name, err)
			}
		})
	}
}

func TestDecrypt_MalformedPackage(t *testing.T) {
	v := fastVault(t, "pass")
	pkg, err := v.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(p *Package)
	}{
		{"short salt", func(p *Package) { p.Salt = p.Salt[:SaltSize-1] }},
		{"short nonce", func(p *Package) { p.Nonce = p.Nonce[:NonceSize-1] }},
		{"short tag", func(p *Package) { p.Tag = p.Tag[:TagSize-1] }},
		{"zero iterations", func(p *Package) { p.Iterations = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broken := *pkg
			tc.mutate(&broken)
			if _, err := v.Decrypt(&broken); err == nil {
				t.Error("Decrypt of malformed package should fail")
			}
		})
	}

	if _, err := v.Decrypt(nil); err == nil {
		t.Error("Decrypt(nil) should fail")
	}
}

func TestEncryptDecrypt_EmptySecret(t *testing.T) {
	v := fastVault(t, "pass")
	pkg, err := v.Encrypt([]byte{})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := v.Decrypt(pkg)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("decrypted empty secret should be empty, got %d bytes", len(got))
	}
}

func TestEncryptDecrypt_LargeSecret(t *testing.T) {
	v := fastVault(t, "pass")
	secret := make([]byte, 10000)
	for i := range secret {
		secret[i] = byte(i % 256)
	}

	pkg, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	got, err := v.Decrypt(pkg)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Error("large secret roundtrip failed")
	}
}

func TestPackage_JSONRoundtrip(t *testing.T) {
	v := fastVault(t, "pass")
	secret := []byte("secret")

	pkg, err := v.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	data, err := json.Marshal(pkg)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded Package
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	got, err := v.Decrypt(&decoded)
	if err != nil {
		t.Fatalf("Decrypt() after JSON roundtrip error: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Errorf("decrypted = %q, want %q", got, secret)
	}
}

func TestDecrypt_OlderIterationCount(t *testing.T) {
	old := fastVault(t, "pass")
	pkg, err := old.Encrypt([]byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// A vault configured with a higher cost still opens older packages.
	newer, err := NewWithIterations([]byte("pass"), 20)
	if err != nil {
		t.Fatalf("NewWithIterations() error: %v", err)
	}
	got, err := newer.Decrypt(pkg)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, []byte("secret")) {
		t.Error("older package did not decrypt")
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New with empty passphrase should fail")
	}
	if _, err := NewWithIterations([]byte("pass"), 0); err == nil {
		t.Error("NewWithIterations(0) should fail")
	}
}
