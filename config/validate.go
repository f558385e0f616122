package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	switch cfg.Chain.Backend {
	case BackendSimnet:
	default:
		return fmt.Errorf("chain.backend %q is not supported", cfg.Chain.Backend)
	}

	switch cfg.Storage.Backend {
	case StorageBadger, StorageMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageBadger, StorageMemory)
	}

	if cfg.Monitor.IntervalSeconds < 0 {
		return fmt.Errorf("monitor.interval must not be negative")
	}
	if cfg.Payout.ConfirmAttempts < 1 {
		return fmt.Errorf("payout.confirm_attempts must be at least 1")
	}
	if cfg.Vault.Iterations < 0 {
		return fmt.Errorf("vault.iterations must not be negative")
	}
	if cfg.Vault.PassphraseEnv == "" && cfg.Vault.PassphraseFile == "" {
		return fmt.Errorf("one of vault.passphrase_env or vault.passphrase_file must be set")
	}

	return nil
}

// MasterPassphrase reads the vault master passphrase from the configured
// source. The returned bytes are never logged.
func MasterPassphrase(cfg *Config) ([]byte, error) {
	if cfg.Vault.PassphraseEnv != "" {
		if v := os.Getenv(cfg.Vault.PassphraseEnv); v != "" {
			return []byte(v), nil
		}
	}
	if cfg.Vault.PassphraseFile != "" {
		data, err := os.ReadFile(cfg.Vault.PassphraseFile)
		if err != nil {
			return nil, fmt.Errorf("read passphrase file: %w", err)
		}
		pass := strings.TrimSpace(string(data))
		if pass == "" {
			return nil, fmt.Errorf("passphrase file %s is empty", cfg.Vault.PassphraseFile)
		}
		return []byte(pass), nil
	}
	return nil, fmt.Errorf("master passphrase not found (set %s or vault.passphrase_file)", cfg.Vault.PassphraseEnv)
}
