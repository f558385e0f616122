// Package config handles escrowd runtime configuration.
//
// Settings layer in the usual order: built-in defaults, then the config
// file, then command-line flags. The vault master passphrase is never a
// flag value; it arrives through an environment variable or a file path so
// it cannot leak into process listings or shell history.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds escrowd runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Key vault
	Vault VaultConfig

	// Chain adapter
	Chain ChainConfig

	// Deposit monitor
	Monitor MonitorConfig

	// Payout reserves
	Payout PayoutConfig

	// Session storage
	Storage StorageConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// VaultConfig holds key vault settings.
type VaultConfig struct {
	// PassphraseEnv names the environment variable holding the master
	// passphrase.
	PassphraseEnv string `conf:"vault.passphrase_env"`
	// PassphraseFile is a file whose (trimmed) contents are the master
	// passphrase. Used when PassphraseEnv is unset or empty.
	PassphraseFile string `conf:"vault.passphrase_file"`
	// Iterations is the PBKDF2 cost for new packages. 0 = engine default.
	Iterations int `conf:"vault.iterations"`
}

// ChainBackend selects the chain adapter implementation.
type ChainBackend string

const (
	// BackendSimnet is the in-process simulated ledger.
	BackendSimnet ChainBackend = "simnet"
)

// ChainConfig holds chain adapter settings.
type ChainConfig struct {
	Backend ChainBackend `conf:"chain.backend"`
}

// MonitorConfig holds deposit monitor settings.
type MonitorConfig struct {
	Enabled         bool `conf:"monitor.enabled"`
	IntervalSeconds int  `conf:"monitor.interval"`
}

// PayoutConfig holds payout reserve settings (smallest units).
type PayoutConfig struct {
	MinRetainedBalance uint64 `conf:"payout.min_retained"`
	FeeReserve         uint64 `conf:"payout.fee_reserve"`
	ConfirmAttempts    int    `conf:"payout.confirm_attempts"`
}

// StorageBackend selects the session store implementation.
type StorageBackend string

const (
	StorageBadger StorageBackend = "badger"
	StorageMemory StorageBackend = "memory"
)

// StorageConfig holds session storage settings.
type StorageConfig struct {
	Backend StorageBackend `conf:"storage.backend"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	JSON  bool   `conf:"log.json"`
	File  string `conf:"log.file"`
}

// DefaultDataDir returns the platform-specific default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".escrowd"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Escrowd")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Escrowd")
	default:
		return filepath.Join(home, ".escrowd")
	}
}

// ConfigFilePath returns the path of the config file inside dataDir.
func ConfigFilePath(dataDir string) string {
	return filepath.Join(dataDir, "escrowd.conf")
}
