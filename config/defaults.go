package config

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8560,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Vault: VaultConfig{
			PassphraseEnv: "ESCROWD_MASTER_PASSPHRASE",
		},
		Chain: ChainConfig{
			Backend: BackendSimnet,
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			IntervalSeconds: 10,
		},
		Payout: PayoutConfig{
			MinRetainedBalance: 100_000,
			FeeReserve:         1_000,
			ConfirmAttempts:    6,
		},
		Storage: StorageConfig{
			Backend: StorageBadger,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 8660
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
