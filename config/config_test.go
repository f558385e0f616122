package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultMainnet()
	if cfg.Network != Mainnet || cfg.RPC.Port != 8560 {
		t.Errorf("mainnet defaults = %s/%d", cfg.Network, cfg.RPC.Port)
	}
	if cfg.Vault.PassphraseEnv != "ESCROWD_MASTER_PASSPHRASE" {
		t.Errorf("passphrase env = %q", cfg.Vault.PassphraseEnv)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("mainnet defaults do not validate: %v", err)
	}

	cfg = DefaultTestnet()
	if cfg.Network != Testnet || cfg.RPC.Port != 8660 {
		t.Errorf("testnet defaults = %s/%d", cfg.Network, cfg.RPC.Port)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("testnet defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrowd.conf")
	content := `# comment line
network = testnet

rpc.port = 9000
rpc.allowed = 127.0.0.1, 10.0.0.0/8
vault.iterations = "200000"
monitor.enabled = off
payout.fee_reserve = 2500
log.level = debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	values, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	cfg := DefaultMainnet()
	if err := ApplyFileConfig(cfg, values); err != nil {
		t.Fatalf("ApplyFileConfig() error: %v", err)
	}

	if cfg.Network != Testnet {
		t.Errorf("network = %s, want testnet", cfg.Network)
	}
	if cfg.RPC.Port != 9000 {
		t.Errorf("rpc port = %d, want 9000", cfg.RPC.Port)
	}
	if len(cfg.RPC.AllowedIPs) != 2 || cfg.RPC.AllowedIPs[1] != "10.0.0.0/8" {
		t.Errorf("allowed ips = %v", cfg.RPC.AllowedIPs)
	}
	if cfg.Vault.Iterations != 200000 {
		t.Errorf("vault iterations = %d, want 200000", cfg.Vault.Iterations)
	}
	if cfg.Monitor.Enabled {
		t.Error("monitor.enabled = off did not apply")
	}
	if cfg.Payout.FeeReserve != 2500 {
		t.Errorf("fee reserve = %d, want 2500", cfg.Payout.FeeReserve)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	values, err := LoadFile(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("LoadFile(missing) error: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("missing file produced %d values", len(values))
	}
}

func TestApplyFileConfig_UnknownKey(t *testing.T) {
	cfg := DefaultMainnet()
	err := ApplyFileConfig(cfg, map[string]string{"nonsense.key": "1"})
	if err == nil {
		t.Error("unknown key should fail")
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"bad network", func(cfg *Config) { cfg.Network = "devnet" }},
		{"bad port", func(cfg *Config) { cfg.RPC.Port = 70000 }},
		{"bad chain backend", func(cfg *Config) { cfg.Chain.Backend = "moonnet" }},
		{"bad storage backend", func(cfg *Config) { cfg.Storage.Backend = "flatfile" }},
		{"negative monitor interval", func(cfg *Config) { cfg.Monitor.IntervalSeconds = -1 }},
		{"zero confirm attempts", func(cfg *Config) { cfg.Payout.ConfirmAttempts = 0 }},
		{"no passphrase source", func(cfg *Config) {
			cfg.Vault.PassphraseEnv = ""
			cfg.Vault.PassphraseFile = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultMainnet()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	f, err := ParseFlags([]string{
		"--network", "testnet",
		"--rpc-port", "9100",
		"--storage", "memory",
		"--monitor=false",
		"--log-level", "warn",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error: %v", err)
	}

	cfg := Default(Testnet)
	applyFlags(cfg, f)

	if cfg.RPC.Port != 9100 {
		t.Errorf("rpc port = %d, want 9100", cfg.RPC.Port)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Errorf("storage backend = %s, want memory", cfg.Storage.Backend)
	}
	if cfg.Monitor.Enabled {
		t.Error("--monitor=false did not apply")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Log.Level)
	}
}

func TestMasterPassphrase(t *testing.T) {
	cfg := DefaultMainnet()
	cfg.Vault.PassphraseEnv = "ESCROWD_TEST_PASSPHRASE"
	t.Setenv("ESCROWD_TEST_PASSPHRASE", "from-env")

	pass, err := MasterPassphrase(cfg)
	if err != nil {
		t.Fatalf("MasterPassphrase() error: %v", err)
	}
	if string(pass) != "from-env" {
		t.Errorf("passphrase = %q, want from-env", pass)
	}

	// File fallback when the env var is empty; contents are trimmed.
	t.Setenv("ESCROWD_TEST_PASSPHRASE", "")
	path := filepath.Join(t.TempDir(), "passphrase")
	if err := os.WriteFile(path, []byte("  from-file\n"), 0600); err != nil {
		t.Fatalf("write passphrase file: %v", err)
	}
	cfg.Vault.PassphraseFile = path

	pass, err = MasterPassphrase(cfg)
	if err != nil {
		t.Fatalf("MasterPassphrase() file error: %v", err)
	}
	if string(pass) != "from-file" {
		t.Errorf("passphrase = %q, want from-file", pass)
	}

	// Empty file is an error, not an empty passphrase.
	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("   \n"), 0600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}
	cfg.Vault.PassphraseFile = empty
	if _, err := MasterPassphrase(cfg); err == nil {
		t.Error("empty passphrase file should fail")
	}
}
