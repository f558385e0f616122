package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = splitList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = splitList(value)

	// Vault
	case "vault.passphrase_env":
		cfg.Vault.PassphraseEnv = value
	case "vault.passphrase_file":
		cfg.Vault.PassphraseFile = value
	case "vault.iterations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Vault.Iterations = n

	// Chain
	case "chain.backend":
		cfg.Chain.Backend = ChainBackend(value)

	// Monitor
	case "monitor.enabled", "monitor":
		cfg.Monitor.Enabled = parseBool(value)
	case "monitor.interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Monitor.IntervalSeconds = n

	// Payout
	case "payout.min_retained":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Payout.MinRetainedBalance = n
	case "payout.fee_reserve":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Payout.FeeReserve = n
	case "payout.confirm_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Payout.ConfirmAttempts = n

	// Storage
	case "storage.backend":
		cfg.Storage.Backend = StorageBackend(value)

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)
	case "log.file":
		cfg.Log.File = value

	default:
		return fmt.Errorf("unknown key")
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
