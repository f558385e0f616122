package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Chain
	ChainBackend string

	// Monitor
	Monitor         bool
	MonitorInterval int

	// Storage
	StorageBackend string

	// Logging
	LogLevel string
	LogJSON  bool
	LogFile  string
}

// ParseFlags parses command-line arguments.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("escrowd", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help")
	fs.BoolVar(&f.Version, "version", false, "Show version")

	fs.StringVar(&f.Network, "network", "", "Network: mainnet or testnet")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory")
	fs.StringVar(&f.Config, "config", "", "Config file path")

	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Comma-separated allowed RPC IPs/CIDRs")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Comma-separated allowed CORS origins")

	fs.StringVar(&f.ChainBackend, "chain", "", "Chain adapter backend (simnet)")

	fs.BoolVar(&f.Monitor, "monitor", true, "Enable background deposit monitor")
	fs.IntVar(&f.MonitorInterval, "monitor-interval", 0, "Deposit monitor interval in seconds")

	fs.StringVar(&f.StorageBackend, "storage", "", "Session storage backend (badger or memory)")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Log JSON to console")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path (always JSON)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// Load builds the effective configuration: defaults, then config file,
// then flags.
func Load() (*Config, *Flags, error) {
	flags, err := ParseFlags(os.Args[1:])
	if err != nil {
		return nil, nil, err
	}

	network := Mainnet
	if strings.EqualFold(flags.Network, string(Testnet)) {
		network = Testnet
	}
	cfg := Default(network)

	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	confPath := flags.Config
	if confPath == "" {
		confPath = ConfigFilePath(cfg.DataDir)
	}
	values, err := LoadFile(confPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, values); err != nil {
		return nil, nil, err
	}

	applyFlags(cfg, flags)

	if err := Validate(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// applyFlags overrides config values with explicitly set flags.
func applyFlags(cfg *Config, f *Flags) {
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	cfg.RPC.Enabled = f.RPC
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = splitList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = splitList(f.RPCCORS)
	}
	if f.ChainBackend != "" {
		cfg.Chain.Backend = ChainBackend(f.ChainBackend)
	}
	cfg.Monitor.Enabled = f.Monitor
	if f.MonitorInterval != 0 {
		cfg.Monitor.IntervalSeconds = f.MonitorInterval
	}
	if f.StorageBackend != "" {
		cfg.Storage.Backend = StorageBackend(f.StorageBackend)
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogJSON {
		cfg.Log.JSON = true
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
}
