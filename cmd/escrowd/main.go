// Escrow engine daemon.
//
// Usage:
//
//	escrowd [--network testnet --datadir ...] Run the engine
//	escrowd --help                            Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/config"
	"github.com/Klingon-tech/klingnet-escrow/internal/chain"
	"github.com/Klingon-tech/klingnet-escrow/internal/engine"
	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/Klingon-tech/klingnet-escrow/internal/resolver"
	"github.com/Klingon-tech/klingnet-escrow/internal/rpc"
	"github.com/Klingon-tech/klingnet-escrow/internal/session"
	"github.com/Klingon-tech/klingnet-escrow/internal/storage"
	"github.com/Klingon-tech/klingnet-escrow/internal/vault"
	"github.com/Klingon-tech/klingnet-escrow/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, flags, err := config.Load()
	if err != nil {
		return err
	}
	if flags.Help {
		fmt.Println("escrowd - custodial escrow and reward distribution engine")
		fmt.Println("Run 'escrowd -h' for the flag list.")
		return nil
	}
	if flags.Version {
		fmt.Println("escrowd", rpc.Version)
		return nil
	}

	if err := log.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	if cfg.Network == config.Testnet {
		types.SetAddressHRP(types.TestnetHRP)
	}

	passphrase, err := config.MasterPassphrase(cfg)
	if err != nil {
		return err
	}
	var v *vault.Vault
	if cfg.Vault.Iterations > 0 {
		v, err = vault.NewWithIterations(passphrase, cfg.Vault.Iterations)
	} else {
		v, err = vault.New(passphrase)
	}
	if err != nil {
		return err
	}

	var db storage.DB
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		db = storage.NewMemory()
	default:
		dbPath := filepath.Join(cfg.DataDir, string(cfg.Network), "sessions")
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		db, err = storage.NewBadger(dbPath)
		if err != nil {
			return err
		}
	}
	store := session.NewDBStore(db)
	defer store.Close()

	// Only the simnet backend ships in-tree; production networks plug in
	// their own chain.Adapter here.
	adapter := chain.NewSimnet()
	res := resolver.New(adapter)

	eng := engine.New(store, v, adapter, res, engine.Config{
		MinRetainedBalance: cfg.Payout.MinRetainedBalance,
		FeeReserve:         cfg.Payout.FeeReserve,
		ConfirmAttempts:    cfg.Payout.ConfirmAttempts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Monitor.Enabled {
		go eng.RunMonitor(ctx, time.Duration(cfg.Monitor.IntervalSeconds)*time.Second)
	}

	var server *rpc.Server
	if cfg.RPC.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		server = rpc.New(addr, eng, string(cfg.Network), string(cfg.Chain.Backend), cfg.RPC)
		if err := server.Start(); err != nil {
			return err
		}
		log.Info().Str("addr", server.Addr()).Msg("RPC server listening")
	}

	log.Info().
		Str("network", string(cfg.Network)).
		Str("chain", string(cfg.Chain.Backend)).
		Str("storage", string(cfg.Storage.Backend)).
		Msg("escrowd started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	if server != nil {
		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("stop RPC server")
		}
	}
	return nil
}
