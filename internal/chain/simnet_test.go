package chain

import (
	"context"
	"errors"
	"testing"
)

func TestSimnet_GenerateKeypair(t *testing.T) {
	s := NewSimnet()
	ctx := context.Background()

	addr, secret, err := s.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	if !s.ValidateAddress(addr) {
		t.Errorf("generated address %q does not validate", addr)
	}
	if len(secret) != 32 {
		t.Errorf("secret length = %d, want 32", len(secret))
	}

	balance, err := s.GetBalance(ctx, addr)
	if err != nil {
		t.Fatalf("GetBalance() error: %v", err)
	}
	if balance != 0 {
		t.Errorf("fresh address balance = %d, want 0", balance)
	}
}

func TestSimnet_FundAndBalance(t *testing.T) {
	s := NewSimnet()
	ctx := context.Background()

	addr, _, err := s.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}

	s.Fund(addr, 1000)
	s.Fund(addr, 500)

	balance, err := s.GetBalance(ctx, addr)
	if err != nil {
		t.Fatalf("GetBalance() error: %v", err)
	}
	if balance != 1500 {
		t.Errorf("balance = %d, want 1500", balance)
	}
}

func TestSimnet_GetBalance_InvalidAddress(t *testing.T) {
	s := NewSimnet()
	if _, err := s.GetBalance(context.Background(), "not-an-address"); !errors.Is(err, ErrAdapter) {
		t.Errorf("GetBalance(invalid) = %v, want ErrAdapter", err)
	}
}

func TestSimnet_BuildSignBroadcast(t *testing.T) {
	s := NewSimnet()
	ctx := context.Background()

	from, secret, err := s.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	to, _, err := s.GenerateKeypair(ctx)
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	s.Fund(from, 1000)

	txRef, err := s.BuildSignBroadcast(ctx, secret, to, 400)
	if err != nil {
		t.Fatalf("BuildSignBroadcast() error: %v", err)
	}
	if txRef == "" {
		t.Fatal("empty tx ref")
	}

	fromBal, _ := s.GetBalance(ctx, from)
	toBal, _ := s.GetBalance(ctx, to)
	if fromBal != 600 || toBal != 400 {
		t.Errorf("balances after payment = %d/%d, want 600/400", fromBal, toBal)
	}

	confirmed, err := s.WaitForConfirmation(ctx, txRef, 1)
	if err != nil {
		t.Fatalf("WaitForConfirmation() error: %v", err)
	}
	if !confirmed {
		t.Error("tx not confirmed on first poll with default latency")
	}
}

func TestSimnet_BuildSignBroadcast_Insufficient(t *testing.T) {
	s := NewSimnet()
	ctx := context.Background()

	from, secret, _ := s.GenerateKeypair(ctx)
	to, _, _ := s.GenerateKeypair(ctx)
	s.Fund(from, 100)

	if _, err := s.BuildSignBroadcast(ctx, secret, to, 500); !errors.Is(err, ErrAdapter) {
		t.Errorf("overspend = %v, want ErrAdapter", err)
	}
	if _, err := s.BuildSignBroadcast(ctx, secret, to, 0); !errors.Is(err, ErrAdapter) {
		t.Errorf("zero amount = %v, want ErrAdapter", err)
	}
	if _, err := s.BuildSignBroadcast(ctx, secret, "garbage", 50); !errors.Is(err, ErrAdapter) {
		t.Errorf("bad destination = %v, want ErrAdapter", err)
	}
}

func TestSimnet_ConfirmationLatency(t *testing.T) {
	s := NewSimnet()
	s.SetConfirmAfter(3)
	ctx := context.Background()

	from, secret, _ := s.GenerateKeypair(ctx)
	to, _, _ := s.GenerateKeypair(ctx)
	s.Fund(from, 100)

	txRef, err := s.BuildSignBroadcast(ctx, secret, to, 50)
	if err != nil {
		t.Fatalf("BuildSignBroadcast() error: %v", err)
	}

	confirmed, err := s.WaitForConfirmation(ctx, txRef, 2)
	if err != nil {
		t.Fatalf("WaitForConfirmation() error: %v", err)
	}
	if confirmed {
		t.Error("tx confirmed before its latency elapsed")
	}

	confirmed, err = s.WaitForConfirmation(ctx, txRef, 2)
	if err != nil {
		t.Fatalf("WaitForConfirmation() error: %v", err)
	}
	if !confirmed {
		t.Error("tx should confirm once enough polls have elapsed")
	}
}

func TestSimnet_WaitForConfirmation_UnknownTx(t *testing.T) {
	s := NewSimnet()
	if _, err := s.WaitForConfirmation(context.Background(), "nope", 1); !errors.Is(err, ErrAdapter) {
		t.Errorf("unknown tx = %v, want ErrAdapter", err)
	}
}

func TestSimnet_FaultInjection(t *testing.T) {
	s := NewSimnet()
	ctx := context.Background()

	from, secret, _ := s.GenerateKeypair(ctx)
	to, _, _ := s.GenerateKeypair(ctx)
	s.Fund(from, 1000)

	boom := errors.New("node offline")

	s.FailBalance(boom)
	if _, err := s.GetBalance(ctx, from); !errors.Is(err, ErrAdapter) {
		t.Errorf("injected balance failure = %v, want ErrAdapter", err)
	}
	s.FailBalance(nil)
	if _, err := s.GetBalance(ctx, from); err != nil {
		t.Errorf("cleared balance failure still errors: %v", err)
	}

	s.FailBroadcast(boom)
	if _, err := s.BuildSignBroadcast(ctx, secret, to, 10); !errors.Is(err, ErrAdapter) {
		t.Errorf("injected broadcast failure = %v, want ErrAdapter", err)
	}
	s.FailBroadcast(nil)
	if _, err := s.BuildSignBroadcast(ctx, secret, to, 10); err != nil {
		t.Errorf("cleared broadcast failure still errors: %v", err)
	}
}

func TestSimnet_ContextCancellation(t *testing.T) {
	s := NewSimnet()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := s.GenerateKeypair(ctx); err == nil {
		t.Error("GenerateKeypair with cancelled context should fail")
	}
	if _, err := s.GetBalance(ctx, "kes1whatever"); err == nil {
		t.Error("GetBalance with cancelled context should fail")
	}
	if _, err := s.WaitForConfirmation(ctx, "tx", 3); err == nil {
		t.Error("WaitForConfirmation with cancelled context should fail")
	}
}
