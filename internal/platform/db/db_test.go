package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestConnFromContext_Empty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

type stubTx struct {
	pgx.Tx
}

func TestRunInTx_JoinsInFlightTransaction(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, stubTx{})

	calls := 0
	// A nil pool would panic if RunInTx tried to begin a fresh transaction.
	err := RunInTx(ctx, nil, func(ctx context.Context) error {
		calls++
		if TxFromContext(ctx) == nil {
			t.Error("inner context lost the outer transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRunInTx_JoinedTransactionPropagatesError(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, stubTx{})
	want := errors.New("inner failure")
	if err := RunInTx(ctx, nil, func(ctx context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestMapError(t *testing.T) {
	if MapError(nil) != nil {
		t.Error("expected nil for nil error")
	}

	wrapped := fmt.Errorf("query patients: %w", context.DeadlineExceeded)
	mapped := MapError(wrapped)
	if !errors.Is(mapped, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", mapped)
	}

	plain := errors.New("connection refused")
	if MapError(plain) != plain {
		t.Error("expected non-timeout errors to pass through unchanged")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded should count as timeout")
	}
	if !IsTimeout(fmt.Errorf("op: %w", ErrTimeout)) {
		t.Error("wrapped ErrTimeout should count as timeout")
	}
	if IsTimeout(errors.New("other")) {
		t.Error("unrelated error should not count as timeout")
	}
}

func TestLoadMigrations_OrderAndSkips(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"002_bordereaux.sql": "CREATE TABLE bordereau (id UUID PRIMARY KEY);",
		"001_core.sql":       "CREATE TABLE patient (id UUID PRIMARY KEY);",
		"notes.txt":          "not a migration",
		"README.sql":         "no numeric prefix",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m := NewMigrator(nil, dir)
	migrations, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("expected versions [1 2], got [%d %d]", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %s", migrations[0].Name)
	}
}

func TestLoadMigrations_MissingDir(t *testing.T) {
	m := NewMigrator(nil, "/nonexistent/migrations")
	if _, err := m.LoadMigrations(); err == nil {
		t.Error("expected error for missing directory")
	}
}
