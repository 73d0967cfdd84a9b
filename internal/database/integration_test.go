package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const migrationsDir = "../../migrations"

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RunMigrations(context.Background(), migrationsDir); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func insertSession(t *testing.T, db DBTX, id string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO sessions (id, status, player_a, turn, crown_x, crown_y, created_at, updated_at)
		 VALUES (?, 'waiting', ?, 'A', 4, 4, ?, ?)`, id, "alice", now, now)
	if err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}
}

// TestDatabaseIntegration tests the complete database lifecycle
func TestDatabaseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	tables := []string{"sessions", "cells", "cards", "moves", "migrations"}
	for _, table := range tables {
		query := "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
		var name string
		if err := db.QueryRowContext(ctx, query, table).Scan(&name); err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)

	applied, err := db.RunMigrations(context.Background(), migrationsDir)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("Second run applied %v, want nothing", applied)
	}
}

func TestRunMigrationsMissingDirectory(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if _, err := db.RunMigrations(context.Background(), t.TempDir()); err == nil {
		t.Error("Expected error for a directory without migrations")
	}
}

// TestDatabaseTransactions tests transaction support
func TestDatabaseTransactions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx *Tx) error {
		insertSession(t, tx, "committed")
		return nil
	})
	if err != nil {
		t.Fatalf("Committed transaction failed: %v", err)
	}

	errAbort := errors.New("abort")
	err = db.InTx(ctx, func(tx *Tx) error {
		insertSession(t, tx, "rolled-back")
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("InTx() error = %v, want %v", err, errAbort)
	}

	tests := []struct {
		id    string
		count int
	}{
		{"committed", 1},
		{"rolled-back", 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			var count int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", tt.id).Scan(&count); err != nil {
				t.Fatalf("Failed to count sessions: %v", err)
			}
			if count != tt.count {
				t.Errorf("Expected %d sessions, got %d", tt.count, count)
			}
		})
	}
}

func TestExecReturningID(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "s1")

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := db.ExecReturningID(ctx,
			"INSERT INTO moves (session_id, actor, to_x, to_y, flip, created_at) VALUES (?, 'A', ?, 0, ?, ?)",
			"s1", i, false, time.Now().UTC())
		if err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("Move ids not increasing: %v", ids)
		}
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO cells (session_id, x, y, owner) VALUES (?, 0, 0, '')", "missing")
	if err == nil {
		t.Error("Expected foreign key violation for unknown session")
	}
}

// TestConcurrentAccess tests concurrent database access
func TestConcurrentAccess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := openTestDB(t)
	ctx := context.Background()
	insertSession(t, db, "shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var player string
			err := db.QueryRowContext(ctx, "SELECT player_a FROM sessions WHERE id = ?", "shared").Scan(&player)
			if err != nil {
				t.Errorf("Concurrent read failed: %v", err)
				return
			}
			if player != "alice" {
				t.Errorf("Expected player 'alice', got '%s'", player)
			}
		}()
	}
	wg.Wait()
}
