package database

import (
	"strings"
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("Name", func(t *testing.T) {
		if got := dialect.Name(); got != "sqlite" {
			t.Errorf("Name() = %v, want %v", got, "sqlite")
		}
	})

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})

	t.Run("BoolValue", func(t *testing.T) {
		if got := dialect.BoolValue(true); got != "1" {
			t.Errorf("BoolValue(true) = %v, want %v", got, "1")
		}
		if got := dialect.BoolValue(false); got != "0" {
			t.Errorf("BoolValue(false) = %v, want %v", got, "0")
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("Name", func(t *testing.T) {
		if got := dialect.Name(); got != "postgres" {
			t.Errorf("Name() = %v, want %v", got, "postgres")
		}
	})

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if result {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})

	t.Run("BoolValue", func(t *testing.T) {
		if got := dialect.BoolValue(true); got != "TRUE" {
			t.Errorf("BoolValue(true) = %v, want %v", got, "TRUE")
		}
		if got := dialect.BoolValue(false); got != "FALSE" {
			t.Errorf("BoolValue(false) = %v, want %v", got, "FALSE")
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("Name", func(t *testing.T) {
		if got := dialect.Name(); got != "mysql" {
			t.Errorf("Name() = %v, want %v", got, "mysql")
		}
	})

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		result := dialect.SupportsLastInsertId()
		if !result {
			t.Error("SupportsLastInsertId() should return true for MySQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})

	t.Run("BoolValue", func(t *testing.T) {
		if got := dialect.BoolValue(true); got != "TRUE" {
			t.Errorf("BoolValue(true) = %v, want %v", got, "TRUE")
		}
		if got := dialect.BoolValue(false); got != "FALSE" {
			t.Errorf("BoolValue(false) = %v, want %v", got, "FALSE")
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM sessions WHERE id = ?",
			expected: "SELECT * FROM sessions WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM sessions WHERE id = ?",
			expected: "SELECT * FROM sessions WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO cells (session_id, x) VALUES (?, ?)",
			expected: "INSERT INTO cells (session_id, x) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE sessions SET player_b = ?, status = ? WHERE id = ?",
			expected: "UPDATE sessions SET player_b = ?, status = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dialect := NewSQLiteDialect()

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"plain path gets options", "game.db", "game.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"},
		{"explicit options kept", "file::memory:?cache=shared", "file::memory:?cache=shared"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dialect.DSN(DialectConfig{Path: tt.path}); got != tt.expected {
				t.Errorf("DSN() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMySQLDSNEnablesParseTime(t *testing.T) {
	dsn := NewMySQLDialect().DSN(DialectConfig{URL: "user:pw@tcp(localhost:3306)/rosenkoenig"})
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN() = %v, want parseTime=true", dsn)
	}
	if !strings.Contains(dsn, "multiStatements=true") {
		t.Errorf("DSN() = %v, want multiStatements=true", dsn)
	}
}
