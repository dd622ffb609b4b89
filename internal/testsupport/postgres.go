package testsupport

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"oracle/internal/adapters/config"
	"oracle/internal/adapters/postgres"
)

// PostgresTestHelper manages a transactional connection for integration
// tests. Every test runs inside a transaction that is always rolled back,
// so tests never see each other's rows.
type PostgresTestHelper struct {
	client     *postgres.Client
	tx         *sqlx.Tx
	rolledBack bool
}

// NewTestPostgres connects using POSTGRES_* env vars. Tests are skipped
// when POSTGRES_HOST is unset so the suite passes without a database.
func NewTestPostgres(t *testing.T) *PostgresTestHelper {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		t.Skip("POSTGRES_HOST not set, skipping integration test")
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     envInt("POSTGRES_PORT", 5432),
		User:     envString("POSTGRES_USER", "oracle"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: envString("POSTGRES_DB", "oracle_test"),
		SSLMode:  envString("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 5,
	}

	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	tx, err := client.DB().BeginTxx(context.Background(), nil)
	if err != nil {
		_ = client.Close()
		t.Fatalf("failed to start transaction: %v", err)
	}

	helper := &PostgresTestHelper{client: client, tx: tx}
	t.Cleanup(helper.Rollback)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return helper
}

// Tx returns the active transaction for the test
func (h *PostgresTestHelper) Tx() *sqlx.Tx {
	return h.tx
}

// DB returns the underlying database handle
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

// Rollback rolls back the transaction once
func (h *PostgresTestHelper) Rollback() {
	if h.rolledBack {
		return
	}
	_ = h.tx.Rollback()
	h.rolledBack = true
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
