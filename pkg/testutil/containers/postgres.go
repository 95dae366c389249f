//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema is applied once per container. Integration suites truncate between
// tests instead of recreating tables.
const schema = `
CREATE TABLE IF NOT EXISTS customers (
	id UUID PRIMARY KEY,
	tax_id TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL DEFAULT '',
	consent_terms BOOLEAN NOT NULL DEFAULT FALSE,
	consent_data_sharing BOOLEAN NOT NULL DEFAULT FALSE,
	consent_edocs BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS connections (
	customer_id UUID NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	system TEXT NOT NULL,
	foreign_id TEXT NOT NULL,
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	token_expiry TIMESTAMPTZ NOT NULL,
	kyc_status TEXT NOT NULL,
	kyc_id TEXT NOT NULL DEFAULT '',
	rejection_reason TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, system)
);
CREATE UNIQUE INDEX IF NOT EXISTS connections_system_foreign_id
	ON connections (system, foreign_id);

CREATE TABLE IF NOT EXISTS operator_links (
	customer_id UUID NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
	operator_id TEXT NOT NULL,
	account_id TEXT NOT NULL DEFAULT '',
	first_contact BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (customer_id, operator_id, account_id)
);

CREATE TABLE IF NOT EXISTS customer_profiles (
	id UUID PRIMARY KEY,
	tax_id TEXT NOT NULL UNIQUE,
	customer_id UUID,
	session_token TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	date_of_birth TEXT NOT NULL DEFAULT '',
	addr_line1 TEXT NOT NULL DEFAULT '',
	addr_line2 TEXT NOT NULL DEFAULT '',
	addr_city TEXT NOT NULL DEFAULT '',
	addr_state TEXT NOT NULL DEFAULT '',
	addr_pin TEXT NOT NULL DEFAULT '',
	bank_number TEXT NOT NULL DEFAULT '',
	bank_ifsc TEXT NOT NULL DEFAULT '',
	bank_holder TEXT NOT NULL DEFAULT '',
	bank_verified BOOLEAN NOT NULL DEFAULT FALSE,
	nominees JSONB NOT NULL DEFAULT '[]',
	watchlist_hits JSONB NOT NULL DEFAULT '[]',
	review_required BOOLEAN NOT NULL DEFAULT FALSE,
	selfie_url TEXT NOT NULL DEFAULT '',
	signature_url TEXT NOT NULL DEFAULT '',
	cheque_url TEXT NOT NULL DEFAULT '',
	vault_proof_url TEXT NOT NULL DEFAULT '',
	all_details_filled BOOLEAN NOT NULL DEFAULT FALSE,
	submitted_by TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	customer_id UUID NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	amount_paise BIGINT NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_link TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_external_id ON orders (external_id);
CREATE INDEX IF NOT EXISTS orders_customer_id ON orders (customer_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

var (
	pgOnce      sync.Once
	pgContainer *PostgresContainer
	pgErr       error
)

// GetPostgres returns the shared PostgreSQL container, starting it on first
// use. The container is shared across suites; Ryuk reclaims it after the run.
func GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	pgOnce.Do(func() {
		pgContainer, pgErr = startPostgres()
	})
	if pgErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgErr)
	}
	return pgContainer
}

func startPostgres() (*PostgresContainer, error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("onboard_test"),
		tcpostgres.WithUsername("onboard"),
		tcpostgres.WithPassword("onboard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("postgres connection string: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresContainer{Container: container, DB: db}, nil
}

// TruncateTables empties the given tables, cascading to dependents. Use
// between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE"
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
