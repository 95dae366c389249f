package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"onboard/pkg/platform/sentinel"
)

// PostgresStore persists payment orders in PostgreSQL, one row per order with
// a unique index on the vendor's external id.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, customer_id, external_id, amount_paise, currency,
			status, payment_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			status = EXCLUDED.status,
			payment_link = EXCLUDED.payment_link,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		o.ID,
		o.CustomerID,
		o.ExternalID,
		o.AmountPaise,
		o.Currency,
		o.Status.String(),
		o.PaymentLink,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	return s.findOne(ctx, "id = $1", orderID)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*Order, error) {
	return s.findOne(ctx, "external_id = $1", externalID)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*Order, error) {
	query := `
		SELECT id, customer_id, external_id, amount_paise, currency,
			status, payment_link, created_at, updated_at
		FROM orders
		WHERE ` + where
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error) {
	query := `
		SELECT id, customer_id, external_id, amount_paise, currency,
			status, payment_link, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.ExternalID,
		&o.AmountPaise,
		&o.Currency,
		&status,
		&o.PaymentLink,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}
