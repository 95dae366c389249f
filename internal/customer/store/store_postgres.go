package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"onboard/internal/customer/models"
	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// PostgresStore persists customers, connections and operator links in
// PostgreSQL. Connections live in their own table keyed (customer_id, system)
// so the (system, foreign_id) reconciliation lookup is a plain index hit.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, customer *models.Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert customer: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO customers (id, tax_id, full_name, email, phone, date_of_birth,
			consent_terms, consent_data_sharing, consent_edocs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			date_of_birth = EXCLUDED.date_of_birth,
			consent_terms = EXCLUDED.consent_terms,
			consent_data_sharing = EXCLUDED.consent_data_sharing,
			consent_edocs = EXCLUDED.consent_edocs,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.ExecContext(ctx, query,
		customer.ID,
		customer.TaxID.String(),
		customer.FullName,
		customer.Email,
		customer.Phone,
		customer.DateOfBirth,
		customer.ConsentFlags.TermsAccepted,
		customer.ConsentFlags.DataSharing,
		customer.ConsentFlags.ElectronicDocs,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	connQuery := `
		INSERT INTO connections (customer_id, system, foreign_id, access_token,
			refresh_token, token_expiry, kyc_status, kyc_id, rejection_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id, system) DO UPDATE SET
			foreign_id = EXCLUDED.foreign_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			kyc_status = EXCLUDED.kyc_status,
			kyc_id = EXCLUDED.kyc_id,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at
	`
	for _, conn := range customer.Connections {
		_, err = tx.ExecContext(ctx, connQuery,
			customer.ID,
			conn.System.String(),
			conn.ForeignID,
			conn.AccessToken,
			conn.RefreshToken,
			conn.TokenExpiry,
			conn.KYCStatus.String(),
			conn.KYCID,
			conn.RejectionReason,
			conn.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert connection %s: %w", conn.System, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert customer: %w", err)
	}
	return nil
}

// UpdateConnection writes exactly one connection row. Parallel per-system
// writers therefore cannot revert each other's rows to a stale snapshot.
func (s *PostgresStore) UpdateConnection(ctx context.Context, customerID uuid.UUID, conn *models.Connection) error {
	touched, err := s.db.ExecContext(ctx,
		`UPDATE customers SET updated_at = $2 WHERE id = $1`, customerID, conn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("touch customer: %w", err)
	}
	if n, err := touched.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}

	query := `
		INSERT INTO connections (customer_id, system, foreign_id, access_token,
			refresh_token, token_expiry, kyc_status, kyc_id, rejection_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id, system) DO UPDATE SET
			foreign_id = EXCLUDED.foreign_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			kyc_status = EXCLUDED.kyc_status,
			kyc_id = EXCLUDED.kyc_id,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		customerID,
		conn.System.String(),
		conn.ForeignID,
		conn.AccessToken,
		conn.RefreshToken,
		conn.TokenExpiry,
		conn.KYCStatus.String(),
		conn.KYCID,
		conn.RejectionReason,
		conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update connection %s: %w", conn.System, err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	return s.findOne(ctx, `WHERE c.id = $1`, customerID)
}

func (s *PostgresStore) FindByTaxID(ctx context.Context, taxID id.TaxID) (*models.Customer, error) {
	return s.findOne(ctx, `WHERE c.tax_id = $1`, taxID.String())
}

func (s *PostgresStore) FindByConnection(ctx context.Context, system id.SystemType, foreignID string) (*models.Customer, error) {
	return s.findOne(ctx, `
		WHERE c.id = (
			SELECT customer_id FROM connections
			WHERE system = $1 AND foreign_id = $2
		)`, system.String(), foreignID)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, args ...any) (*models.Customer, error) {
	query := `
		SELECT c.id, c.tax_id, c.full_name, c.email, c.phone, c.date_of_birth,
			c.consent_terms, c.consent_data_sharing, c.consent_edocs, c.created_at, c.updated_at
		FROM customers c ` + where
	customer, err := scanCustomer(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if err := s.loadConnections(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *PostgresStore) loadConnections(ctx context.Context, customer *models.Customer) error {
	query := `
		SELECT system, foreign_id, access_token, refresh_token, token_expiry,
			kyc_status, kyc_id, rejection_reason, updated_at
		FROM connections
		WHERE customer_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, customer.ID)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var conn models.Connection
		var system, kycStatus string
		err := rows.Scan(&system, &conn.ForeignID, &conn.AccessToken, &conn.RefreshToken,
			&conn.TokenExpiry, &kycStatus, &conn.KYCID, &conn.RejectionReason, &conn.UpdatedAt)
		if err != nil {
			return fmt.Errorf("scan connection: %w", err)
		}
		if conn.System, err = id.ParseSystemType(system); err != nil {
			return fmt.Errorf("scan connection: %w", err)
		}
		if conn.KYCStatus, err = status.Parse(kycStatus); err != nil {
			return fmt.Errorf("scan connection: %w", err)
		}
		customer.PutConnection(&conn)
	}
	return rows.Err()
}

func (s *PostgresStore) LinkOperator(ctx context.Context, link models.OperatorLink) error {
	query := `
		INSERT INTO operator_links (customer_id, operator_id, account_id, first_contact, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (customer_id, operator_id, account_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		link.CustomerID, link.OperatorID, link.AccountID, link.FirstContact, link.CreatedAt)
	if err != nil {
		return fmt.Errorf("link operator: %w", err)
	}
	return nil
}

func (s *PostgresStore) OperatorLinks(ctx context.Context, customerID uuid.UUID) ([]models.OperatorLink, error) {
	query := `
		SELECT customer_id, operator_id, account_id, first_contact, created_at
		FROM operator_links
		WHERE customer_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list operator links: %w", err)
	}
	defer rows.Close()

	var links []models.OperatorLink
	for rows.Next() {
		var link models.OperatorLink
		if err := rows.Scan(&link.CustomerID, &link.OperatorID, &link.AccountID,
			&link.FirstContact, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan operator link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var customer models.Customer
	var taxID string
	err := row.Scan(&customer.ID, &taxID, &customer.FullName, &customer.Email,
		&customer.Phone, &customer.DateOfBirth,
		&customer.ConsentFlags.TermsAccepted, &customer.ConsentFlags.DataSharing,
		&customer.ConsentFlags.ElectronicDocs, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return nil, err
	}
	customer.TaxID = id.TaxID(taxID)
	return &customer, nil
}
