package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

// PostgresStore persists profiles in PostgreSQL, one row per tax identifier.
// Nominees and watchlist hits are jsonb columns; everything the dedup guard
// and the step merges touch is a plain column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, p *CustomerProfile) error {
	nominees, err := json.Marshal(p.Nominees)
	if err != nil {
		return fmt.Errorf("marshal nominees: %w", err)
	}
	hits, err := json.Marshal(p.WatchlistHits)
	if err != nil {
		return fmt.Errorf("marshal watchlist hits: %w", err)
	}

	var customerID any
	if p.CustomerID != nil {
		customerID = *p.CustomerID
	}

	query := `
		INSERT INTO customer_profiles (id, tax_id, customer_id, session_token,
			full_name, email, phone, date_of_birth,
			addr_line1, addr_line2, addr_city, addr_state, addr_pin,
			bank_number, bank_ifsc, bank_holder, bank_verified,
			nominees, watchlist_hits, review_required,
			selfie_url, signature_url, cheque_url, vault_proof_url,
			all_details_filled, submitted_by, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
		ON CONFLICT (tax_id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			session_token = EXCLUDED.session_token,
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			date_of_birth = EXCLUDED.date_of_birth,
			addr_line1 = EXCLUDED.addr_line1,
			addr_line2 = EXCLUDED.addr_line2,
			addr_city = EXCLUDED.addr_city,
			addr_state = EXCLUDED.addr_state,
			addr_pin = EXCLUDED.addr_pin,
			bank_number = EXCLUDED.bank_number,
			bank_ifsc = EXCLUDED.bank_ifsc,
			bank_holder = EXCLUDED.bank_holder,
			bank_verified = EXCLUDED.bank_verified,
			nominees = EXCLUDED.nominees,
			watchlist_hits = EXCLUDED.watchlist_hits,
			review_required = EXCLUDED.review_required,
			selfie_url = EXCLUDED.selfie_url,
			signature_url = EXCLUDED.signature_url,
			cheque_url = EXCLUDED.cheque_url,
			vault_proof_url = EXCLUDED.vault_proof_url,
			all_details_filled = EXCLUDED.all_details_filled,
			submitted_by = EXCLUDED.submitted_by,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.TaxID.String(), customerID, p.SessionToken,
		p.FullName, p.Email, p.Phone, p.DateOfBirth,
		p.Address.Line1, p.Address.Line2, p.Address.City, p.Address.State, p.Address.PinCode,
		p.BankAccount.Number, p.BankAccount.IFSC.String(), p.BankAccount.HolderName, p.BankAccount.Verified,
		nominees, hits, p.ReviewRequired,
		p.SelfieURL, p.SignatureURL, p.ChequeURL, p.VaultProofURL,
		p.AllDetailsFilled, p.SubmittedBy, p.SubmittedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTaxID(ctx context.Context, taxID id.TaxID) (*CustomerProfile, error) {
	query := `
		SELECT id, tax_id, customer_id, session_token,
			full_name, email, phone, date_of_birth,
			addr_line1, addr_line2, addr_city, addr_state, addr_pin,
			bank_number, bank_ifsc, bank_holder, bank_verified,
			nominees, watchlist_hits, review_required,
			selfie_url, signature_url, cheque_url, vault_proof_url,
			all_details_filled, submitted_by, submitted_at, created_at, updated_at
		FROM customer_profiles
		WHERE tax_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, taxID.String())

	var p CustomerProfile
	var rawTaxID, ifsc string
	var customerID uuid.NullUUID
	var submittedAt sql.NullTime
	var nominees, hits []byte
	err := row.Scan(&p.ID, &rawTaxID, &customerID, &p.SessionToken,
		&p.FullName, &p.Email, &p.Phone, &p.DateOfBirth,
		&p.Address.Line1, &p.Address.Line2, &p.Address.City, &p.Address.State, &p.Address.PinCode,
		&p.BankAccount.Number, &ifsc, &p.BankAccount.HolderName, &p.BankAccount.Verified,
		&nominees, &hits, &p.ReviewRequired,
		&p.SelfieURL, &p.SignatureURL, &p.ChequeURL, &p.VaultProofURL,
		&p.AllDetailsFilled, &p.SubmittedBy, &submittedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}

	p.TaxID = id.TaxID(rawTaxID)
	p.BankAccount.IFSC = id.IFSC(ifsc)
	if customerID.Valid {
		p.CustomerID = &customerID.UUID
	}
	if submittedAt.Valid {
		p.SubmittedAt = &submittedAt.Time
	}
	if err := json.Unmarshal(nominees, &p.Nominees); err != nil {
		return nil, fmt.Errorf("unmarshal nominees: %w", err)
	}
	if err := json.Unmarshal(hits, &p.WatchlistHits); err != nil {
		return nil, fmt.Errorf("unmarshal watchlist hits: %w", err)
	}
	return &p, nil
}
