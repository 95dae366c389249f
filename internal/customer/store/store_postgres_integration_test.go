//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"onboard/internal/customer/models"
	"onboard/internal/customer/store"
	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "operator_links", "connections", "customers")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newCustomer(taxID string) *models.Customer {
	parsed, err := id.ParseTaxID(taxID)
	s.Require().NoError(err)
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.NewCustomer(parsed, "Asha Venkatesan", "asha@example.com", "+919999988888", "1990-01-05", models.ConsentFlags{TermsAccepted: true, DataSharing: true}, now)
}

func (s *PostgresStoreSuite) TestUpsertRoundTrip() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	c.PutConnection(&models.Connection{
		System:       id.SystemSelf,
		ForeignID:    "self-abc",
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		TokenExpiry:  c.CreatedAt.Add(time.Hour),
		KYCStatus:    status.BasicDetailsEntered,
		UpdatedAt:    c.CreatedAt,
	})
	c.PutConnection(&models.Connection{
		System:      id.SystemAssisted,
		ForeignID:   "asst-def",
		TokenExpiry: c.CreatedAt.Add(time.Hour),
		KYCStatus:   status.Verified,
		KYCID:       "kyc-asst-def",
		UpdatedAt:   c.CreatedAt,
	})
	s.Require().NoError(s.store.Upsert(ctx, c))

	got, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.TaxID, got.TaxID)
	s.Equal(c.FullName, got.FullName)
	s.True(got.ConsentFlags.DataSharing)
	s.Require().NotNil(got.Connection(id.SystemSelf))
	s.Equal("self-abc", got.Connection(id.SystemSelf).ForeignID)
	s.Equal(status.BasicDetailsEntered, got.Connection(id.SystemSelf).KYCStatus)
	s.Require().NotNil(got.Connection(id.SystemAssisted))
	s.Equal("kyc-asst-def", got.Connection(id.SystemAssisted).KYCID)
}

func (s *PostgresStoreSuite) TestUpdateConnectionWritesSingleRow() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	c.PutConnection(&models.Connection{
		System:      id.SystemSelf,
		ForeignID:   "self-abc",
		TokenExpiry: c.CreatedAt.Add(time.Hour),
		KYCStatus:   status.BasicDetailsEntered,
		UpdatedAt:   c.CreatedAt,
	})
	c.PutConnection(&models.Connection{
		System:      id.SystemAssisted,
		ForeignID:   "asst-def",
		TokenExpiry: c.CreatedAt.Add(time.Hour),
		KYCStatus:   status.Initiated,
		UpdatedAt:   c.CreatedAt,
	})
	s.Require().NoError(s.store.Upsert(ctx, c))

	later := c.CreatedAt.Add(time.Minute)
	s.Require().NoError(s.store.UpdateConnection(ctx, c.ID, &models.Connection{
		System:      id.SystemSelf,
		ForeignID:   "self-abc",
		AccessToken: "at-new",
		TokenExpiry: later.Add(time.Hour),
		KYCStatus:   status.Initiated,
		UpdatedAt:   later,
	}))

	got, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(status.Initiated, got.Connection(id.SystemSelf).KYCStatus)
	s.Equal("at-new", got.Connection(id.SystemSelf).AccessToken)
	s.Equal(later, got.UpdatedAt)
	// The other system's row is untouched.
	s.Equal(status.Initiated, got.Connection(id.SystemAssisted).KYCStatus)
	s.Equal("asst-def", got.Connection(id.SystemAssisted).ForeignID)
	s.Equal(c.CreatedAt, got.Connection(id.SystemAssisted).UpdatedAt)
}

func (s *PostgresStoreSuite) TestUpdateConnectionUnknownCustomer() {
	err := s.store.UpdateConnection(context.Background(), uuid.New(), &models.Connection{
		System:    id.SystemSelf,
		ForeignID: "self-xyz",
		KYCStatus: status.BasicDetailsEntered,
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	})
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestUpsertUpdatesExistingConnection() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	c.PutConnection(&models.Connection{
		System:      id.SystemSelf,
		ForeignID:   "self-abc",
		AccessToken: "at-old",
		TokenExpiry: c.CreatedAt.Add(time.Hour),
		KYCStatus:   status.BasicDetailsEntered,
		UpdatedAt:   c.CreatedAt,
	})
	s.Require().NoError(s.store.Upsert(ctx, c))

	conn := c.Connection(id.SystemSelf)
	conn.AccessToken = "at-new"
	conn.KYCStatus = status.Initiated
	s.Require().NoError(s.store.Upsert(ctx, c))

	got, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("at-new", got.Connection(id.SystemSelf).AccessToken)
	s.Equal(status.Initiated, got.Connection(id.SystemSelf).KYCStatus)
}

func (s *PostgresStoreSuite) TestFindByTaxID() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	s.Require().NoError(s.store.Upsert(ctx, c))

	got, err := s.store.FindByTaxID(ctx, c.TaxID)
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)

	other, _ := id.ParseTaxID("ZZZPX9999Z")
	_, err = s.store.FindByTaxID(ctx, other)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestFindByConnection() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	c.PutConnection(&models.Connection{
		System:      id.SystemSelf,
		ForeignID:   "self-abc",
		TokenExpiry: c.CreatedAt.Add(time.Hour),
		KYCStatus:   status.Unverified,
		UpdatedAt:   c.CreatedAt,
	})
	s.Require().NoError(s.store.Upsert(ctx, c))

	got, err := s.store.FindByConnection(ctx, id.SystemSelf, "self-abc")
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)

	_, err = s.store.FindByConnection(ctx, id.SystemAssisted, "self-abc")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(context.Background(), uuid.New())
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestOperatorLinksAreIdempotent() {
	ctx := context.Background()
	c := s.newCustomer("ABCPX1234D")
	s.Require().NoError(s.store.Upsert(ctx, c))

	link := models.OperatorLink{
		CustomerID:   c.ID,
		OperatorID:   "op-77",
		AccountID:    "acct-1",
		FirstContact: true,
		CreatedAt:    c.CreatedAt,
	}
	s.Require().NoError(s.store.LinkOperator(ctx, link))
	s.Require().NoError(s.store.LinkOperator(ctx, link))

	second := link
	second.AccountID = "acct-2"
	s.Require().NoError(s.store.LinkOperator(ctx, second))

	links, err := s.store.OperatorLinks(ctx, c.ID)
	s.Require().NoError(err)
	s.Len(links, 2)
}
