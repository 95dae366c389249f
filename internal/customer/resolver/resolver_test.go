package resolver

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/customer/metrics"
	"onboard/internal/customer/models"
	"onboard/internal/customer/store"
	"onboard/internal/gateway/verification"
	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

const testTaxID = id.TaxID("ABCPX1234D")

func newTestResolver(t *testing.T) (*Resolver, *store.MemoryStore, map[id.SystemType]verification.Gateway) {
	t.Helper()
	customers := store.NewMemory()
	gateways := map[id.SystemType]verification.Gateway{
		id.SystemSelf:     verification.NewMock(id.SystemSelf),
		id.SystemAssisted: verification.NewMock(id.SystemAssisted),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	return New(customers, gateways, logger, m), customers, gateways
}

func testInput() Input {
	return Input{
		TaxID:       testTaxID,
		FullName:    "Asha Venkatesan",
		Email:       "asha@example.com",
		Phone:       "+919800000001",
		DateOfBirth: "1991-04-02",
		Consent:     models.ConsentFlags{TermsAccepted: true, DataSharing: true},
		OperatorID:  "op-42",
		AccountID:   "acct-7",
	}
}

func TestResolve_CreatesCustomerWithBothConnections(t *testing.T) {
	r, _, _ := newTestResolver(t)
	ctx := testutil.Context(t)

	customer, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)

	assert.Equal(t, testTaxID, customer.TaxID)
	require.NotNil(t, customer.Connection(id.SystemSelf))
	require.NotNil(t, customer.Connection(id.SystemAssisted))
	assert.Equal(t, status.BasicDetailsEntered, customer.Connection(id.SystemSelf).KYCStatus)
	assert.Equal(t, status.BasicDetailsEntered, customer.Connection(id.SystemAssisted).KYCStatus)
	assert.NotEmpty(t, customer.Connection(id.SystemSelf).AccessToken)
}

func TestResolve_IsIdempotent(t *testing.T) {
	r, customers, _ := newTestResolver(t)
	ctx := testutil.Context(t)

	first, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)
	second, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.Connection(id.SystemSelf))
	require.NotNil(t, second.Connection(id.SystemAssisted))

	// Still exactly one customer for the tax id.
	found, err := customers.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestResolve_AttachesMissingConnectionToExistingCustomer(t *testing.T) {
	r, _, _ := newTestResolver(t)
	ctx := testutil.Context(t)

	// First resolve only establishes the self system.
	partial, err := r.Resolve(ctx, testInput(), []id.SystemType{id.SystemSelf})
	require.NoError(t, err)
	require.NotNil(t, partial.Connection(id.SystemSelf))
	assert.Nil(t, partial.Connection(id.SystemAssisted))

	// Linking via the assisted system attaches to the same customer.
	full, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)
	assert.Equal(t, partial.ID, full.ID)
	require.NotNil(t, full.Connection(id.SystemAssisted))
}

func TestResolve_TaxIDFallbackAdoptsUnconnectedCustomer(t *testing.T) {
	r, customers, _ := newTestResolver(t)
	ctx := testutil.Context(t)

	existing := models.NewCustomer(testTaxID, "Asha Venkatesan", "asha@example.com",
		"+919800000001", "1991-04-02", models.ConsentFlags{}, time.Now())
	require.NoError(t, customers.Upsert(ctx, existing))

	resolved, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resolved.ID)
	require.NotNil(t, resolved.Connection(id.SystemSelf))
	require.NotNil(t, resolved.Connection(id.SystemAssisted))
}

func TestResolve_IntegrityErrorOnDistinctCandidates(t *testing.T) {
	r, customers, gateways := newTestResolver(t)
	ctx := testutil.Context(t)

	// Pre-compute the foreign ids the mocks will return, then artificially
	// map them onto two different customers.
	selfIdentity, err := gateways[id.SystemSelf].CreateIdentity(ctx, verification.IdentityFields{TaxID: testTaxID})
	require.NoError(t, err)
	assistedIdentity, err := gateways[id.SystemAssisted].CreateIdentity(ctx, verification.IdentityFields{TaxID: testTaxID})
	require.NoError(t, err)

	customerA := models.NewCustomer(testTaxID, "A", "", "", "", models.ConsentFlags{}, time.Now())
	customerA.PutConnection(&models.Connection{
		System:    id.SystemSelf,
		ForeignID: selfIdentity.ForeignID,
		KYCStatus: status.BasicDetailsEntered,
	})
	require.NoError(t, customers.Upsert(ctx, customerA))

	customerB := models.NewCustomer(id.TaxID("XYZPK9876F"), "B", "", "", "", models.ConsentFlags{}, time.Now())
	customerB.PutConnection(&models.Connection{
		System:    id.SystemAssisted,
		ForeignID: assistedIdentity.ForeignID,
		KYCStatus: status.BasicDetailsEntered,
	})
	require.NoError(t, customers.Upsert(ctx, customerB))

	_, err = r.Resolve(ctx, testInput(), id.AllSystems())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeIntegrity))

	// Zero writes: neither aggregate changed.
	a, err := customers.FindByID(ctx, customerA.ID)
	require.NoError(t, err)
	assert.Nil(t, a.Connection(id.SystemAssisted))
	assert.Empty(t, a.Connection(id.SystemSelf).AccessToken)

	b, err := customers.FindByID(ctx, customerB.ID)
	require.NoError(t, err)
	assert.Nil(t, b.Connection(id.SystemSelf))
}

// failingGateway wraps a mock and fails CreateIdentity until recovered.
type failingGateway struct {
	verification.Gateway
	fail bool
}

func (g *failingGateway) CreateIdentity(ctx context.Context, fields verification.IdentityFields) (verification.Identity, error) {
	if g.fail {
		return verification.Identity{}, dErrors.New(dErrors.CodeGateway, "assisted: create identity")
	}
	return g.Gateway.CreateIdentity(ctx, fields)
}

func TestResolve_PartialExternalSuccessRetriedViaFallback(t *testing.T) {
	r, _, gateways := newTestResolver(t)
	ctx := testutil.Context(t)

	failing := &failingGateway{Gateway: gateways[id.SystemAssisted], fail: true}
	gateways[id.SystemAssisted] = failing
	r.gateways = gateways

	// First call: assisted system down, customer created with only self.
	partial, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)
	require.NotNil(t, partial.Connection(id.SystemSelf))
	assert.Nil(t, partial.Connection(id.SystemAssisted))

	// Retry after recovery: tax-id fallback finds the same customer and
	// attaches the missing connection, no duplicate created.
	failing.fail = false
	recovered, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)
	assert.Equal(t, partial.ID, recovered.ID)
	require.NotNil(t, recovered.Connection(id.SystemAssisted))
}

func TestResolve_AllSystemsFailing(t *testing.T) {
	r, _, gateways := newTestResolver(t)
	ctx := testutil.Context(t)

	gateways[id.SystemSelf] = &failingGateway{Gateway: gateways[id.SystemSelf], fail: true}
	gateways[id.SystemAssisted] = &failingGateway{Gateway: gateways[id.SystemAssisted], fail: true}
	r.gateways = gateways

	_, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeGateway))
}

func TestResolve_RequiresTaxID(t *testing.T) {
	r, _, _ := newTestResolver(t)
	input := testInput()
	input.TaxID = ""

	_, err := r.Resolve(testutil.Context(t), input, id.AllSystems())
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
}

func TestResolve_LinksOperatorWithFirstContact(t *testing.T) {
	r, customers, _ := newTestResolver(t)
	ctx := testutil.Context(t)

	customer, err := r.Resolve(ctx, testInput(), id.AllSystems())
	require.NoError(t, err)

	links, err := customers.OperatorLinks(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "op-42", links[0].OperatorID)
	assert.True(t, links[0].FirstContact)

	// Second resolve with another operator is not first contact.
	input := testInput()
	input.OperatorID = "op-99"
	_, err = r.Resolve(ctx, input, id.AllSystems())
	require.NoError(t, err)

	links, err = customers.OperatorLinks(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for _, link := range links {
		if link.OperatorID == "op-99" {
			assert.False(t, link.FirstContact)
		}
	}
}
