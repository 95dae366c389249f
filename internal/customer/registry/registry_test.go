package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
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

func newRegistry(t *testing.T) (*Registry, *store.MemoryStore, map[id.SystemType]verification.Gateway) {
	t.Helper()
	customers := store.NewMemory()
	gateways := map[id.SystemType]verification.Gateway{
		id.SystemSelf:     verification.NewMock(id.SystemSelf),
		id.SystemAssisted: verification.NewMock(id.SystemAssisted),
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return New(customers, gateways, logger, metrics.New(prometheus.NewRegistry())), customers, gateways
}

func seedConnected(t *testing.T, customers *store.MemoryStore) *models.Customer {
	t.Helper()
	ctx := testutil.Context(t)
	taxID, err := id.ParseTaxID("ABCPX1234D")
	require.NoError(t, err)
	c := models.NewCustomer(taxID, "Asha Venkatesan", "asha@example.com", "+919999988888", "1990-01-05", models.ConsentFlags{TermsAccepted: true}, testutil.FixedTime())
	c.PutConnection(&models.Connection{
		System:       id.SystemSelf,
		ForeignID:    "self-123",
		AccessToken:  "at-old",
		RefreshToken: "rt-self-123",
		TokenExpiry:  testutil.FixedTime().Add(time.Minute),
		KYCStatus:    status.BasicDetailsEntered,
		UpdatedAt:    testutil.FixedTime(),
	})
	require.NoError(t, customers.Upsert(ctx, c))
	return c
}

func TestApplyStatus(t *testing.T) {
	t.Run("legal transition persists the new status", func(t *testing.T) {
		reg, customers, _ := newRegistry(t)
		c := seedConnected(t, customers)
		ctx := testutil.Context(t)

		next, err := reg.ApplyStatus(ctx, c.ID, id.SystemSelf, status.EventInitiate)

		require.NoError(t, err)
		assert.Equal(t, status.Initiated, next)

		stored, err := customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, status.Initiated, stored.Connection(id.SystemSelf).KYCStatus)
		assert.Equal(t, testutil.FixedTime(), stored.Connection(id.SystemSelf).UpdatedAt)
	})

	t.Run("illegal transition leaves the stored status untouched", func(t *testing.T) {
		reg, customers, _ := newRegistry(t)
		c := seedConnected(t, customers)
		ctx := testutil.Context(t)

		_, err := reg.ApplyStatus(ctx, c.ID, id.SystemSelf, status.EventVerify)

		require.Error(t, err)
		stored, findErr := customers.FindByID(ctx, c.ID)
		require.NoError(t, findErr)
		assert.Equal(t, status.BasicDetailsEntered, stored.Connection(id.SystemSelf).KYCStatus)
	})

	t.Run("parallel per-system transitions both persist", func(t *testing.T) {
		customers := store.NewMemory()
		barrier := &barrierStore{MemoryStore: customers}
		barrier.reads.Add(2)
		gateways := map[id.SystemType]verification.Gateway{
			id.SystemSelf:     verification.NewMock(id.SystemSelf),
			id.SystemAssisted: verification.NewMock(id.SystemAssisted),
		}
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		reg := New(barrier, gateways, logger, metrics.New(prometheus.NewRegistry()))
		c := seedConnected(t, customers)
		c.PutConnection(&models.Connection{
			System:       id.SystemAssisted,
			ForeignID:    "assisted-123",
			AccessToken:  "at-old",
			RefreshToken: "rt-assisted-123",
			TokenExpiry:  testutil.FixedTime().Add(time.Minute),
			KYCStatus:    status.BasicDetailsEntered,
			UpdatedAt:    testutil.FixedTime(),
		})
		ctx := testutil.Context(t)
		require.NoError(t, customers.Upsert(ctx, c))

		// Both goroutines load the customer before either writes. A
		// whole-aggregate rewrite would let the slower writer revert the
		// faster one's row to BASIC_DETAILS_ENTERED.
		var wg sync.WaitGroup
		for _, system := range []id.SystemType{id.SystemSelf, id.SystemAssisted} {
			wg.Add(1)
			go func(system id.SystemType) {
				defer wg.Done()
				next, err := reg.ApplyStatus(ctx, c.ID, system, status.EventInitiate)
				if assert.NoError(t, err) {
					assert.Equal(t, status.Initiated, next)
				}
			}(system)
		}
		wg.Wait()

		stored, err := customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, status.Initiated, stored.Connection(id.SystemSelf).KYCStatus)
		assert.Equal(t, status.Initiated, stored.Connection(id.SystemAssisted).KYCStatus)
	})

	t.Run("missing connection is not found", func(t *testing.T) {
		reg, customers, _ := newRegistry(t)
		c := seedConnected(t, customers)

		_, err := reg.ApplyStatus(testutil.Context(t), c.ID, id.SystemAssisted, status.EventInitiate)

		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})

	t.Run("unknown customer is not found", func(t *testing.T) {
		reg, _, _ := newRegistry(t)

		_, err := reg.ApplyStatus(testutil.Context(t), uuid.New(), id.SystemSelf, status.EventInitiate)

		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("replaces token and expiry together", func(t *testing.T) {
		reg, customers, _ := newRegistry(t)
		c := seedConnected(t, customers)
		ctx := testutil.Context(t)

		conn, err := reg.RefreshToken(ctx, c.ID, id.SystemSelf)

		require.NoError(t, err)
		assert.Equal(t, "at-refreshed-rt-self-123", conn.AccessToken)
		assert.Equal(t, testutil.FixedTime().Add(time.Hour), conn.TokenExpiry)

		stored, err := customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, conn.AccessToken, stored.Connection(id.SystemSelf).AccessToken)
	})

	t.Run("gateway failure maps to a gateway error", func(t *testing.T) {
		reg, customers, gateways := newRegistry(t)
		c := seedConnected(t, customers)
		gateways[id.SystemSelf] = &countingGateway{
			Gateway: gateways[id.SystemSelf],
			err:     errors.New("vendor down"),
		}

		_, err := reg.RefreshToken(testutil.Context(t), c.ID, id.SystemSelf)

		assert.True(t, dErrors.Is(err, dErrors.CodeGateway))
	})

	t.Run("concurrent refreshes share one gateway call", func(t *testing.T) {
		reg, customers, gateways := newRegistry(t)
		c := seedConnected(t, customers)
		counting := &countingGateway{
			Gateway: gateways[id.SystemSelf],
			delay:   50 * time.Millisecond,
		}
		gateways[id.SystemSelf] = counting
		ctx := testutil.Context(t)

		const callers = 8
		var wg sync.WaitGroup
		tokens := make([]string, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				conn, err := reg.RefreshToken(ctx, c.ID, id.SystemSelf)
				if assert.NoError(t, err) {
					tokens[i] = conn.AccessToken
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), counting.calls.Load())
		for _, token := range tokens {
			assert.Equal(t, tokens[0], token)
		}
	})
}

func TestTokenExpiring(t *testing.T) {
	now := testutil.FixedTime()
	conn := &models.Connection{TokenExpiry: now.Add(5 * time.Minute)}

	assert.True(t, TokenExpiring(conn, now, 10*time.Minute))
	assert.False(t, TokenExpiring(conn, now, time.Minute))
	assert.True(t, TokenExpiring(&models.Connection{TokenExpiry: now}, now, 0))
}

// barrierStore delays FindByID until the expected number of readers arrive,
// forcing concurrent callers to take the same snapshot before any of them
// writes.
type barrierStore struct {
	*store.MemoryStore
	reads sync.WaitGroup
}

func (s *barrierStore) FindByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.MemoryStore.FindByID(ctx, customerID)
	s.reads.Done()
	s.reads.Wait()
	return customer, err
}

// countingGateway wraps a gateway to count and optionally fail or slow token
// calls.
type countingGateway struct {
	verification.Gateway
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (g *countingGateway) GetAccessToken(ctx context.Context, refreshToken string) (verification.Token, error) {
	g.calls.Add(1)
	time.Sleep(g.delay)
	if g.err != nil {
		return verification.Token{}, g.err
	}
	return g.Gateway.GetAccessToken(ctx, refreshToken)
}
