package order

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/events"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

func TestMapExternalStatus(t *testing.T) {
	cases := map[string]Status{
		"captured":     PaymentSuccess,
		"failed":       Rejected,
		"user_dropped": Cancelled,
		"expired":      Cancelled,
		"authorized":   PaymentPending,
		"pending":      PaymentPending,
		"refunded":     Refunded,
		"opened":       LinkOpened,
	}
	for external, want := range cases {
		got, err := MapExternalStatus(external)
		require.NoError(t, err, external)
		assert.Equal(t, want, got, external)
	}
}

func TestMapExternalStatus_UnmappedIsAnErrorNotADefault(t *testing.T) {
	_, err := MapExternalStatus("settlement_on_hold")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestAdvance_LinkProgression(t *testing.T) {
	now := testutil.FixedTime()
	o := &Order{Status: LinkSent}

	require.NoError(t, o.Advance("opened", now))
	assert.Equal(t, LinkOpened, o.Status)

	require.NoError(t, o.Advance("pending", now))
	assert.Equal(t, PaymentPending, o.Status)

	require.NoError(t, o.Advance("captured", now))
	assert.Equal(t, PaymentSuccess, o.Status)
}

func TestAdvance_LateOpenedWebhookIsANoOp(t *testing.T) {
	now := testutil.FixedTime()
	o := &Order{Status: PaymentPending}

	require.NoError(t, o.Advance("opened", now))
	assert.Equal(t, PaymentPending, o.Status)
}

func TestAdvance_PaidOrderOnlyRefunds(t *testing.T) {
	now := testutil.FixedTime()
	o := &Order{Status: PaymentSuccess}

	err := o.Advance("failed", now)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
	assert.Equal(t, PaymentSuccess, o.Status)

	require.NoError(t, o.Advance("refunded", now))
	assert.Equal(t, Refunded, o.Status)
}

func TestAdvance_TerminalOrdersRefuseEverything(t *testing.T) {
	now := testutil.FixedTime()
	for _, st := range []Status{Rejected, Cancelled, Refunded} {
		o := &Order{Status: st}
		err := o.Advance("captured", now)
		require.Error(t, err, st)
		assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
	}
}

func newService() (*Service, *events.Recorder) {
	recorder := events.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(NewMemory(), recorder, logger), recorder
}

func TestService_WebhookAdvancesAndEmits(t *testing.T) {
	svc, recorder := newService()
	ctx := testutil.Context(t)

	created, err := svc.Create(ctx, CreateInput{
		CustomerID:  uuid.New(),
		ExternalID:  "pay_0001",
		AmountPaise: 99900,
		PaymentLink: "https://pay.example/l/0001",
	})
	require.NoError(t, err)
	assert.Equal(t, LinkSent, created.Status)
	assert.Equal(t, "INR", created.Currency)

	updated, err := svc.HandleExternalStatus(ctx, "pay_0001", "captured")
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, updated.Status)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentSuccess, stored.Status)

	advanced := recorder.ByType(events.TypeOrderAdvanced)
	require.Len(t, advanced, 1)
	assert.Equal(t, "LINK_SENT", advanced[0].Fields["from"])
	assert.Equal(t, "PAYMENT_SUCCESS", advanced[0].Fields["to"])
}

func TestService_WebhookForUnknownOrder(t *testing.T) {
	svc, _ := newService()
	ctx := testutil.Context(t)

	_, err := svc.HandleExternalStatus(ctx, "pay_missing", "captured")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestService_RepeatedWebhookDoesNotReEmit(t *testing.T) {
	svc, recorder := newService()
	ctx := testutil.Context(t)

	_, err := svc.Create(ctx, CreateInput{
		CustomerID:  uuid.New(),
		ExternalID:  "pay_0002",
		AmountPaise: 50000,
	})
	require.NoError(t, err)

	_, err = svc.HandleExternalStatus(ctx, "pay_0002", "pending")
	require.NoError(t, err)
	_, err = svc.HandleExternalStatus(ctx, "pay_0002", "pending")
	require.NoError(t, err)

	assert.Len(t, recorder.ByType(events.TypeOrderAdvanced), 1)
}
