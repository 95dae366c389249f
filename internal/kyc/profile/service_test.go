package profile

import (
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custmetrics "onboard/internal/customer/metrics"
	"onboard/internal/customer/models"
	"onboard/internal/customer/registry"
	"onboard/internal/customer/resolver"
	custstore "onboard/internal/customer/store"
	"onboard/internal/events"
	"onboard/internal/gateway/bankverify"
	"onboard/internal/gateway/biometric"
	vaultgw "onboard/internal/gateway/vault"
	"onboard/internal/gateway/verification"
	"onboard/internal/gateway/watchlist"
	"onboard/internal/kyc/metrics"
	"onboard/internal/kyc/status"
	"onboard/internal/kyc/vault"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

const testTaxID = id.TaxID("ABCPX1234D")

type fixture struct {
	svc       *Service
	profiles  *MemoryStore
	customers *custstore.MemoryStore
	resolver  *resolver.Resolver
	watchlist *watchlist.MockGateway
	bank      *bankverify.MockGateway
	biometric *biometric.MockGateway
	vaultGW   *vaultgw.MockGateway
	recorder  *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	customers := custstore.NewMemory()
	gateways := map[id.SystemType]verification.Gateway{
		id.SystemSelf:     verification.NewMock(id.SystemSelf),
		id.SystemAssisted: verification.NewMock(id.SystemAssisted),
	}
	cm := custmetrics.New(prometheus.NewRegistry())
	reg := registry.New(customers, gateways, logger, cm)

	f := &fixture{
		profiles:  NewMemory(),
		customers: customers,
		resolver:  resolver.New(customers, gateways, logger, cm),
		watchlist: watchlist.NewMock(),
		bank:      bankverify.NewMock(),
		biometric: biometric.NewMock(),
		vaultGW:   vaultgw.NewMock(),
		recorder:  events.NewRecorder(),
	}
	f.svc = NewService(ServiceConfig{
		Profiles:   f.profiles,
		Customers:  customers,
		Statuses:   reg,
		Watchlist:  f.watchlist,
		BankVerify: f.bank,
		Biometric:  f.biometric,
		VaultDocs:  f.vaultGW,
		VaultToken: vault.NewTokenSource(f.vaultGW, vault.NewMemoryCache(), []byte("test-key"), logger),
		Publisher:  f.recorder,
		Logger:     logger,
		Metrics:    metrics.New(prometheus.NewRegistry()),
	})
	return f
}

func basicDetails() BasicDetailsInput {
	return BasicDetailsInput{
		TaxID:        testTaxID,
		SessionToken: "sess-1",
		FullName:     "Asha Venkatesan",
		Email:        "asha@example.com",
		Phone:        "+919800000001",
		DateOfBirth:  "1991-04-02",
		Address:      Address{Line1: "12 MG Road", City: "Bengaluru", State: "KA", PinCode: "560001"},
		Nominees:     []Nominee{{Name: "Ravi Venkatesan", Relationship: "father", SharePercent: 100}},
	}
}

func declaredAccount() bankverify.Account {
	return bankverify.Account{
		Number:     "000111222333",
		IFSC:       id.IFSC("HDFC0000123"),
		HolderName: "Asha Venkatesan",
	}
}

// runAllSteps drives the profile through every step short of final submission.
func runAllSteps(t *testing.T, f *fixture) {
	t.Helper()
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)
	_, err = f.svc.VerifyIdentity(ctx, IdentityInput{TaxID: testTaxID, FullName: "Asha Venkatesan"})
	require.NoError(t, err)
	_, err = f.svc.FetchFromVault(ctx, VaultFetchInput{TaxID: testTaxID})
	require.NoError(t, err)
	_, err = f.svc.VerifyBankAccount(ctx, BankAccountInput{TaxID: testTaxID, Account: declaredAccount()})
	require.NoError(t, err)
	_, err = f.svc.VerifyChequeImage(ctx, ChequeInput{
		TaxID:    testTaxID,
		ImageURL: "https://uploads.example/cheque-1.png",
		Account:  declaredAccount(),
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitSelfie(ctx, CaptureInput{TaxID: testTaxID, LiveURL: "https://uploads.example/selfie-1.png"})
	require.NoError(t, err)
	_, err = f.svc.SubmitSignature(ctx, CaptureInput{TaxID: testTaxID, LiveURL: "https://uploads.example/sign-1.png"})
	require.NoError(t, err)
}

func TestOnboarding_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	var customer *models.Customer
	var p *CustomerProfile

	testutil.Given(t, "a customer resolved across both verification systems", func(t *testing.T) {
		var err error
		customer, err = f.resolver.Resolve(ctx, resolver.Input{
			TaxID:    testTaxID,
			FullName: "Asha Venkatesan",
		}, id.AllSystems())
		require.NoError(t, err)
	})

	testutil.When(t, "every onboarding step completes and the profile is submitted", func(t *testing.T) {
		runAllSteps(t, f)
		var err error
		p, err = f.svc.FinalSubmit(ctx, FinalSubmitInput{TaxID: testTaxID})
		require.NoError(t, err)
	})

	testutil.Then(t, "the profile is sealed and linked to the customer", func(t *testing.T) {
		assert.True(t, p.Sealed())
		require.NotNil(t, p.CustomerID)
		assert.Equal(t, customer.ID, *p.CustomerID)
		assert.True(t, p.BankAccount.Verified)
		assert.NotEmpty(t, p.SelfieURL)
		assert.NotEmpty(t, p.SignatureURL)
		assert.NotEmpty(t, p.VaultProofURL)
		require.NotNil(t, p.SubmittedAt)
		assert.Equal(t, testutil.FixedTime(), *p.SubmittedAt)
	})

	testutil.Then(t, "both connections advanced to the initiated state", func(t *testing.T) {
		stored, err := f.customers.FindByID(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, status.Initiated, stored.Connection(id.SystemSelf).KYCStatus)
		assert.Equal(t, status.Initiated, stored.Connection(id.SystemAssisted).KYCStatus)
	})

	testutil.Then(t, "exactly one document generation event was emitted", func(t *testing.T) {
		docEvents := f.recorder.ByType(events.TypeDocumentGeneration)
		require.Len(t, docEvents, 1)
		assert.Equal(t, customer.ID, docEvents[0].CustomerID)
		assert.Equal(t, testTaxID.Hash(), docEvents[0].TaxIDHash)
	})
}

func TestFinalSubmit_SealedProfileRejectsResubmission(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.resolver.Resolve(ctx, resolver.Input{TaxID: testTaxID, FullName: "Asha Venkatesan"}, id.AllSystems())
	require.NoError(t, err)
	runAllSteps(t, f)
	_, err = f.svc.FinalSubmit(ctx, FinalSubmitInput{TaxID: testTaxID})
	require.NoError(t, err)

	// Every step, including a second final submit, is refused once sealed.
	_, err = f.svc.FinalSubmit(ctx, FinalSubmitInput{TaxID: testTaxID})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeDuplicateIdentity))

	_, err = f.svc.SubmitBasicDetails(ctx, basicDetails())
	assert.True(t, dErrors.Is(err, dErrors.CodeDuplicateIdentity))

	assert.Len(t, f.recorder.ByType(events.TypeDocumentGeneration), 1)
}

func TestFinalSubmit_SealsAfterMinimalSequence(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.VerifyIdentity(ctx, IdentityInput{TaxID: testTaxID, FullName: "Asha Venkatesan"})
	require.NoError(t, err)
	_, err = f.svc.VerifyBankAccount(ctx, BankAccountInput{TaxID: testTaxID, Account: declaredAccount()})
	require.NoError(t, err)

	p, err := f.svc.FinalSubmit(ctx, FinalSubmitInput{TaxID: testTaxID})
	require.NoError(t, err)
	assert.True(t, p.AllDetailsFilled)
	assert.True(t, p.BankAccount.Verified)
	require.NotNil(t, p.SubmittedAt)
}

func TestVerifyIdentity_WatchlistHitFlagsReviewWithoutBlocking(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	input := basicDetails()
	input.FullName = "Flagged Person"
	_, err := f.svc.SubmitBasicDetails(ctx, input)
	require.NoError(t, err)

	p, err := f.svc.VerifyIdentity(ctx, IdentityInput{TaxID: testTaxID, FullName: "Flagged Person"})
	require.NoError(t, err)

	assert.True(t, p.ReviewRequired)
	require.NotEmpty(t, p.WatchlistHits)
	assert.Greater(t, p.WatchlistHits[0].Score, 0.0)
}

func TestVerifyBankAccount_HolderMismatchPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)

	account := declaredAccount()
	account.Number = "000999911111" // mock reports a different holder
	_, err = f.svc.VerifyBankAccount(ctx, BankAccountInput{TaxID: testTaxID, Account: account})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	p, err := f.profiles.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Empty(t, p.BankAccount.Number)
	assert.False(t, p.BankAccount.Verified)
}

func TestVerifyChequeImage_RecoveredAccountMismatchRejects(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)

	account := declaredAccount()
	account.Number = "555666777888" // cheque OCR recovers a different number
	_, err = f.svc.VerifyChequeImage(ctx, ChequeInput{
		TaxID:    testTaxID,
		ImageURL: "https://uploads.example/cheque-2.png",
		Account:  account,
	})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	p, err := f.profiles.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Empty(t, p.ChequeURL)
}

func TestSubmitSelfie_BiometricMismatchRejects(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)
	_, err = f.svc.FetchFromVault(ctx, VaultFetchInput{TaxID: testTaxID})
	require.NoError(t, err)

	_, err = f.svc.SubmitSelfie(ctx, CaptureInput{TaxID: testTaxID, LiveURL: "https://uploads.example/no-match.png"})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	p, err := f.profiles.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Empty(t, p.SelfieURL)
}

func TestFetchFromVault_TaxIDMismatchRejectsWholeFetch(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)

	f.vaultGW.WrongTaxID = "ZZZPX9999Z"
	_, err = f.svc.FetchFromVault(ctx, VaultFetchInput{TaxID: testTaxID})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeValidation))

	p, err := f.profiles.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Empty(t, p.VaultProofURL)
}

func TestSteps_MergeAtFieldGranularity(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	_, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)
	_, err = f.svc.VerifyBankAccount(ctx, BankAccountInput{TaxID: testTaxID, Account: declaredAccount()})
	require.NoError(t, err)

	// The bank step must not clobber fields earlier steps wrote.
	p, err := f.profiles.FindByTaxID(ctx, testTaxID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Venkatesan", p.FullName)
	assert.Equal(t, "12 MG Road", p.Address.Line1)
	require.Len(t, p.Nominees, 1)
	assert.True(t, p.BankAccount.Verified)
}

func TestSubmitBasicDetails_LinksResolvedCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := testutil.Context(t)

	customer, err := f.resolver.Resolve(ctx, resolver.Input{TaxID: testTaxID, FullName: "Asha Venkatesan"}, id.AllSystems())
	require.NoError(t, err)

	p, err := f.svc.SubmitBasicDetails(ctx, basicDetails())
	require.NoError(t, err)
	require.NotNil(t, p.CustomerID)
	assert.Equal(t, customer.ID, *p.CustomerID)
}
