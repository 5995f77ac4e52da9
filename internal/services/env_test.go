package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rentora/backend/internal/contractdoc"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

type testEnv struct {
	listings  *fakeListingStore
	txs       *fakeTransactionStore
	contracts *fakeContractStore
	payments  *fakePaymentStore
	viewings  *fakeViewingStore
	audit     *fakeAudit
	notifier  *fakeNotifier
	checkout  *fakeCheckout
	deduper   *memDeduper

	listingSvc  *ListingService
	txSvc       *TransactionService
	contractSvc *ContractService
	viewingSvc  *ViewingService
	paymentSvc  *PaymentService
}

func newTestEnv() *testEnv {
	log := zap.NewNop()
	e := &testEnv{
		listings:  newFakeListingStore(),
		txs:       newFakeTransactionStore(),
		contracts: newFakeContractStore(),
		payments:  newFakePaymentStore(),
		viewings:  newFakeViewingStore(),
		audit:     &fakeAudit{},
		notifier:  &fakeNotifier{},
		checkout:  &fakeCheckout{},
		deduper:   newMemDeduper(),
	}
	e.listingSvc = NewListingService(e.listings, e.audit, log)
	e.txSvc = NewTransactionService(e.txs, e.listings, e.listingSvc, e.audit, e.notifier, log)
	e.contractSvc = NewContractService(e.contracts, e.txSvc, contractdoc.NewJSONRenderer(), newMemArtifacts(), e.audit, "lease-standard-v1", log)
	e.viewingSvc = NewViewingService(e.viewings, e.listings, e.audit, e.notifier, log)
	e.paymentSvc = NewPaymentService(e.payments, e.contracts, e.txSvc, e.checkout, e.deduper, e.audit,
		testWebhookSecret, "https://app.example/success", "https://app.example/cancel", log)
	return e
}

func (e *testEnv) seedActiveListing(t *testing.T, owner uuid.UUID) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		OwnerUserID: owner,
		Title:       "Sunny flat",
		Status:      models.ListingStatusActive,
	}
	require.NoError(t, e.listings.Create(context.Background(), listing))
	return listing
}

// seedFullySignedTx drives a transaction through contract generation and both
// signatures so payment paths can start from fully_signed.
func (e *testEnv) seedFullySignedTx(t *testing.T, landlord, seeker uuid.UUID, deposit int64) *models.RentalTransaction {
	t.Helper()
	ctx := context.Background()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, deposit, 120000, "eur")
	require.NoError(t, err)

	contract, err := e.contractSvc.Generate(ctx, tx, landlord, rbac.RoleLandlord, map[string]any{"rent": 1200})
	require.NoError(t, err)

	_, err = e.contractSvc.Sign(ctx, contract.ID, seeker, rbac.RoleSeeker, "click", "10.0.0.1", "test-agent", nil)
	require.NoError(t, err)
	_, err = e.contractSvc.Sign(ctx, contract.ID, landlord, rbac.RoleLandlord, "click", "10.0.0.2", "test-agent", nil)
	require.NoError(t, err)

	tx, err = e.txSvc.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusFullySigned, tx.Status)
	return tx
}
