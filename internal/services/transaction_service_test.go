package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/events"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTransaction(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 40000, 120000, "eur")
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusInitiated, tx.Status)
	assert.Equal(t, landlord, tx.LandlordUserID)
	assert.Equal(t, seeker, tx.SeekerUserID)
	assert.Equal(t, int64(40000), tx.DepositAmount)

	// Second start for the same pair conflicts.
	_, err = e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 40000, 120000, "eur")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "transaction_exists", apperr.CodeOf(err))
}

func TestStartTransactionAuthorization(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	// A non-owner cannot start.
	_, err := e.txSvc.Start(ctx, seeker, rbac.RoleSeeker, seeker, listing.ID, 0, 120000, "eur")
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	// The owner cannot rent to themselves.
	_, err = e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, landlord, listing.ID, 0, 120000, "eur")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// An admin may start on the owner's behalf.
	_, err = e.txSvc.Start(ctx, uuid.New(), rbac.RoleAdmin, seeker, listing.ID, 0, 120000, "eur")
	require.NoError(t, err)
}

func TestStartTransactionRequiresActiveListing(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := &models.Listing{OwnerUserID: landlord, Title: "Draft flat", Status: models.ListingStatusDraft}
	require.NoError(t, e.listings.Create(ctx, listing))

	_, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, uuid.New(), listing.ID, 0, 100000, "eur")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	assert.Equal(t, "listing_not_active", apperr.CodeOf(err))
}

func TestConcurrentStartAdmitsExactlyOne(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 40000, 120000, "eur")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestStartAllowedAgainAfterTerminal(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 0, 100000, "eur")
	require.NoError(t, err)
	require.NoError(t, e.txSvc.Cancel(ctx, tx, landlord, rbac.RoleLandlord))

	_, err = e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 0, 100000, "eur")
	require.NoError(t, err)
}

func TestMoveInAndCompleteAreLandlordOnly(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	tx := e.seedFullySignedTx(t, landlord, seeker, 40000)

	require.NoError(t, e.txSvc.AdvanceOnDepositSucceeded(ctx, tx))
	require.Equal(t, models.TxStatusDepositPaid, tx.Status)

	err := e.txSvc.ConfirmMoveIn(ctx, tx, seeker, rbac.RoleSeeker)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, e.txSvc.ConfirmMoveIn(ctx, tx, landlord, rbac.RoleLandlord))
	assert.Equal(t, models.TxStatusMoveInConfirmed, tx.Status)

	err = e.txSvc.Complete(ctx, tx, seeker, rbac.RoleSeeker)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, e.txSvc.Complete(ctx, tx, landlord, rbac.RoleLandlord))
	assert.Equal(t, models.TxStatusCompleted, tx.Status)

	stored, err := e.txSvc.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CompletedAt)
}

func TestSignatureNotificationsGoToCounterparty(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 40000, 120000, "eur")
	require.NoError(t, err)
	contract, err := e.contractSvc.Generate(ctx, tx, landlord, rbac.RoleLandlord, nil)
	require.NoError(t, err)

	// The seeker signs first. Only the landlord hears about it.
	_, err = e.contractSvc.Sign(ctx, contract.ID, seeker, rbac.RoleSeeker, "click", "10.0.0.1", "test-agent", nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{landlord}, e.notifier.recipientsOf(events.EventCounterpartySigned))

	// The closing signature goes out to both parties.
	_, err = e.contractSvc.Sign(ctx, contract.ID, landlord, rbac.RoleLandlord, "click", "10.0.0.2", "test-agent", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{seeker, landlord}, e.notifier.recipientsOf(events.EventContractFullySigned))
}

func TestLandlordFirstSignatureNotifiesSeeker(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, seeker, listing.ID, 40000, 120000, "eur")
	require.NoError(t, err)
	contract, err := e.contractSvc.Generate(ctx, tx, landlord, rbac.RoleLandlord, nil)
	require.NoError(t, err)

	_, err = e.contractSvc.Sign(ctx, contract.ID, landlord, rbac.RoleLandlord, "click", "10.0.0.2", "test-agent", nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{seeker}, e.notifier.recipientsOf(events.EventCounterpartySigned))
}

func TestMoveInNotificationGoesToSeeker(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	tx := e.seedFullySignedTx(t, landlord, seeker, 40000)

	require.NoError(t, e.txSvc.AdvanceOnDepositSucceeded(ctx, tx))
	assert.ElementsMatch(t, []uuid.UUID{seeker, landlord}, e.notifier.recipientsOf(events.EventDepositPaid))

	require.NoError(t, e.txSvc.ConfirmMoveIn(ctx, tx, landlord, rbac.RoleLandlord))
	assert.Equal(t, []uuid.UUID{seeker}, e.notifier.recipientsOf(events.EventMoveInConfirmed))
}

func TestInvalidTransitionCarriesCurrentStatus(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, uuid.New(), listing.ID, 0, 100000, "eur")
	require.NoError(t, err)

	// Move-in straight from initiated is not a legal transition.
	err = e.txSvc.ConfirmMoveIn(ctx, tx, landlord, rbac.RoleLandlord)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.TxStatusInitiated, appErr.CurrentStatus)
}

func TestDepositSucceededMarksListingRented(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	tx := e.seedFullySignedTx(t, landlord, uuid.New(), 40000)

	require.NoError(t, e.txSvc.AdvanceOnDepositSucceeded(ctx, tx))

	listing, err := e.listings.GetByID(ctx, tx.ListingID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRented, listing.Status)
}

func TestCancelStale(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	tx, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, uuid.New(), listing.ID, 0, 100000, "eur")
	require.NoError(t, err)
	e.txs.setUpdatedAt(tx.ID, time.Now().Add(-48*time.Hour))

	fresh, err := e.txSvc.Start(ctx, landlord, rbac.RoleLandlord, uuid.New(), listing.ID, 0, 100000, "eur")
	require.NoError(t, err)

	cancelled, err := e.txSvc.CancelStale(ctx, 24*3600)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)

	stale, err := e.txSvc.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusCancelled, stale.Status)

	kept, err := e.txSvc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxStatusInitiated, kept.Status)
}
