package services

import (
	"context"
	"strings"
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

func (e *testEnv) seedSlot(t *testing.T, landlord uuid.UUID, listingID uuid.UUID, capacity int) *models.ViewingSlot {
	t.Helper()
	slot := &models.ViewingSlot{
		ListingID: listingID,
		StartsAt:  time.Now().UTC().Truncate(24 * time.Hour),
		Capacity:  capacity,
		Pattern:   models.SlotPatternEveryday,
	}
	require.NoError(t, e.viewingSvc.CreateSlot(context.Background(), landlord, rbac.RoleLandlord, slot))
	return slot
}

func TestRequestSlotCapacityOne(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seekerA := uuid.New()
	seekerB := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 1)

	at := time.Now().Add(24 * time.Hour)
	reqA, err := e.viewingSvc.RequestSlot(ctx, seekerA, slot.ID, at, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ViewingStatusRequested, reqA.Status)
	assert.Equal(t, 1, e.notifier.countOf(events.EventViewingRequested))

	// Second seeker bounces off the full slot.
	_, err = e.viewingSvc.RequestSlot(ctx, seekerB, slot.ID, at, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "slot_full", apperr.CodeOf(err))

	// Landlord confirms A.
	confirmed, err := e.viewingSvc.Confirm(ctx, landlord, rbac.RoleLandlord, reqA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ViewingStatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, e.notifier.countOf(events.EventViewingConfirmed))
}

func TestConfirmQuotaExhausted(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 2)

	at := time.Now().Add(24 * time.Hour)
	reqA, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, at, nil)
	require.NoError(t, err)
	reqB, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, at, nil)
	require.NoError(t, err)

	// Exhaust the confirmed quota.
	_, err = e.viewingSvc.Confirm(ctx, landlord, rbac.RoleLandlord, reqA.ID)
	require.NoError(t, err)
	_, err = e.viewingSvc.Confirm(ctx, landlord, rbac.RoleLandlord, reqB.ID)
	require.NoError(t, err)

	// Stage a third request directly in the store, bypassing admission, to
	// exercise the confirm-side quota check.
	reqC := &models.ViewingRequest{
		SlotID:      slot.ID,
		SeekerID:    uuid.New(),
		Status:      models.ViewingStatusRequested,
		ScheduledAt: at,
	}
	e.viewings.mu.Lock()
	reqC.ID = uuid.New()
	cp := *reqC
	e.viewings.requests[reqC.ID] = &cp
	e.viewings.mu.Unlock()

	_, err = e.viewingSvc.Confirm(ctx, landlord, rbac.RoleLandlord, reqC.ID)
	require.Error(t, err)
	assert.Equal(t, "slot_already_confirmed", apperr.CodeOf(err))
}

func TestConcurrentRequestsNeverExceedCapacity(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 3)

	const workers = 20
	at := time.Now().Add(24 * time.Hour)
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, at, nil)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.Equal(t, "slot_full", apperr.CodeOf(err))
		}
	}
	assert.Equal(t, 3, admitted)

	active, err := e.viewings.CountActiveRequests(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, active)
}

// nextWeekday returns midnight UTC of the first day strictly after t that
// falls on wd.
func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	d := t.UTC().AddDate(0, 0, 1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func TestRequestSlotScheduleValidation(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	from, to := "10:00", "12:00"
	slot := &models.ViewingSlot{
		ListingID: listing.ID,
		StartsAt:  time.Now().UTC(),
		Capacity:  5,
		Pattern:   models.SlotPatternWeekdays,
		TimeFrom:  &from,
		TimeTo:    &to,
	}
	require.NoError(t, e.viewingSvc.CreateSlot(ctx, landlord, rbac.RoleLandlord, slot))

	// Saturday is rejected for a weekdays slot.
	saturday := nextWeekday(time.Now(), time.Saturday).Add(11 * time.Hour)
	_, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, saturday, nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_schedule", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "weekday")

	// Outside the daily window.
	monday := nextWeekday(saturday, time.Monday).Add(14 * time.Hour)
	_, err = e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, monday, nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_schedule", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "window")

	// In the past, even though the recurrence is open-ended.
	pastMonday := nextWeekday(time.Now().AddDate(0, 0, -21), time.Monday).Add(11 * time.Hour)
	_, err = e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, pastMonday, nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_schedule", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "past")

	// Inside the window on a weekday.
	_, err = e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, monday.Add(-3*time.Hour), nil)
	require.NoError(t, err)
}

func TestRequestSlotRejectsPastOccurrence(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	// An open-ended everyday slot that has been running for a year. A date
	// matching the recurrence but already behind us must not be admitted.
	slot := &models.ViewingSlot{
		ListingID: listing.ID,
		StartsAt:  time.Now().UTC().AddDate(-1, 0, 0),
		Capacity:  3,
		Pattern:   models.SlotPatternEveryday,
	}
	require.NoError(t, e.viewingSvc.CreateSlot(ctx, landlord, rbac.RoleLandlord, slot))

	_, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, time.Now().AddDate(0, 0, -7), nil)
	require.Error(t, err)
	assert.Equal(t, "invalid_schedule", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "past")
}

func TestRequestSlotInactiveListing(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 1)

	require.NoError(t, e.listings.UpdateStatus(ctx, listing.ID, models.ListingStatusPaused))

	_, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, time.Now().Add(24*time.Hour), nil)
	require.Error(t, err)
	assert.Equal(t, "listing_not_active", apperr.CodeOf(err))
}

func TestCancelRoutesNotificationToOtherParty(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 1)

	req, err := e.viewingSvc.RequestSlot(ctx, seeker, slot.ID, time.Now().Add(24*time.Hour), nil)
	require.NoError(t, err)

	cancelled, err := e.viewingSvc.Cancel(ctx, seeker, rbac.RoleSeeker, req.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, models.CancelledBySeeker, *cancelled.CancelledBy)

	// The landlord, not the seeker, gets the cancellation notice.
	e.notifier.mu.Lock()
	last := e.notifier.sent[len(e.notifier.sent)-1]
	e.notifier.mu.Unlock()
	assert.Equal(t, events.EventViewingCancelled, last.EventType)
	assert.Equal(t, landlord, last.UserID)

	// Capacity is freed.
	_, err = e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, time.Now().Add(24*time.Hour), nil)
	require.NoError(t, err)
}

func TestUpdateSlotCapacityBelowDemand(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 3)

	at := time.Now().Add(24 * time.Hour)
	for i := 0; i < 2; i++ {
		_, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, at, nil)
		require.NoError(t, err)
	}

	slot.Capacity = 1
	err := e.viewingSvc.UpdateSlot(ctx, landlord, rbac.RoleLandlord, slot)
	require.Error(t, err)
	assert.Equal(t, "capacity_below_demand", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "below 2 active requests")

	slot.Capacity = 2
	require.NoError(t, e.viewingSvc.UpdateSlot(ctx, landlord, rbac.RoleLandlord, slot))
}

func TestDeleteSlotWithActiveRequests(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 1)

	req, err := e.viewingSvc.RequestSlot(ctx, seeker, slot.ID, time.Now().Add(24*time.Hour), nil)
	require.NoError(t, err)

	err = e.viewingSvc.DeleteSlot(ctx, landlord, rbac.RoleLandlord, slot.ID)
	require.Error(t, err)
	assert.Equal(t, "slot_has_active_requests", apperr.CodeOf(err))

	_, err = e.viewingSvc.Reject(ctx, landlord, rbac.RoleLandlord, req.ID)
	require.NoError(t, err)
	require.NoError(t, e.viewingSvc.DeleteSlot(ctx, landlord, rbac.RoleLandlord, slot.ID))
}

func TestSlotManagementForbiddenForStrangers(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 1)

	stranger := uuid.New()
	err := e.viewingSvc.DeleteSlot(ctx, stranger, rbac.RoleLandlord, slot.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestCalendarExport(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	seeker := uuid.New()
	listing := e.seedActiveListing(t, landlord)

	from, to := "09:00", "12:00"
	slot := &models.ViewingSlot{
		ListingID: listing.ID,
		StartsAt:  time.Now().UTC(),
		Capacity:  1,
		Pattern:   models.SlotPatternEveryday,
		TimeFrom:  &from,
		TimeTo:    &to,
	}
	require.NoError(t, e.viewingSvc.CreateSlot(ctx, landlord, rbac.RoleLandlord, slot))

	day := nextWeekday(time.Now(), time.Monday)
	at := day.Add(10*time.Hour + 30*time.Minute)
	req, err := e.viewingSvc.RequestSlot(ctx, seeker, slot.ID, at, nil)
	require.NoError(t, err)

	// Export requires a confirmed request.
	_, err = e.viewingSvc.CalendarExport(ctx, seeker, req.ID)
	require.Error(t, err)
	assert.Equal(t, "not_confirmed", apperr.CodeOf(err))

	_, err = e.viewingSvc.Confirm(ctx, landlord, rbac.RoleLandlord, req.ID)
	require.NoError(t, err)

	doc, err := e.viewingSvc.CalendarExport(ctx, seeker, req.ID)
	require.NoError(t, err)
	assert.True(t, strings.Contains(doc, "BEGIN:VEVENT"))
	assert.Contains(t, doc, "DTSTART:"+at.Format("20060102T150405Z"))
	assert.Contains(t, doc, "DTEND:"+day.Add(12*time.Hour).Format("20060102T150405Z"))
	assert.Contains(t, doc, "SUMMARY:Viewing: Sunny flat")

	// Outsiders cannot export.
	_, err = e.viewingSvc.CalendarExport(ctx, uuid.New(), req.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestSweepPastRequested(t *testing.T) {
	e := newTestEnv()
	ctx := context.Background()
	landlord := uuid.New()
	listing := e.seedActiveListing(t, landlord)
	slot := e.seedSlot(t, landlord, listing.ID, 2)

	req, err := e.viewingSvc.RequestSlot(ctx, uuid.New(), slot.ID, time.Now().Add(time.Minute), nil)
	require.NoError(t, err)

	// Age the request past its scheduled time.
	e.viewings.mu.Lock()
	e.viewings.requests[req.ID].ScheduledAt = time.Now().Add(-time.Hour)
	e.viewings.mu.Unlock()

	swept, err := e.viewings.SweepPastRequested(ctx)
	require.NoError(t, err)
	require.Len(t, swept, 1)
	assert.Equal(t, models.ViewingStatusCancelled, swept[0].Status)
	require.NotNil(t, swept[0].CancelledBy)
	assert.Equal(t, models.CancelledBySystem, *swept[0].CancelledBy)
}
