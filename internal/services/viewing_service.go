package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/calendar"
	"github.com/rentora/backend/internal/events"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"go.uber.org/zap"
)

// ViewingService arbitrates slot capacity. Admission and confirmation are
// re-checked inside the repository's slot-scoped critical section; this layer
// maps the outcome onto domain errors and notifications.
type ViewingService struct {
	viewingRepo ViewingStore
	listingRepo ListingStore
	auditRepo   AuditLogger
	notifier    Notifier
	log         *zap.Logger
}

func NewViewingService(viewingRepo ViewingStore, listingRepo ListingStore, auditRepo AuditLogger, notifier Notifier, log *zap.Logger) *ViewingService {
	return &ViewingService{
		viewingRepo: viewingRepo,
		listingRepo: listingRepo,
		auditRepo:   auditRepo,
		notifier:    notifier,
		log:         log,
	}
}

func validSlotPattern(p string) bool {
	switch p {
	case models.SlotPatternNone, models.SlotPatternWeekends, models.SlotPatternWeekdays,
		models.SlotPatternEveryday, models.SlotPatternCustom:
		return true
	}
	return false
}

func (s *ViewingService) requireOwner(ctx context.Context, listingID, actorID uuid.UUID, actorRole string) (*models.Listing, error) {
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("listing_not_found", "listing not found")
	}
	if err != nil {
		return nil, err
	}
	if listing.OwnerUserID != actorID && !rbac.IsAdmin(actorRole) {
		return nil, apperr.Forbidden("only the listing owner can manage its viewing slots")
	}
	return listing, nil
}

func (s *ViewingService) CreateSlot(ctx context.Context, actorID uuid.UUID, actorRole string, slot *models.ViewingSlot) error {
	if _, err := s.requireOwner(ctx, slot.ListingID, actorID, actorRole); err != nil {
		return err
	}
	if slot.Capacity <= 0 {
		return apperr.Validation("invalid_capacity", "slot capacity must be positive")
	}
	if slot.Pattern == "" {
		slot.Pattern = models.SlotPatternNone
	}
	if !validSlotPattern(slot.Pattern) {
		return apperr.Validation("invalid_pattern", fmt.Sprintf("unknown recurrence pattern %q", slot.Pattern))
	}
	if slot.Pattern == models.SlotPatternCustom && len(slot.DaysOfWeek) == 0 {
		return apperr.Validation("missing_days_of_week", "custom pattern requires days_of_week")
	}
	if slot.EndsAt != nil && !slot.EndsAt.After(slot.StartsAt) {
		return apperr.Validation("invalid_range", "ends_at must be after starts_at")
	}
	slot.IsActive = true
	return s.viewingRepo.CreateSlot(ctx, slot)
}

func (s *ViewingService) ListSlots(ctx context.Context, listingID uuid.UUID) ([]models.ViewingSlot, error) {
	return s.viewingRepo.ListSlotsByListing(ctx, listingID)
}

func (s *ViewingService) GetSlot(ctx context.Context, slotID uuid.UUID) (*models.ViewingSlot, error) {
	slot, err := s.viewingRepo.GetSlot(ctx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("slot_not_found", "viewing slot not found")
	}
	return slot, err
}

// RequestSlot admits a seeker onto a slot. Capacity is re-checked inside the
// repository's critical section; a false admission maps to a conflict the
// seeker can safely retry later.
func (s *ViewingService) RequestSlot(ctx context.Context, seekerID, slotID uuid.UUID, scheduledAt time.Time, message *string) (*models.ViewingRequest, error) {
	slot, err := s.viewingRepo.GetSlot(ctx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("slot_not_found", "viewing slot not found")
	}
	if err != nil {
		return nil, err
	}

	listing, err := s.listingRepo.GetByID(ctx, slot.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, apperr.Precondition("listing_not_active", "listing is not accepting viewing requests", listing.Status)
	}
	if !slot.IsActive {
		return nil, apperr.Precondition("slot_inactive", "viewing slot is inactive", "inactive")
	}
	if slot.Pattern == models.SlotPatternNone && slot.EndsAt != nil && slot.EndsAt.Before(time.Now()) {
		return nil, apperr.Precondition("slot_in_past", "viewing slot has already ended", "past")
	}
	if err := slot.ValidateOccurrence(scheduledAt, time.Now()); err != nil {
		return nil, apperr.Validation("invalid_schedule", err.Error())
	}

	req := &models.ViewingRequest{
		SlotID:      slotID,
		SeekerID:    seekerID,
		Status:      models.ViewingStatusRequested,
		ScheduledAt: scheduledAt,
		Message:     message,
	}
	admitted, err := s.viewingRepo.CreateRequestGuarded(ctx, req, slot.Capacity)
	if err != nil {
		return nil, err
	}
	if !admitted {
		return nil, apperr.Conflict("slot_full", "viewing slot is at capacity")
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &seekerID,
		ActorType:   "user",
		Action:      "viewing_requested",
		EntityType:  "viewing_request",
		EntityID:    &req.ID,
		Meta:        map[string]any{"slot_id": slotID.String(), "scheduled_at": scheduledAt},
	})
	s.notifier.Notify(ctx, listing.OwnerUserID, events.EventViewingRequested, map[string]any{
		"request_id":   req.ID.String(),
		"listing_id":   listing.ID.String(),
		"scheduled_at": scheduledAt.UTC().Format(time.RFC3339),
	})
	return req, nil
}

func (s *ViewingService) getRequestWithSlot(ctx context.Context, requestID uuid.UUID) (*models.ViewingRequest, *models.ViewingSlot, error) {
	req, err := s.viewingRepo.GetRequest(ctx, requestID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.NotFound("viewing_request_not_found", "viewing request not found")
	}
	if err != nil {
		return nil, nil, err
	}
	slot, err := s.viewingRepo.GetSlot(ctx, req.SlotID)
	if err != nil {
		return nil, nil, err
	}
	return req, slot, nil
}

// Confirm moves a request to confirmed if the slot's confirmed quota still
// has room.
func (s *ViewingService) Confirm(ctx context.Context, actorID uuid.UUID, actorRole string, requestID uuid.UUID) (*models.ViewingRequest, error) {
	req, slot, err := s.getRequestWithSlot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, slot.ListingID, actorID, actorRole); err != nil {
		return nil, err
	}
	if req.Status != models.ViewingStatusRequested {
		return nil, apperr.Precondition("not_requested", "only requested viewings can be confirmed", req.Status)
	}

	ok, err := s.viewingRepo.ConfirmGuarded(ctx, req.ID, slot.ID, slot.Capacity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("slot_already_confirmed", "confirmed quota for this slot is exhausted")
	}
	req.Status = models.ViewingStatusConfirmed
	req.CancelledBy = nil

	s.notifier.Notify(ctx, req.SeekerID, events.EventViewingConfirmed, map[string]any{
		"request_id":   req.ID.String(),
		"scheduled_at": req.ScheduledAt.UTC().Format(time.RFC3339),
	})
	return req, nil
}

func (s *ViewingService) Reject(ctx context.Context, actorID uuid.UUID, actorRole string, requestID uuid.UUID) (*models.ViewingRequest, error) {
	req, slot, err := s.getRequestWithSlot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireOwner(ctx, slot.ListingID, actorID, actorRole); err != nil {
		return nil, err
	}
	if req.Status != models.ViewingStatusRequested {
		return nil, apperr.Precondition("not_requested", "only requested viewings can be rejected", req.Status)
	}

	if err := s.viewingRepo.UpdateRequestStatus(ctx, req.ID, models.ViewingStatusRejected, nil); err != nil {
		return nil, err
	}
	req.Status = models.ViewingStatusRejected

	s.notifier.Notify(ctx, req.SeekerID, events.EventViewingRejected, map[string]any{
		"request_id": req.ID.String(),
	})
	return req, nil
}

// Cancel frees the request's capacity and records which party pulled out. The
// other party gets the notification.
func (s *ViewingService) Cancel(ctx context.Context, actorID uuid.UUID, actorRole string, requestID uuid.UUID) (*models.ViewingRequest, error) {
	req, slot, err := s.getRequestWithSlot(ctx, requestID)
	if err != nil {
		return nil, err
	}
	listing, err := s.listingRepo.GetByID(ctx, slot.ListingID)
	if err != nil {
		return nil, err
	}

	var cancelledBy string
	var notifyUser uuid.UUID
	switch {
	case actorID == req.SeekerID:
		cancelledBy = models.CancelledBySeeker
		notifyUser = listing.OwnerUserID
	case actorID == listing.OwnerUserID:
		cancelledBy = models.CancelledByLandlord
		notifyUser = req.SeekerID
	case rbac.IsAdmin(actorRole):
		cancelledBy = models.CancelledBySystem
		notifyUser = req.SeekerID
	default:
		return nil, apperr.Forbidden("only participants can cancel a viewing request")
	}

	if !req.IsActiveRequest() {
		return nil, apperr.Precondition("not_active", "viewing request is already settled", req.Status)
	}

	if err := s.viewingRepo.UpdateRequestStatus(ctx, req.ID, models.ViewingStatusCancelled, &cancelledBy); err != nil {
		return nil, err
	}
	req.Status = models.ViewingStatusCancelled
	req.CancelledBy = &cancelledBy

	s.notifier.Notify(ctx, notifyUser, events.EventViewingCancelled, map[string]any{
		"request_id":   req.ID.String(),
		"cancelled_by": cancelledBy,
	})
	return req, nil
}

func (s *ViewingService) ListRequests(ctx context.Context, f repositories.ViewingRequestFilter) ([]models.ViewingRequest, error) {
	return s.viewingRepo.ListRequests(ctx, f)
}

// UpdateSlot applies changes; shrinking capacity below live demand fails.
func (s *ViewingService) UpdateSlot(ctx context.Context, actorID uuid.UUID, actorRole string, slot *models.ViewingSlot) error {
	if _, err := s.requireOwner(ctx, slot.ListingID, actorID, actorRole); err != nil {
		return err
	}
	if slot.Capacity <= 0 {
		return apperr.Validation("invalid_capacity", "slot capacity must be positive")
	}
	if !validSlotPattern(slot.Pattern) {
		return apperr.Validation("invalid_pattern", fmt.Sprintf("unknown recurrence pattern %q", slot.Pattern))
	}
	ok, err := s.viewingRepo.UpdateSlotGuarded(ctx, slot)
	if err != nil {
		return err
	}
	if !ok {
		msg := "new capacity is below the number of active requests"
		if n, cntErr := s.viewingRepo.CountActiveRequests(ctx, slot.ID); cntErr == nil {
			msg = fmt.Sprintf("new capacity %d is below %d active requests", slot.Capacity, n)
		}
		return apperr.Conflict("capacity_below_demand", msg)
	}
	return nil
}

func (s *ViewingService) DeleteSlot(ctx context.Context, actorID uuid.UUID, actorRole string, slotID uuid.UUID) error {
	slot, err := s.viewingRepo.GetSlot(ctx, slotID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("slot_not_found", "viewing slot not found")
	}
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, slot.ListingID, actorID, actorRole); err != nil {
		return err
	}
	ok, err := s.viewingRepo.DeleteSlotGuarded(ctx, slotID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("slot_has_active_requests", "slot still has requested or confirmed viewings")
	}
	return nil
}

// CalendarExport renders an iCalendar document for a confirmed request.
// Available only to the seeker and the listing owner.
func (s *ViewingService) CalendarExport(ctx context.Context, actorID uuid.UUID, requestID uuid.UUID) (string, error) {
	req, slot, err := s.getRequestWithSlot(ctx, requestID)
	if err != nil {
		return "", err
	}
	listing, err := s.listingRepo.GetByID(ctx, slot.ListingID)
	if err != nil {
		return "", err
	}
	if actorID != req.SeekerID && actorID != listing.OwnerUserID {
		return "", apperr.Forbidden("only participants can export this viewing")
	}
	if req.Status != models.ViewingStatusConfirmed {
		return "", apperr.Precondition("not_confirmed", "only confirmed viewings can be exported", req.Status)
	}

	start := req.ScheduledAt
	end := occurrenceEnd(slot, start)

	location := ""
	if listing.Address != nil {
		location = *listing.Address
	}
	doc := calendar.RenderICS([]calendar.Event{{
		UID:      fmt.Sprintf("viewing-%s@rentora", req.ID),
		Start:    start,
		End:      end,
		Summary:  "Viewing: " + listing.Title,
		Location: location,
	}}, time.Now())
	return doc, nil
}

// occurrenceEnd resolves the end of one occurrence: the slot's daily window
// end on the scheduled date when known, otherwise thirty minutes after start.
func occurrenceEnd(slot *models.ViewingSlot, start time.Time) time.Time {
	clock := ""
	if slot.TimeTo != nil {
		clock = *slot.TimeTo
	} else if slot.EndsAt != nil {
		clock = slot.EndsAt.Format("15:04")
	}
	if clock != "" {
		if t, err := time.Parse("15:04", clock); err == nil {
			end := time.Date(start.Year(), start.Month(), start.Day(), t.Hour(), t.Minute(), 0, 0, start.Location())
			if end.After(start) {
				return end
			}
		}
	}
	return start.Add(30 * time.Minute)
}
