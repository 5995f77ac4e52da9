package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"go.uber.org/zap"
)

// ListingService owns the listing status lifecycle. Every status change goes
// through TransitionTo so the adjacency rules are enforced in one place.
type ListingService struct {
	listingRepo ListingStore
	auditRepo   AuditLogger
	log         *zap.Logger
}

func NewListingService(listingRepo ListingStore, auditRepo AuditLogger, log *zap.Logger) *ListingService {
	return &ListingService{listingRepo: listingRepo, auditRepo: auditRepo, log: log}
}

func (s *ListingService) Create(ctx context.Context, l *models.Listing) error {
	if l.Title == "" {
		return apperr.Validation("missing_title", "listing title is required")
	}
	if l.Status == "" {
		l.Status = models.ListingStatusDraft
	}
	if _, ok := models.ValidListingTransitions[l.Status]; !ok {
		return apperr.Validation("invalid_status", fmt.Sprintf("unknown listing status %q", l.Status))
	}
	return s.listingRepo.Create(ctx, l)
}

func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	l, err := s.listingRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("listing_not_found", "listing not found")
	}
	return l, err
}

func (s *ListingService) List(ctx context.Context, f repositories.ListingFilter) ([]models.Listing, error) {
	return s.listingRepo.List(ctx, f)
}

// CanTransition reports whether the move is allowed without performing it.
func (s *ListingService) CanTransition(from, to string) bool {
	return models.IsValidListingTransition(from, to)
}

// TransitionTo validates and applies a status change with audit logging. An
// illegal move fails with a precondition error carrying the current status.
func (s *ListingService) TransitionTo(ctx context.Context, listing *models.Listing, newStatus string, actorID *uuid.UUID, actorType string) error {
	if !models.IsValidListingTransition(listing.Status, newStatus) {
		return apperr.Precondition("invalid_listing_transition",
			fmt.Sprintf("cannot move listing from %s to %s", listing.Status, newStatus),
			listing.Status)
	}

	oldStatus := listing.Status
	if err := s.listingRepo.UpdateStatus(ctx, listing.ID, newStatus); err != nil {
		return err
	}
	listing.Status = newStatus

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("listing_status_%s_to_%s", oldStatus, newStatus),
		EntityType:  "listing",
		EntityID:    &listing.ID,
		Meta:        map[string]any{"old_status": oldStatus, "new_status": newStatus},
	})

	s.log.Info("listing status changed",
		zap.String("listing_id", listing.ID.String()),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus),
	)
	return nil
}

// UpdateExpiry sets or clears the listing's automatic expiry deadline. A nil
// expiresAt disables auto-expiry.
func (s *ListingService) UpdateExpiry(ctx context.Context, actorID uuid.UUID, actorRole string, listingID uuid.UUID, expiresAt *time.Time) (*models.Listing, error) {
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerUserID != actorID && !rbac.IsAdmin(actorRole) {
		return nil, apperr.Forbidden("only the listing owner can change the expiry")
	}
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return nil, apperr.Validation("invalid_expiry", "expires_at must be in the future")
	}

	if err := s.listingRepo.UpdateExpiresAt(ctx, listing.ID, expiresAt); err != nil {
		return nil, err
	}
	listing.ExpiresAt = expiresAt

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "listing_expiry_updated",
		EntityType:  "listing",
		EntityID:    &listing.ID,
		Meta:        map[string]any{"expires_at": expiresAt},
	})
	return listing, nil
}

// RequireActive loads the listing and fails unless it is accepting seekers.
func (s *ListingService) RequireActive(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, apperr.Precondition("listing_not_active",
			"listing is not accepting requests", listing.Status)
	}
	return listing, nil
}

// ExpireOverdue moves active listings past their expires_at to expired.
// Called by the background worker.
func (s *ListingService) ExpireOverdue(ctx context.Context) (int, error) {
	listings, err := s.listingRepo.GetExpiredActive(ctx)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range listings {
		if err := s.TransitionTo(ctx, &listings[i], models.ListingStatusExpired, nil, "system"); err != nil {
			s.log.Error("failed to expire listing",
				zap.String("listing_id", listings[i].ID.String()), zap.Error(err))
			continue
		}
		expired++
	}
	return expired, nil
}
