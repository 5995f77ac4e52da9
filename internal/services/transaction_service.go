package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/events"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"go.uber.org/zap"
)

// TransactionService owns the rental transaction state machine. Other
// services never update a transaction's status directly; they call the
// Advance* operations here.
type TransactionService struct {
	txRepo      TransactionStore
	listingRepo ListingStore
	listingSvc  *ListingService
	auditRepo   AuditLogger
	notifier    Notifier
	log         *zap.Logger
}

func NewTransactionService(
	txRepo TransactionStore,
	listingRepo ListingStore,
	listingSvc *ListingService,
	auditRepo AuditLogger,
	notifier Notifier,
	log *zap.Logger,
) *TransactionService {
	return &TransactionService{
		txRepo:      txRepo,
		listingRepo: listingRepo,
		listingSvc:  listingSvc,
		auditRepo:   auditRepo,
		notifier:    notifier,
		log:         log,
	}
}

// transition validates and performs a status change with audit logging, then
// notifies the participants the new status concerns. Signature events go to
// the party who did not sign, move-in confirmation to the seeker, everything
// else to both.
func (s *TransactionService) transition(ctx context.Context, tx *models.RentalTransaction, newStatus string, actorID *uuid.UUID, actorType, eventType string) error {
	if !models.IsValidTransactionTransition(tx.Status, newStatus) {
		return apperr.Precondition("invalid_transaction_transition",
			fmt.Sprintf("cannot move transaction from %s to %s", tx.Status, newStatus),
			tx.Status)
	}

	oldStatus := tx.Status
	if err := s.txRepo.UpdateStatus(ctx, tx.ID, newStatus); err != nil {
		return err
	}
	tx.Status = newStatus

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("transaction_status_%s_to_%s", oldStatus, newStatus),
		EntityType:  "rental_transaction",
		EntityID:    &tx.ID,
		Meta:        map[string]any{"old_status": oldStatus, "new_status": newStatus},
	})

	if eventType != "" {
		payload := map[string]any{
			"transaction_id": tx.ID.String(),
			"old_status":     oldStatus,
			"new_status":     newStatus,
		}
		for _, userID := range s.recipientsFor(tx, newStatus) {
			s.notifier.Notify(ctx, userID, eventType, payload)
		}
	}

	s.log.Info("transaction status changed",
		zap.String("transaction_id", tx.ID.String()),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus),
	)
	return nil
}

func (s *TransactionService) recipientsFor(tx *models.RentalTransaction, newStatus string) []uuid.UUID {
	switch newStatus {
	case models.TxStatusSeekerSigned:
		return []uuid.UUID{tx.LandlordUserID}
	case models.TxStatusLandlordSigned:
		return []uuid.UUID{tx.SeekerUserID}
	case models.TxStatusMoveInConfirmed:
		return []uuid.UUID{tx.SeekerUserID}
	default:
		return []uuid.UUID{tx.SeekerUserID, tx.LandlordUserID}
	}
}

// Start opens a transaction against an active listing. Only the listing
// owner (or an administrator) may start one, and at most one non-terminal
// transaction may exist per (listing, seeker) pair; the check runs under a
// pair-scoped lock in the repository.
func (s *TransactionService) Start(ctx context.Context, actorID uuid.UUID, actorRole string, seekerID, listingID uuid.UUID, depositAmount, rentAmount int64, currency string) (*models.RentalTransaction, error) {
	listing, err := s.listingSvc.RequireActive(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if actorID != listing.OwnerUserID && !rbac.IsAdmin(actorRole) {
		return nil, apperr.Forbidden("only the listing owner can start a transaction")
	}
	if listing.OwnerUserID == seekerID {
		return nil, apperr.Validation("self_rental", "a listing owner cannot rent their own listing")
	}
	if depositAmount < 0 || rentAmount < 0 {
		return nil, apperr.Validation("invalid_amount", "amounts must not be negative")
	}
	if currency == "" {
		currency = "eur"
	}

	tx := &models.RentalTransaction{
		ListingID:      listingID,
		LandlordUserID: listing.OwnerUserID,
		SeekerUserID:   seekerID,
		Status:         models.TxStatusInitiated,
		DepositAmount:  depositAmount,
		RentAmount:     rentAmount,
		Currency:       currency,
	}
	created, err := s.txRepo.CreateIfNoActive(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apperr.Conflict("transaction_exists", "an open transaction already exists for this listing and seeker")
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "transaction_started",
		EntityType:  "rental_transaction",
		EntityID:    &tx.ID,
		Meta:        map[string]any{"listing_id": listingID.String()},
	})
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("transaction_not_found", "transaction not found")
	}
	return tx, err
}

// GetForParticipant loads the transaction and verifies the caller may see it.
func (s *TransactionService) GetForParticipant(ctx context.Context, id, userID uuid.UUID, role string) (*models.RentalTransaction, error) {
	tx, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tx.IsParticipant(userID) && !rbac.IsAdmin(role) {
		return nil, apperr.Forbidden("not a participant of this transaction")
	}
	return tx, nil
}

func (s *TransactionService) List(ctx context.Context, f repositories.TransactionFilter) ([]models.RentalTransaction, error) {
	return s.txRepo.List(ctx, f)
}

// AdvanceOnContractGenerated is called by the contract workflow after a new
// version is created. Signed-but-open transactions fold back to
// contract_generated; a transaction already there stays put.
func (s *TransactionService) AdvanceOnContractGenerated(ctx context.Context, tx *models.RentalTransaction, actorID *uuid.UUID) error {
	if tx.Status == models.TxStatusContractGenerated {
		return nil
	}
	return s.transition(ctx, tx, models.TxStatusContractGenerated, actorID, "user", events.EventContractGenerated)
}

// AdvanceOnSignature moves the transaction after a signature lands. With both
// roles covered the transaction becomes fully_signed; with a single role it
// reflects who signed.
func (s *TransactionService) AdvanceOnSignature(ctx context.Context, tx *models.RentalTransaction, role string, bothSigned bool, actorID *uuid.UUID) error {
	if bothSigned {
		return s.transition(ctx, tx, models.TxStatusFullySigned, actorID, "user", events.EventContractFullySigned)
	}
	target := models.TxStatusSeekerSigned
	if role == models.SignRoleLandlord {
		target = models.TxStatusLandlordSigned
	}
	return s.transition(ctx, tx, target, actorID, "user", events.EventCounterpartySigned)
}

// AdvanceOnDepositSucceeded is idempotent: a transaction already at or past
// deposit_paid is left alone, so replayed provider events are harmless.
func (s *TransactionService) AdvanceOnDepositSucceeded(ctx context.Context, tx *models.RentalTransaction) error {
	if models.IsClosedTxStatus(tx.Status) {
		return nil
	}
	if err := s.transition(ctx, tx, models.TxStatusDepositPaid, nil, "provider", events.EventDepositPaid); err != nil {
		return err
	}
	// The listing leaves the market once a deposit lands.
	listing, lerr := s.listingRepo.GetByID(ctx, tx.ListingID)
	if lerr == nil && models.IsValidListingTransition(listing.Status, models.ListingStatusRented) {
		if err := s.listingSvc.TransitionTo(ctx, listing, models.ListingStatusRented, nil, "system"); err != nil {
			s.log.Error("failed to mark listing rented",
				zap.String("listing_id", listing.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// ConfirmMoveIn is restricted to the landlord (or an administrator).
func (s *TransactionService) ConfirmMoveIn(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) error {
	if actorID != tx.LandlordUserID && !rbac.IsAdmin(role) {
		return apperr.Forbidden("only the landlord can confirm move-in")
	}
	return s.transition(ctx, tx, models.TxStatusMoveInConfirmed, &actorID, "user", events.EventMoveInConfirmed)
}

// Complete closes the tenancy; landlord (or administrator) only.
func (s *TransactionService) Complete(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) error {
	if actorID != tx.LandlordUserID && !rbac.IsAdmin(role) {
		return apperr.Forbidden("only the landlord can complete the transaction")
	}
	return s.transition(ctx, tx, models.TxStatusCompleted, &actorID, "user", events.EventTransactionCompleted)
}

func (s *TransactionService) Cancel(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) error {
	if !tx.IsParticipant(actorID) && !rbac.IsAdmin(role) {
		return apperr.Forbidden("not a participant of this transaction")
	}
	return s.transition(ctx, tx, models.TxStatusCancelled, &actorID, "user", events.EventTransactionCancelled)
}

func (s *TransactionService) Dispute(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) error {
	if !tx.IsParticipant(actorID) && !rbac.IsAdmin(role) {
		return apperr.Forbidden("not a participant of this transaction")
	}
	return s.transition(ctx, tx, models.TxStatusDisputed, &actorID, "user", events.EventTransactionDisputed)
}

// CancelStale shuts transactions stuck before any signature for longer than
// timeoutSeconds. Called by the background worker.
func (s *TransactionService) CancelStale(ctx context.Context, timeoutSeconds int) (int, error) {
	cancelled := 0
	for _, status := range []string{models.TxStatusInitiated, models.TxStatusContractGenerated} {
		stale, err := s.txRepo.GetTimedOut(ctx, status, timeoutSeconds)
		if err != nil {
			return cancelled, err
		}
		for i := range stale {
			if err := s.transition(ctx, &stale[i], models.TxStatusCancelled, nil, "system", events.EventTransactionCancelled); err != nil {
				s.log.Error("failed to cancel stale transaction",
					zap.String("transaction_id", stale[i].ID.String()), zap.Error(err))
				continue
			}
			cancelled++
		}
	}
	return cancelled, nil
}
