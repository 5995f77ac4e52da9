package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/stripe"
	"go.uber.org/zap"
)

// CheckoutRedirect is what the seeker needs to finish paying.
type CheckoutRedirect struct {
	Payment *models.Payment `json:"payment"`
	URL     string          `json:"url"`
}

// PaymentService owns payment rows and reconciles asynchronous provider
// events. Reconciliation is idempotent: every mutation is keyed by a provider
// reference lookup, so replayed or out-of-order deliveries settle to the same
// state.
type PaymentService struct {
	paymentRepo   PaymentStore
	contractRepo  ContractStore
	txSvc         *TransactionService
	checkout      CheckoutClient
	deduper       EventDeduper
	auditRepo     AuditLogger
	webhookSecret string
	successURL    string
	cancelURL     string
	log           *zap.Logger
}

func NewPaymentService(
	paymentRepo PaymentStore,
	contractRepo ContractStore,
	txSvc *TransactionService,
	checkout CheckoutClient,
	deduper EventDeduper,
	auditRepo AuditLogger,
	webhookSecret, successURL, cancelURL string,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:   paymentRepo,
		contractRepo:  contractRepo,
		txSvc:         txSvc,
		checkout:      checkout,
		deduper:       deduper,
		auditRepo:     auditRepo,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
		log:           log,
	}
}

func (s *PaymentService) requireDepositReady(ctx context.Context, tx *models.RentalTransaction) error {
	if models.IsClosedTxStatus(tx.Status) {
		return apperr.Precondition("transaction_closed",
			"deposit can no longer be paid on this transaction", tx.Status)
	}
	latest, err := s.contractRepo.GetLatest(ctx, tx.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Precondition("contract_not_final", "no contract has been generated yet", tx.Status)
	}
	if err != nil {
		return err
	}
	if latest.Status != models.ContractStatusFinal {
		return apperr.Precondition("contract_not_final", "the contract is not fully signed yet", tx.Status)
	}
	if tx.DepositAmount <= 0 {
		return apperr.Validation("no_deposit", "transaction has no deposit amount")
	}
	inFlight, err := s.paymentRepo.HasActiveDeposit(ctx, tx.ID)
	if err != nil {
		return err
	}
	if inFlight {
		return apperr.Conflict("deposit_already_in_flight", "a deposit payment is already pending or succeeded")
	}
	return nil
}

// StartDepositSession opens a hosted checkout session for the deposit. The
// payment row is created pending first; if the provider call fails it is
// marked failed rather than left dangling.
func (s *PaymentService) StartDepositSession(ctx context.Context, tx *models.RentalTransaction, payerID uuid.UUID, role string) (*CheckoutRedirect, error) {
	if payerID != tx.SeekerUserID && !rbac.IsAdmin(role) {
		return nil, apperr.Forbidden("only the seeker can pay the deposit")
	}
	if err := s.requireDepositReady(ctx, tx); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		TransactionID: tx.ID,
		Provider:      models.PaymentProviderStripe,
		Type:          models.PaymentTypeDeposit,
		Amount:        tx.DepositAmount,
		Currency:      tx.Currency,
		Status:        models.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		Amount:      tx.DepositAmount,
		Currency:    tx.Currency,
		ProductName: "Rental deposit",
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
		Metadata: map[string]string{
			"transaction_id": tx.ID.String(),
			"payment_id":     payment.ID.String(),
			"type":           models.PaymentTypeDeposit,
		},
	})
	if err != nil {
		if uerr := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed); uerr != nil {
			s.log.Error("failed to mark payment failed after provider error",
				zap.String("payment_id", payment.ID.String()), zap.Error(uerr))
		}
		return nil, apperr.External("checkout_failed", "payment provider did not accept the session", err)
	}

	sessionRef := session.ID
	payment.ProviderSessionRef = &sessionRef
	if session.PaymentIntent != "" {
		intentRef := session.PaymentIntent
		payment.ProviderIntentRef = &intentRef
	}
	if err := s.paymentRepo.SetSessionRefs(ctx, payment.ID, payment.ProviderSessionRef, payment.ProviderIntentRef); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &payerID,
		ActorType:   "user",
		Action:      "deposit_session_started",
		EntityType:  "payment",
		EntityID:    &payment.ID,
		Meta:        map[string]any{"transaction_id": tx.ID.String(), "session_ref": session.ID},
	})
	return &CheckoutRedirect{Payment: payment, URL: session.URL}, nil
}

// MarkDepositPaidCash records an out-of-band cash deposit. Landlord only;
// settles immediately.
func (s *PaymentService) MarkDepositPaidCash(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string) (*models.Payment, error) {
	if actorID != tx.LandlordUserID && !rbac.IsAdmin(role) {
		return nil, apperr.Forbidden("only the landlord can record a cash deposit")
	}
	if err := s.requireDepositReady(ctx, tx); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		TransactionID: tx.ID,
		Provider:      models.PaymentProviderCash,
		Type:          models.PaymentTypeDeposit,
		Amount:        tx.DepositAmount,
		Currency:      tx.Currency,
		Status:        models.PaymentStatusSucceeded,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := s.txSvc.AdvanceOnDepositSucceeded(ctx, tx); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "deposit_paid_cash",
		EntityType:  "payment",
		EntityID:    &payment.ID,
		Meta:        map[string]any{"transaction_id": tx.ID.String()},
	})
	return payment, nil
}

func (s *PaymentService) ListByTransaction(ctx context.Context, tx *models.RentalTransaction) ([]models.Payment, error) {
	return s.paymentRepo.ListByTransaction(ctx, tx.ID)
}

// ApplyProviderEvent verifies and applies one webhook delivery. The signature
// is checked before the payload is even parsed; a recognized event that fails
// mid-apply surfaces as an external error so the provider redelivers.
func (s *PaymentService) ApplyProviderEvent(ctx context.Context, rawPayload []byte, signatureHeader string) error {
	if err := stripe.VerifySignature(rawPayload, signatureHeader, s.webhookSecret, stripe.DefaultTolerance, time.Now()); err != nil {
		return apperr.Validation("invalid_signature", err.Error())
	}

	event, err := stripe.ParseEvent(rawPayload)
	if err != nil {
		return apperr.Validation("malformed_event", err.Error())
	}

	if s.deduper != nil && event.ID != "" {
		seen, derr := s.deduper.Seen(ctx, event.ID)
		if derr != nil {
			// Dedupe is an optimization on top of ref-keyed idempotency, so a
			// dedupe-store outage must not block reconciliation.
			s.log.Warn("event dedupe unavailable", zap.Error(derr))
		} else if seen {
			s.log.Debug("skipping already-processed event", zap.String("event_id", event.ID))
			return nil
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		s.log.Error("failed to apply provider event",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.String("payload", string(rawPayload)),
			zap.Error(err),
		)
		return apperr.External("event_apply_failed", "failed to apply provider event", err)
	}

	// Mark only after a successful apply so a failed delivery is retried.
	if s.deduper != nil && event.ID != "" {
		if derr := s.deduper.Mark(ctx, event.ID); derr != nil {
			s.log.Warn("failed to record processed event", zap.Error(derr))
		}
	}
	return nil
}

func (s *PaymentService) applyEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		var session stripe.SessionObject
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return err
		}
		return s.applyCheckoutCompleted(ctx, &session)

	case stripe.EventPaymentIntentFailed:
		var intent stripe.PaymentIntentObject
		if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
			return err
		}
		return s.applyPaymentFailed(ctx, intent.ID)

	case stripe.EventChargeSucceeded:
		var charge stripe.ChargeObject
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return err
		}
		return s.applyChargeSucceeded(ctx, &charge)

	case stripe.EventChargeRefunded:
		var charge stripe.ChargeObject
		if err := json.Unmarshal(event.Data.Object, &charge); err != nil {
			return err
		}
		return s.applyChargeRefunded(ctx, &charge)

	default:
		// Unknown event kinds are a forward-compatible no-op.
		s.log.Debug("ignoring unrecognized event type", zap.String("event_type", event.Type))
		return nil
	}
}

func (s *PaymentService) applyCheckoutCompleted(ctx context.Context, session *stripe.SessionObject) error {
	payment, err := s.paymentRepo.GetBySessionRef(ctx, session.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Session unknown to this system; nothing to reconcile.
		s.log.Debug("checkout completed for unknown session", zap.String("session_ref", session.ID))
		return nil
	}
	if err != nil {
		return err
	}

	if session.PaymentIntent != "" && payment.ProviderIntentRef == nil {
		if err := s.paymentRepo.SetIntentRef(ctx, payment.ID, session.PaymentIntent); err != nil {
			return err
		}
	}
	moved, err := s.paymentRepo.UpdateStatusIfPending(ctx, payment.ID, models.PaymentStatusSucceeded)
	if err != nil {
		return err
	}
	if !moved && payment.Status != models.PaymentStatusSucceeded {
		// Already settled as failed or refunded; a late completion event must
		// not resurrect it.
		return nil
	}

	tx, err := s.txSvc.Get(ctx, payment.TransactionID)
	if err != nil {
		return err
	}
	return s.txSvc.AdvanceOnDepositSucceeded(ctx, tx)
}

func (s *PaymentService) applyPaymentFailed(ctx context.Context, intentRef string) error {
	payment, err := s.paymentRepo.GetByIntentRef(ctx, intentRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusFailed)
}

func (s *PaymentService) applyChargeSucceeded(ctx context.Context, charge *stripe.ChargeObject) error {
	payment, err := s.paymentRepo.GetByIntentRef(ctx, charge.PaymentIntent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	// Charge events only contribute the receipt; status is driven by the
	// checkout and refund events.
	if charge.ReceiptURL != "" {
		return s.paymentRepo.SetReceiptRef(ctx, payment.ID, charge.ReceiptURL)
	}
	return nil
}

func (s *PaymentService) applyChargeRefunded(ctx context.Context, charge *stripe.ChargeObject) error {
	payment, err := s.paymentRepo.GetByIntentRef(ctx, charge.PaymentIntent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentStatusRefunded); err != nil {
		return err
	}
	if charge.ReceiptURL != "" {
		return s.paymentRepo.SetReceiptRef(ctx, payment.ID, charge.ReceiptURL)
	}
	return nil
}
