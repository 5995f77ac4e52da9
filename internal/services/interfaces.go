package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/repositories"
	"github.com/rentora/backend/internal/stripe"
)

// Storage interfaces consumed by the services. The pgx-backed repositories
// satisfy them; tests substitute in-memory fakes.

type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	List(ctx context.Context, f repositories.ListingFilter) ([]models.Listing, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateExpiresAt(ctx context.Context, id uuid.UUID, expiresAt *time.Time) error
	GetExpiredActive(ctx context.Context) ([]models.Listing, error)
}

type TransactionStore interface {
	CreateIfNoActive(ctx context.Context, t *models.RentalTransaction) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error)
	List(ctx context.Context, f repositories.TransactionFilter) ([]models.RentalTransaction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	GetTimedOut(ctx context.Context, status string, timeoutSeconds int) ([]models.RentalTransaction, error)
}

type ContractStore interface {
	Create(ctx context.Context, c *models.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetLatest(ctx context.Context, transactionID uuid.UUID) (*models.Contract, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Contract, error)
	GetMaxVersion(ctx context.Context, transactionID uuid.UUID) (int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	CreateSignature(ctx context.Context, s *models.Signature) error
	ListSignatures(ctx context.Context, contractID uuid.UUID) ([]models.Signature, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error)
	GetByIntentRef(ctx context.Context, intentRef string) (*models.Payment, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status string) (bool, error)
	SetSessionRefs(ctx context.Context, id uuid.UUID, sessionRef, intentRef *string) error
	SetIntentRef(ctx context.Context, id uuid.UUID, intentRef string) error
	SetReceiptRef(ctx context.Context, id uuid.UUID, receiptRef string) error
	HasActiveDeposit(ctx context.Context, transactionID uuid.UUID) (bool, error)
}

type ViewingStore interface {
	CreateSlot(ctx context.Context, s *models.ViewingSlot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*models.ViewingSlot, error)
	ListSlotsByListing(ctx context.Context, listingID uuid.UUID) ([]models.ViewingSlot, error)
	CreateRequestGuarded(ctx context.Context, req *models.ViewingRequest, capacity int) (bool, error)
	ConfirmGuarded(ctx context.Context, requestID, slotID uuid.UUID, capacity int) (bool, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*models.ViewingRequest, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status string, cancelledBy *string) error
	ListRequests(ctx context.Context, f repositories.ViewingRequestFilter) ([]models.ViewingRequest, error)
	CountActiveRequests(ctx context.Context, slotID uuid.UUID) (int, error)
	UpdateSlotGuarded(ctx context.Context, s *models.ViewingSlot) (bool, error)
	DeleteSlotGuarded(ctx context.Context, id uuid.UUID) (bool, error)
	SweepPastRequested(ctx context.Context) ([]models.ViewingRequest, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Notifier emits a notification intent; delivery is asynchronous and failures
// never propagate to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any)
}

// CheckoutClient starts a hosted checkout session with the payment provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// DocumentRenderer turns lease terms into a contract artifact.
type DocumentRenderer interface {
	Render(templateKey string, payload map[string]any) ([]byte, error)
}

// ArtifactStore persists rendered contract documents.
type ArtifactStore interface {
	Put(ref string, data []byte) error
	Exists(ref string) (bool, error)
	OpenStream(ref string) (io.ReadCloser, error)
}

// EventDeduper remembers provider event ids that were already applied.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}
