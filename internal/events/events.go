package events

import (
	"context"

	"github.com/google/uuid"
)

// ChannelNotify carries notification intents; delivery is someone else's job.
const ChannelNotify = "events:notify"

// Notification intent event types
const (
	EventViewingRequested     = "viewing_requested"
	EventViewingConfirmed     = "viewing_confirmed"
	EventViewingRejected      = "viewing_rejected"
	EventViewingCancelled     = "viewing_cancelled"
	EventContractGenerated    = "contract_generated"
	EventCounterpartySigned   = "counterparty_signed"
	EventContractFullySigned  = "contract_fully_signed"
	EventDepositPaid          = "deposit_paid"
	EventMoveInConfirmed      = "move_in_confirmed"
	EventTransactionCompleted = "transaction_completed"
	EventTransactionCancelled = "transaction_cancelled"
	EventTransactionDisputed  = "transaction_disputed"
)

// Intent is a structured "notify user X of event Y with payload Z" request.
type Intent struct {
	UserID    uuid.UUID      `json:"user_id"`
	EventType string         `json:"event_type"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, intent Intent) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(Intent)) error
}
