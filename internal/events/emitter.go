package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Emitter publishes notification intents. Emission is fire-and-forget: a
// failed publish is logged and never propagated, so a notification problem
// cannot roll back the state transition that triggered it.
type Emitter struct {
	pub Publisher
	log *zap.Logger
}

func NewEmitter(pub Publisher, log *zap.Logger) *Emitter {
	return &Emitter{pub: pub, log: log}
}

func (e *Emitter) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]any) {
	intent := Intent{UserID: userID, EventType: eventType, Payload: payload}
	if err := e.pub.Publish(ctx, ChannelNotify, intent); err != nil {
		e.log.Warn("failed to publish notify intent",
			zap.String("user_id", userID.String()),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
