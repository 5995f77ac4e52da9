package models

import (
	"time"

	"github.com/google/uuid"
)

// Rental transaction statuses. landlord_signed means the landlord alone has
// signed the current contract; fully_signed means both roles have signed.
const (
	TxStatusInitiated         = "initiated"
	TxStatusContractGenerated = "contract_generated"
	TxStatusSeekerSigned      = "seeker_signed"
	TxStatusLandlordSigned    = "landlord_signed"
	TxStatusFullySigned       = "fully_signed"
	TxStatusDepositPaid       = "deposit_paid"
	TxStatusMoveInConfirmed   = "move_in_confirmed"
	TxStatusCompleted         = "completed"
	TxStatusCancelled         = "cancelled"
	TxStatusDisputed          = "disputed"
)

// Valid state transitions: from -> []to. Regenerating a contract moves any
// signed-but-open transaction back to contract_generated.
var ValidTransactionTransitions = map[string][]string{
	TxStatusInitiated:         {TxStatusContractGenerated, TxStatusCancelled, TxStatusDisputed},
	TxStatusContractGenerated: {TxStatusSeekerSigned, TxStatusLandlordSigned, TxStatusFullySigned, TxStatusCancelled, TxStatusDisputed},
	TxStatusSeekerSigned:      {TxStatusFullySigned, TxStatusContractGenerated, TxStatusCancelled, TxStatusDisputed},
	TxStatusLandlordSigned:    {TxStatusFullySigned, TxStatusContractGenerated, TxStatusCancelled, TxStatusDisputed},
	TxStatusFullySigned:       {TxStatusDepositPaid, TxStatusContractGenerated, TxStatusCancelled, TxStatusDisputed},
	TxStatusDepositPaid:       {TxStatusMoveInConfirmed, TxStatusCancelled, TxStatusDisputed},
	TxStatusMoveInConfirmed:   {TxStatusCompleted, TxStatusCancelled, TxStatusDisputed},
	TxStatusDisputed:          {TxStatusCancelled, TxStatusCompleted},
	TxStatusCompleted:         {},
	TxStatusCancelled:         {},
}

func IsValidTransactionTransition(from, to string) bool {
	allowed, ok := ValidTransactionTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalTxStatus reports whether no further transitions are possible.
func IsTerminalTxStatus(status string) bool {
	return status == TxStatusCompleted || status == TxStatusCancelled
}

// IsClosedTxStatus reports whether the transaction no longer accepts contract
// or payment activity (deposit already paid or the transaction is shut).
func IsClosedTxStatus(status string) bool {
	switch status {
	case TxStatusDepositPaid, TxStatusMoveInConfirmed, TxStatusCompleted, TxStatusCancelled, TxStatusDisputed:
		return true
	}
	return false
}

type RentalTransaction struct {
	ID             uuid.UUID  `json:"id"`
	ListingID      uuid.UUID  `json:"listing_id"`
	LandlordUserID uuid.UUID  `json:"landlord_user_id"`
	SeekerUserID   uuid.UUID  `json:"seeker_user_id"`
	Status         string     `json:"status"`
	DepositAmount  int64      `json:"deposit_amount"` // minor units
	RentAmount     int64      `json:"rent_amount"`    // minor units
	Currency       string     `json:"currency"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsParticipant reports whether userID is the landlord or the seeker.
func (t *RentalTransaction) IsParticipant(userID uuid.UUID) bool {
	return t.LandlordUserID == userID || t.SeekerUserID == userID
}

// RoleOf resolves a participant's signing role, "" for outsiders.
func (t *RentalTransaction) RoleOf(userID uuid.UUID) string {
	switch userID {
	case t.LandlordUserID:
		return SignRoleLandlord
	case t.SeekerUserID:
		return SignRoleSeeker
	}
	return ""
}
