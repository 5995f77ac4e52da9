package dto

import "time"

type AuthTokenRequest struct {
	Email     string  `json:"email"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      string  `json:"role"` // landlord / seeker / admin
}

type CreateListingRequest struct {
	Title     string     `json:"title"`
	Address   *string    `json:"address,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type UpdateListingStatusRequest struct {
	Status string `json:"status"`
}

type UpdateListingExpiryRequest struct {
	ExpiresAt *time.Time `json:"expires_at"` // null disables auto-expiry
}

type SlotRequest struct {
	StartsAt   time.Time  `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	Capacity   int        `json:"capacity"`
	Pattern    string     `json:"pattern,omitempty"` // none / weekends / weekdays / everyday / custom
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	TimeFrom   *string    `json:"time_from,omitempty"` // "15:04"
	TimeTo     *string    `json:"time_to,omitempty"`
	IsActive   *bool      `json:"is_active,omitempty"`
}

type RequestViewingRequest struct {
	SlotID      string    `json:"slot_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Message     *string   `json:"message,omitempty"`
}

type StartTransactionRequest struct {
	ListingID     string `json:"listing_id"`
	SeekerID      string `json:"seeker_id"`
	DepositAmount int64  `json:"deposit_amount"` // minor units
	RentAmount    int64  `json:"rent_amount"`    // minor units
	Currency      string `json:"currency,omitempty"`
}

type GenerateContractRequest struct {
	Terms map[string]any `json:"terms,omitempty"`
}

type SignContractRequest struct {
	Method        string `json:"method"` // e.g. "click"
	SignatureData []byte `json:"signature_data,omitempty"`
}
