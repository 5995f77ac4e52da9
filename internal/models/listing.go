package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing statuses
const (
	ListingStatusDraft    = "draft"
	ListingStatusActive   = "active"
	ListingStatusPaused   = "paused"
	ListingStatusArchived = "archived"
	ListingStatusRented   = "rented"
	ListingStatusExpired  = "expired"
)

// Valid listing status transitions: from -> []to
var ValidListingTransitions = map[string][]string{
	ListingStatusDraft:    {ListingStatusActive, ListingStatusArchived, ListingStatusDraft},
	ListingStatusActive:   {ListingStatusPaused, ListingStatusArchived, ListingStatusRented, ListingStatusExpired},
	ListingStatusPaused:   {ListingStatusActive, ListingStatusArchived, ListingStatusDraft, ListingStatusRented},
	ListingStatusArchived: {ListingStatusDraft},
	ListingStatusRented:   {ListingStatusActive, ListingStatusArchived},
	ListingStatusExpired:  {ListingStatusActive, ListingStatusArchived, ListingStatusDraft},
}

func IsValidListingTransition(from, to string) bool {
	allowed, ok := ValidListingTransitions[from]
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

type Listing struct {
	ID          uuid.UUID  `json:"id"`
	OwnerUserID uuid.UUID  `json:"owner_user_id"`
	Title       string     `json:"title"`
	Address     *string    `json:"address,omitempty"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`
	ExpiredAt   *time.Time `json:"expired_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
