package models

import (
	"time"

	"github.com/google/uuid"
)

// Contract statuses
const (
	ContractStatusDraft = "draft"
	ContractStatusFinal = "final"
)

// Signature roles
const (
	SignRoleSeeker   = "seeker"
	SignRoleLandlord = "landlord"
)

// Contract is a versioned rendering of the lease terms. Only the highest
// version for a transaction is signable; a final contract is immutable.
type Contract struct {
	ID              uuid.UUID `json:"id"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	Version         int       `json:"version"`
	TemplateKey     string    `json:"template_key"`
	ContentHash     string    `json:"content_hash"`
	ArtifactRef     string    `json:"artifact_ref"`
	RenderedPayload []byte    `json:"rendered_payload,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Signature struct {
	ID               uuid.UUID `json:"id"`
	ContractID       uuid.UUID `json:"contract_id"`
	UserID           uuid.UUID `json:"user_id"`
	Role             string    `json:"role"`
	SignedAt         time.Time `json:"signed_at"`
	OriginIP         string    `json:"origin_ip"`
	UserAgentSummary string    `json:"user_agent_summary"`
	Method           string    `json:"method"`
	SignatureData    []byte    `json:"signature_data,omitempty"`
}

// CoversBothRoles reports whether sigs contain at least one seeker and one
// landlord signature.
func CoversBothRoles(sigs []Signature) bool {
	var seeker, landlord bool
	for _, s := range sigs {
		switch s.Role {
		case SignRoleSeeker:
			seeker = true
		case SignRoleLandlord:
			landlord = true
		}
	}
	return seeker && landlord
}
