package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rentora/backend/internal/apperr"
	"github.com/rentora/backend/internal/contractdoc"
	"github.com/rentora/backend/internal/models"
	"github.com/rentora/backend/internal/rbac"
	"github.com/rentora/backend/internal/repositories"
	"go.uber.org/zap"
)

// ContractService runs the contract generate/sign workflow. Versions only
// grow; once a contract is final it never changes, and later regeneration
// starts a fresh version.
type ContractService struct {
	contractRepo ContractStore
	txSvc        *TransactionService
	renderer     DocumentRenderer
	artifacts    ArtifactStore
	auditRepo    AuditLogger
	templateKey  string
	log          *zap.Logger
}

func NewContractService(
	contractRepo ContractStore,
	txSvc *TransactionService,
	renderer DocumentRenderer,
	artifacts ArtifactStore,
	auditRepo AuditLogger,
	templateKey string,
	log *zap.Logger,
) *ContractService {
	return &ContractService{
		contractRepo: contractRepo,
		txSvc:        txSvc,
		renderer:     renderer,
		artifacts:    artifacts,
		auditRepo:    auditRepo,
		templateKey:  templateKey,
		log:          log,
	}
}

func requireOpen(tx *models.RentalTransaction) error {
	if models.IsClosedTxStatus(tx.Status) {
		return apperr.Precondition("transaction_closed",
			"contract activity is no longer possible on this transaction", tx.Status)
	}
	return nil
}

// Generate renders a new contract version for the transaction. Only the
// landlord or an administrator may generate; every call produces a fresh
// version.
func (s *ContractService) Generate(ctx context.Context, tx *models.RentalTransaction, actorID uuid.UUID, role string, terms map[string]any) (*models.Contract, error) {
	if actorID != tx.LandlordUserID && !rbac.IsAdmin(role) {
		return nil, apperr.Forbidden("only the landlord can generate the contract")
	}
	if err := requireOpen(tx); err != nil {
		return nil, err
	}

	maxVersion, err := s.contractRepo.GetMaxVersion(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	version := maxVersion + 1

	doc, err := s.renderer.Render(s.templateKey, terms)
	if err != nil {
		return nil, apperr.External("render_failed", "failed to render contract document", err)
	}
	hash := contractdoc.ContentHash(doc)
	artifactRef := fmt.Sprintf("%s/v%d-%s.json", tx.ID, version, hash[:12])
	if err := s.artifacts.Put(artifactRef, doc); err != nil {
		return nil, apperr.External("artifact_store_failed", "failed to persist contract document", err)
	}

	contract := &models.Contract{
		TransactionID:   tx.ID,
		Version:         version,
		TemplateKey:     s.templateKey,
		ContentHash:     hash,
		ArtifactRef:     artifactRef,
		RenderedPayload: doc,
		Status:          models.ContractStatusDraft,
	}
	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, err
	}

	if err := s.txSvc.AdvanceOnContractGenerated(ctx, tx, &actorID); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "contract_generated",
		EntityType:  "contract",
		EntityID:    &contract.ID,
		Meta:        map[string]any{"transaction_id": tx.ID.String(), "version": version},
	})
	return contract, nil
}

// Sign records the caller's signature on a contract. Authorization is checked
// before any state inspection so outsiders learn nothing about the contract.
func (s *ContractService) Sign(ctx context.Context, contractID uuid.UUID, actorID uuid.UUID, role, method, originIP, userAgent string, signatureData []byte) (*models.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("contract_not_found", "contract not found")
	}
	if err != nil {
		return nil, err
	}

	tx, err := s.txSvc.Get(ctx, contract.TransactionID)
	if err != nil {
		return nil, err
	}

	signRole := tx.RoleOf(actorID)
	if signRole == "" {
		return nil, apperr.Forbidden("not a participant of this transaction")
	}
	if err := requireOpen(tx); err != nil {
		return nil, err
	}

	latest, err := s.contractRepo.GetLatest(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if latest.ID != contract.ID {
		return nil, apperr.Precondition("not_latest_contract",
			fmt.Sprintf("contract version %d is superseded by version %d", contract.Version, latest.Version),
			tx.Status)
	}
	if contract.Status == models.ContractStatusFinal {
		return nil, apperr.Precondition("already_fully_signed", "contract is already fully signed", tx.Status)
	}

	sig := &models.Signature{
		ContractID:       contract.ID,
		UserID:           actorID,
		Role:             signRole,
		OriginIP:         originIP,
		UserAgentSummary: userAgent,
		Method:           method,
		SignatureData:    signatureData,
	}
	if err := s.contractRepo.CreateSignature(ctx, sig); err != nil {
		if errors.Is(err, repositories.ErrDuplicateSignature) {
			return nil, apperr.Conflict("duplicate_signature", "you have already signed this contract")
		}
		return nil, err
	}

	sigs, err := s.contractRepo.ListSignatures(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	bothSigned := models.CoversBothRoles(sigs)
	if bothSigned {
		if err := s.contractRepo.UpdateStatus(ctx, contract.ID, models.ContractStatusFinal); err != nil {
			return nil, err
		}
		contract.Status = models.ContractStatusFinal
	}

	if err := s.txSvc.AdvanceOnSignature(ctx, tx, signRole, bothSigned, &actorID); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &actorID,
		ActorType:   "user",
		Action:      "contract_signed",
		EntityType:  "contract",
		EntityID:    &contract.ID,
		Meta:        map[string]any{"role": signRole, "method": method, "fully_signed": bothSigned},
	})
	return contract, nil
}

// GetLatest returns the signable contract for a transaction, participants
// only.
func (s *ContractService) GetLatest(ctx context.Context, txID uuid.UUID, actorID uuid.UUID, role string) (*models.Contract, error) {
	tx, err := s.txSvc.GetForParticipant(ctx, txID, actorID, role)
	if err != nil {
		return nil, err
	}
	contract, err := s.contractRepo.GetLatest(ctx, tx.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("contract_not_found", "no contract generated yet")
	}
	return contract, err
}

func (s *ContractService) ListVersions(ctx context.Context, txID uuid.UUID, actorID uuid.UUID, role string) ([]models.Contract, error) {
	tx, err := s.txSvc.GetForParticipant(ctx, txID, actorID, role)
	if err != nil {
		return nil, err
	}
	return s.contractRepo.ListByTransaction(ctx, tx.ID)
}

// OpenDocument streams the stored artifact for a contract, participants only.
// The caller owns the returned reader.
func (s *ContractService) OpenDocument(ctx context.Context, contractID uuid.UUID, actorID uuid.UUID, role string) (io.ReadCloser, *models.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.NotFound("contract_not_found", "contract not found")
	}
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.txSvc.GetForParticipant(ctx, contract.TransactionID, actorID, role); err != nil {
		return nil, nil, err
	}
	ok, err := s.artifacts.Exists(contract.ArtifactRef)
	if err != nil {
		return nil, nil, apperr.External("artifact_store_failed", "failed to read contract document", err)
	}
	if !ok {
		return nil, nil, apperr.NotFound("document_not_found", "contract document artifact is missing")
	}
	rc, err := s.artifacts.OpenStream(contract.ArtifactRef)
	if err != nil {
		return nil, nil, apperr.External("artifact_store_failed", "failed to read contract document", err)
	}
	return rc, contract, nil
}

func (s *ContractService) ListSignatures(ctx context.Context, contractID uuid.UUID, actorID uuid.UUID, role string) ([]models.Signature, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("contract_not_found", "contract not found")
	}
	if err != nil {
		return nil, err
	}
	if _, err := s.txSvc.GetForParticipant(ctx, contract.TransactionID, actorID, role); err != nil {
		return nil, err
	}
	return s.contractRepo.ListSignatures(ctx, contractID)
}
