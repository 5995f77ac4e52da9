package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentora/backend/internal/models"
)

// ErrDuplicateSignature is returned when a user signs the same contract twice.
var ErrDuplicateSignature = errors.New("signature already recorded for this user and contract")

type ContractRepo struct {
	pool *pgxpool.Pool
}

func NewContractRepo(pool *pgxpool.Pool) *ContractRepo {
	return &ContractRepo{pool: pool}
}

func (r *ContractRepo) Create(ctx context.Context, c *models.Contract) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO contracts (transaction_id, version, template_key, content_hash, artifact_ref, rendered_payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, c.TransactionID, c.Version, c.TemplateKey, c.ContentHash, c.ArtifactRef, c.RenderedPayload, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

const contractColumns = `id, transaction_id, version, template_key, content_hash, artifact_ref, rendered_payload, status, created_at, updated_at`

func (r *ContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id,
	).Scan(&c.ID, &c.TransactionID, &c.Version, &c.TemplateKey, &c.ContentHash, &c.ArtifactRef,
		&c.RenderedPayload, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetLatest returns the highest-version contract for a transaction.
func (r *ContractRepo) GetLatest(ctx context.Context, transactionID uuid.UUID) (*models.Contract, error) {
	var c models.Contract
	err := r.pool.QueryRow(ctx, `
		SELECT `+contractColumns+`
		FROM contracts WHERE transaction_id = $1 ORDER BY version DESC LIMIT 1
	`, transactionID).Scan(&c.ID, &c.TransactionID, &c.Version, &c.TemplateKey, &c.ContentHash, &c.ArtifactRef,
		&c.RenderedPayload, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContractRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Contract, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+contractColumns+`
		FROM contracts WHERE transaction_id = $1 ORDER BY version DESC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []models.Contract
	for rows.Next() {
		var c models.Contract
		if err := rows.Scan(&c.ID, &c.TransactionID, &c.Version, &c.TemplateKey, &c.ContentHash, &c.ArtifactRef,
			&c.RenderedPayload, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, nil
}

func (r *ContractRepo) GetMaxVersion(ctx context.Context, transactionID uuid.UUID) (int, error) {
	var v *int
	err := r.pool.QueryRow(ctx, `SELECT MAX(version) FROM contracts WHERE transaction_id = $1`, transactionID).Scan(&v)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func (r *ContractRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE contracts SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// CreateSignature records a signature. The unique constraint on
// (contract_id, user_id) makes double-signing surface as ErrDuplicateSignature.
func (r *ContractRepo) CreateSignature(ctx context.Context, s *models.Signature) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO signatures (contract_id, user_id, role, origin_ip, user_agent_summary, method, signature_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, signed_at
	`, s.ContractID, s.UserID, s.Role, s.OriginIP, s.UserAgentSummary, s.Method, s.SignatureData,
	).Scan(&s.ID, &s.SignedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateSignature
	}
	return err
}

func (r *ContractRepo) ListSignatures(ctx context.Context, contractID uuid.UUID) ([]models.Signature, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, contract_id, user_id, role, signed_at, origin_ip, user_agent_summary, method, signature_data
		FROM signatures WHERE contract_id = $1 ORDER BY signed_at
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sigs []models.Signature
	for rows.Next() {
		var s models.Signature
		if err := rows.Scan(&s.ID, &s.ContractID, &s.UserID, &s.Role, &s.SignedAt,
			&s.OriginIP, &s.UserAgentSummary, &s.Method, &s.SignatureData); err != nil {
			return nil, err
		}
		sigs = append(sigs, s)
	}
	return sigs, nil
}
