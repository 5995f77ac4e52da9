package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentora/backend/internal/models"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, transaction_id, provider, type, amount, currency, status,
       provider_intent_ref, provider_session_ref, receipt_ref, created_at, updated_at`

func (r *PaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO payments (transaction_id, provider, type, amount, currency, status,
		                      provider_intent_ref, provider_session_ref, receipt_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, p.TransactionID, p.Provider, p.Type, p.Amount, p.Currency, p.Status,
		p.ProviderIntentRef, p.ProviderSessionRef, p.ReceiptRef,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PaymentRepo) scanOne(ctx context.Context, query string, arg any) (*models.Payment, error) {
	var p models.Payment
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.TransactionID, &p.Provider, &p.Type, &p.Amount, &p.Currency, &p.Status,
		&p.ProviderIntentRef, &p.ProviderSessionRef, &p.ReceiptRef, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.scanOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepo) GetBySessionRef(ctx context.Context, sessionRef string) (*models.Payment, error) {
	return r.scanOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_session_ref = $1`, sessionRef)
}

func (r *PaymentRepo) GetByIntentRef(ctx context.Context, intentRef string) (*models.Payment, error) {
	return r.scanOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE provider_intent_ref = $1`, intentRef)
}

func (r *PaymentRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]models.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments WHERE transaction_id = $1 ORDER BY created_at DESC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.TransactionID, &p.Provider, &p.Type, &p.Amount, &p.Currency, &p.Status,
			&p.ProviderIntentRef, &p.ProviderSessionRef, &p.ReceiptRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// UpdateStatusIfPending moves a pending payment to status and reports whether
// the row changed. A false result means another delivery already settled it.
func (r *PaymentRepo) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status = $1, updated_at = now()
		WHERE id = $2 AND status = 'pending'
	`, status, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payments SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

// SetSessionRefs records the provider references handed back when the
// checkout session is created.
func (r *PaymentRepo) SetSessionRefs(ctx context.Context, id uuid.UUID, sessionRef, intentRef *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET provider_session_ref = COALESCE($1, provider_session_ref),
		       provider_intent_ref = COALESCE($2, provider_intent_ref), updated_at = now()
		WHERE id = $3
	`, sessionRef, intentRef, id)
	return err
}

func (r *PaymentRepo) SetIntentRef(ctx context.Context, id uuid.UUID, intentRef string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payments SET provider_intent_ref = $1, updated_at = now()
		WHERE id = $2 AND provider_intent_ref IS NULL
	`, intentRef, id)
	return err
}

func (r *PaymentRepo) SetReceiptRef(ctx context.Context, id uuid.UUID, receiptRef string) error {
	_, err := r.pool.Exec(ctx, `UPDATE payments SET receipt_ref = $1, updated_at = now() WHERE id = $2`, receiptRef, id)
	return err
}

// HasActiveDeposit reports whether the transaction already has a pending or
// succeeded deposit payment.
func (r *PaymentRepo) HasActiveDeposit(ctx context.Context, transactionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE transaction_id = $1 AND type = 'deposit' AND status IN ('pending', 'succeeded')
		)
	`, transactionID).Scan(&exists)
	return exists, err
}
