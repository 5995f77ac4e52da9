package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentora/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, listing_id, landlord_user_id, seeker_user_id, status,
       deposit_amount, rent_amount, currency, started_at, completed_at, created_at, updated_at`

// CreateIfNoActive inserts the transaction unless the (listing, seeker) pair
// already has one in a non-terminal status. The check and the insert run under
// an advisory lock on the pair, so two concurrent starts serialize and the
// loser sees created=false.
func (r *TransactionRepo) CreateIfNoActive(ctx context.Context, t *models.RentalTransaction) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("rental_tx:%s:%s", t.ListingID, t.SeekerUserID)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM rental_transactions
			WHERE listing_id = $1 AND seeker_user_id = $2
			  AND status NOT IN ('completed', 'cancelled')
		)
	`, t.ListingID, t.SeekerUserID).Scan(&exists)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rental_transactions (listing_id, landlord_user_id, seeker_user_id, status,
		                                 deposit_amount, rent_amount, currency, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, started_at, created_at, updated_at
	`, t.ListingID, t.LandlordUserID, t.SeekerUserID, t.Status,
		t.DepositAmount, t.RentAmount, t.Currency,
	).Scan(&t.ID, &t.StartedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RentalTransaction, error) {
	var t models.RentalTransaction
	err := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM rental_transactions WHERE id = $1`, id,
	).Scan(&t.ID, &t.ListingID, &t.LandlordUserID, &t.SeekerUserID, &t.Status,
		&t.DepositAmount, &t.RentAmount, &t.Currency, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type TransactionFilter struct {
	ListingID      *uuid.UUID
	LandlordUserID *uuid.UUID
	SeekerUserID   *uuid.UUID
	Status         *string
	Limit          int
	Offset         int
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilter) ([]models.RentalTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM rental_transactions`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ListingID != nil {
		where = append(where, fmt.Sprintf("listing_id = $%d", argIdx))
		args = append(args, *f.ListingID)
		argIdx++
	}
	if f.LandlordUserID != nil {
		where = append(where, fmt.Sprintf("landlord_user_id = $%d", argIdx))
		args = append(args, *f.LandlordUserID)
		argIdx++
	}
	if f.SeekerUserID != nil {
		where = append(where, fmt.Sprintf("seeker_user_id = $%d", argIdx))
		args = append(args, *f.SeekerUserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.RentalTransaction
	for rows.Next() {
		var t models.RentalTransaction
		if err := rows.Scan(&t.ID, &t.ListingID, &t.LandlordUserID, &t.SeekerUserID, &t.Status,
			&t.DepositAmount, &t.RentAmount, &t.Currency, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}

func (r *TransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	var extra string
	if models.IsTerminalTxStatus(status) {
		extra = ", completed_at = now()"
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE rental_transactions SET status = $1, updated_at = now()`+extra+` WHERE id = $2`,
		status, id)
	return err
}

// GetTimedOut returns transactions stuck in the given status for longer than
// timeoutSeconds.
func (r *TransactionRepo) GetTimedOut(ctx context.Context, status string, timeoutSeconds int) ([]models.RentalTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+`
		FROM rental_transactions
		WHERE status = $1 AND updated_at < now() - ($2 || ' seconds')::interval
	`, status, fmt.Sprintf("%d", timeoutSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.RentalTransaction
	for rows.Next() {
		var t models.RentalTransaction
		if err := rows.Scan(&t.ID, &t.ListingID, &t.LandlordUserID, &t.SeekerUserID, &t.Status,
			&t.DepositAmount, &t.RentAmount, &t.Currency, &t.StartedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, nil
}
