package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentora/backend/internal/models"
)

type ListingRepo struct {
	pool *pgxpool.Pool
}

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func (r *ListingRepo) Create(ctx context.Context, l *models.Listing) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO listings (owner_user_id, title, address, status, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, l.OwnerUserID, l.Title, l.Address, l.Status, l.ExpiresAt,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, title, address, status,
		       published_at, archived_at, expired_at, expires_at, created_at, updated_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.OwnerUserID, &l.Title, &l.Address, &l.Status,
		&l.PublishedAt, &l.ArchivedAt, &l.ExpiredAt, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

type ListingFilter struct {
	OwnerUserID *uuid.UUID
	Status      *string
	Limit       int
	Offset      int
}

func (r *ListingRepo) List(ctx context.Context, f ListingFilter) ([]models.Listing, error) {
	query := `
		SELECT id, owner_user_id, title, address, status,
		       published_at, archived_at, expired_at, expires_at, created_at, updated_at
		FROM listings
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.OwnerUserID != nil {
		where = append(where, fmt.Sprintf("owner_user_id = $%d", argIdx))
		args = append(args, *f.OwnerUserID)
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

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.OwnerUserID, &l.Title, &l.Address, &l.Status,
			&l.PublishedAt, &l.ArchivedAt, &l.ExpiredAt, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// UpdateStatus stores the new status together with the lifecycle timestamp
// the status implies, in a single statement.
func (r *ListingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	var extra string
	switch status {
	case models.ListingStatusActive:
		extra = ", published_at = COALESCE(published_at, now()), expired_at = NULL"
	case models.ListingStatusArchived:
		extra = ", archived_at = now()"
	case models.ListingStatusExpired:
		extra = ", expired_at = now()"
	case models.ListingStatusDraft:
		extra = ", archived_at = NULL, expired_at = NULL"
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE listings SET status = $1, updated_at = now()`+extra+` WHERE id = $2`,
		status, id)
	return err
}

func (r *ListingRepo) UpdateExpiresAt(ctx context.Context, id uuid.UUID, expiresAt *time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE listings SET expires_at = $1, updated_at = now() WHERE id = $2`, expiresAt, id)
	return err
}

// GetExpiredActive returns active listings whose expires_at has passed.
func (r *ListingRepo) GetExpiredActive(ctx context.Context) ([]models.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_user_id, title, address, status,
		       published_at, archived_at, expired_at, expires_at, created_at, updated_at
		FROM listings
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < now()
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.OwnerUserID, &l.Title, &l.Address, &l.Status,
			&l.PublishedAt, &l.ArchivedAt, &l.ExpiredAt, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}
