package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentora/backend/internal/models"
)

type ViewingRepo struct {
	pool *pgxpool.Pool
}

func NewViewingRepo(pool *pgxpool.Pool) *ViewingRepo {
	return &ViewingRepo{pool: pool}
}

const slotColumns = `id, listing_id, starts_at, ends_at, capacity, is_active, pattern,
       days_of_week, time_from, time_to, created_at, updated_at`

func (r *ViewingRepo) CreateSlot(ctx context.Context, s *models.ViewingSlot) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO viewing_slots (listing_id, starts_at, ends_at, capacity, is_active, pattern, days_of_week, time_from, time_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, s.ListingID, s.StartsAt, s.EndsAt, s.Capacity, s.IsActive, s.Pattern, s.DaysOfWeek, s.TimeFrom, s.TimeTo,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *ViewingRepo) GetSlot(ctx context.Context, id uuid.UUID) (*models.ViewingSlot, error) {
	var s models.ViewingSlot
	err := r.pool.QueryRow(ctx, `SELECT `+slotColumns+` FROM viewing_slots WHERE id = $1`, id,
	).Scan(&s.ID, &s.ListingID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.IsActive, &s.Pattern,
		&s.DaysOfWeek, &s.TimeFrom, &s.TimeTo, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ViewingRepo) ListSlotsByListing(ctx context.Context, listingID uuid.UUID) ([]models.ViewingSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM viewing_slots WHERE listing_id = $1 ORDER BY starts_at
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []models.ViewingSlot
	for rows.Next() {
		var s models.ViewingSlot
		if err := rows.Scan(&s.ID, &s.ListingID, &s.StartsAt, &s.EndsAt, &s.Capacity, &s.IsActive, &s.Pattern,
			&s.DaysOfWeek, &s.TimeFrom, &s.TimeTo, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, nil
}

func slotLockKey(slotID uuid.UUID) string {
	return fmt.Sprintf("viewing_slot:%s", slotID)
}

// CreateRequestGuarded inserts the request only if the slot still has spare
// capacity. The count and the insert run under an advisory lock on the slot,
// so concurrent seekers serialize and the loser sees admitted=false.
func (r *ViewingRepo) CreateRequestGuarded(ctx context.Context, req *models.ViewingRequest, capacity int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(req.SlotID)); err != nil {
		return false, err
	}

	var active int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM viewing_requests
		WHERE slot_id = $1 AND status IN ('requested', 'confirmed')
	`, req.SlotID).Scan(&active)
	if err != nil {
		return false, err
	}
	if active >= capacity {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO viewing_requests (slot_id, seeker_id, status, scheduled_at, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, req.SlotID, req.SeekerID, req.Status, req.ScheduledAt, req.Message,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ConfirmGuarded sets the request to confirmed only if the number of other
// already-confirmed requests on the slot is below capacity.
func (r *ViewingRepo) ConfirmGuarded(ctx context.Context, requestID, slotID uuid.UUID, capacity int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(slotID)); err != nil {
		return false, err
	}

	var confirmed int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM viewing_requests
		WHERE slot_id = $1 AND status = 'confirmed' AND id <> $2
	`, slotID, requestID).Scan(&confirmed)
	if err != nil {
		return false, err
	}
	if confirmed >= capacity {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE viewing_requests SET status = 'confirmed', cancelled_by = NULL, updated_at = now()
		WHERE id = $1
	`, requestID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (r *ViewingRepo) GetRequest(ctx context.Context, id uuid.UUID) (*models.ViewingRequest, error) {
	var v models.ViewingRequest
	err := r.pool.QueryRow(ctx, `
		SELECT id, slot_id, seeker_id, status, scheduled_at, message, cancelled_by, created_at, updated_at
		FROM viewing_requests WHERE id = $1
	`, id).Scan(&v.ID, &v.SlotID, &v.SeekerID, &v.Status, &v.ScheduledAt, &v.Message, &v.CancelledBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ViewingRepo) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status string, cancelledBy *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE viewing_requests SET status = $1, cancelled_by = $2, updated_at = now() WHERE id = $3
	`, status, cancelledBy, id)
	return err
}

type ViewingRequestFilter struct {
	SlotID    *uuid.UUID
	SeekerID  *uuid.UUID
	ListingID *uuid.UUID
	Status    *string
	Limit     int
	Offset    int
}

func (r *ViewingRepo) ListRequests(ctx context.Context, f ViewingRequestFilter) ([]models.ViewingRequest, error) {
	query := `
		SELECT vr.id, vr.slot_id, vr.seeker_id, vr.status, vr.scheduled_at, vr.message, vr.cancelled_by, vr.created_at, vr.updated_at
		FROM viewing_requests vr
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.ListingID != nil {
		query += ` JOIN viewing_slots vs ON vs.id = vr.slot_id `
		where = append(where, fmt.Sprintf("vs.listing_id = $%d", argIdx))
		args = append(args, *f.ListingID)
		argIdx++
	}
	if f.SlotID != nil {
		where = append(where, fmt.Sprintf("vr.slot_id = $%d", argIdx))
		args = append(args, *f.SlotID)
		argIdx++
	}
	if f.SeekerID != nil {
		where = append(where, fmt.Sprintf("vr.seeker_id = $%d", argIdx))
		args = append(args, *f.SeekerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("vr.status = $%d", argIdx))
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
	query += fmt.Sprintf(" ORDER BY vr.scheduled_at LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.ViewingRequest
	for rows.Next() {
		var v models.ViewingRequest
		if err := rows.Scan(&v.ID, &v.SlotID, &v.SeekerID, &v.Status, &v.ScheduledAt, &v.Message, &v.CancelledBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, v)
	}
	return reqs, nil
}

func (r *ViewingRepo) CountActiveRequests(ctx context.Context, slotID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM viewing_requests
		WHERE slot_id = $1 AND status IN ('requested', 'confirmed')
	`, slotID).Scan(&n)
	return n, err
}

// UpdateSlotGuarded applies the changes only if the new capacity still covers
// the live active-request count. ok=false means demand exceeds the new
// capacity.
func (r *ViewingRepo) UpdateSlotGuarded(ctx context.Context, s *models.ViewingSlot) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(s.ID)); err != nil {
		return false, err
	}

	var active int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM viewing_requests
		WHERE slot_id = $1 AND status IN ('requested', 'confirmed')
	`, s.ID).Scan(&active)
	if err != nil {
		return false, err
	}
	if s.Capacity < active {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE viewing_slots SET starts_at = $1, ends_at = $2, capacity = $3, is_active = $4,
		       pattern = $5, days_of_week = $6, time_from = $7, time_to = $8, updated_at = now()
		WHERE id = $9
	`, s.StartsAt, s.EndsAt, s.Capacity, s.IsActive, s.Pattern, s.DaysOfWeek, s.TimeFrom, s.TimeTo, s.ID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// DeleteSlotGuarded removes the slot unless active requests still reference
// it.
func (r *ViewingRepo) DeleteSlotGuarded(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotLockKey(id)); err != nil {
		return false, err
	}

	var active int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM viewing_requests
		WHERE slot_id = $1 AND status IN ('requested', 'confirmed')
	`, id).Scan(&active)
	if err != nil {
		return false, err
	}
	if active > 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM viewing_slots WHERE id = $1`, id); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// SweepPastRequested cancels requests still in requested state whose
// scheduled time has passed, returning the affected rows for notification.
func (r *ViewingRepo) SweepPastRequested(ctx context.Context) ([]models.ViewingRequest, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE viewing_requests
		SET status = 'cancelled', cancelled_by = 'system', updated_at = now()
		WHERE status = 'requested' AND scheduled_at < now()
		RETURNING id, slot_id, seeker_id, status, scheduled_at, message, cancelled_by, created_at, updated_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.ViewingRequest
	for rows.Next() {
		var v models.ViewingRequest
		if err := rows.Scan(&v.ID, &v.SlotID, &v.SeekerID, &v.Status, &v.ScheduledAt, &v.Message, &v.CancelledBy, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, v)
	}
	return reqs, nil
}
