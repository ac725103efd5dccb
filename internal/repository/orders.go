package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

// OrderRepo persists orders in Postgres.
type OrderRepo struct {
	db *pgxpool.Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create inserts the order together with its initial timeline.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	row, err := toRow(o)
	if err != nil {
		return err
	}
	return withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (
				id, order_number, requester_id, driver_id, pickup, destination, stops,
				distance_km, duration_min, fare, payment, status, rating, notes,
				scheduled_at, created_at, updated_at
			) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			o.ID, o.Number, o.RequesterID, o.DriverID, row.pickup, row.destination, row.stops,
			o.DistanceKm, o.DurationMin, row.fare, row.payment, string(o.Status), row.rating, o.Notes,
			o.ScheduledAt, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, e := range o.Timeline {
			if err := insertEntry(ctx, tx, o.ID, i+1, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get loads the order and its timeline from one snapshot so the status
// and the last timeline entry always agree.
func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := withTxOptions(ctx, r.db, snapshotRead, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, order_number, requester_id, COALESCE(driver_id, ''), pickup, destination, stops,
			       distance_km, duration_min, fare, payment, status,
			       COALESCE(cancelled_by, ''), COALESCE(cancellation_reason, ''),
			       rating, notes, scheduled_at, created_at, updated_at
			FROM orders
			WHERE id = $1
		`, id)

		var (
			raw    orderRow
			status string
			by     string
		)
		err := row.Scan(
			&o.ID, &o.Number, &o.RequesterID, &o.DriverID, &raw.pickup, &raw.destination, &raw.stops,
			&o.DistanceKm, &o.DurationMin, &raw.fare, &raw.payment, &status,
			&by, &o.CancellationReason,
			&raw.rating, &o.Notes, &o.ScheduledAt, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			if IsNotFound(err) || isInvalidText(err) {
				return fmt.Errorf("%w: order %s", apperr.ErrNotFound, id)
			}
			return fmt.Errorf("get order %s: %w", id, err)
		}
		o.Status = domain.OrderStatus(status)
		o.CancelledBy = domain.CancelledBy(by)
		if err := raw.decode(&o); err != nil {
			return err
		}

		o.Timeline, err = timeline(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ConditionalUpdate applies upd only if the order is still in expected
// status and, for states that need one, has a driver. The timeline entry is appended in the same transaction. It
// returns false when zero rows matched.
func (r *OrderRepo) ConditionalUpdate(ctx context.Context, id string, expected domain.OrderStatus, upd domain.OrderUpdate) (bool, error) {
	applied := false
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $3,
			    driver_id = COALESCE(NULLIF($4, ''), driver_id),
			    cancelled_by = COALESCE(NULLIF($5, ''), cancelled_by),
			    cancellation_reason = CASE WHEN $5 <> '' THEN $6 ELSE cancellation_reason END,
			    updated_at = $7
			WHERE id = $1 AND status = $2
			  AND (NOT $8 OR $4 <> '' OR driver_id IS NOT NULL)
		`, id, string(expected), string(upd.Status), upd.DriverID,
			string(upd.CancelledBy), upd.CancellationReason, upd.UpdatedAt, upd.Status.HasDriver())
		if err != nil {
			return fmt.Errorf("update order %s: %w", id, err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}

		var seq int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM order_timeline WHERE order_id = $1`, id,
		).Scan(&seq); err != nil {
			return fmt.Errorf("next timeline seq %s: %w", id, err)
		}
		if err := insertEntry(ctx, tx, id, seq, upd.Entry); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// AttachRating stores a rating for side if the order is completed and that
// side has not rated yet.
func (r *OrderRepo) AttachRating(ctx context.Context, id string, side domain.RatingSide, e domain.RatingEntry, at time.Time) (bool, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode rating: %w", err)
	}
	key := ratingKey(side)
	ct, err := r.db.Exec(ctx, `
		UPDATE orders
		SET rating = jsonb_set(rating, ARRAY[$2::text], $3::jsonb), updated_at = $4
		WHERE id = $1 AND status = $5 AND NOT (rating ? $2::text)
	`, id, key, b, at, string(domain.StatusCompleted))
	if err != nil {
		return false, fmt.Errorf("attach rating %s: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

// ListPendingBefore returns ids of pending orders created before t, oldest first.
func (r *OrderRepo) ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3
	`, string(domain.StatusPending), t, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPendingNear returns ids of pending orders whose pickup lies within
// radiusKm of p, nearest first. The box filter runs in SQL, the exact
// distance cut in Go.
func (r *OrderRepo) ListPendingNear(ctx context.Context, p domain.Point, radiusKm float64, limit int) ([]string, error) {
	b := boundsAround(p, radiusKm)
	rows, err := r.db.Query(ctx, `
		SELECT id, (pickup->>'lat')::float8, (pickup->>'lon')::float8, created_at
		FROM orders
		WHERE status = $1
		  AND (pickup->>'lat')::float8 BETWEEN $2 AND $3
		  AND (pickup->>'lon')::float8 BETWEEN $4 AND $5
	`, string(domain.StatusPending), b.minLat, b.maxLat, b.minLon, b.maxLon)
	if err != nil {
		return nil, fmt.Errorf("list pending orders near: %w", err)
	}
	defer rows.Close()

	var cs []pickupCandidate
	for rows.Next() {
		var c pickupCandidate
		if err := rows.Scan(&c.id, &c.pickup.Lat, &c.pickup.Lon, &c.created); err != nil {
			return nil, fmt.Errorf("scan pending order: %w", err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending orders near: %w", err)
	}
	return closest(p, radiusKm, limit, cs), nil
}

func timeline(ctx context.Context, tx pgx.Tx, id string) ([]domain.TimelineEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT status, at, actor_id, actor_role, note
		FROM order_timeline
		WHERE order_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get timeline %s: %w", id, err)
	}
	defer rows.Close()

	var out []domain.TimelineEntry
	for rows.Next() {
		var (
			e            domain.TimelineEntry
			status, role string
		)
		if err := rows.Scan(&status, &e.At, &e.ActorID, &role, &e.Note); err != nil {
			return nil, fmt.Errorf("scan timeline %s: %w", id, err)
		}
		e.Status = domain.OrderStatus(status)
		e.ActorRole = domain.Role(role)
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertEntry(ctx context.Context, tx pgx.Tx, orderID string, seq int, e domain.TimelineEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_timeline (order_id, seq, status, at, actor_id, actor_role, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, orderID, seq, string(e.Status), e.At, e.ActorID, string(e.ActorRole), e.Note)
	if err != nil {
		return fmt.Errorf("insert timeline %s#%d: %w", orderID, seq, err)
	}
	return nil
}

func ratingKey(side domain.RatingSide) string {
	if side == domain.RatingByDriver {
		return "byDriver"
	}
	return "byRequester"
}

// orderRow holds the JSONB columns of an order.
type orderRow struct {
	pickup, destination, stops, fare, payment, rating []byte
}

func toRow(o *domain.Order) (orderRow, error) {
	var (
		r   orderRow
		err error
	)
	stops := o.Stops
	if stops == nil {
		stops = []domain.Location{}
	}
	for _, f := range []struct {
		dst *[]byte
		v   any
	}{
		{&r.pickup, o.Pickup},
		{&r.destination, o.Destination},
		{&r.stops, stops},
		{&r.fare, o.Fare},
		{&r.payment, o.Payment},
		{&r.rating, o.Rating},
	} {
		if *f.dst, err = json.Marshal(f.v); err != nil {
			return orderRow{}, fmt.Errorf("encode order %s: %w", o.ID, err)
		}
	}
	return r, nil
}

func (r orderRow) decode(o *domain.Order) error {
	for _, f := range []struct {
		src []byte
		dst any
	}{
		{r.pickup, &o.Pickup},
		{r.destination, &o.Destination},
		{r.stops, &o.Stops},
		{r.fare, &o.Fare},
		{r.payment, &o.Payment},
		{r.rating, &o.Rating},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return fmt.Errorf("decode order %s: %w", o.ID, err)
		}
	}
	if o.ScheduledAt != nil {
		t := o.ScheduledAt.UTC()
		o.ScheduledAt = &t
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return nil
}
