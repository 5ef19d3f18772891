package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/pulsecards/internal/infra/pgutils"
	"github.com/fastprodman/pulsecards/internal/repos/listings"
	"github.com/google/uuid"
)

var _ listings.Listings = (*listingsRepo)(nil)

const liveIndex = "marketplace_listings_live_pack_idx"

type listingsRepo struct{ db *sql.DB }

func New(db *sql.DB) *listingsRepo {
	return &listingsRepo{db: db}
}

const listingColumns = `id, pack_id, seller_id, price, status, lock_token, locked_until, sold_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (listings.Listing, error) {
	var (
		l           listings.Listing
		status      string
		lockedUntil sql.NullTime
		soldAt      sql.NullTime
	)

	err := row.Scan(&l.ID, &l.PackID, &l.SellerID, &l.Price, &status,
		&l.LockToken, &lockedUntil, &soldAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return listings.Listing{}, err
	}

	l.Status = listings.Status(status)
	if lockedUntil.Valid {
		l.LockedUntil = &lockedUntil.Time
	}
	if soldAt.Valid {
		l.SoldAt = &soldAt.Time
	}

	return l, nil
}

func (r *listingsRepo) Insert(ctx context.Context, tx *sql.Tx, l listings.Listing) (listings.Listing, error) {
	out, err := scanListing(tx.QueryRowContext(ctx, `
		INSERT INTO marketplace_listings (pack_id, seller_id, price, status)
		VALUES ($1, $2, $3, 'ACTIVE')
		RETURNING `+listingColumns,
		l.PackID, l.SellerID, l.Price))
	if err != nil {
		if pgutils.IsUniqueViolationOf(err, liveIndex) {
			return listings.Listing{}, listings.ErrAlreadyListed
		}

		return listings.Listing{}, fmt.Errorf("insert listing: %w", err)
	}

	return out, nil
}

func (r *listingsRepo) Get(ctx context.Context, q pgutils.Querier, id uuid.UUID) (listings.Listing, error) {
	l, err := scanListing(q.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM marketplace_listings WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return listings.Listing{}, listings.ErrListingNotFound
	}
	if err != nil {
		return listings.Listing{}, fmt.Errorf("get listing: %w", err)
	}

	return l, nil
}

func (r *listingsRepo) HasLive(ctx context.Context, q pgutils.Querier, packID uuid.UUID) (bool, error) {
	var live bool

	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM marketplace_listings
			WHERE pack_id = $1 AND status IN ('ACTIVE', 'LOCKED')
		)
	`, packID).Scan(&live)
	if err != nil {
		return false, fmt.Errorf("check live listing: %w", err)
	}

	return live, nil
}

func (r *listingsRepo) ListActive(ctx context.Context, limit, offset int) ([]listings.Listing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM marketplace_listings
		WHERE status IN ('ACTIVE', 'LOCKED')
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	defer rows.Close()

	var out []listings.Listing
	for rows.Next() {
		l, serr := scanListing(rows)
		if serr != nil {
			return nil, fmt.Errorf("scan listing: %w", serr)
		}

		out = append(out, l)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	return out, nil
}

func (r *listingsRepo) AcquireLock(
	ctx context.Context, tx *sql.Tx, id, token uuid.UUID, ttl time.Duration,
) (listings.Listing, error) {
	l, err := scanListing(tx.QueryRowContext(ctx, `
		UPDATE marketplace_listings
		SET status = 'LOCKED',
		    lock_token = $2,
		    locked_until = now() + make_interval(secs => $3),
		    updated_at = now()
		WHERE id = $1
		  AND (status = 'ACTIVE' OR (status = 'LOCKED' AND locked_until <= now()))
		RETURNING `+listingColumns,
		id, token, ttl.Seconds()))
	if errors.Is(err, sql.ErrNoRows) {
		return listings.Listing{}, listings.ErrNotLockable
	}
	if err != nil {
		return listings.Listing{}, fmt.Errorf("acquire listing lock: %w", err)
	}

	return l, nil
}

func (r *listingsRepo) ReleaseLock(ctx context.Context, id, token uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE marketplace_listings
		SET status = 'ACTIVE', lock_token = NULL, locked_until = NULL, updated_at = now()
		WHERE id = $1
		  AND status = 'LOCKED'
		  AND lock_token = $2
	`, id, token)
	if err != nil {
		return false, fmt.Errorf("release listing lock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected == 1, nil
}

func (r *listingsRepo) MarkSold(ctx context.Context, tx *sql.Tx, id, token uuid.UUID) (listings.Listing, error) {
	l, err := scanListing(tx.QueryRowContext(ctx, `
		UPDATE marketplace_listings
		SET status = 'SOLD',
		    lock_token = NULL,
		    locked_until = NULL,
		    sold_at = now(),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'LOCKED'
		  AND lock_token = $2
		RETURNING `+listingColumns,
		id, token))
	if errors.Is(err, sql.ErrNoRows) {
		return listings.Listing{}, listings.ErrLockNotHeld
	}
	if err != nil {
		return listings.Listing{}, fmt.Errorf("mark listing sold: %w", err)
	}

	return l, nil
}

func (r *listingsRepo) Cancel(ctx context.Context, id uuid.UUID, sellerID string) (listings.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, `
		UPDATE marketplace_listings
		SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1
		  AND seller_id = $2
		  AND status = 'ACTIVE'
		RETURNING `+listingColumns,
		id, sellerID))
	if errors.Is(err, sql.ErrNoRows) {
		return listings.Listing{}, listings.ErrListingNotFound
	}
	if err != nil {
		return listings.Listing{}, fmt.Errorf("cancel listing: %w", err)
	}

	return l, nil
}

func (r *listingsRepo) ReleaseExpiredLocks(ctx context.Context, tx *sql.Tx) ([]uuid.UUID, error) {
	rows, err := tx.QueryContext(ctx, `
		UPDATE marketplace_listings
		SET status = 'ACTIVE', lock_token = NULL, locked_until = NULL, updated_at = now()
		WHERE status = 'LOCKED'
		  AND locked_until <= now()
		RETURNING id
	`)
	if err != nil {
		return nil, fmt.Errorf("release expired locks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID

		err = rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("scan listing id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate released listings: %w", err)
	}

	return ids, nil
}
