package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no listing exists for an ID.
var ErrNotFound = errors.New("listing not found")

// Repository provides data access for listings.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a listing repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const upsertSQL = `INSERT INTO listings
	(id, title, price, bedrooms, property_type, licence, location, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		price = excluded.price,
		bedrooms = excluded.bedrooms,
		property_type = excluded.property_type,
		licence = excluded.licence,
		location = excluded.location,
		status = excluded.status,
		updated_at = CURRENT_TIMESTAMP`

const selectColumns = `id, title, price, bedrooms, property_type, licence, location, status, created_at, updated_at`

// Upsert inserts or replaces a listing and returns the stored row.
func (r *Repository) Upsert(ctx context.Context, l *Listing) (*Listing, error) {
	_, err := r.db.ExecContext(ctx, upsertSQL,
		l.ID, l.Title, l.Price.String(), l.Bedrooms,
		l.PropertyType, l.Licence, l.Location, string(l.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting listing %s: %w", l.ID, err)
	}
	return r.GetByID(ctx, l.ID)
}

// GetByID returns a listing by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = ?", selectColumns)
	l, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying listing %s: %w", id, err)
	}
	return l, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	Status Status // empty = all
}

// List returns listings ordered by ID, optionally filtered by status.
func (r *Repository) List(ctx context.Context, opts ListOptions) (listings []*Listing, err error) {
	query := fmt.Sprintf("SELECT %s FROM listings", selectColumns)
	var args []interface{}
	var conditions []string

	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing listings: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, nil
}

// ListAvailable returns every listing with status available.
func (r *Repository) ListAvailable(ctx context.Context) ([]*Listing, error) {
	return r.List(ctx, ListOptions{Status: StatusAvailable})
}

// UpdateStatus moves a listing to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !ValidStatus(string(status)) {
		return fmt.Errorf("invalid listing status: %s", status)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE listings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating listing status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("listing %s: %w", id, ErrNotFound)
	}

	return nil
}

// scanListing scans a listing from a database row.
func scanListing(row interface{ Scan(...interface{}) error }) (*Listing, error) {
	var l Listing
	var status string

	err := row.Scan(
		&l.ID, &l.Title, &l.Price, &l.Bedrooms,
		&l.PropertyType, &l.Licence, &l.Location, &status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = Status(status)

	return &l, nil
}
