package investor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no profile exists for an ID.
var ErrNotFound = errors.New("investor not found")

// Repository provides data access for investor profiles.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an investor repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const upsertSQL = `INSERT INTO investors
	(id, name, email, budget_min, budget_max, budget_type, bedrooms_min, bedrooms_max,
	 property_types, property_licences, locations, operator_type, active)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		budget_min = excluded.budget_min,
		budget_max = excluded.budget_max,
		budget_type = excluded.budget_type,
		bedrooms_min = excluded.bedrooms_min,
		bedrooms_max = excluded.bedrooms_max,
		property_types = excluded.property_types,
		property_licences = excluded.property_licences,
		locations = excluded.locations,
		operator_type = excluded.operator_type,
		active = excluded.active,
		updated_at = CURRENT_TIMESTAMP`

const selectColumns = `id, name, email, budget_min, budget_max, budget_type, bedrooms_min, bedrooms_max,
	property_types, property_licences, locations, operator_type, active, created_at, updated_at`

// Upsert inserts or replaces a profile and returns the stored row.
func (r *Repository) Upsert(ctx context.Context, p *Profile) (*Profile, error) {
	types, err := encodeSet(p.PropertyTypes)
	if err != nil {
		return nil, err
	}
	licences, err := encodeSet(p.PropertyLicences)
	if err != nil {
		return nil, err
	}
	locations, err := encodeSet(p.Locations)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, upsertSQL,
		p.ID, p.Name, p.Email,
		p.Budget.Min.String(), p.Budget.Max.String(), string(p.Budget.Type),
		p.Bedrooms.Min, p.Bedrooms.Max,
		types, licences, locations,
		p.OperatorType, p.Active,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting investor %s: %w", p.ID, err)
	}

	return r.GetByID(ctx, p.ID)
}

// GetByID returns a profile by its ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM investors WHERE id = ?", selectColumns)
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("investor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying investor %s: %w", id, err)
	}
	return p, nil
}

// ListOptions controls filtering for List.
type ListOptions struct {
	ActiveOnly bool
}

// List returns profiles ordered by ID.
func (r *Repository) List(ctx context.Context, opts ListOptions) (profiles []*Profile, err error) {
	query := fmt.Sprintf("SELECT %s FROM investors", selectColumns)
	if opts.ActiveOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing investors: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning investor: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating investors: %w", err)
	}

	return profiles, nil
}

// ListActive returns all active profiles.
func (r *Repository) ListActive(ctx context.Context) ([]*Profile, error) {
	return r.List(ctx, ListOptions{ActiveOnly: true})
}

// scanProfile scans a profile from a database row.
func scanProfile(row interface{ Scan(...interface{}) error }) (*Profile, error) {
	var p Profile
	var budgetType, types, licences, locations string

	err := row.Scan(
		&p.ID, &p.Name, &p.Email,
		&p.Budget.Min, &p.Budget.Max, &budgetType,
		&p.Bedrooms.Min, &p.Bedrooms.Max,
		&types, &licences, &locations,
		&p.OperatorType, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Budget.Type = BudgetType(budgetType)
	if p.PropertyTypes, err = decodeSet(types); err != nil {
		return nil, fmt.Errorf("decoding property types: %w", err)
	}
	if p.PropertyLicences, err = decodeSet(licences); err != nil {
		return nil, fmt.Errorf("decoding property licences: %w", err)
	}
	if p.Locations, err = decodeSet(locations); err != nil {
		return nil, fmt.Errorf("decoding locations: %w", err)
	}

	return &p, nil
}

func encodeSet(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encoding preference set: %w", err)
	}
	return string(b), nil
}

func decodeSet(raw string) ([]string, error) {
	var values []string
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, err
	}
	return values, nil
}
