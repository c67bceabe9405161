package profiles

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harborlight/beacon/pkg/auth"
	"github.com/harborlight/beacon/pkg/scope"
)

const profileColumns = "id, full_name, email, role, region, mobile, district, gender, dob, created_at, updated_at"

// Store provides PostgreSQL-backed persistence for profiles.
type Store struct {
	db *sql.DB
}

// NewStore creates a new profile store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new profile row. The id must be the identity UUID
// issued by the auth backend.
func (s *Store) Create(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO profiles (id, full_name, email, role, region, mobile, district, gender, dob)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		p.ID, p.FullName, p.Email, string(p.Role), p.Region,
		p.Mobile, p.District, p.Gender, p.DOB,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Get fetches the profile for one identity. Returns ErrNotFound when no
// row exists, which callers treat the same as an unauthenticated request.
func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// GetByEmail fetches a profile by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = $1`

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile by email: %w", err)
	}
	return p, nil
}

// UpdateRoleRegion changes the role and region of one profile and
// returns the updated row. Returns ErrNotFound when the profile does
// not exist.
func (s *Store) UpdateRoleRegion(ctx context.Context, id string, role auth.Role, region *string) (*Profile, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unrecognized role: %s", role)
	}
	if !role.RegionScoped() {
		region = nil
	}

	query := `
		UPDATE profiles
		SET role = $2, region = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, id, string(role), region))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// Delete removes one profile row. Returns ErrNotFound when no row was
// deleted.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns profiles visible through the given filter, newest first.
// Search matches full name, email and region.
func (s *Store) List(ctx context.Context, f scope.Filter, limit, offset int) ([]*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE 1=1`

	clause, args := f.Clause(1, "full_name", "email", "region")
	query += clause
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", f.NextArg(1), f.NextArg(1)+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var list []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return list, nil
}

// Count returns the number of profiles visible through the given filter.
func (s *Store) Count(ctx context.Context, f scope.Filter) (int64, error) {
	query := `SELECT COUNT(*) FROM profiles WHERE 1=1`
	clause, args := f.Clause(1, "full_name", "email", "region")
	query += clause

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p      Profile
		role   string
		region sql.NullString
		dob    sql.NullTime
	)
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &role, &region,
		&p.Mobile, &p.District, &p.Gender, &dob, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	parsed, ok := auth.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("profile %s has unrecognized role %q", p.ID, role)
	}
	p.Role = parsed
	if region.Valid {
		p.Region = &region.String
	}
	if dob.Valid {
		t := dob.Time
		p.DOB = &t
	}
	return &p, nil
}
