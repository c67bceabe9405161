package submissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harborlight/beacon/pkg/scope"
)

const submissionColumns = "id, type, status, name, email, phone, region, district, description, created_at, updated_at"

// Store provides PostgreSQL-backed persistence for submissions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new submission store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a submission from a public form. Victim reports open
// in the "new" status; other types never carry one.
func (s *Store) Create(ctx context.Context, sub *Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	var status interface{}
	if sub.Type.StatusBearing() {
		sub.Status = StatusNew
		status = string(StatusNew)
	} else {
		sub.Status = ""
	}

	query := `
		INSERT INTO submissions (type, status, name, email, phone, region, district, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		string(sub.Type), status, sub.Name, sub.Email, sub.Phone,
		sub.Region, sub.District, sub.Description,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// Get fetches one submission by id.
func (s *Store) Get(ctx context.Context, id int64) (*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// List returns submissions visible through the filter, newest first.
// typeFilter narrows to one submission type when non-empty. Search
// matches name, email and region.
func (s *Store) List(ctx context.Context, f scope.Filter, typeFilter Type, limit, offset int) ([]*Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE 1=1`

	clause, args := f.Clause(1, "name", "email", "region")
	query += clause
	n := f.NextArg(1)

	if typeFilter != "" {
		query += fmt.Sprintf(" AND type = $%d", n)
		args = append(args, string(typeFilter))
		n++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", n, n+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var list []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		list = append(list, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return list, nil
}

// Count returns the number of submissions visible through the filter.
func (s *Store) Count(ctx context.Context, f scope.Filter, typeFilter Type) (int64, error) {
	query := `SELECT COUNT(*) FROM submissions WHERE 1=1`
	clause, args := f.Clause(1, "name", "email", "region")
	query += clause

	if typeFilter != "" {
		query += fmt.Sprintf(" AND type = $%d", f.NextArg(1))
		args = append(args, string(typeFilter))
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

// UpdateStatus moves a victim report through the triage workflow. The
// type predicate is part of the UPDATE itself, so a volunteer
// application can never slip through; zero rows updated is then
// disambiguated into ErrNotFound or ErrNotStatusBearing.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status) (*Submission, error) {
	query := `
		UPDATE submissions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND type = $3
		RETURNING ` + submissionColumns

	sub, err := scanSubmission(s.db.QueryRowContext(ctx, query, id, string(status), string(TypeVictimReport)))
	if err == sql.ErrNoRows {
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if !existing.Type.StatusBearing() {
			return nil, ErrNotStatusBearing
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update submission status: %w", err)
	}
	return sub, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var (
		sub     Submission
		subType string
		status  sql.NullString
	)
	err := row.Scan(&sub.ID, &subType, &status, &sub.Name, &sub.Email, &sub.Phone,
		&sub.Region, &sub.District, &sub.Description, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}

	sub.Type = Type(subType)
	if !sub.Type.Valid() {
		return nil, fmt.Errorf("submission %d has unrecognized type %q", sub.ID, subType)
	}
	if status.Valid {
		sub.Status = Status(status.String)
	}
	return &sub, nil
}
