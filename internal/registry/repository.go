package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for representation persistence.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a representation by resource id.
	// Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Representation, error)

	// List retrieves all representations.
	List(ctx context.Context) ([]Representation, error)

	// ListByType retrieves all representations of one resource type.
	ListByType(ctx context.Context, typeTag string) ([]Representation, error)

	// Create inserts a new representation.
	// Returns ErrExists if one with the same id already exists.
	Create(ctx context.Context, rep *Representation) error

	// Update modifies an existing representation.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, rep *Representation) error

	// Delete removes a representation by id.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState updates only the state map of a representation.
	// Optimised for frequent refreshes from reconciliation cycles.
	UpdateState(ctx context.Context, id string, state map[string]any) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const representationColumns = `
	id, type, name, parent_id, domain, platform, state, created_at, updated_at`

// GetByID retrieves a representation by resource id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Representation, error) {
	query := `SELECT` + representationColumns + `
		FROM representations
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	rep, err := scanRepresentation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying representation by id: %w", err)
	}
	return rep, nil
}

// List retrieves all representations.
func (r *SQLiteRepository) List(ctx context.Context) ([]Representation, error) {
	query := `SELECT` + representationColumns + `
		FROM representations
		ORDER BY type, name`

	return r.queryRepresentations(ctx, query)
}

// ListByType retrieves all representations of one resource type.
func (r *SQLiteRepository) ListByType(ctx context.Context, typeTag string) ([]Representation, error) {
	query := `SELECT` + representationColumns + `
		FROM representations
		WHERE type = ?
		ORDER BY name`

	return r.queryRepresentations(ctx, query, typeTag)
}

// Create inserts a new representation.
func (r *SQLiteRepository) Create(ctx context.Context, rep *Representation) error {
	stateJSON, err := json.Marshal(rep.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = now
	}
	rep.UpdatedAt = now

	query := `
		INSERT INTO representations (
			id, type, name, parent_id, domain, platform, state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rep.ID,
		rep.Type,
		rep.Name,
		rep.ParentID,
		rep.Domain,
		rep.Platform,
		string(stateJSON),
		rep.CreatedAt.Format(time.RFC3339),
		rep.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting representation: %w", err)
	}
	return nil
}

// Update modifies an existing representation.
func (r *SQLiteRepository) Update(ctx context.Context, rep *Representation) error {
	stateJSON, err := json.Marshal(rep.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	rep.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE representations
		SET type = ?, name = ?, parent_id = ?, domain = ?, platform = ?,
			state = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rep.Type,
		rep.Name,
		rep.ParentID,
		rep.Domain,
		rep.Platform,
		string(stateJSON),
		rep.UpdatedAt.Format(time.RFC3339),
		rep.ID,
	)
	if err != nil {
		return fmt.Errorf("updating representation: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes a representation by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM representations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting representation: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateState updates only the state map of a representation.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	query := `
		UPDATE representations
		SET state = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating representation state: %w", err)
	}
	return requireRowAffected(result)
}

func (r *SQLiteRepository) queryRepresentations(ctx context.Context, query string, args ...any) ([]Representation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying representations: %w", err)
	}
	defer rows.Close()

	var reps []Representation
	for rows.Next() {
		rep, err := scanRepresentation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning representation: %w", err)
		}
		reps = append(reps, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating representations: %w", err)
	}
	return reps, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRepresentation(row rowScanner) (*Representation, error) {
	var (
		rep       Representation
		parentID  sql.NullString
		stateJSON string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&rep.ID,
		&rep.Type,
		&rep.Name,
		&parentID,
		&rep.Domain,
		&rep.Platform,
		&stateJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID.Valid {
		rep.ParentID = &parentID.String
	}
	if stateJSON != "" && stateJSON != "null" {
		if err := json.Unmarshal([]byte(stateJSON), &rep.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state: %w", err)
		}
	}
	if rep.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rep.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rep, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
