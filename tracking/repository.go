// Copyright 2025 The SafeMap Authors
// SPDX-License-Identifier: Apache-2.0

package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/touristsafety/safemap/cluster"
)

// Repository handles persistence of tourists and their positions.
type Repository interface {
	// CreateSchema creates the tourists table
	CreateSchema(ctx context.Context) error

	// Register stores a new tourist. When the name is already registered
	// nothing is written, t is overwritten with the stored row and created is
	// false.
	Register(ctx context.Context, t *Tourist) (created bool, err error)

	// BulkRegister registers many tourists in one transaction and returns how
	// many were new.
	BulkRegister(ctx context.Context, tourists []*Tourist) (int, error)

	// Get returns the tourist registered under name
	Get(ctx context.Context, name string) (*Tourist, error)

	// List returns all tourists in registration order
	List(ctx context.Context) ([]*Tourist, error)

	// ListByCells returns the tourists whose resolution 8 h3 cell is in cells
	ListByCells(ctx context.Context, cells []int64) ([]*Tourist, error)

	// UpdateLocation moves a registered tourist and returns the new state
	UpdateLocation(ctx context.Context, u LocationUpdate) (*Tourist, error)

	// Count returns the number of registered tourists
	Count(ctx context.Context) (int, error)
}

type sqlTouristRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository creates a tourist repository on top of a DuckDB connection.
func NewRepository(db *sql.DB) Repository {
	return &sqlTouristRepository{
		db: db,
		now: func() time.Time {
			// DuckDB keeps microseconds
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

const touristColumns = `id, name, group_label, lat, lng, status, safety_score, battery, h3_res8, created_at, updated_at`

func (r *sqlTouristRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tourists (
			id VARCHAR PRIMARY KEY,
			name VARCHAR NOT NULL UNIQUE,
			group_label VARCHAR NOT NULL DEFAULT '',
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			status VARCHAR NOT NULL,
			safety_score INTEGER NOT NULL,
			battery INTEGER NOT NULL,
			h3_res8 BIGINT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating tourists table: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insert writes t unless the name is taken and reports whether a row was added.
func (r *sqlTouristRepository) insert(ctx context.Context, db execer, t *Tourist) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if err := t.computeH3(); err != nil {
		return false, err
	}

	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt

	result, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tourists (`+touristColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.Name,
		t.Group,
		t.Lat,
		t.Lng,
		string(t.Status),
		t.SafetyScore,
		t.Battery,
		t.H3Res8,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting tourist %q: %w", t.Name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting tourist %q: %w", t.Name, err)
	}

	return n > 0, nil
}

func (r *sqlTouristRepository) Register(ctx context.Context, t *Tourist) (bool, error) {
	created, err := r.insert(ctx, r.db, t)
	if err != nil || created {
		return created, err
	}

	existing, err := r.Get(ctx, t.Name)
	if err != nil {
		return false, err
	}

	*t = *existing

	return false, nil
}

func (r *sqlTouristRepository) BulkRegister(ctx context.Context, tourists []*Tourist) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning bulk register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	added := 0

	for _, t := range tourists {
		created, err := r.insert(ctx, tx, t)
		if err != nil {
			return 0, err
		}

		if created {
			added++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk register: %w", err)
	}

	return added, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTourist(row rowScanner) (*Tourist, error) {
	var (
		t      Tourist
		status string
		cell   sql.NullInt64
	)

	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Group,
		&t.Lat,
		&t.Lng,
		&status,
		&t.SafetyScore,
		&t.Battery,
		&cell,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = cluster.Status(status)

	if cell.Valid {
		t.H3Res8 = cell.Int64
	}

	return &t, nil
}

func (r *sqlTouristRepository) Get(ctx context.Context, name string) (*Tourist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+touristColumns+` FROM tourists WHERE name = ?`, name)

	t, err := scanTourist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}

	if err != nil {
		return nil, fmt.Errorf("getting tourist %q: %w", name, err)
	}

	return t, nil
}

func (r *sqlTouristRepository) list(ctx context.Context, query string, args ...any) ([]*Tourist, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tourists := make([]*Tourist, 0, 16)

	for rows.Next() {
		t, err := scanTourist(rows)
		if err != nil {
			return nil, err
		}

		tourists = append(tourists, t)
	}

	return tourists, rows.Err()
}

func (r *sqlTouristRepository) List(ctx context.Context) ([]*Tourist, error) {
	tourists, err := r.list(ctx, `SELECT `+touristColumns+` FROM tourists ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("listing tourists: %w", err)
	}

	return tourists, nil
}

func (r *sqlTouristRepository) ListByCells(ctx context.Context, cells []int64) ([]*Tourist, error) {
	if len(cells) == 0 {
		return []*Tourist{}, nil
	}

	ph := make([]string, len(cells))
	args := make([]any, len(cells))

	for i, c := range cells {
		ph[i] = "?"
		args[i] = c
	}

	// only placeholders are interpolated
	query := fmt.Sprintf(
		`SELECT `+touristColumns+` FROM tourists WHERE h3_res8 IN (%s) ORDER BY created_at, name`,
		strings.Join(ph, ","),
	)

	tourists, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tourists by cell: %w", err)
	}

	return tourists, nil
}

func (r *sqlTouristRepository) UpdateLocation(ctx context.Context, u LocationUpdate) (*Tourist, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	t, err := r.Get(ctx, u.Name)
	if err != nil {
		return nil, err
	}

	u.apply(t)

	if err := t.computeH3(); err != nil {
		return nil, err
	}

	t.UpdatedAt = r.now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE tourists
		SET lat = ?, lng = ?, battery = ?, status = ?, h3_res8 = ?, updated_at = ?
		WHERE name = ?
	`,
		t.Lat,
		t.Lng,
		t.Battery,
		string(t.Status),
		t.H3Res8,
		t.UpdatedAt,
		t.Name,
	)
	if err != nil {
		return nil, fmt.Errorf("updating location of %q: %w", t.Name, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return nil, notFound(t.Name)
	}

	return t, nil
}

func (r *sqlTouristRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tourists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tourists: %w", err)
	}

	return n, nil
}
