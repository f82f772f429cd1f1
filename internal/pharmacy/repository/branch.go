package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// Branch represents a pharmacy branch
type Branch struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Address      string    `db:"address" json:"address"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Email        *string   `db:"email" json:"email,omitempty"`
	IsMain       bool      `db:"is_main" json:"is_main"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BranchRepository handles branch persistence
type BranchRepository struct {
	db *database.DB
}

// NewBranchRepository creates a new branch repository
func NewBranchRepository(db *database.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// Create creates a new branch. When the branch is flagged as main, the
// previous main branch is cleared in the same transaction.
func (r *BranchRepository) Create(ctx context.Context, branch *Branch) error {
	if branch.ID == "" {
		branch.ID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if branch.IsMain {
			if _, err := tx.ExecContext(ctx, `UPDATE branches SET is_main = false WHERE is_main = true`); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO branches (id, name, address, contact_phone, email, is_main)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowxContext(ctx, query,
			branch.ID, branch.Name, branch.Address, branch.ContactPhone,
			branch.Email, branch.IsMain,
		).Scan(&branch.CreatedAt, &branch.UpdatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}
		return nil
	})
}

// GetByID gets a branch by ID
func (r *BranchRepository) GetByID(ctx context.Context, id string) (*Branch, error) {
	var branch Branch
	query := `SELECT * FROM branches WHERE id = $1`
	if err := r.db.GetContext(ctx, &branch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("branch")
		}
		return nil, err
	}
	return &branch, nil
}

// GetMain gets the main branch
func (r *BranchRepository) GetMain(ctx context.Context) (*Branch, error) {
	var branch Branch
	query := `SELECT * FROM branches WHERE is_main = true`
	if err := r.db.GetContext(ctx, &branch, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("main branch")
		}
		return nil, err
	}
	return &branch, nil
}

// List lists all branches ordered by name
func (r *BranchRepository) List(ctx context.Context) ([]*Branch, error) {
	var branches []*Branch
	query := `SELECT * FROM branches ORDER BY name`
	if err := r.db.SelectContext(ctx, &branches, query); err != nil {
		return nil, err
	}
	return branches, nil
}

// Update updates a branch. Promoting a branch to main clears the previous
// main in the same transaction, keeping at most one main branch at all times.
func (r *BranchRepository) Update(ctx context.Context, branch *Branch) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if branch.IsMain {
			if _, err := tx.ExecContext(ctx,
				`UPDATE branches SET is_main = false WHERE is_main = true AND id <> $1`, branch.ID); err != nil {
				return err
			}
		}

		query := `
			UPDATE branches SET
				name = $2, address = $3, contact_phone = $4, email = $5,
				is_main = $6, updated_at = NOW()
			WHERE id = $1
		`
		result, err := tx.ExecContext(ctx, query,
			branch.ID, branch.Name, branch.Address, branch.ContactPhone,
			branch.Email, branch.IsMain,
		)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("branch")
		}
		return nil
	})
}

// SetMain makes the given branch the main branch, clearing the previous main
// atomically.
func (r *BranchRepository) SetMain(ctx context.Context, id string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE branches SET is_main = false WHERE is_main = true AND id <> $1`, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE branches SET is_main = true, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			return errors.NotFound("branch")
		}
		return nil
	})
}

// Delete deletes a branch. Rejected while the branch still holds stock.
func (r *BranchRepository) Delete(ctx context.Context, id string) error {
	var held int
	countQuery := `SELECT COUNT(*) FROM stocks WHERE branch_id = $1 AND current_quantity > 0`
	if err := r.db.GetContext(ctx, &held, countQuery, id); err != nil {
		return err
	}
	if held > 0 {
		return errors.Conflict("branch still has stock on hand")
	}

	query := `DELETE FROM branches WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("branch")
	}

	return nil
}
