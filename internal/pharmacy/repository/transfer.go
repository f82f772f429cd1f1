package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
)

// Transfer request lifecycle states
const (
	TransferStatusPending   = "PENDING"
	TransferStatusCompleted = "COMPLETED"
	TransferStatusRejected  = "REJECTED"
)

// StockTransfer represents a transfer request between branches
type StockTransfer struct {
	ID             string     `db:"id" json:"id"`
	MedicineID     string     `db:"medicine_id" json:"medicine_id"`
	FromBranchID   string     `db:"from_branch_id" json:"from_branch_id"`
	ToBranchID     string     `db:"to_branch_id" json:"to_branch_id"`
	Quantity       int        `db:"quantity" json:"quantity"`
	Status         string     `db:"status" json:"status"`
	RequestDate    time.Time  `db:"request_date" json:"request_date"`
	CompletionDate *time.Time `db:"completion_date" json:"completion_date,omitempty"`
	RequestedBy    string     `db:"requested_by" json:"requested_by"`
	ProcessedBy    *string    `db:"processed_by" json:"processed_by,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
}

// IsPending reports whether the request is still editable
func (t *StockTransfer) IsPending() bool {
	return t.Status == TransferStatusPending
}

// TransferFilter narrows transfer listings. Zero-value fields match all.
type TransferFilter struct {
	FromBranchID string
	ToBranchID   string
	Status       string
}

// TransferRepository handles stock transfer persistence
type TransferRepository struct {
	db *database.DB
}

// NewTransferRepository creates a new transfer repository
func NewTransferRepository(db *database.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Create creates a new PENDING transfer request
func (r *TransferRepository) Create(ctx context.Context, transfer *StockTransfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}
	transfer.Status = TransferStatusPending

	query := `
		INSERT INTO stock_transfers (
			id, medicine_id, from_branch_id, to_branch_id, quantity, status,
			requested_by, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING request_date
	`

	err := r.db.QueryRowxContext(ctx, query,
		transfer.ID, transfer.MedicineID, transfer.FromBranchID, transfer.ToBranchID,
		transfer.Quantity, transfer.Status, transfer.RequestedBy, transfer.Notes,
	).Scan(&transfer.RequestDate)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a transfer by ID
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*StockTransfer, error) {
	var transfer StockTransfer
	query := `SELECT * FROM stock_transfers WHERE id = $1`
	if err := r.db.GetContext(ctx, &transfer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &transfer, nil
}

// GetByIDTx gets a transfer by ID inside a transaction, locking the row
func (r *TransferRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*StockTransfer, error) {
	var transfer StockTransfer
	query := `SELECT * FROM stock_transfers WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &transfer, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("transfer")
		}
		return nil, err
	}
	return &transfer, nil
}

// List lists transfers matching the filter, newest request first
func (r *TransferRepository) List(ctx context.Context, filter TransferFilter) ([]*StockTransfer, error) {
	query := `SELECT * FROM stock_transfers WHERE 1=1`
	args := []interface{}{}

	if filter.FromBranchID != "" {
		args = append(args, filter.FromBranchID)
		query += ` AND from_branch_id = $` + strconv.Itoa(len(args))
	}
	if filter.ToBranchID != "" {
		args = append(args, filter.ToBranchID)
		query += ` AND to_branch_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY request_date DESC`

	var transfers []*StockTransfer
	if err := r.db.SelectContext(ctx, &transfers, query, args...); err != nil {
		return nil, err
	}
	return transfers, nil
}

// UpdatePending updates quantity and notes of a transfer while it is still
// PENDING. A processed transfer is immutable.
func (r *TransferRepository) UpdatePending(ctx context.Context, transfer *StockTransfer) error {
	query := `
		UPDATE stock_transfers SET
			medicine_id = $2, from_branch_id = $3, to_branch_id = $4,
			quantity = $5, notes = $6
		WHERE id = $1 AND status = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		transfer.ID, transfer.MedicineID, transfer.FromBranchID, transfer.ToBranchID,
		transfer.Quantity, transfer.Notes, TransferStatusPending,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, transfer.ID); getErr != nil {
			return getErr
		}
		return errors.InvalidState("transfer has already been processed")
	}
	return nil
}

// DeletePending deletes a transfer while it is still PENDING
func (r *TransferRepository) DeletePending(ctx context.Context, id string) error {
	query := `DELETE FROM stock_transfers WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, TransferStatusPending)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return errors.InvalidState("transfer has already been processed")
	}
	return nil
}

// MarkProcessedTx flips a PENDING transfer to a terminal status inside the
// caller's transaction, stamping completion_date and processed_by.
func (r *TransferRepository) MarkProcessedTx(ctx context.Context, tx *sqlx.Tx, id, status, processedBy string) error {
	query := `
		UPDATE stock_transfers SET
			status = $2, completion_date = NOW(), processed_by = $3
		WHERE id = $1 AND status = $4
	`
	result, err := tx.ExecContext(ctx, query, id, status, processedBy, TransferStatusPending)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.InvalidState("transfer has already been processed")
	}
	return nil
}
