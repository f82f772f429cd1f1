package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transferColumns = []string{
	"id", "medicine_id", "from_branch_id", "to_branch_id", "quantity", "status",
	"request_date", "completion_date", "requested_by", "processed_by", "notes",
}

func TestTransferRepository_Create_ForcesPending(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewTransferRepository(db)

	medicineID := uuid.New().String()
	fromID := uuid.New().String()
	toID := uuid.New().String()
	requestedBy := uuid.New().String()

	mock.ExpectQuery("INSERT INTO stock_transfers").
		WithArgs(testutil.AnyUUID{}, medicineID, fromID, toID, 25,
			repository.TransferStatusPending, requestedBy, nil).
		WillReturnRows(testutil.MockRows("request_date").AddRow(time.Now()))

	transfer := &repository.StockTransfer{
		MedicineID:   medicineID,
		FromBranchID: fromID,
		ToBranchID:   toID,
		Quantity:     25,
		// Callers cannot smuggle a terminal status into a new request
		Status:      repository.TransferStatusCompleted,
		RequestedBy: requestedBy,
	}
	err := repo.Create(context.Background(), transfer)
	require.NoError(t, err)

	assert.Equal(t, repository.TransferStatusPending, transfer.Status)
	assert.False(t, transfer.RequestDate.IsZero())
	mock.ExpectationsWereMet(t)
}

func TestTransferRepository_UpdatePending_AlreadyProcessed(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewTransferRepository(db)

	transfer := &repository.StockTransfer{
		ID:           uuid.New().String(),
		MedicineID:   uuid.New().String(),
		FromBranchID: uuid.New().String(),
		ToBranchID:   uuid.New().String(),
		Quantity:     10,
	}

	mock.ExpectExec("UPDATE stock_transfers").
		WithArgs(transfer.ID, transfer.MedicineID, transfer.FromBranchID, transfer.ToBranchID,
			10, nil, repository.TransferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT * FROM stock_transfers WHERE id = $1").
		WithArgs(transfer.ID).
		WillReturnRows(testutil.MockRows(transferColumns...).
			AddRow(transfer.ID, transfer.MedicineID, transfer.FromBranchID, transfer.ToBranchID,
				10, repository.TransferStatusCompleted, time.Now(), time.Now(),
				uuid.New().String(), uuid.New().String(), nil))

	err := repo.UpdatePending(context.Background(), transfer)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidState))
	mock.ExpectationsWereMet(t)
}

func TestTransferRepository_DeletePending_Missing(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewTransferRepository(db)

	id := uuid.New().String()
	mock.ExpectExec("DELETE FROM stock_transfers").
		WithArgs(id, repository.TransferStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT * FROM stock_transfers WHERE id = $1").
		WithArgs(id).
		WillReturnRows(testutil.MockRows(transferColumns...))

	err := repo.DeletePending(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mock.ExpectationsWereMet(t)
}

func TestTransferRepository_List_Filters(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewTransferRepository(db)

	fromID := uuid.New().String()

	mock.ExpectQuery("AND from_branch_id = $1 AND status = $2").
		WithArgs(fromID, repository.TransferStatusPending).
		WillReturnRows(testutil.MockRows(transferColumns...).
			AddRow(uuid.New().String(), uuid.New().String(), fromID, uuid.New().String(),
				5, repository.TransferStatusPending, time.Now(), nil,
				uuid.New().String(), nil, nil))

	transfers, err := repo.List(context.Background(), repository.TransferFilter{
		FromBranchID: fromID,
		Status:       repository.TransferStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, fromID, transfers[0].FromBranchID)
	mock.ExpectationsWereMet(t)
}
