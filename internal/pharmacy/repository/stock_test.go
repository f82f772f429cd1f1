package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*testutil.MockDB, *database.DB) {
	t.Helper()
	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })
	return mock, database.NewFromSqlx(mock.DB, logger.New("pharmacy-service", "test"))
}

func TestStockRepository_Create(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewStockRepository(db)

	medicineID := uuid.New().String()
	batchID := uuid.New().String()
	branchID := uuid.New().String()

	mock.ExpectQuery("INSERT INTO stocks").
		WithArgs(testutil.AnyUUID{}, medicineID, batchID, branchID, 40).
		WillReturnRows(testutil.MockRows("last_updated").AddRow(time.Now()))

	stock := &repository.Stock{
		MedicineID:      medicineID,
		BatchID:         batchID,
		BranchID:        branchID,
		CurrentQuantity: 40,
	}
	err := repo.Create(context.Background(), stock)
	require.NoError(t, err)

	assert.NotEmpty(t, stock.ID)
	assert.False(t, stock.LastUpdated.IsZero())
	mock.ExpectationsWereMet(t)
}

func TestStockRepository_GetQuantity(t *testing.T) {
	branchID := uuid.New().String()
	medicineID := uuid.New().String()

	t.Run("sums holdings across batches", func(t *testing.T) {
		mock, db := newTestDB(t)
		repo := repository.NewStockRepository(db)

		mock.ExpectQuery("SELECT SUM(current_quantity) FROM stocks").
			WithArgs(branchID, medicineID).
			WillReturnRows(testutil.MockRows("sum").AddRow(80))

		total, err := repo.GetQuantity(context.Background(), branchID, medicineID)
		require.NoError(t, err)
		assert.Equal(t, 80, total)
		mock.ExpectationsWereMet(t)
	})

	t.Run("no rows means zero", func(t *testing.T) {
		mock, db := newTestDB(t)
		repo := repository.NewStockRepository(db)

		mock.ExpectQuery("SELECT SUM(current_quantity) FROM stocks").
			WithArgs(branchID, medicineID).
			WillReturnRows(testutil.MockRows("sum").AddRow(nil))

		total, err := repo.GetQuantity(context.Background(), branchID, medicineID)
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		mock.ExpectationsWereMet(t)
	})
}

func TestStockRepository_AdjustQuantity(t *testing.T) {
	stockID := uuid.New().String()
	medicineID := uuid.New().String()
	batchID := uuid.New().String()
	branchID := uuid.New().String()

	stockColumns := []string{"id", "medicine_id", "batch_id", "branch_id", "current_quantity", "last_updated"}

	t.Run("applies delta and returns updated row", func(t *testing.T) {
		mock, db := newTestDB(t)
		repo := repository.NewStockRepository(db)

		mock.ExpectQuery("UPDATE stocks").
			WithArgs(stockID, -15).
			WillReturnRows(testutil.MockRows(stockColumns...).
				AddRow(stockID, medicineID, batchID, branchID, 25, time.Now()))

		stock, err := repo.AdjustQuantity(context.Background(), stockID, -15)
		require.NoError(t, err)
		assert.Equal(t, 25, stock.CurrentQuantity)
		mock.ExpectationsWereMet(t)
	})

	t.Run("over-debit fails without touching the row", func(t *testing.T) {
		mock, db := newTestDB(t)
		repo := repository.NewStockRepository(db)

		// Guarded UPDATE matches nothing, second lookup shows the row exists
		mock.ExpectQuery("UPDATE stocks").
			WithArgs(stockID, -100).
			WillReturnRows(testutil.MockRows(stockColumns...))
		mock.ExpectQuery("SELECT * FROM stocks WHERE id = $1").
			WithArgs(stockID).
			WillReturnRows(testutil.MockRows(stockColumns...).
				AddRow(stockID, medicineID, batchID, branchID, 40, time.Now()))

		_, err := repo.AdjustQuantity(context.Background(), stockID, -100)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrInsufficientStock))
		mock.ExpectationsWereMet(t)
	})

	t.Run("missing row is not found", func(t *testing.T) {
		mock, db := newTestDB(t)
		repo := repository.NewStockRepository(db)

		mock.ExpectQuery("UPDATE stocks").
			WithArgs(stockID, 5).
			WillReturnRows(testutil.MockRows(stockColumns...))
		mock.ExpectQuery("SELECT * FROM stocks WHERE id = $1").
			WithArgs(stockID).
			WillReturnRows(testutil.MockRows(stockColumns...))

		_, err := repo.AdjustQuantity(context.Background(), stockID, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		mock.ExpectationsWereMet(t)
	})
}

func TestStockRepository_FindLowStock(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewStockRepository(db)

	detailColumns := []string{
		"id", "medicine_id", "batch_id", "branch_id", "current_quantity", "last_updated",
		"medicine_name", "category", "batch_number", "expiry_date",
	}

	mock.ExpectQuery("FROM stocks s").
		WithArgs(repository.LowStockThreshold).
		WillReturnRows(testutil.MockRows(detailColumns...).
			AddRow(uuid.New().String(), uuid.New().String(), uuid.New().String(), uuid.New().String(),
				3, time.Now(), "Ibuprofen 400mg", "Analgesic", "LOT-2031", time.Now().AddDate(0, 6, 0)))

	rows, err := repo.FindLowStock(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].CurrentQuantity)
	assert.Equal(t, "Ibuprofen 400mg", rows[0].MedicineName)
	mock.ExpectationsWereMet(t)
}

func TestStockRepository_Delete_NotFound(t *testing.T) {
	mock, db := newTestDB(t)
	repo := repository.NewStockRepository(db)

	id := uuid.New().String()
	mock.ExpectExec("DELETE FROM stocks").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mock.ExpectationsWereMet(t)
}
