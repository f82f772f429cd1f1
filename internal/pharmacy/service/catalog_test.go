package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/errors"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (*testutil.MockDB, *service.CatalogService) {
	t.Helper()

	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })

	log := logger.New("pharmacy-service", "test")
	db := database.NewFromSqlx(mock.DB, log)

	svc := service.NewCatalogService(
		repository.NewMedicineRepository(db),
		repository.NewBatchRepository(db),
		repository.NewBranchRepository(db),
		log,
	)
	return mock, svc
}

func TestCatalogService_CreateMedicine_RequiresName(t *testing.T) {
	mock, svc := newCatalogFixture(t)

	err := svc.CreateMedicine(context.Background(), &repository.Medicine{Name: "   "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mock.ExpectationsWereMet(t)
}

func TestCatalogService_CreateBatch(t *testing.T) {
	medicineID := uuid.New().String()

	t.Run("expiry must follow manufacture", func(t *testing.T) {
		mock, svc := newCatalogFixture(t)

		mock.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
			WithArgs(medicineID).
			WillReturnRows(testutil.MockRows(medicineColumns...).
				AddRow(medicineID, "Amoxicillin 500mg", nil, "Antibiotic", nil, nil,
					int64(899), true, time.Now(), time.Now()))

		batch := &repository.Batch{
			MedicineID:      medicineID,
			BatchNumber:     "LOT-1001",
			ManufactureDate: time.Now(),
			ExpiryDate:      time.Now().AddDate(0, -1, 0),
		}
		err := svc.CreateBatch(context.Background(), batch)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
		mock.ExpectationsWereMet(t)
	})

	t.Run("unknown medicine", func(t *testing.T) {
		mock, svc := newCatalogFixture(t)

		mock.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
			WithArgs(medicineID).
			WillReturnRows(testutil.MockRows(medicineColumns...))

		batch := &repository.Batch{
			MedicineID:      medicineID,
			BatchNumber:     "LOT-1002",
			ManufactureDate: time.Now().AddDate(0, -1, 0),
			ExpiryDate:      time.Now().AddDate(2, 0, 0),
		}
		err := svc.CreateBatch(context.Background(), batch)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		mock.ExpectationsWereMet(t)
	})

	t.Run("creates a valid batch", func(t *testing.T) {
		mock, svc := newCatalogFixture(t)

		mock.ExpectQuery("SELECT * FROM medicines WHERE id = $1").
			WithArgs(medicineID).
			WillReturnRows(testutil.MockRows(medicineColumns...).
				AddRow(medicineID, "Amoxicillin 500mg", nil, "Antibiotic", nil, nil,
					int64(899), true, time.Now(), time.Now()))
		mock.ExpectQuery("INSERT INTO batches").
			WithArgs(testutil.AnyUUID{}, medicineID, "LOT-1003",
				testutil.AnyTime{}, testutil.AnyTime{}, 120).
			WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

		batch := &repository.Batch{
			MedicineID:       medicineID,
			BatchNumber:      "LOT-1003",
			ManufactureDate:  time.Now().AddDate(0, -1, 0),
			ExpiryDate:       time.Now().AddDate(2, 0, 0),
			ReceivedQuantity: 120,
		}
		err := svc.CreateBatch(context.Background(), batch)
		require.NoError(t, err)
		assert.NotEmpty(t, batch.ID)
		mock.ExpectationsWereMet(t)
	})
}
