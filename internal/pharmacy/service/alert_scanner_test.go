package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/messaging"
	"github.com/pharmtrack/pharmtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

var stockDetailColumns = []string{
	"id", "medicine_id", "batch_id", "branch_id", "current_quantity", "last_updated",
	"medicine_name", "category", "batch_number", "expiry_date",
}

func newScannerFixture(t *testing.T) (*testutil.MockDB, *testutil.MockPublisher, *service.AlertScanner) {
	t.Helper()

	mock := testutil.NewMockDB(t)
	t.Cleanup(func() { mock.Close() })

	log := logger.New("pharmacy-service", "test")
	db := database.NewFromSqlx(mock.DB, log)
	pub := testutil.NewMockPublisher()

	scanner := service.NewAlertScanner(
		repository.NewStockRepository(db),
		repository.NewUserCacheRepository(db),
		repository.NewNotificationRepository(db),
		events.NewWithPublisher(pub, log),
		log,
	)
	return mock, pub, scanner
}

func TestAlertScanner_LowStockNotifiesAdmins(t *testing.T) {
	mock, pub, scanner := newScannerFixture(t)

	stockID := uuid.New().String()
	adminID := uuid.New().String()
	adminRole := "ADMIN"
	roles := pq.Array([]string{"ADMIN", "MANAGER"})

	// Low stock scan finds one depleted row
	mock.ExpectQuery("s.current_quantity <= $1").
		WithArgs(repository.LowStockThreshold).
		WillReturnRows(testutil.MockRows(stockDetailColumns...).
			AddRow(stockID, uuid.New().String(), uuid.New().String(), uuid.New().String(),
				2, time.Now(), "Ibuprofen 400mg", "Analgesic", "LOT-2031", time.Now().AddDate(1, 0, 0)))
	mock.ExpectQuery("FROM user_cache").
		WithArgs(roles).
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name", "branch_id").
			AddRow(adminID, "Greta", "Lang", nil, &adminRole, nil))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(adminID, repository.NotificationLowStock, stockID).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(testutil.AnyUUID{}, adminID, repository.NotificationLowStock, sqlmock.AnyArg(), stockID).
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))

	// Expiry scan comes back clean
	mock.ExpectQuery("INTERVAL").
		WithArgs(service.ExpiryWindowLong).
		WillReturnRows(testutil.MockRows(stockDetailColumns...))
	mock.ExpectQuery("FROM user_cache").
		WithArgs(roles).
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name", "branch_id"))

	err := scanner.ScanAll(context.Background())
	require.NoError(t, err)

	pub.AssertEventPublished(t, messaging.EventAlertGenerated)
	mock.ExpectationsWereMet(t)
}

func TestAlertScanner_SkipsDuplicateUnreadNotifications(t *testing.T) {
	mock, pub, scanner := newScannerFixture(t)

	stockID := uuid.New().String()
	adminID := uuid.New().String()
	adminRole := "MANAGER"
	roles := pq.Array([]string{"ADMIN", "MANAGER"})

	mock.ExpectQuery("s.current_quantity <= $1").
		WithArgs(repository.LowStockThreshold).
		WillReturnRows(testutil.MockRows(stockDetailColumns...).
			AddRow(stockID, uuid.New().String(), uuid.New().String(), uuid.New().String(),
				4, time.Now(), "Ibuprofen 400mg", "Analgesic", "LOT-2031", time.Now().AddDate(1, 0, 0)))
	mock.ExpectQuery("FROM user_cache").
		WithArgs(roles).
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name", "branch_id").
			AddRow(adminID, "Greta", "Lang", nil, &adminRole, nil))
	// The admin already has an unread notification for this row: no new insert
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(adminID, repository.NotificationLowStock, stockID).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	mock.ExpectQuery("INTERVAL").
		WithArgs(service.ExpiryWindowLong).
		WillReturnRows(testutil.MockRows(stockDetailColumns...))
	mock.ExpectQuery("FROM user_cache").
		WithArgs(roles).
		WillReturnRows(testutil.MockRows("user_id", "first_name", "last_name", "email", "role_name", "branch_id"))

	err := scanner.ScanAll(context.Background())
	require.NoError(t, err)

	// The alert event still fires, only the duplicate inbox entry is skipped
	pub.AssertEventPublished(t, messaging.EventAlertGenerated)
	mock.ExpectationsWereMet(t)
}
