package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

// setupMockDB 创建 mock 数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		Conn:       db,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func TestRaffleRepository_GetByID(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)
	now := time.Now().UnixMilli()

	rows := sqlmock.NewRows([]string{
		"id", "status", "seller", "winner", "max_entries", "entries_length",
		"ticket_price", "entries_per_ticket", "platform_fee_bps", "expires_at",
		"created_at", "updated_at",
	}).AddRow(
		int64(7), int(model.RaffleStatusAccepted), "0xseller", "0xseller",
		int64(100), int64(30), "1.500000000000000000", int64(10), int64(250),
		now+3600000, now, now,
	)

	mock.ExpectQuery(`SELECT \* FROM "raffles" WHERE id = \$1 ORDER BY "raffles"\."id" LIMIT \$2`).
		WithArgs(int64(7), 1).
		WillReturnRows(rows)

	raffle, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), raffle.ID)
	assert.Equal(t, model.RaffleStatusAccepted, raffle.Status)
	assert.Equal(t, int64(30), raffle.EntriesLength)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaffleRepository_GetByID_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "raffles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRaffleNotFound)
}

func TestRaffleRepository_UpdateStatus(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), 7, model.RaffleStatusCreated, model.RaffleStatusAccepted)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaffleRepository_UpdateStatus_Conflict(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	// 当前状态与期望不符，零行受影响
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateStatus(context.Background(), 7, model.RaffleStatusAccepted, model.RaffleStatusClosingRequested)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestRaffleRepository_AddEntries(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	mock.ExpectExec(`UPDATE raffles`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddEntries(context.Background(), 7, 10, "15")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaffleRepository_AddEntries_CapacityGuard(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	// 数据库侧容量守卫拒绝，零行受影响
	mock.ExpectExec(`UPDATE raffles`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddEntries(context.Background(), 7, 1000, "1500")
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestRaffleRepository_MarkSettled(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MarkSettled(context.Background(), 7, "0xwinner", 31, model.RaffleStatusEnded)
	assert.NoError(t, err)
}

func TestRaffleRepository_MarkSettled_AlreadySettled(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffles" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.MarkSettled(context.Background(), 7, "0xwinner", 31, model.RaffleStatusEnded)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestRaffleRepository_ListExpired(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewRaffleRepository(db)
	now := time.Now().UnixMilli()

	rows := sqlmock.NewRows([]string{"id", "status", "expires_at"}).
		AddRow(int64(1), int(model.RaffleStatusAccepted), now-1000).
		AddRow(int64(2), int(model.RaffleStatusAccepted), now-500)

	mock.ExpectQuery(`SELECT \* FROM "raffles" WHERE expires_at < \$1 AND status = \$2`).
		WillReturnRows(rows)

	raffles, err := repo.ListExpired(context.Background(), model.RaffleStatusAccepted, now, 100)
	require.NoError(t, err)
	assert.Len(t, raffles, 2)
}
