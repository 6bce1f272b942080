package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimalFromString(t *testing.T) {
	assert.True(t, decimalFromString("1.5").Equal(decimal.RequireFromString("1.5")))
	assert.True(t, decimalFromString("garbage").IsZero())
}

func TestClaimRepository_Get(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewClaimRepository(db)

	rows := sqlmock.NewRows([]string{"id", "raffle_id", "buyer", "entries", "amount_spent", "claimed"}).
		AddRow(int64(1), int64(7), "0xbuyer", int64(20), "30.000000000000000000", false)

	mock.ExpectQuery(`SELECT \* FROM "raffle_claims" WHERE raffle_id = \$1 AND buyer = \$2`).
		WillReturnRows(rows)

	account, err := repo.Get(context.Background(), 7, "0xbuyer")
	require.NoError(t, err)
	assert.Equal(t, int64(20), account.Entries)
	assert.False(t, account.Claimed)
}

func TestClaimRepository_Get_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewClaimRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "raffle_claims"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), 7, "0xnobody")
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestClaimRepository_MarkClaimed(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewClaimRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffle_claims" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.MarkClaimed(context.Background(), 7, "0xbuyer")
	assert.NoError(t, err)
}

func TestClaimRepository_MarkClaimed_AlreadyClaimed(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewClaimRepository(db)

	// 零行受影响后回查区分不存在与重复认领
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffle_claims" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rows := sqlmock.NewRows([]string{"id", "raffle_id", "buyer", "entries", "claimed"}).
		AddRow(int64(1), int64(7), "0xbuyer", int64(20), true)
	mock.ExpectQuery(`SELECT \* FROM "raffle_claims"`).
		WillReturnRows(rows)

	err := repo.MarkClaimed(context.Background(), 7, "0xbuyer")
	assert.ErrorIs(t, err, ErrClaimAlreadyClaimed)
}

func TestClaimRepository_MarkClaimed_NotFound(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewClaimRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "raffle_claims" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectQuery(`SELECT \* FROM "raffle_claims"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.MarkClaimed(context.Background(), 7, "0xnobody")
	assert.ErrorIs(t, err, ErrClaimNotFound)
}
