package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall-labs/windfall-raffle/internal/model"
)

func sampleRaffle() *model.Raffle {
	return &model.Raffle{
		ID:          1001,
		Status:      model.RaffleStatusAccepted,
		Seller:      "0xseller",
		MaxEntries:  100,
		TicketPrice: decimal.RequireFromString("1.5"),
		ExpiresAt:   1700000000000,
	}
}

func TestRaffleCache_SetRaffle(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRaffleCache(db)
	ctx := context.Background()
	raffle := sampleRaffle()
	data, _ := json.Marshal(raffle)

	t.Run("custom ttl", func(t *testing.T) {
		mock.ExpectSet("windfall:raffle:1001", data, 30*time.Second).SetVal("OK")
		require.NoError(t, c.SetRaffle(ctx, raffle, 30*time.Second))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("default ttl", func(t *testing.T) {
		mock.ExpectSet("windfall:raffle:1001", data, DefaultRaffleTTL).SetVal("OK")
		require.NoError(t, c.SetRaffle(ctx, raffle, 0))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRaffleCache_GetRaffle(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRaffleCache(db)
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		raffle := sampleRaffle()
		data, _ := json.Marshal(raffle)
		mock.ExpectGet("windfall:raffle:1001").SetVal(string(data))

		got, err := c.GetRaffle(ctx, 1001)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, raffle.ID, got.ID)
		assert.Equal(t, raffle.Status, got.Status)
		assert.True(t, got.TicketPrice.Equal(raffle.TicketPrice))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet("windfall:raffle:404").RedisNil()

		got, err := c.GetRaffle(ctx, 404)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRaffleCache_InvalidateRaffle(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRaffleCache(db)

	mock.ExpectDel("windfall:raffle:1001").SetVal(1)
	mock.ExpectDel("windfall:raffle:entries:1001").SetVal(1)

	require.NoError(t, c.InvalidateRaffle(context.Background(), 1001))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaffleCache_Entries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRaffleCache(db)
	ctx := context.Background()

	entries := []*model.EntryRecord{
		{RaffleID: 1001, Index: 0, Buyer: "0xbuyer", Entries: 10, CumulativeEntries: 10},
	}
	data, _ := json.Marshal(entries)

	mock.ExpectSet("windfall:raffle:entries:1001", data, DefaultEntriesTTL).SetVal("OK")
	require.NoError(t, c.SetEntries(ctx, 1001, entries, 0))

	mock.ExpectGet("windfall:raffle:entries:1001").SetVal(string(data))
	got, err := c.GetEntries(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].CumulativeEntries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
