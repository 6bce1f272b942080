package model

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRaffleStatus_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    RaffleStatus
		to      RaffleStatus
		allowed bool
	}{
		{"created to accepted", RaffleStatusCreated, RaffleStatusAccepted, true},
		{"created to ended", RaffleStatusCreated, RaffleStatusEnded, false},
		{"accepted to closing requested", RaffleStatusAccepted, RaffleStatusClosingRequested, true},
		{"accepted to closing failed", RaffleStatusAccepted, RaffleStatusClosingFailed, true},
		{"accepted to cancel requested", RaffleStatusAccepted, RaffleStatusCancelRequested, true},
		{"accepted to ended directly", RaffleStatusAccepted, RaffleStatusEnded, false},
		{"closing requested to ended", RaffleStatusClosingRequested, RaffleStatusEnded, true},
		{"closing requested to early cashout", RaffleStatusClosingRequested, RaffleStatusEarlyCashout, true},
		{"closing requested back to accepted", RaffleStatusClosingRequested, RaffleStatusAccepted, false},
		{"closing failed retry", RaffleStatusClosingFailed, RaffleStatusClosingRequested, true},
		{"cancel requested to cancelled", RaffleStatusCancelRequested, RaffleStatusCancelled, true},
		{"ended is terminal", RaffleStatusEnded, RaffleStatusClosingRequested, false},
		{"cancelled is terminal", RaffleStatusCancelled, RaffleStatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Raffle{Status: tt.from}
			assert.Equal(t, tt.allowed, r.CanTransitionTo(tt.to))
		})
	}
}

func TestRaffleStatus_IsTerminal(t *testing.T) {
	assert.True(t, RaffleStatusEnded.IsTerminal())
	assert.True(t, RaffleStatusCancelled.IsTerminal())
	assert.True(t, RaffleStatusEarlyCashout.IsTerminal())
	assert.False(t, RaffleStatusAccepted.IsTerminal())
	assert.False(t, RaffleStatusClosingRequested.IsTerminal())
	assert.False(t, RaffleStatusClosingFailed.IsTerminal())
}

func TestRaffle_SplitCorrectness(t *testing.T) {
	tests := []struct {
		name        string
		raised      string
		feeBps      int64
		platformCut string
	}{
		{"five percent", "1000", 500, "50"},
		{"zero fee", "1000", 0, "0"},
		{"full fee", "1000", 10000, "1000"},
		{"floor rounding", "999", 250, "24"}, // 999*250/10000 = 24.975 -> 24
		{"tiny amount", "1", 9999, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Raffle{
				AmountRaised:   decimal.RequireFromString(tt.raised),
				PlatformFeeBps: tt.feeBps,
			}
			platform := r.PlatformCut()
			seller := r.SellerCut()

			assert.True(t, platform.Equal(decimal.RequireFromString(tt.platformCut)),
				"platform cut = %s", platform)
			// 分成之和必须精确等于筹集总额
			assert.True(t, platform.Add(seller).Equal(r.AmountRaised))
		})
	}
}

func TestRaffle_RequiredPayment(t *testing.T) {
	r := &Raffle{TicketPrice: decimal.RequireFromString("2.5")}
	assert.True(t, r.RequiredPayment(4).Equal(decimal.RequireFromString("10")))
	assert.True(t, r.RequiredPayment(0).Equal(decimal.Zero))
}

func TestRaffle_TerminalStatus(t *testing.T) {
	assert.Equal(t, RaffleStatusEnded, (&Raffle{}).TerminalStatus())
	assert.Equal(t, RaffleStatusEarlyCashout, (&Raffle{EarlyCashout: true}).TerminalStatus())
}

func TestEntryRecord_Blocks(t *testing.T) {
	// 三个买家分别买 10、20、70 张：区间 [1,10] [11,30] [31,100]
	records := []EntryRecord{
		{Index: 0, Entries: 10, CumulativeEntries: 10},
		{Index: 1, Entries: 20, CumulativeEntries: 30},
		{Index: 2, Entries: 70, CumulativeEntries: 100},
	}

	assert.Equal(t, int64(1), records[0].BlockStart())
	assert.Equal(t, int64(10), records[0].BlockEnd())
	assert.Equal(t, int64(11), records[1].BlockStart())
	assert.Equal(t, int64(30), records[1].BlockEnd())
	assert.Equal(t, int64(31), records[2].BlockStart())
	assert.Equal(t, int64(100), records[2].BlockEnd())

	assert.True(t, records[1].Contains(30))
	assert.False(t, records[1].Contains(31))
	assert.True(t, records[2].Contains(31))
}

func TestNormalizeRandom(t *testing.T) {
	// (raw mod snapshot) + 1，范围 [1, snapshot]
	assert.Equal(t, int64(1), NormalizeRandom(big.NewInt(0), 100))
	assert.Equal(t, int64(100), NormalizeRandom(big.NewInt(99), 100))
	assert.Equal(t, int64(1), NormalizeRandom(big.NewInt(100), 100))

	// uint256 量级的原始随机数
	raw, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	assert.True(t, ok)
	n := NormalizeRandom(raw, 100)
	assert.GreaterOrEqual(t, n, int64(1))
	assert.LessOrEqual(t, n, int64(100))

	// 无效快照
	assert.Equal(t, int64(0), NormalizeRandom(big.NewInt(42), 0))
}
