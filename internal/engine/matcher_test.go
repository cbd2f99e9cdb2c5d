package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleMatch(t *testing.T) {
	f := newFixture(t, BookConfig{})
	buy := f.add(t, "A", BUY, "100", 10)
	sell := f.add(t, "B", SELL, "100", 10)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(10), trades[0].Quantity)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, buy.ID, trades[0].BuyOrderID)
	assert.Equal(t, sell.ID, trades[0].SellOrderID)
	assert.Equal(t, testInstrument, trades[0].InstrumentID)

	assert.Equal(t, FILLED, buy.Status)
	assert.Equal(t, FILLED, sell.Status)
	assert.Equal(t, 0, f.book.Len())

	snap := f.book.Snapshot()
	assert.Empty(t, snap.Buys)
	assert.Empty(t, snap.Sells)
}

func TestPartialFill(t *testing.T) {
	f := newFixture(t, BookConfig{})
	buy := f.add(t, "A", BUY, "100", 15)
	sell := f.add(t, "B", SELL, "100", 10)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.Equal(t, int64(10), trades[0].Quantity)

	assert.Equal(t, int64(5), buy.Remaining)
	assert.Equal(t, PARTIALLY_FILLED, buy.Status)
	assert.Equal(t, int64(10), buy.Filled())
	assert.Equal(t, FILLED, sell.Status)
	assert.Equal(t, int64(0), sell.Remaining)

	best, ok := f.book.BestBuy()
	require.True(t, ok)
	assert.Equal(t, buy.ID, best.ID)
}

func TestNoMatchWhenBookDoesNotCross(t *testing.T) {
	f := newFixture(t, BookConfig{})
	buy := f.add(t, "A", BUY, "90", 10)
	sell := f.add(t, "B", SELL, "100", 10)

	assert.Empty(t, f.book.MatchOrders())
	assert.Equal(t, OPEN, buy.Status)
	assert.Equal(t, OPEN, sell.Status)
}

func TestSelfTradeHaltsMatching(t *testing.T) {
	f := newFixture(t, BookConfig{})
	buy := f.add(t, "A", BUY, "100", 10)
	sell := f.add(t, "A", SELL, "90", 10)

	assert.Empty(t, f.book.MatchOrders())
	assert.Equal(t, OPEN, buy.Status)
	assert.Equal(t, OPEN, sell.Status)
}

func TestSelfTradeDoesNotSkipToDeeperLevels(t *testing.T) {
	f := newFixture(t, BookConfig{})
	f.add(t, "A", BUY, "101", 10)
	f.add(t, "B", BUY, "100", 10)
	f.add(t, "A", SELL, "99", 10)

	// B at 100 would cross, but the top pair is the same trader.
	assert.Empty(t, f.book.MatchOrders())
}

func TestPricePriorityOverTimePriority(t *testing.T) {
	f := newFixture(t, BookConfig{})
	early := f.add(t, "A", BUY, "100", 5)
	late := f.add(t, "A", BUY, "101", 5)
	f.add(t, "B", SELL, "100", 5)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.Equal(t, late.ID, trades[0].BuyOrderID)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, OPEN, early.Status)
	assert.Equal(t, FILLED, late.Status)
}

func TestCancelledOrderNeverTrades(t *testing.T) {
	f := newFixture(t, BookConfig{})
	cancelled := f.add(t, "A", BUY, "100", 10)
	_, err := f.book.CancelOrder(cancelled.ID)
	require.NoError(t, err)

	resting := f.add(t, "C", BUY, "99", 10)
	f.add(t, "B", SELL, "99", 10)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.Equal(t, resting.ID, trades[0].BuyOrderID)
	for _, tr := range trades {
		assert.NotEqual(t, cancelled.ID, tr.BuyOrderID)
	}
	assert.Equal(t, CANCELLED, cancelled.Status)
	assert.Equal(t, int64(10), cancelled.Remaining)
}

func TestFIFOPriority(t *testing.T) {
	f := newFixture(t, BookConfig{})
	s1 := f.add(t, "B", SELL, "150.50", 100)
	s2 := f.add(t, "C", SELL, "150.50", 100)
	s3 := f.add(t, "D", SELL, "150.50", 100)
	f.add(t, "A", BUY, "150.50", 150)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 2)
	assert.Equal(t, s1.ID, trades[0].SellOrderID)
	assert.Equal(t, s2.ID, trades[1].SellOrderID)
	assert.Equal(t, int64(100), trades[0].Quantity)
	assert.Equal(t, int64(50), trades[1].Quantity)

	assert.Equal(t, PARTIALLY_FILLED, s2.Status)
	assert.Equal(t, OPEN, s3.Status)
}

func TestWalkThroughLevelsAtSellPrices(t *testing.T) {
	f := newFixture(t, BookConfig{})
	f.add(t, "B", SELL, "101", 3)
	f.add(t, "C", SELL, "100", 3)
	f.add(t, "D", SELL, "105", 3)
	buy := f.add(t, "A", BUY, "102", 10)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, trades[1].Price.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, int64(4), buy.Remaining)
	assert.Equal(t, PARTIALLY_FILLED, buy.Status)

	best, ok := f.book.BestSell()
	require.True(t, ok)
	assert.True(t, best.Price.Equal(decimal.NewFromInt(105)))
}

func TestIncomingSellTradesAtItsOwnPrice(t *testing.T) {
	f := newFixture(t, BookConfig{})
	f.add(t, "A", BUY, "110", 10)
	f.add(t, "B", SELL, "100", 10)

	// The maker is the buy, but the sell price is still used.
	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestTradeIDsAndTimestampsAreInjected(t *testing.T) {
	f := newFixture(t, BookConfig{})
	f.add(t, "A", BUY, "100", 1)
	f.add(t, "B", SELL, "100", 1)

	trades := f.book.MatchOrders()
	require.Len(t, trades, 1)
	assert.Equal(t, "T1", trades[0].ID)
	assert.Equal(t, int64(1700000000), trades[0].ExecutedAt.Unix())
}

func TestDefaultTradeIDsAreUnique(t *testing.T) {
	book := NewOrderBook(testInstrument, BookConfig{})
	for i := uint64(1); i <= 4; i++ {
		side, trader := BUY, "A"
		if i%2 == 0 {
			side, trader = SELL, "B"
		}
		require.NoError(t, book.AddOrder(&Order{
			ID: "o" + string(rune('0'+i)), InstrumentID: testInstrument, TraderID: trader,
			Side: side, Price: decimal.NewFromInt(100), Quantity: 1, Remaining: 1, Status: OPEN, Seq: i,
		}))
	}

	trades := book.MatchOrders()
	require.Len(t, trades, 2)
	assert.NotEmpty(t, trades[0].ID)
	assert.NotEqual(t, trades[0].ID, trades[1].ID)
}
