package engine

// Matcher turns crossed orders on a book into trades.
type Matcher interface {
	Match(book *OrderBook) []Trade
}

// PriceTimeMatcher matches the best bid against the best ask until the book
// no longer crosses. Trades execute at the sell order's limit price no
// matter which side arrived first.
//
// When the two best orders belong to the same trader matching halts: the
// pair cannot trade and deeper levels are not tried.
type PriceTimeMatcher struct{}

// Match runs the matching loop on book.
func (PriceTimeMatcher) Match(book *OrderBook) []Trade {
	trades := []Trade{}

	for {
		buy := book.bestBuy()
		sell := book.bestSell()
		if buy == nil || sell == nil {
			break
		}

		// Check if prices cross
		if buy.Price.LessThan(sell.Price) {
			break
		}

		// Self-trade prevention
		if buy.TraderID == sell.TraderID {
			break
		}

		qty := min(buy.Remaining, sell.Remaining)

		buy.execute(qty)
		sell.execute(qty)

		trade := Trade{
			ID:           book.newID(),
			BuyOrderID:   buy.ID,
			SellOrderID:  sell.ID,
			InstrumentID: book.InstrumentID,
			Price:        sell.Price,
			Quantity:     qty,
			ExecutedAt:   book.now(),
		}
		book.record(trade, buy, sell)
		trades = append(trades, trade)
	}

	return trades
}
