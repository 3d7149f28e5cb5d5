package bybit

import (
	"riskpilot/internal/pkg/convert"

	"github.com/tidwall/gjson"
)

// One decode function per payload shape. Nothing outside this file
// touches raw exchange JSON.

func f(res gjson.Result, path string) float64 {
	return convert.ToFloat64(res.Get(path).Value())
}

func decodeTicker(res gjson.Result) (Ticker, error) {
	list := res.Get("list").Array()
	if len(list) == 0 {
		return Ticker{}, ErrSymbolNotFound
	}
	item := list[0]
	return Ticker{
		Symbol:    item.Get("symbol").String(),
		LastPrice: f(item, "lastPrice"),
	}, nil
}

func decodeInstrumentRules(res gjson.Result) (InstrumentRules, error) {
	list := res.Get("list").Array()
	if len(list) == 0 {
		return InstrumentRules{}, ErrSymbolNotFound
	}
	item := list[0]
	lot := item.Get("lotSizeFilter")
	qtyStep := f(lot, "qtyStep")
	rules := InstrumentRules{
		QtyStep: qtyStep,
		// minOrderQty defaults to one step when the exchange omits it.
		MinOrderQty: convert.ToFloat64Default(lot.Get("minOrderQty").Value(), qtyStep),
		MaxOrderQty: f(lot, "maxOrderQty"),
		TickSize:    f(item.Get("priceFilter"), "tickSize"),
	}
	return rules, nil
}

func decodeWalletAccount(res gjson.Result) (WalletAccount, error) {
	list := res.Get("list").Array()
	if len(list) == 0 {
		return WalletAccount{}, errEmptyWallet
	}
	item := list[0]
	acct := WalletAccount{
		TotalAvailableBalance: f(item, "totalAvailableBalance"),
		HasAvailableBalance:   convert.HasValue(item.Get("totalAvailableBalance").Value()),
		TotalEquity:           f(item, "totalEquity"),
		TotalInitialMargin:    f(item, "totalInitialMargin"),
		TotalPerpUPL:          f(item, "totalPerpUPL"),
	}
	for _, c := range item.Get("coin").Array() {
		acct.Coins = append(acct.Coins, WalletCoin{
			Coin:            c.Get("coin").String(),
			WalletBalance:   f(c, "walletBalance"),
			TotalPositionIM: f(c, "totalPositionIM"),
			TotalOrderIM:    f(c, "totalOrderIM"),
			Locked:          f(c, "locked"),
			Bonus:           f(c, "bonus"),
		})
	}
	return acct, nil
}

func decodePositions(res gjson.Result) []Position {
	var out []Position
	for _, item := range res.Get("list").Array() {
		out = append(out, Position{
			Symbol:        item.Get("symbol").String(),
			Side:          item.Get("side").String(),
			Size:          f(item, "size"),
			AvgPrice:      f(item, "avgPrice"),
			MarkPrice:     f(item, "markPrice"),
			StopLoss:      f(item, "stopLoss"),
			UnrealisedPnl: f(item, "unrealisedPnl"),
			CreatedTime:   convert.ToInt64(item.Get("createdTime").Value()),
		})
	}
	return out
}

func decodeOpenOrders(res gjson.Result) []OpenOrder {
	var out []OpenOrder
	for _, item := range res.Get("list").Array() {
		out = append(out, OpenOrder{
			Symbol:      item.Get("symbol").String(),
			Side:        item.Get("side").String(),
			OrderID:     item.Get("orderId").String(),
			OrderType:   item.Get("orderType").String(),
			Price:       f(item, "price"),
			Qty:         f(item, "qty"),
			ReduceOnly:  item.Get("reduceOnly").Bool(),
			CreatedTime: convert.ToInt64(item.Get("createdTime").Value()),
		})
	}
	return out
}

func decodeClosedPnL(res gjson.Result) []ClosedPnL {
	var out []ClosedPnL
	for _, item := range res.Get("list").Array() {
		out = append(out, ClosedPnL{
			Symbol:    item.Get("symbol").String(),
			ClosedPnl: f(item, "closedPnl"),
		})
	}
	return out
}

func decodeExecutions(res gjson.Result) []Execution {
	var out []Execution
	for _, item := range res.Get("list").Array() {
		out = append(out, Execution{
			Symbol:   item.Get("symbol").String(),
			ExecTime: convert.ToInt64(item.Get("execTime").Value()),
		})
	}
	return out
}
