package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"riskpilot/internal/logger"
	"riskpilot/internal/pkg/symbol"
)

// handleCommand dispatches the operator's slash commands. Unknown
// commands get a short usage reply instead of silence, so a typo is
// visible immediately.
func (in *Intake) handleCommand(ctx context.Context, text string) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/start":
		if err := in.store.SetTradingEnabled(true); err != nil {
			in.tg.Send(fmt.Sprintf("Error: %v", err))
			return
		}
		in.tg.Send("Trading enabled.")

	case "/stop":
		if err := in.store.SetTradingEnabled(false); err != nil {
			in.tg.Send(fmt.Sprintf("Error: %v", err))
			return
		}
		in.tg.Send("Trading disabled. Open positions are untouched.")

	case "/risk":
		if len(args) == 0 {
			in.tg.Send(fmt.Sprintf("Current risk: %.2f$ per trade.\nUsage: /risk <usd>", in.store.GlobalRisk()))
			return
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(args[0], ",", "."), 64)
		if err != nil {
			in.tg.Send("Usage: /risk <usd>")
			return
		}
		if err := in.store.SetGlobalRisk(amount); err != nil {
			in.tg.Send(fmt.Sprintf("Error: %v", err))
			return
		}
		in.tg.Send(fmt.Sprintf("Risk set to %.2f$ per trade.", amount))

	case "/note":
		if len(args) < 2 {
			in.tg.Send("Usage: /note <SYMBOL> <text>")
			return
		}
		sym := symbol.Normalize(args[0])
		noteText := strings.Join(args[1:], " ")
		if err := in.store.AddComment(sym, noteText, in.now()); err != nil {
			in.tg.Send(fmt.Sprintf("Error: %v", err))
			return
		}
		in.tg.Send(fmt.Sprintf("Note saved for %s.", sym))

	case "/close":
		if len(args) == 0 {
			in.tg.Send("Usage: /close <SYMBOL>")
			return
		}
		sym := symbol.Normalize(args[0])
		size, err := in.trader.ClosePositionMarket(ctx, sym)
		if err != nil {
			in.tg.Send(fmt.Sprintf("Close %s failed: %v", sym, err))
			return
		}
		if size == 0 {
			in.tg.Send(fmt.Sprintf("%s is already flat.", sym))
			return
		}
		in.tg.Send(fmt.Sprintf("%s closed at market (qty %v).", sym, size))

	case "/tp":
		if len(args) == 0 {
			in.tg.Send("Usage: /tp <SYMBOL>")
			return
		}
		sym := symbol.Normalize(args[0])
		msg, err := in.trader.PlaceTPLadder(ctx, sym)
		if err != nil {
			in.tg.Send(fmt.Sprintf("TP ladder %s failed: %v", sym, err))
			return
		}
		in.tg.Send(msg)

	case "/pos":
		in.sendPositions(ctx)

	case "/orders":
		in.sendOrders(ctx)

	case "/report":
		in.sendBalance(ctx)

	default:
		in.tg.Send("Commands: /start /stop /risk /note /close /tp /pos /orders /report")
	}
}

func (in *Intake) sendPositions(ctx context.Context) {
	positions, err := in.api.GetPositions(ctx, "")
	if err != nil {
		in.tg.Send(fmt.Sprintf("Error: %v", err))
		return
	}
	var lines []string
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s qty=%v entry=%v SL=%v PnL=%+.2f$",
			p.Symbol, p.Side, p.Size, p.AvgPrice, p.StopLoss, p.UnrealisedPnl))
	}
	if len(lines) == 0 {
		in.tg.Send("No open positions.")
		return
	}
	in.tg.Send(strings.Join(lines, "\n"))
}

func (in *Intake) sendOrders(ctx context.Context) {
	orders, err := in.api.GetOpenOrders(ctx, "")
	if err != nil {
		in.tg.Send(fmt.Sprintf("Error: %v", err))
		return
	}
	var lines []string
	for _, o := range orders {
		if o.ReduceOnly {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %v @ %v", o.Symbol, o.Side, o.Qty, o.Price))
	}
	if len(lines) == 0 {
		in.tg.Send("No resting entry orders.")
		return
	}
	in.tg.Send(strings.Join(lines, "\n"))
}

func (in *Intake) sendBalance(ctx context.Context) {
	acct, err := in.api.GetWalletAccount(ctx)
	if err != nil {
		in.tg.Send(fmt.Sprintf("Error: %v", err))
		return
	}
	in.tg.Send(fmt.Sprintf("Balance: %.2f$\nUnrealized PnL: %.2f$", acct.TotalEquity, acct.TotalPerpUPL))
	logger.Infof("Balance report sent on demand")
}

