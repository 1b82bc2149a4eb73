package house

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/dice"
	"github.com/luckhouse/wager-engine/internal/metrics"
	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/oracle"
)

const timeLayout = time.RFC3339

func unixTime(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

// --- Dice operations ---

// PlaceDiceBet escrows the stake, locks the liability, and opens the
// randomness request for a new dice wager.
func (l *Ledger) PlaceDiceBet(ctx context.Context, caller, token string, stake decimal.Decimal, rollUnder uint64) (*model.DiceBet, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	bet, err := l.dice.PlaceBet(ctx, caller, token, stake, rollUnder, l.edgeBps.Load())
	if err != nil {
		return nil, err
	}
	l.emit(ctx, model.EventDicePlayed, caller, map[string]string{
		"dice_id":          fmt.Sprintf("%d", bet.ID),
		"token":            token,
		"stake":            stake.String(),
		"roll_under":       fmt.Sprintf("%d", rollUnder),
		"potential_payout": bet.PotentialPayout.String(),
		"request_id":       bet.RequestID,
	})
	metrics.DiceBetsPlaced.WithLabelValues(token).Inc()
	l.syncFundGauges(ctx, token)
	return bet, nil
}

// RefundDiceBet processes a timeout refund for a stuck bet. Callable by
// anyone; eligibility is time-gated inside the engine.
func (l *Ledger) RefundDiceBet(ctx context.Context, caller string, betID uint64) (*model.DiceBet, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	bet, err := l.dice.RefundStuck(ctx, betID)
	if err != nil {
		return nil, err
	}
	l.emit(ctx, model.EventRefundClaimed, caller, map[string]string{
		"game":    string(model.GameDice),
		"dice_id": fmt.Sprintf("%d", bet.ID),
		"player":  bet.Player,
		"amount":  bet.Stake.String(),
	})
	metrics.RefundsClaimed.WithLabelValues(string(model.GameDice)).Inc()
	l.syncFundGauges(ctx, bet.Token)
	return bet, nil
}

// QuoteDicePayout computes the potential payout for a stake/threshold
// pair at the current house edge. Read-only; no guard.
func (l *Ledger) QuoteDicePayout(stake decimal.Decimal, rollUnder uint64) (decimal.Decimal, error) {
	return dice.Payout(stake, rollUnder, l.edgeBps.Load())
}

// DiceBet returns one bet by ID.
func (l *Ledger) DiceBet(ctx context.Context, id uint64) (*model.DiceBet, error) {
	return l.dice.Bet(ctx, id)
}

// RefundableDiceBets lists a player's pending bets old enough to refund.
func (l *Ledger) RefundableDiceBets(ctx context.Context, player string) ([]model.DiceBet, error) {
	return l.dice.RefundableBets(ctx, player)
}

// --- Lottery operations ---

// CreateLottery opens a new lottery. Owner-only.
func (l *Ledger) CreateLottery(ctx context.Context, caller, token string, ticketPrice decimal.Decimal, startTime, endTime int64) (*model.Lottery, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	if err := l.access.RequireOwner(caller); err != nil {
		return nil, err
	}
	lot, err := l.lottery.Create(ctx, token, ticketPrice, unixTime(startTime), unixTime(endTime))
	if err != nil {
		return nil, err
	}
	l.emit(ctx, model.EventLotteryCreated, caller, map[string]string{
		"lottery_id":   fmt.Sprintf("%d", lot.ID),
		"token":        token,
		"ticket_price": ticketPrice.String(),
		"start_time":   lot.StartTime.Format(timeLayout),
		"end_time":     lot.EndTime.Format(timeLayout),
	})
	return lot, nil
}

// BuyLotteryTickets sells tickets to the caller inside the window.
func (l *Ledger) BuyLotteryTickets(ctx context.Context, caller string, lotteryID uint64, count int) (*model.Lottery, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	lot, err := l.lottery.BuyTickets(ctx, lotteryID, caller, count)
	if err != nil {
		return nil, err
	}
	l.emit(ctx, model.EventTicketsPurchased, caller, map[string]string{
		"lottery_id": fmt.Sprintf("%d", lot.ID),
		"count":      fmt.Sprintf("%d", count),
		"cost":       lot.TicketPrice.Mul(decimal.NewFromInt(int64(count))).String(),
		"pot":        lot.Pot.String(),
	})
	metrics.TicketsSold.WithLabelValues(lot.Token).Add(float64(count))
	l.syncFundGauges(ctx, lot.Token)
	return lot, nil
}

// RequestLotteryDraw opens the randomness request for a closed lottery.
// Permissionless.
func (l *Ledger) RequestLotteryDraw(ctx context.Context, caller string, lotteryID uint64) (*model.Lottery, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	lot, err := l.lottery.RequestDraw(ctx, lotteryID)
	if err != nil {
		return nil, err
	}
	l.emit(ctx, model.EventLotteryDrawRequested, caller, map[string]string{
		"lottery_id": fmt.Sprintf("%d", lot.ID),
		"request_id": lot.RequestID,
		"entries":    fmt.Sprintf("%d", len(lot.Entries)),
	})
	return lot, nil
}

// ClaimLotteryRefund returns the caller's ticket cost for a lottery whose
// draw never landed.
func (l *Ledger) ClaimLotteryRefund(ctx context.Context, caller string, lotteryID uint64) (decimal.Decimal, error) {
	if err := l.enter(); err != nil {
		return decimal.Zero, err
	}
	defer l.exit()

	lot, amount, err := l.lottery.ClaimRefund(ctx, lotteryID, caller)
	if err != nil {
		return decimal.Zero, err
	}
	l.emit(ctx, model.EventRefundClaimed, caller, map[string]string{
		"game":       string(model.GameLottery),
		"lottery_id": fmt.Sprintf("%d", lot.ID),
		"amount":     amount.String(),
	})
	metrics.RefundsClaimed.WithLabelValues(string(model.GameLottery)).Inc()
	l.syncFundGauges(ctx, lot.Token)
	return amount, nil
}

// Lottery returns one lottery by ID.
func (l *Ledger) Lottery(ctx context.Context, id uint64) (*model.Lottery, error) {
	return l.lottery.Lottery(ctx, id)
}

// LotteryEntry returns the buyer occupying one entry slot.
func (l *Ledger) LotteryEntry(ctx context.Context, id uint64, index int) (string, error) {
	return l.lottery.Entry(ctx, id, index)
}

// ActiveLotteries lists undrawn lotteries the user holds entries in.
func (l *Ledger) ActiveLotteries(ctx context.Context, user string) ([]model.Lottery, error) {
	return l.lottery.ActiveLotteries(ctx, user)
}

// --- Oracle delivery ---

// DeliverRandomness applies an external fulfillment. The coordinator (or
// the owner, when delegation is enabled) is the only accepted caller.
func (l *Ledger) DeliverRandomness(ctx context.Context, caller, requestID string, words []uint64) (*oracle.Result, error) {
	if err := l.enter(); err != nil {
		return nil, err
	}
	defer l.exit()

	res, err := l.adapter.Deliver(ctx, caller, requestID, words)
	if err != nil {
		metrics.OracleDeliveries.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.OracleDeliveries.WithLabelValues("applied").Inc()

	switch res.Game {
	case model.GameDice:
		bet := res.Bet
		l.emit(ctx, model.EventDiceResolved, caller, map[string]string{
			"dice_id":    fmt.Sprintf("%d", bet.ID),
			"player":     bet.Player,
			"roll":       fmt.Sprintf("%d", bet.Roll),
			"win":        fmt.Sprintf("%t", bet.Win),
			"payout":     res.Payout.String(),
			"request_id": requestID,
		})
		outcome := "lose"
		if bet.Win {
			outcome = "win"
		}
		metrics.DiceBetsResolved.WithLabelValues(outcome).Inc()
		l.syncFundGauges(ctx, bet.Token)

	case model.GameLottery:
		lot := res.Lottery
		l.emit(ctx, model.EventLotteryDrawn, caller, map[string]string{
			"lottery_id":  fmt.Sprintf("%d", lot.ID),
			"winner":      lot.Winner,
			"payout":      res.Payout.String(),
			"fee":         res.Fee.String(),
			"random_word": fmt.Sprintf("%d", res.Word),
			"request_id":  requestID,
		})
		metrics.LotteriesDrawn.Inc()
		l.syncFundGauges(ctx, lot.Token)
	}
	return res, nil
}
