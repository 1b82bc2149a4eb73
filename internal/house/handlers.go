// HTTP surface of the ledger. Caller identity travels in the request
// body ("caller"); authorization against the owner/coordinator roles
// happens in the ledger operations, not here.
package house

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/access"
	"github.com/luckhouse/wager-engine/internal/dice"
	"github.com/luckhouse/wager-engine/internal/lottery"
	"github.com/luckhouse/wager-engine/internal/model"
	"github.com/luckhouse/wager-engine/internal/oracle"
	"github.com/luckhouse/wager-engine/internal/registry"
	"github.com/luckhouse/wager-engine/internal/store"
	"github.com/luckhouse/wager-engine/internal/treasury"
)

// Register mounts every ledger route on the given router.
func (l *Ledger) Register(r chi.Router) {
	r.Get("/ws", l.hub.HandleWS)

	r.Post("/treasury/fund", l.handleFund)
	r.Post("/treasury/withdraw", l.handleWithdraw)
	r.Get("/treasury/balances", l.handleListBalances)
	r.Get("/treasury/balances/{token}", l.handleGetBalance)
	r.Get("/events", l.handleListEvents)

	r.Post("/dice/bets", l.handlePlaceBet)
	r.Get("/dice/bets/{betID}", l.handleGetBet)
	r.Post("/dice/bets/{betID}/refund", l.handleRefundBet)
	r.Get("/dice/payout", l.handleQuotePayout)

	r.Post("/lotteries", l.handleCreateLottery)
	r.Get("/lotteries/{lotteryID}", l.handleGetLottery)
	r.Post("/lotteries/{lotteryID}/tickets", l.handleBuyTickets)
	r.Post("/lotteries/{lotteryID}/draw", l.handleRequestDraw)
	r.Post("/lotteries/{lotteryID}/refunds", l.handleClaimRefund)
	r.Get("/lotteries/{lotteryID}/entries", l.handleListEntries)
	r.Get("/lotteries/{lotteryID}/entries/{index}", l.handleGetEntry)

	r.Get("/users/{user}/lotteries", l.handleActiveLotteries)
	r.Get("/users/{user}/dice/refundable", l.handleRefundableBets)

	r.Post("/oracle/fulfill", l.handleFulfill)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/house-edge", l.handleSetHouseEdge)
		r.Post("/tokens", l.handleSetTokenConfig)
		r.Get("/tokens/{token}", l.handleGetTokenConfig)
		r.Post("/vrf-config", l.handleSetVRFConfig)
		r.Get("/vrf-config", l.handleGetVRFConfig)
		r.Post("/coordinator", l.handleSetCoordinator)
		r.Post("/ownership/transfer", l.handleTransferOwnership)
		r.Post("/ownership/accept", l.handleAcceptOwnership)
	})
}

// --- Treasury handlers ---

type fundRequest struct {
	Caller string          `json:"caller"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

func (l *Ledger) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.Fund(r.Context(), req.Caller, req.Token, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	bal, err := l.Balance(r.Context(), req.Token)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

type withdrawRequest struct {
	Caller string          `json:"caller"`
	Token  string          `json:"token"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

func (l *Ledger) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.Withdraw(r.Context(), req.Caller, req.Token, req.To, req.Amount); err != nil {
		writeLedgerError(w, err)
		return
	}
	bal, err := l.Balance(r.Context(), req.Token)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (l *Ledger) handleListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := l.Balances(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if balances == nil {
		balances = []model.Balance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (l *Ledger) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := l.Balance(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (l *Ledger) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := l.Events(r.Context(), limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Dice handlers ---

type placeBetRequest struct {
	Caller    string          `json:"caller"`
	Token     string          `json:"token"`
	Stake     decimal.Decimal `json:"stake"`
	RollUnder uint64          `json:"roll_under"`
}

func (l *Ledger) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}
	bet, err := l.PlaceDiceBet(r.Context(), req.Caller, req.Token, req.Stake, req.RollUnder)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

func (l *Ledger) handleGetBet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "betID")
	if !ok {
		return
	}
	bet, err := l.DiceBet(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

type callerRequest struct {
	Caller string `json:"caller"`
}

func (l *Ledger) handleRefundBet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "betID")
	if !ok {
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	bet, err := l.RefundDiceBet(r.Context(), req.Caller, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

func (l *Ledger) handleQuotePayout(w http.ResponseWriter, r *http.Request) {
	stake, err := decimal.NewFromString(r.URL.Query().Get("stake"))
	if err != nil {
		writeError(w, "invalid stake", http.StatusBadRequest)
		return
	}
	rollUnder, err := strconv.ParseUint(r.URL.Query().Get("roll_under"), 10, 64)
	if err != nil {
		writeError(w, "invalid roll_under", http.StatusBadRequest)
		return
	}
	payout, err := l.QuoteDicePayout(stake, rollUnder)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"stake":            stake.String(),
		"roll_under":       strconv.FormatUint(rollUnder, 10),
		"potential_payout": payout.String(),
	})
}

func (l *Ledger) handleRefundableBets(w http.ResponseWriter, r *http.Request) {
	bets, err := l.RefundableDiceBets(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if bets == nil {
		bets = []model.DiceBet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

// --- Lottery handlers ---

type createLotteryRequest struct {
	Caller      string          `json:"caller"`
	Token       string          `json:"token"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	StartTime   int64           `json:"start_time"` // unix seconds
	EndTime     int64           `json:"end_time"`   // unix seconds
}

func (l *Ledger) handleCreateLottery(w http.ResponseWriter, r *http.Request) {
	var req createLotteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lot, err := l.CreateLottery(r.Context(), req.Caller, req.Token, req.TicketPrice, req.StartTime, req.EndTime)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lot)
}

func (l *Ledger) handleGetLottery(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	lot, err := l.Lottery(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

type buyTicketsRequest struct {
	Caller string `json:"caller"`
	Count  int    `json:"count"`
}

func (l *Ledger) handleBuyTickets(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	var req buyTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}
	lot, err := l.BuyLotteryTickets(r.Context(), req.Caller, id, req.Count)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (l *Ledger) handleRequestDraw(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	lot, err := l.RequestLotteryDraw(r.Context(), req.Caller, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (l *Ledger) handleClaimRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}
	amount, err := l.ClaimLotteryRefund(r.Context(), req.Caller, id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"refunded": amount.String()})
}

func (l *Ledger) handleListEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	lot, err := l.Lottery(r.Context(), id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	entries := lot.Entries
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (l *Ledger) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "lotteryID")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, "invalid entry index", http.StatusBadRequest)
		return
	}
	buyer, err := l.LotteryEntry(r.Context(), id, index)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"buyer": buyer})
}

func (l *Ledger) handleActiveLotteries(w http.ResponseWriter, r *http.Request) {
	lots, err := l.ActiveLotteries(r.Context(), chi.URLParam(r, "user"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if lots == nil {
		lots = []model.Lottery{}
	}
	writeJSON(w, http.StatusOK, lots)
}

// --- Oracle handler ---

type fulfillRequest struct {
	Caller      string   `json:"caller"`
	RequestID   string   `json:"request_id"`
	RandomWords []uint64 `json:"random_words"`
}

func (l *Ledger) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req fulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := l.DeliverRandomness(r.Context(), req.Caller, req.RequestID, req.RandomWords)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Admin handlers ---

type houseEdgeRequest struct {
	Caller string `json:"caller"`
	Bps    uint64 `json:"bps"`
}

func (l *Ledger) handleSetHouseEdge(w http.ResponseWriter, r *http.Request) {
	var req houseEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.SetHouseEdge(r.Context(), req.Caller, req.Bps); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"bps": req.Bps})
}

type tokenConfigRequest struct {
	Caller  string          `json:"caller"`
	Token   string          `json:"token"`
	Enabled bool            `json:"enabled"`
	MinBet  decimal.Decimal `json:"min_bet"`
	MaxBet  decimal.Decimal `json:"max_bet"`
}

func (l *Ledger) handleSetTokenConfig(w http.ResponseWriter, r *http.Request) {
	var req tokenConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := model.TokenConfig{
		Token:   req.Token,
		Enabled: req.Enabled,
		MinBet:  req.MinBet,
		MaxBet:  req.MaxBet,
	}
	if err := l.SetTokenConfig(r.Context(), req.Caller, cfg); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (l *Ledger) handleGetTokenConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := l.TokenConfig(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type vrfConfigRequest struct {
	Caller string `json:"caller"`
	model.VRFConfig
}

func (l *Ledger) handleSetVRFConfig(w http.ResponseWriter, r *http.Request) {
	var req vrfConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.SetVRFConfig(r.Context(), req.Caller, req.VRFConfig); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req.VRFConfig)
}

func (l *Ledger) handleGetVRFConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, l.VRFConfig())
}

type coordinatorRequest struct {
	Caller      string `json:"caller"`
	Coordinator string `json:"coordinator"`
}

func (l *Ledger) handleSetCoordinator(w http.ResponseWriter, r *http.Request) {
	var req coordinatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.SetCoordinator(r.Context(), req.Caller, req.Coordinator); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"coordinator": req.Coordinator})
}

type transferOwnershipRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
}

func (l *Ledger) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	var req transferOwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.TransferOwnership(r.Context(), req.Caller, req.To); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pending_owner": req.To})
}

func (l *Ledger) handleAcceptOwnership(w http.ResponseWriter, r *http.Request) {
	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := l.AcceptOwnership(r.Context(), req.Caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": req.Caller})
}

// --- Helpers ---

func parseID(w http.ResponseWriter, r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeError(w, "invalid "+param, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeLedgerError maps domain sentinels onto HTTP status codes.
func writeLedgerError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, access.ErrZeroIdentity),
		errors.Is(err, ErrZeroAddress),
		errors.Is(err, ErrInvalidEdge),
		errors.Is(err, ErrInvalidTokenBounds),
		errors.Is(err, treasury.ErrInvalidAmount),
		errors.Is(err, dice.ErrInvalidStake),
		errors.Is(err, dice.ErrInvalidThreshold),
		errors.Is(err, dice.ErrInvalidEdge),
		errors.Is(err, dice.ErrTokenDisabled),
		errors.Is(err, lottery.ErrInvalidWindow),
		errors.Is(err, lottery.ErrInvalidPrice),
		errors.Is(err, lottery.ErrTokenDisabled),
		errors.Is(err, lottery.ErrExceedsLimit),
		errors.Is(err, lottery.ErrEntryOutOfRange),
		errors.Is(err, oracle.ErrNoWords):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, treasury.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrReentrant),
		errors.Is(err, treasury.ErrInsufficientFunds),
		errors.Is(err, registry.ErrUnknownRequest),
		errors.Is(err, dice.ErrAlreadyResolved),
		errors.Is(err, dice.ErrNotEligible),
		errors.Is(err, lottery.ErrNotSelling),
		errors.Is(err, lottery.ErrNotYetEnded),
		errors.Is(err, lottery.ErrAlreadyRequested),
		errors.Is(err, lottery.ErrAlreadyDrawn),
		errors.Is(err, lottery.ErrCancelled),
		errors.Is(err, lottery.ErrNoEntries),
		errors.Is(err, lottery.ErrNotEligible),
		errors.Is(err, lottery.ErrAlreadyClaimed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
