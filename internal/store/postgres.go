package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/luckhouse/wager-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// InitSchema creates the ledger tables when they do not exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS balances (
			token     TEXT PRIMARY KEY,
			available NUMERIC NOT NULL,
			locked    NUMERIC NOT NULL
		);
		CREATE TABLE IF NOT EXISTS token_configs (
			token   TEXT PRIMARY KEY,
			enabled BOOLEAN NOT NULL,
			min_bet NUMERIC NOT NULL,
			max_bet NUMERIC NOT NULL
		);
		CREATE TABLE IF NOT EXISTS settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS counters (
			name  TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS dice_bets (
			id               BIGINT PRIMARY KEY,
			player           TEXT NOT NULL,
			token            TEXT NOT NULL,
			stake            NUMERIC NOT NULL,
			roll_under       BIGINT NOT NULL,
			potential_payout NUMERIC NOT NULL,
			resolved         BOOLEAN NOT NULL,
			refunded         BOOLEAN NOT NULL,
			win              BOOLEAN NOT NULL,
			roll             BIGINT NOT NULL,
			request_id       TEXT NOT NULL,
			placed_at        TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS dice_bets_player_idx ON dice_bets (player, id);
		CREATE TABLE IF NOT EXISTS lotteries (
			id              BIGINT PRIMARY KEY,
			token           TEXT NOT NULL,
			ticket_price    NUMERIC NOT NULL,
			start_time      TIMESTAMPTZ NOT NULL,
			end_time        TIMESTAMPTZ NOT NULL,
			pot             NUMERIC NOT NULL,
			entries         JSONB NOT NULL,
			winner          TEXT NOT NULL,
			draw_requested  BOOLEAN NOT NULL,
			draw_request_at TIMESTAMPTZ NOT NULL,
			drawn           BOOLEAN NOT NULL,
			cancelled       BOOLEAN NOT NULL,
			request_id      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS refund_claims (
			lottery_id BIGINT NOT NULL,
			claimer    TEXT NOT NULL,
			PRIMARY KEY (lottery_id, claimer)
		);
		CREATE TABLE IF NOT EXISTS pending_requests (
			request_id TEXT PRIMARY KEY,
			game       TEXT NOT NULL,
			entity_id  BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS events (
			id     TEXT PRIMARY KEY,
			type   TEXT NOT NULL,
			actor  TEXT NOT NULL,
			fields JSONB NOT NULL,
			ts     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS events_ts_idx ON events (ts DESC);
	`)
	return err
}

func (s *PostgresStore) GetBalance(ctx context.Context, token string) (*model.Balance, error) {
	var available, locked string
	err := s.pool.QueryRow(ctx,
		`SELECT available::TEXT, locked::TEXT FROM balances WHERE token = $1`, token).
		Scan(&available, &locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.Balance{Token: token, Available: decimal.Zero, Locked: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance %s: %w", token, err)
	}

	b := &model.Balance{Token: token}
	b.Available, _ = decimal.NewFromString(available)
	b.Locked, _ = decimal.NewFromString(locked)
	return b, nil
}

func (s *PostgresStore) PutBalance(ctx context.Context, b *model.Balance) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO balances (token, available, locked)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC)
		 ON CONFLICT (token) DO UPDATE SET available = $2::NUMERIC, locked = $3::NUMERIC`,
		b.Token, b.Available.String(), b.Locked.String(),
	)
	return err
}

func (s *PostgresStore) ListBalances(ctx context.Context) ([]model.Balance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT token, available::TEXT, locked::TEXT FROM balances ORDER BY token`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Balance
	for rows.Next() {
		var b model.Balance
		var available, locked string
		if err := rows.Scan(&b.Token, &available, &locked); err != nil {
			return nil, err
		}
		b.Available, _ = decimal.NewFromString(available)
		b.Locked, _ = decimal.NewFromString(locked)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTokenConfig(ctx context.Context, token string) (*model.TokenConfig, error) {
	var cfg model.TokenConfig
	var minBet, maxBet string
	err := s.pool.QueryRow(ctx,
		`SELECT token, enabled, min_bet::TEXT, max_bet::TEXT FROM token_configs WHERE token = $1`, token).
		Scan(&cfg.Token, &cfg.Enabled, &minBet, &maxBet)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("token config %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get token config %s: %w", token, err)
	}

	cfg.MinBet, _ = decimal.NewFromString(minBet)
	cfg.MaxBet, _ = decimal.NewFromString(maxBet)
	return &cfg, nil
}

func (s *PostgresStore) PutTokenConfig(ctx context.Context, cfg *model.TokenConfig) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO token_configs (token, enabled, min_bet, max_bet)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC)
		 ON CONFLICT (token) DO UPDATE SET enabled = $2, min_bet = $3::NUMERIC, max_bet = $4::NUMERIC`,
		cfg.Token, cfg.Enabled, cfg.MinBet.String(), cfg.MaxBet.String(),
	)
	return err
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key).
		Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("setting %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2`,
		key, value,
	)
	return err
}

func (s *PostgresStore) NextDiceID(ctx context.Context) (uint64, error) {
	return s.nextID(ctx, "dice")
}

func (s *PostgresStore) NextLotteryID(ctx context.Context) (uint64, error) {
	return s.nextID(ctx, "lottery")
}

func (s *PostgresStore) nextID(ctx context.Context, name string) (uint64, error) {
	var value int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO counters (name, value) VALUES ($1, 1)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		 RETURNING value`, name).
		Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", name, err)
	}
	return uint64(value), nil
}

func (s *PostgresStore) PutDiceBet(ctx context.Context, bet *model.DiceBet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dice_bets (id, player, token, stake, roll_under, potential_payout,
		                        resolved, refunded, win, roll, request_id, placed_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   resolved = $7, refunded = $8, win = $9, roll = $10`,
		int64(bet.ID), bet.Player, bet.Token,
		bet.Stake.String(), int64(bet.RollUnder), bet.PotentialPayout.String(),
		bet.Resolved, bet.Refunded, bet.Win, int64(bet.Roll),
		bet.RequestID, bet.PlacedAt,
	)
	return err
}

func (s *PostgresStore) GetDiceBet(ctx context.Context, id uint64) (*model.DiceBet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, player, token, stake::TEXT, roll_under, potential_payout::TEXT,
		        resolved, refunded, win, roll, request_id, placed_at
		 FROM dice_bets WHERE id = $1`, int64(id))
	bet, err := scanDiceBet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dice bet %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dice bet %d: %w", id, err)
	}
	return bet, nil
}

func (s *PostgresStore) ListDiceBetsByPlayer(ctx context.Context, player string) ([]model.DiceBet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player, token, stake::TEXT, roll_under, potential_payout::TEXT,
		        resolved, refunded, win, roll, request_id, placed_at
		 FROM dice_bets WHERE player = $1 ORDER BY id`, player)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DiceBet
	for rows.Next() {
		bet, err := scanDiceBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *bet)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDiceBet(row rowScanner) (*model.DiceBet, error) {
	var bet model.DiceBet
	var id, rollUnder, roll int64
	var stake, payout string

	err := row.Scan(&id, &bet.Player, &bet.Token, &stake, &rollUnder, &payout,
		&bet.Resolved, &bet.Refunded, &bet.Win, &roll, &bet.RequestID, &bet.PlacedAt)
	if err != nil {
		return nil, err
	}
	bet.ID = uint64(id)
	bet.RollUnder = uint64(rollUnder)
	bet.Roll = uint64(roll)
	bet.Stake, _ = decimal.NewFromString(stake)
	bet.PotentialPayout, _ = decimal.NewFromString(payout)
	return &bet, nil
}

func (s *PostgresStore) PutLottery(ctx context.Context, l *model.Lottery) error {
	entries, err := json.Marshal(l.Entries)
	if err != nil {
		return err
	}
	if l.Entries == nil {
		entries = []byte("[]")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lotteries (id, token, ticket_price, start_time, end_time, pot,
		                        entries, winner, draw_requested, draw_request_at, drawn,
		                        cancelled, request_id)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6::NUMERIC, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO UPDATE SET
		   pot = $6::NUMERIC, entries = $7, winner = $8,
		   draw_requested = $9, draw_request_at = $10, drawn = $11,
		   cancelled = $12, request_id = $13`,
		int64(l.ID), l.Token, l.TicketPrice.String(), l.StartTime, l.EndTime,
		l.Pot.String(), entries, l.Winner,
		l.DrawRequested, l.DrawRequestAt, l.Drawn, l.Cancelled, l.RequestID,
	)
	return err
}

func (s *PostgresStore) GetLottery(ctx context.Context, id uint64) (*model.Lottery, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, token, ticket_price::TEXT, start_time, end_time, pot::TEXT,
		        entries, winner, draw_requested, draw_request_at, drawn,
		        cancelled, request_id
		 FROM lotteries WHERE id = $1`, int64(id))
	l, err := scanLottery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lottery %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get lottery %d: %w", id, err)
	}
	return l, nil
}

func (s *PostgresStore) ListLotteries(ctx context.Context) ([]model.Lottery, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, token, ticket_price::TEXT, start_time, end_time, pot::TEXT,
		        entries, winner, draw_requested, draw_request_at, drawn,
		        cancelled, request_id
		 FROM lotteries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lottery
	for rows.Next() {
		l, err := scanLottery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func scanLottery(row rowScanner) (*model.Lottery, error) {
	var l model.Lottery
	var id int64
	var price, pot string
	var entries []byte

	err := row.Scan(&id, &l.Token, &price, &l.StartTime, &l.EndTime, &pot,
		&entries, &l.Winner, &l.DrawRequested, &l.DrawRequestAt, &l.Drawn,
		&l.Cancelled, &l.RequestID)
	if err != nil {
		return nil, err
	}
	l.ID = uint64(id)
	l.TicketPrice, _ = decimal.NewFromString(price)
	l.Pot, _ = decimal.NewFromString(pot)
	if err := json.Unmarshal(entries, &l.Entries); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) HasRefundClaim(ctx context.Context, lotteryID uint64, user string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM refund_claims WHERE lottery_id = $1 AND claimer = $2`,
		int64(lotteryID), user).
		Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) PutRefundClaim(ctx context.Context, lotteryID uint64, user string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO refund_claims (lottery_id, claimer) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		int64(lotteryID), user,
	)
	return err
}

func (s *PostgresStore) PutPendingRequest(ctx context.Context, req *model.PendingRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pending_requests (request_id, game, entity_id) VALUES ($1, $2, $3)`,
		req.RequestID, string(req.Game), int64(req.EntityID),
	)
	return err
}

func (s *PostgresStore) GetPendingRequest(ctx context.Context, requestID string) (*model.PendingRequest, error) {
	var req model.PendingRequest
	var game string
	var entityID int64
	err := s.pool.QueryRow(ctx,
		`SELECT request_id, game, entity_id FROM pending_requests WHERE request_id = $1`, requestID).
		Scan(&req.RequestID, &game, &entityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pending request %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get pending request %s: %w", requestID, err)
	}
	req.Game = model.Game(game)
	req.EntityID = uint64(entityID)
	return &req, nil
}

func (s *PostgresStore) DeletePendingRequest(ctx context.Context, requestID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pending_requests WHERE request_id = $1`, requestID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending request %s: %w", requestID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AppendEvent(ctx context.Context, ev *model.Event) error {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, type, actor, fields, ts) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, string(ev.Type), ev.Actor, fields, ev.Timestamp,
	)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context, limit int) ([]model.Event, error) {
	q := `SELECT id, type, actor, fields, ts FROM events ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var typ string
		var fields []byte
		if err := rows.Scan(&ev.ID, &typ, &ev.Actor, &fields, &ev.Timestamp); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		if err := json.Unmarshal(fields, &ev.Fields); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
