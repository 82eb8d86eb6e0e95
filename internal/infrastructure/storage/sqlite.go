package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; serialize on our side instead of retrying SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS chains (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			origin_trade_ref TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			current_level INTEGER NOT NULL,
			max_level INTEGER NOT NULL,
			multipliers TEXT NOT NULL,
			sl_reductions TEXT NOT NULL,
			base_lot TEXT,
			total_profit TEXT NOT NULL,
			pending TEXT,
			last_trigger TEXT NOT NULL DEFAULT '',
			stop_reason TEXT NOT NULL DEFAULT '',
			stop_detail TEXT NOT NULL DEFAULT '',
			needs_reconcile BOOLEAN NOT NULL DEFAULT 0,
			version INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chains_status ON chains(status);`,
		`CREATE INDEX IF NOT EXISTS idx_chains_symbol_side ON chains(symbol, side);`,
		`CREATE TABLE IF NOT EXISTS chain_levels (
			chain_id TEXT NOT NULL,
			level_index INTEGER NOT NULL,
			lot_size TEXT NOT NULL,
			entry_price TEXT NOT NULL,
			stop_price TEXT NOT NULL,
			target_price TEXT NOT NULL,
			trigger_type TEXT NOT NULL DEFAULT '',
			order_ref TEXT NOT NULL DEFAULT '',
			opened_at DATETIME NOT NULL,
			closed_at DATETIME,
			exit_price TEXT NOT NULL,
			pnl TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (chain_id, level_index)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveChain writes a full snapshot of the chain and its levels in one
// transaction. The stored version must be exactly one below chain.Version.
func (s *SQLiteStore) SaveChain(ctx context.Context, chain *domain.Chain) error {
	multipliers, err := json.Marshal(chain.Multipliers)
	if err != nil {
		return err
	}
	reductions, err := json.Marshal(chain.SLReductions)
	if err != nil {
		return err
	}
	var pending sql.NullString
	if chain.Pending != nil {
		raw, err := json.Marshal(chain.Pending)
		if err != nil {
			return err
		}
		pending = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT version FROM chains WHERE id = ?`, chain.ID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if chain.Version != stored+1 {
		return fmt.Errorf("chain %s stored at version %d, snapshot %d: %w", chain.ID, stored, chain.Version, domain.ErrVersionConflict)
	}

	query := `INSERT INTO chains (id, symbol, side, origin_trade_ref, status, current_level, max_level, multipliers, sl_reductions, base_lot, total_profit, pending, last_trigger, stop_reason, stop_detail, needs_reconcile, version, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
			  status=excluded.status,
			  current_level=excluded.current_level,
			  total_profit=excluded.total_profit,
			  pending=excluded.pending,
			  last_trigger=excluded.last_trigger,
			  stop_reason=excluded.stop_reason,
			  stop_detail=excluded.stop_detail,
			  needs_reconcile=excluded.needs_reconcile,
			  version=excluded.version,
			  updated_at=excluded.updated_at`
	_, err = tx.ExecContext(ctx, query,
		chain.ID, chain.Symbol, string(chain.Side), chain.OriginTradeRef, string(chain.Status),
		chain.CurrentLevel, chain.MaxLevel, string(multipliers), string(reductions), chain.BaseLot,
		chain.TotalProfit, pending, string(chain.LastTrigger), chain.StopReason, chain.StopDetail,
		chain.NeedsReconcile, chain.Version, chain.CreatedAt.UTC(), chain.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert chain %s: %w", chain.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chain_levels WHERE chain_id = ?`, chain.ID); err != nil {
		return err
	}
	levelQuery := `INSERT INTO chain_levels (chain_id, level_index, lot_size, entry_price, stop_price, target_price, trigger_type, order_ref, opened_at, closed_at, exit_price, pnl, outcome)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, l := range chain.Levels {
		var closedAt sql.NullTime
		if l.ClosedAt != nil {
			closedAt = sql.NullTime{Time: l.ClosedAt.UTC(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, levelQuery,
			chain.ID, l.Index, l.LotSize, l.EntryPrice, l.StopPrice, l.TargetPrice,
			string(l.Trigger), l.OrderRef, l.OpenedAt.UTC(), closedAt, l.ExitPrice, l.PnL, string(l.Outcome))
		if err != nil {
			return fmt.Errorf("insert level %d of chain %s: %w", l.Index, chain.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadChain(ctx context.Context, id string) (*domain.Chain, error) {
	chains, err := s.queryChains(ctx, `id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("chain %s: %w", id, domain.ErrNotFound)
	}
	return chains[0], nil
}

func (s *SQLiteStore) LoadActiveChains(ctx context.Context) ([]*domain.Chain, error) {
	return s.queryChains(ctx, `status = ?`, string(domain.ChainActive))
}

func (s *SQLiteStore) ListChains(ctx context.Context) ([]*domain.Chain, error) {
	return s.queryChains(ctx, `1 = 1`)
}

const chainColumns = `id, symbol, side, origin_trade_ref, status, current_level, max_level, multipliers, sl_reductions, base_lot, total_profit, pending, last_trigger, stop_reason, stop_detail, needs_reconcile, version, created_at, updated_at`

const levelColumns = `chain_id, level_index, lot_size, entry_price, stop_price, target_price, trigger_type, order_ref, opened_at, closed_at, exit_price, pnl, outcome`

func (s *SQLiteStore) queryChains(ctx context.Context, where string, args ...any) ([]*domain.Chain, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chainColumns+` FROM chains WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		chains []*domain.Chain
		byID   = make(map[string]*domain.Chain)
	)
	for rows.Next() {
		c, err := scanChain(rows)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, nil
	}

	levelRows, err := s.db.QueryContext(ctx,
		`SELECT `+levelColumns+` FROM chain_levels WHERE chain_id IN (SELECT id FROM chains WHERE `+where+`) ORDER BY chain_id, level_index`, args...)
	if err != nil {
		return nil, err
	}
	defer levelRows.Close()
	for levelRows.Next() {
		chainID, l, err := scanLevel(levelRows)
		if err != nil {
			return nil, err
		}
		if c, ok := byID[chainID]; ok {
			c.Levels = append(c.Levels, l)
		}
	}
	if err := levelRows.Err(); err != nil {
		return nil, err
	}

	for _, c := range chains {
		c.TotalProfit = c.RealizedProfit()
	}
	return chains, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChain(row scanner) (*domain.Chain, error) {
	var (
		c                       domain.Chain
		side, status, trigger   string
		multipliers, reductions string
		pending                 sql.NullString
		createdAt, updatedAt    time.Time
	)
	err := row.Scan(&c.ID, &c.Symbol, &side, &c.OriginTradeRef, &status, &c.CurrentLevel, &c.MaxLevel,
		&multipliers, &reductions, &c.BaseLot, &c.TotalProfit, &pending, &trigger,
		&c.StopReason, &c.StopDetail, &c.NeedsReconcile, &c.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Side = domain.Side(side)
	c.Status = domain.ChainStatus(status)
	c.LastTrigger = domain.TriggerType(trigger)
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	if err := json.Unmarshal([]byte(multipliers), &c.Multipliers); err != nil {
		return nil, fmt.Errorf("chain %s multipliers: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(reductions), &c.SLReductions); err != nil {
		return nil, fmt.Errorf("chain %s sl_reductions: %w", c.ID, err)
	}
	if pending.Valid {
		var p domain.PendingReentry
		if err := json.Unmarshal([]byte(pending.String), &p); err != nil {
			return nil, fmt.Errorf("chain %s pending: %w", c.ID, err)
		}
		p.ClosedAt = p.ClosedAt.UTC()
		c.Pending = &p
	}
	return &c, nil
}

func scanLevel(row scanner) (string, domain.LevelRecord, error) {
	var (
		chainID          string
		l                domain.LevelRecord
		trigger, outcome string
		openedAt         time.Time
		closedAt         sql.NullTime
	)
	err := row.Scan(&chainID, &l.Index, &l.LotSize, &l.EntryPrice, &l.StopPrice, &l.TargetPrice, &trigger, &l.OrderRef,
		&openedAt, &closedAt, &l.ExitPrice, &l.PnL, &outcome)
	if err != nil {
		return "", l, err
	}
	l.Trigger = domain.TriggerType(trigger)
	l.Outcome = domain.OutcomeKind(outcome)
	l.OpenedAt = openedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		l.ClosedAt = &t
	}
	return chainID, l, nil
}
