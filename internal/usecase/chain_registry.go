package usecase

import (
	"context"
	cryptoRand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

type RegistryConfig struct {
	PersistAttempts int
	PersistBackoff  time.Duration
}

func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{PersistAttempts: 3, PersistBackoff: 200 * time.Millisecond}
}

// CreateRequest describes a chain to open at ACTIVE(0).
type CreateRequest struct {
	Symbol       string
	Side         domain.Side
	BaseTradeRef string
	Config       domain.ChainConfig
	First        domain.LevelRecord
	Trigger      domain.TriggerType
}

// errNoChange makes Mutate return without persisting.
var errNoChange = errors.New("no change")

// forcedSaveTimeout bounds the save of a forced stop, which runs even when
// the caller's context is already done.
const forcedSaveTimeout = 5 * time.Second

// ChainRegistry is the in-memory authority over chains, backed by a
// ChainRepository. Writes to one chain are serialized; different chains
// proceed concurrently.
type ChainRegistry struct {
	repo    domain.ChainRepository
	machine *ChainStateMachine
	logger  *zap.Logger
	cfg     RegistryConfig
	timeNow func() time.Time

	mu           sync.RWMutex
	chains       map[string]*domain.Chain
	activeByPair map[string][]string

	lockMu     sync.Mutex
	chainLocks map[string]*sync.Mutex
	pairLocks  map[string]*sync.Mutex

	idMu    sync.Mutex
	entropy io.Reader
}

func NewChainRegistry(repo domain.ChainRepository, machine *ChainStateMachine, cfg RegistryConfig, logger *zap.Logger) *ChainRegistry {
	if cfg.PersistAttempts <= 0 {
		cfg.PersistAttempts = 1
	}
	return &ChainRegistry{
		repo:         repo,
		machine:      machine,
		logger:       logger,
		cfg:          cfg,
		timeNow:      time.Now,
		chains:       make(map[string]*domain.Chain),
		activeByPair: make(map[string][]string),
		chainLocks:   make(map[string]*sync.Mutex),
		pairLocks:    make(map[string]*sync.Mutex),
		entropy:      ulid.Monotonic(cryptoRand.Reader, 0),
	}
}

func (r *ChainRegistry) newID() string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(r.timeNow()), r.entropy).String()
}

func (r *ChainRegistry) lockFor(locks map[string]*sync.Mutex, key string) func() {
	r.lockMu.Lock()
	l, ok := locks[key]
	if !ok {
		l = &sync.Mutex{}
		locks[key] = l
	}
	r.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

// Load rehydrates ACTIVE chains from the repository. Chains already known are
// left untouched so Load never re-creates a chain.
func (r *ChainRegistry) Load(ctx context.Context) (int, error) {
	chains, err := r.repo.LoadActiveChains(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active chains: %w", err)
	}
	sort.Slice(chains, func(i, j int) bool { return lessByCreation(chains[i], chains[j]) })

	r.mu.Lock()
	defer r.mu.Unlock()
	loaded := 0
	for _, c := range chains {
		if _, ok := r.chains[c.ID]; ok {
			continue
		}
		c.TotalProfit = c.RealizedProfit()
		r.chains[c.ID] = c
		key := c.PairKey()
		if len(r.activeByPair[key]) > 0 {
			r.logger.Warn("Multiple active chains rehydrated for pair",
				zap.String("pair", key), zap.String("chain_id", c.ID))
		}
		r.activeByPair[key] = append(r.activeByPair[key], c.ID)
		loaded++
	}
	return loaded, nil
}

// Create opens a chain at ACTIVE(0). It fails with ErrDuplicateChain if the
// pair already has an ACTIVE chain and the config disallows overlap.
func (r *ChainRegistry) Create(ctx context.Context, req CreateRequest) (*domain.Chain, error) {
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	key := domain.PairKey(req.Symbol, req.Side)
	unlock := r.lockFor(r.pairLocks, key)
	defer unlock()

	r.mu.RLock()
	existing := len(r.activeByPair[key])
	r.mu.RUnlock()
	if existing > 0 && !req.Config.AllowOverlap {
		return nil, fmt.Errorf("create chain %s: %w", key, domain.ErrDuplicateChain)
	}

	now := r.timeNow().UTC()
	chain := &domain.Chain{
		ID:             r.newID(),
		Symbol:         req.Symbol,
		Side:           req.Side,
		OriginTradeRef: req.BaseTradeRef,
		MaxLevel:       req.Config.MaxLevel,
		Multipliers:    append([]decimal.Decimal(nil), req.Config.Multipliers...),
		SLReductions:   append([]decimal.Decimal(nil), req.Config.SLReductions...),
		BaseLot:        req.Config.BaseLot,
		TotalProfit:    decimal.Zero,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.machine.Open(chain, req.First, req.Trigger); err != nil {
		return nil, err
	}
	if err := r.persist(ctx, chain); err != nil {
		return nil, fmt.Errorf("create chain %s: %w: %v", key, domain.ErrPersistence, err)
	}

	r.mu.Lock()
	r.chains[chain.ID] = chain
	r.activeByPair[key] = append(r.activeByPair[key], chain.ID)
	r.mu.Unlock()

	r.logger.Info("Chain created",
		zap.String("chain_id", chain.ID),
		zap.String("symbol", chain.Symbol),
		zap.String("side", string(chain.Side)),
		zap.String("trigger", string(req.Trigger)))
	return chain.Clone(), nil
}

// Get returns a copy of the chain, falling back to the repository for chains
// that are no longer held in memory.
func (r *ChainRegistry) Get(ctx context.Context, id string) (*domain.Chain, error) {
	r.mu.RLock()
	c, ok := r.chains[id]
	r.mu.RUnlock()
	if ok {
		return r.snapshot(c), nil
	}
	stored, err := r.repo.LoadChain(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("chain %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	stored.TotalProfit = stored.RealizedProfit()
	return stored, nil
}

func (r *ChainRegistry) snapshot(c *domain.Chain) *domain.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return c.Clone()
}

// ListActive returns ACTIVE chains ordered by creation time ascending.
func (r *ChainRegistry) ListActive() []*domain.Chain {
	r.mu.RLock()
	out := make([]*domain.Chain, 0, len(r.chains))
	for _, c := range r.chains {
		if c.Status == domain.ChainActive {
			out = append(out, c.Clone())
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return lessByCreation(out[i], out[j]) })
	return out
}

// ListAll merges persisted history with the in-memory view, memory winning.
func (r *ChainRegistry) ListAll(ctx context.Context) ([]*domain.Chain, error) {
	stored, err := r.repo.ListChains(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chains: %w", err)
	}
	byID := make(map[string]*domain.Chain, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}
	r.mu.RLock()
	for id, c := range r.chains {
		byID[id] = c.Clone()
	}
	r.mu.RUnlock()

	out := make([]*domain.Chain, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessByCreation(out[i], out[j]) })
	return out, nil
}

func lessByCreation(a, b *domain.Chain) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Mutate applies fn to a copy of the chain under the chain's lock and persists
// the result as a full snapshot. If persisting fails after the configured
// attempts the chain is forced to STOPPED locally, flagged for
// reconciliation, and an ErrPersistence error is returned with that chain.
func (r *ChainRegistry) Mutate(ctx context.Context, id string, fn func(*domain.Chain) error) (*domain.Chain, error) {
	unlock := r.lockFor(r.chainLocks, id)
	defer unlock()

	r.mu.RLock()
	current, ok := r.chains[id]
	r.mu.RUnlock()
	if !ok {
		stored, err := r.repo.LoadChain(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("chain %s: %w", id, domain.ErrNotFound)
			}
			return nil, err
		}
		if stored.IsTerminal() {
			return stored, fmt.Errorf("chain %s is %s: %w", id, stored.Status, domain.ErrChainClosed)
		}
		return nil, fmt.Errorf("chain %s is not loaded: %w", id, domain.ErrNotFound)
	}

	working := r.snapshot(current)
	if err := fn(working); err != nil {
		if errors.Is(err, errNoChange) {
			return working, err
		}
		return nil, err
	}
	if working.ID != current.ID || working.Symbol != current.Symbol || working.Side != current.Side {
		return nil, fmt.Errorf("chain %s: id, symbol and side are immutable: %w", id, domain.ErrConfiguration)
	}
	working.Version = current.Version + 1
	working.UpdatedAt = r.timeNow().UTC()

	if err := r.persist(ctx, working); err != nil {
		forced := r.snapshot(current)
		r.machine.Stop(forced, domain.StopPersistenceFailure, err.Error())
		forced.NeedsReconcile = true
		forced.Version = current.Version + 1
		forced.UpdatedAt = working.UpdatedAt
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forcedSaveTimeout)
		saveErr := r.repo.SaveChain(saveCtx, forced)
		cancel()
		if saveErr != nil {
			r.logger.Error("Forced stop could not be persisted",
				zap.String("chain_id", id), zap.Error(saveErr))
		}
		r.store(forced)
		r.logger.Error("Chain forced to STOPPED after persistence failure",
			zap.String("chain_id", id), zap.Error(err))
		return forced.Clone(), fmt.Errorf("chain %s: %w: %v", id, domain.ErrPersistence, err)
	}

	r.store(working)
	return working.Clone(), nil
}

func (r *ChainRegistry) store(c *domain.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c.ID] = c
	if c.IsTerminal() {
		key := c.PairKey()
		ids := r.activeByPair[key]
		for i, existing := range ids {
			if existing == c.ID {
				ids = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(ids) == 0 {
			delete(r.activeByPair, key)
		} else {
			r.activeByPair[key] = ids
		}
	}
}

// Update persists a replacement snapshot of an ACTIVE chain. Lifecycle
// fields (status, current level, max level, level history) belong to the
// state machine and cannot be changed here.
func (r *ChainRegistry) Update(ctx context.Context, chain *domain.Chain) (*domain.Chain, error) {
	if chain.CurrentLevel < 0 || chain.CurrentLevel > chain.MaxLevel {
		return nil, fmt.Errorf("chain %s: level %d outside 0..%d: %w",
			chain.ID, chain.CurrentLevel, chain.MaxLevel, domain.ErrConfiguration)
	}
	next := chain.Clone()
	return r.Mutate(ctx, chain.ID, func(c *domain.Chain) error {
		if c.IsTerminal() {
			return fmt.Errorf("chain %s is %s: %w", c.ID, c.Status, domain.ErrChainClosed)
		}
		if next.Status != c.Status || next.CurrentLevel != c.CurrentLevel ||
			next.MaxLevel != c.MaxLevel || len(next.Levels) != len(c.Levels) {
			return fmt.Errorf("chain %s: lifecycle fields are owned by the state machine: %w",
				c.ID, domain.ErrConfiguration)
		}
		next.Version = c.Version
		*c = *next
		return nil
	})
}

// Stop moves a chain to STOPPED. Stopping a terminal chain is a no-op and
// reports changed=false.
func (r *ChainRegistry) Stop(ctx context.Context, id, reason, detail string) (*domain.Chain, bool, error) {
	c, err := r.Mutate(ctx, id, func(c *domain.Chain) error {
		if !r.machine.Stop(c, reason, detail) {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return c, false, nil
	}
	if errors.Is(err, domain.ErrChainClosed) && c != nil {
		return c, false, nil
	}
	if err != nil {
		return c, c != nil, err
	}
	r.logger.Info("Chain stopped",
		zap.String("chain_id", id), zap.String("reason", reason), zap.String("detail", detail))
	return c, true, nil
}

// persist saves with bounded exponential backoff. Version conflicts are not retried.
func (r *ChainRegistry) persist(ctx context.Context, c *domain.Chain) error {
	backoff := r.cfg.PersistBackoff
	var err error
	for attempt := 1; attempt <= r.cfg.PersistAttempts; attempt++ {
		if err = r.repo.SaveChain(ctx, c); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		r.logger.Warn("Chain save failed",
			zap.String("chain_id", c.ID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == r.cfg.PersistAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// Stats summarizes every chain known to memory or the repository.
func (r *ChainRegistry) Stats(ctx context.Context) (domain.ChainStats, error) {
	chains, err := r.ListAll(ctx)
	if err != nil {
		return domain.ChainStats{}, err
	}
	stats := domain.ChainStats{
		TotalProfit: decimal.Zero,
		ByTrigger:   make(map[domain.TriggerType]int),
		StopReasons: make(map[string]int),
	}
	for _, c := range chains {
		switch c.Status {
		case domain.ChainActive:
			stats.Active++
		case domain.ChainCompleted:
			stats.Completed++
		case domain.ChainStopped:
			stats.Stopped++
			stats.StopReasons[c.StopReason]++
		}
		if c.NeedsReconcile {
			stats.NeedsReconcile++
		}
		stats.LevelsOpened += len(c.Levels)
		stats.TotalProfit = stats.TotalProfit.Add(c.RealizedProfit())
		for _, l := range c.Levels {
			if l.Trigger != domain.TriggerNone {
				stats.ByTrigger[l.Trigger]++
			}
		}
	}
	return stats, nil
}
