package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

// ReentryDeps bundles the collaborators of ReentryService.
type ReentryDeps struct {
	Registry  *ChainRegistry
	Machine   *ChainStateMachine
	Evaluator *TriggerEvaluator
	Sizer     *PositionSizer
	RiskGate  *RiskGate
	TrendGate *TrendGate
	Risk      domain.RiskSnapshotProvider
	Gateway   domain.OrderGateway
	Notifier  domain.Notifier
	Logger    *zap.Logger

	Account string
	Chain   domain.ChainConfig
	Sizing  domain.SizingConfig
}

// ReentryService turns closed trades into chains, advances chains when their
// triggers fire and exposes the operator operations.
type ReentryService struct {
	registry  *ChainRegistry
	machine   *ChainStateMachine
	evaluator *TriggerEvaluator
	sizer     *PositionSizer
	riskGate  *RiskGate
	trendGate *TrendGate
	risk      domain.RiskSnapshotProvider
	gateway   domain.OrderGateway
	notifier  domain.Notifier
	logger    *zap.Logger

	account  string
	chainCfg domain.ChainConfig
	sizing   domain.SizingConfig
	timeNow  func() time.Time

	mu      sync.Mutex
	watches map[string]domain.ClosedTrade // pair key -> closed trade awaiting a trigger
}

func NewReentryService(d ReentryDeps) *ReentryService {
	if d.Machine == nil {
		d.Machine = NewChainStateMachine()
	}
	if d.RiskGate == nil {
		d.RiskGate = NewRiskGate()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &ReentryService{
		registry:  d.Registry,
		machine:   d.Machine,
		evaluator: d.Evaluator,
		sizer:     d.Sizer,
		riskGate:  d.RiskGate,
		trendGate: d.TrendGate,
		risk:      d.Risk,
		gateway:   d.Gateway,
		notifier:  d.Notifier,
		logger:    d.Logger,
		account:   d.Account,
		chainCfg:  d.Chain,
		sizing:    d.Sizing,
		timeNow:   time.Now,
		watches:   make(map[string]domain.ClosedTrade),
	}
}

// Start rehydrates ACTIVE chains from storage. A chain whose open level never
// got an order ref recorded cannot be tracked, so it is stopped and flagged
// for reconciliation against the broker.
func (s *ReentryService) Start(ctx context.Context) error {
	n, err := s.registry.Load(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Chains rehydrated", zap.Int("active", n))

	for _, c := range s.registry.ListActive() {
		open := c.OpenLevel()
		if open == nil || open.OrderRef != "" {
			continue
		}
		s.logger.Warn("Rehydrated chain has an unconfirmed order",
			zap.String("chain_id", c.ID),
			zap.String("client_id", clientOrderID(c.ID, open.Index)),
			zap.String("symbol", c.Symbol),
			zap.Int("level", open.Index))
		stopped, err := s.registry.Mutate(ctx, c.ID, func(c *domain.Chain) error {
			if !s.machine.Stop(c, domain.StopOrderUnconfirmed, fmt.Sprintf("no order ref recorded for level %d", open.Index)) {
				return errNoChange
			}
			c.NeedsReconcile = true
			return nil
		})
		switch {
		case errors.Is(err, errNoChange):
			continue
		case err != nil && !errors.Is(err, domain.ErrPersistence):
			return fmt.Errorf("stop unconfirmed chain %s: %w", c.ID, err)
		}
		s.emitStopped(ctx, stopped)
	}
	return nil
}

// ListActiveChains returns ACTIVE chains ordered by creation time.
func (s *ReentryService) ListActiveChains() []*domain.Chain {
	return s.registry.ListActive()
}

// ListChains returns every chain including terminal history.
func (s *ReentryService) ListChains(ctx context.Context) ([]*domain.Chain, error) {
	return s.registry.ListAll(ctx)
}

func (s *ReentryService) GetChain(ctx context.Context, id string) (*domain.Chain, error) {
	return s.registry.Get(ctx, id)
}

// StopChain stops a chain on operator request. Stopping a terminal chain
// returns it unchanged.
func (s *ReentryService) StopChain(ctx context.Context, id string) (*domain.Chain, error) {
	c, _, err := s.stop(ctx, id, domain.StopManual, "stopped by operator")
	return c, err
}

// StopAllChains stops every ACTIVE chain and returns the ones it stopped.
func (s *ReentryService) StopAllChains(ctx context.Context) ([]*domain.Chain, error) {
	var (
		stopped []*domain.Chain
		errs    []error
	)
	for _, c := range s.registry.ListActive() {
		out, changed, err := s.stop(ctx, c.ID, domain.StopManual, "stop all")
		if err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", c.ID, err))
		}
		if changed && out != nil {
			stopped = append(stopped, out)
		}
	}
	return stopped, errors.Join(errs...)
}

func (s *ReentryService) GetChainStats(ctx context.Context) (domain.ChainStats, error) {
	return s.registry.Stats(ctx)
}

// Watches returns the closed trades waiting for a trigger before any chain exists.
func (s *ReentryService) Watches() []domain.ClosedTrade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ClosedTrade, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out
}

// HandleTradeClosed accepts a closed position. Trades that belong to a chain
// close its open level; other trades become watches the monitor evaluates.
func (s *ReentryService) HandleTradeClosed(ctx context.Context, trade domain.ClosedTrade) error {
	if trade.Symbol == "" || trade.Outcome == nil {
		return fmt.Errorf("closed trade %q needs symbol and outcome: %w", trade.Ref, domain.ErrConfiguration)
	}
	if trade.Side != domain.SideLong && trade.Side != domain.SideShort {
		return fmt.Errorf("closed trade %q has side %q: %w", trade.Ref, trade.Side, domain.ErrConfiguration)
	}
	if trade.ClosedAt.IsZero() {
		trade.ClosedAt = s.timeNow().UTC()
	}
	if trade.ChainID != "" {
		return s.closeLevel(ctx, trade.ChainID, trade)
	}
	if !s.evaluator.Applicable(trade.Outcome) {
		s.logger.Debug("Closed trade ignored, no trigger applies",
			zap.String("ref", trade.Ref), zap.String("outcome", string(trade.Outcome.Kind())))
		return nil
	}

	key := domain.PairKey(trade.Symbol, trade.Side)
	s.mu.Lock()
	s.watches[key] = trade
	s.mu.Unlock()
	s.logger.Info("Watching closed trade for re-entry",
		zap.String("ref", trade.Ref),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.String("outcome", string(trade.Outcome.Kind())))
	return nil
}

// EvaluateWatch checks a pre-chain watch against quote and opens the chain on a fire.
func (s *ReentryService) EvaluateWatch(ctx context.Context, trade domain.ClosedTrade, quote domain.PriceQuote) error {
	now := s.timeNow()
	key := domain.PairKey(trade.Symbol, trade.Side)
	if now.Sub(trade.ClosedAt) > s.evaluator.Window(trade.Outcome) {
		s.dropWatch(key, trade.Ref)
		s.logger.Info("Re-entry window expired for closed trade",
			zap.String("ref", trade.Ref), zap.String("symbol", trade.Symbol))
		return nil
	}
	decision := s.evaluator.Evaluate(trade, quote, now)
	if !decision.Fire {
		return nil
	}
	if !s.dropWatch(key, trade.Ref) {
		return nil
	}
	return s.openChain(ctx, trade, decision, quote)
}

func (s *ReentryService) dropWatch(key, ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[key]
	if !ok || w.Ref != ref {
		return false
	}
	delete(s.watches, key)
	return true
}

// EvaluateChain runs one monitor step for an ACTIVE chain: close detection for
// the level in flight, or trigger evaluation for a pending re-entry.
func (s *ReentryService) EvaluateChain(ctx context.Context, chain *domain.Chain, quote domain.PriceQuote) error {
	if chain.Status != domain.ChainActive {
		return nil
	}
	if open := chain.OpenLevel(); open != nil {
		trade, ok := s.detectClose(chain, *open, quote)
		if !ok {
			return nil
		}
		return s.closeLevel(ctx, chain.ID, trade)
	}
	if chain.Pending == nil {
		return nil
	}

	trade, err := pendingTrade(chain)
	if err != nil {
		_, _, stopErr := s.stop(ctx, chain.ID, domain.StopConfiguration, err.Error())
		return errors.Join(err, stopErr)
	}
	now := s.timeNow()
	if now.Sub(trade.ClosedAt) > s.evaluator.Window(trade.Outcome) {
		_, _, err := s.stop(ctx, chain.ID, domain.StopWindowExpired,
			fmt.Sprintf("no trigger within %s of level %d close", s.evaluator.Window(trade.Outcome), chain.CurrentLevel))
		return err
	}
	decision := s.evaluator.Evaluate(trade, quote, now)
	if !decision.Fire {
		return nil
	}
	return s.advance(ctx, chain, decision, quote)
}

func pendingTrade(chain *domain.Chain) (domain.ClosedTrade, error) {
	p := chain.Pending
	outcome, err := p.Outcome.Outcome()
	if err != nil {
		return domain.ClosedTrade{}, err
	}
	return domain.ClosedTrade{
		Ref:        p.TradeRef,
		ChainID:    chain.ID,
		Symbol:     chain.Symbol,
		Side:       chain.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  p.ExitPrice,
		Outcome:    outcome,
		ClosedAt:   p.ClosedAt,
	}, nil
}

// detectClose mirrors the broker-side stop and target of the level in flight.
// Levels whose order has not been acknowledged yet are left alone.
func (s *ReentryService) detectClose(chain *domain.Chain, level domain.LevelRecord, quote domain.PriceQuote) (domain.ClosedTrade, bool) {
	if level.OrderRef == "" {
		return domain.ClosedTrade{}, false
	}
	price := quote.ExitFor(chain.Side)
	if !price.IsPositive() {
		return domain.ClosedTrade{}, false
	}

	var (
		exit    decimal.Decimal
		outcome domain.TradeOutcome
	)
	if chain.Side == domain.SideShort {
		switch {
		case price.GreaterThanOrEqual(level.StopPrice):
			exit, outcome = level.StopPrice, domain.StopHunted{}
		case price.LessThanOrEqual(level.TargetPrice):
			exit, outcome = level.TargetPrice, domain.ProfitClose{}
		}
	} else {
		switch {
		case price.LessThanOrEqual(level.StopPrice):
			exit, outcome = level.StopPrice, domain.StopHunted{}
		case price.GreaterThanOrEqual(level.TargetPrice):
			exit, outcome = level.TargetPrice, domain.ProfitClose{}
		}
	}
	if outcome == nil {
		return domain.ClosedTrade{}, false
	}

	closedAt := quote.Timestamp
	if closedAt.IsZero() {
		closedAt = s.timeNow()
	}
	return domain.ClosedTrade{
		Ref:        level.OrderRef,
		ChainID:    chain.ID,
		Symbol:     chain.Symbol,
		Side:       chain.Side,
		Lot:        level.LotSize,
		EntryPrice: level.EntryPrice,
		ExitPrice:  exit,
		PnL:        domain.PnLFor(chain.Side, level.LotSize, level.EntryPrice, exit, s.sizing.ContractSize),
		Outcome:    outcome,
		ClosedAt:   closedAt.UTC(),
	}, true
}

func (s *ReentryService) closeLevel(ctx context.Context, id string, trade domain.ClosedTrade) error {
	var (
		transition Transition
		closed     domain.LevelRecord
	)
	chain, err := s.registry.Mutate(ctx, id, func(c *domain.Chain) error {
		open := c.OpenLevel()
		if open == nil {
			return fmt.Errorf("chain %s has no open level: %w", c.ID, domain.ErrChainClosed)
		}
		if trade.PnL.IsZero() && trade.ExitPrice.IsPositive() {
			trade.PnL = domain.PnLFor(c.Side, open.LotSize, open.EntryPrice, trade.ExitPrice, s.sizing.ContractSize)
		}
		if trade.EntryPrice.IsZero() {
			trade.EntryPrice = open.EntryPrice
		}
		t, err := s.machine.CloseLevel(c, trade)
		if err != nil {
			return err
		}
		transition = t
		closed = c.Levels[len(c.Levels)-1]
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) && chain != nil {
			s.emitStopped(ctx, chain)
		}
		return err
	}

	s.logger.Info("Chain level closed",
		zap.String("chain_id", chain.ID),
		zap.String("symbol", chain.Symbol),
		zap.String("side", string(chain.Side)),
		zap.Int("level", closed.Index),
		zap.String("outcome", string(closed.Outcome)),
		zap.String("pnl", closed.PnL.String()),
		zap.String("transition", string(transition)))
	s.emit(ctx, domain.ChainEvent{
		Kind:    domain.EventLevelClosed,
		ChainID: chain.ID,
		Symbol:  chain.Symbol,
		Side:    chain.Side,
		Level:   closed.Index,
		Trigger: closed.Trigger,
		LotSize: closed.LotSize,
		PnL:     closed.PnL,
		Reason:  string(closed.Outcome),
	})

	switch transition {
	case TransitionCompleted:
		s.logger.Info("Chain completed",
			zap.String("chain_id", chain.ID),
			zap.String("symbol", chain.Symbol),
			zap.String("side", string(chain.Side)),
			zap.Int("level", chain.CurrentLevel),
			zap.String("total_profit", chain.TotalProfit.String()))
		s.emit(ctx, domain.ChainEvent{
			Kind:    domain.EventChainCompleted,
			ChainID: chain.ID,
			Symbol:  chain.Symbol,
			Side:    chain.Side,
			Level:   chain.CurrentLevel,
			PnL:     chain.TotalProfit,
		})
	case TransitionStopped:
		s.logger.Info("Chain stopped",
			zap.String("chain_id", chain.ID),
			zap.String("symbol", chain.Symbol),
			zap.String("side", string(chain.Side)),
			zap.Int("level", chain.CurrentLevel),
			zap.String("reason", chain.StopReason))
		s.emitStopped(ctx, chain)
	}
	return nil
}

// candidate sizes and gates the next level. A non-empty reason means the
// chain must stop with that reason.
func (s *ReentryService) candidate(ctx context.Context, chain *domain.Chain, next int, quote domain.PriceQuote) (SizingResult, string, string) {
	snap, err := s.risk.GetSnapshot(ctx, s.account)
	if err != nil {
		return SizingResult{}, domain.StopRiskDenied, fmt.Sprintf("risk snapshot unavailable: %v", err)
	}

	sized, err := s.sizer.Compute(chain, next, snap, quote.EntryFor(chain.Side))
	switch {
	case errors.Is(err, domain.ErrCapExceeded):
		return SizingResult{}, domain.StopExposureCap, err.Error()
	case err != nil:
		return SizingResult{}, domain.StopConfiguration, err.Error()
	}

	decision := s.riskGate.Authorize(CandidateLevel{
		ChainID:       chain.ID,
		Symbol:        chain.Symbol,
		Side:          chain.Side,
		Level:         next,
		LotSize:       sized.LotSize,
		PotentialLoss: sized.PotentialLoss(s.sizing.ContractSize),
	}, snap)
	if !decision.Allowed {
		return SizingResult{}, domain.StopRiskDenied, decision.Reason + ": " + decision.Detail
	}

	if s.trendGate != nil {
		decision = s.trendGate.Authorize(ctx, chain.Symbol, chain.Side)
		if !decision.Allowed {
			return SizingResult{}, domain.StopTrendDenied, decision.Reason + ": " + decision.Detail
		}
	}
	return sized, "", ""
}

// openChain creates a chain at ACTIVE(0) for a watch whose trigger fired.
func (s *ReentryService) openChain(ctx context.Context, trade domain.ClosedTrade, decision TriggerDecision, quote domain.PriceQuote) error {
	prospect := &domain.Chain{
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		MaxLevel:     s.chainCfg.MaxLevel,
		Multipliers:  s.chainCfg.Multipliers,
		SLReductions: s.chainCfg.SLReductions,
		BaseLot:      s.chainCfg.BaseLot,
	}
	sized, reason, detail := s.candidate(ctx, prospect, 0, quote)
	if reason != "" {
		s.logger.Info("Re-entry denied before chain creation",
			zap.String("ref", trade.Ref),
			zap.String("symbol", trade.Symbol),
			zap.String("side", string(trade.Side)),
			zap.String("trigger", string(decision.Trigger)),
			zap.String("reason", reason),
			zap.String("detail", detail))
		s.emit(ctx, domain.ChainEvent{
			Kind:       domain.EventReentryDenied,
			Symbol:     trade.Symbol,
			Side:       trade.Side,
			Trigger:    decision.Trigger,
			Reason:     reason,
			Detail:     detail,
			Unexpected: domain.UnexpectedStop(reason),
		})
		return nil
	}

	first := sized.Record()
	first.OpenedAt = s.timeNow().UTC()
	chain, err := s.registry.Create(ctx, CreateRequest{
		Symbol:       trade.Symbol,
		Side:         trade.Side,
		BaseTradeRef: trade.Ref,
		Config:       s.chainCfg,
		First:        first,
		Trigger:      decision.Trigger,
	})
	if errors.Is(err, domain.ErrDuplicateChain) {
		s.logger.Info("Re-entry skipped, pair already has an active chain",
			zap.String("symbol", trade.Symbol), zap.String("side", string(trade.Side)))
		return nil
	}
	if err != nil {
		return err
	}

	s.emit(ctx, domain.ChainEvent{
		Kind:    domain.EventChainCreated,
		ChainID: chain.ID,
		Symbol:  chain.Symbol,
		Side:    chain.Side,
		Trigger: decision.Trigger,
		Reason:  decision.Reason,
	})
	return s.placeOrder(ctx, chain, first)
}

// advance opens level k+1 of a chain whose pending trigger fired. The chain
// is re-read under its lock so a concurrent stop wins.
func (s *ReentryService) advance(ctx context.Context, chain *domain.Chain, decision TriggerDecision, quote domain.PriceQuote) error {
	next := chain.CurrentLevel + 1
	sized, reason, detail := s.candidate(ctx, chain, next, quote)
	if reason != "" {
		s.logger.Info("Re-entry denied",
			zap.String("chain_id", chain.ID),
			zap.String("symbol", chain.Symbol),
			zap.String("side", string(chain.Side)),
			zap.Int("level", next),
			zap.String("reason", reason),
			zap.String("detail", detail))
		_, _, err := s.stop(ctx, chain.ID, reason, detail)
		return err
	}

	record := sized.Record()
	record.OpenedAt = s.timeNow().UTC()
	updated, err := s.registry.Mutate(ctx, chain.ID, func(c *domain.Chain) error {
		if c.Status != domain.ChainActive || c.CurrentLevel != chain.CurrentLevel || c.Pending == nil {
			return fmt.Errorf("chain %s changed while sizing level %d: %w", c.ID, next, domain.ErrChainClosed)
		}
		return s.machine.Advance(c, record, decision.Trigger)
	})
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) && updated != nil {
			s.emitStopped(ctx, updated)
			return err
		}
		if errors.Is(err, domain.ErrChainClosed) {
			s.logger.Info("Re-entry abandoned, chain changed",
				zap.String("chain_id", chain.ID), zap.Error(err))
			return nil
		}
		return err
	}
	return s.placeOrder(ctx, updated, updated.Levels[len(updated.Levels)-1])
}

// placeOrder sends the level to the broker and records the order reference.
// A gateway failure stops the chain.
func (s *ReentryService) placeOrder(ctx context.Context, chain *domain.Chain, level domain.LevelRecord) error {
	ref, err := s.gateway.PlaceOrder(ctx, domain.OrderRequest{
		ClientID:    clientOrderID(chain.ID, level.Index),
		Symbol:      chain.Symbol,
		Side:        chain.Side,
		Lot:         level.LotSize,
		StopPrice:   level.StopPrice,
		TargetPrice: level.TargetPrice,
	})
	if err != nil {
		s.logger.Error("Order placement failed",
			zap.String("chain_id", chain.ID),
			zap.String("symbol", chain.Symbol),
			zap.Int("level", level.Index),
			zap.Error(err))
		_, _, stopErr := s.stop(ctx, chain.ID, domain.StopGatewayFailure, err.Error())
		return errors.Join(fmt.Errorf("place level %d of %s: %w: %v", level.Index, chain.ID, domain.ErrGateway, err), stopErr)
	}

	updated, err := s.registry.Mutate(ctx, chain.ID, func(c *domain.Chain) error {
		return s.machine.RecordOrder(c, level.Index, ref.ID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrChainClosed) {
			s.logger.Warn("Chain stopped while order was in flight, closing order",
				zap.String("chain_id", chain.ID), zap.String("order_id", ref.ID))
			if closeErr := s.gateway.CloseOrder(ctx, ref); closeErr != nil {
				s.flagReconcile(ctx, chain.ID, closeErr)
			}
			return nil
		}
		if errors.Is(err, domain.ErrPersistence) && updated != nil {
			s.logger.Error("Order placed but not recorded, closing order",
				zap.String("chain_id", chain.ID),
				zap.String("client_id", clientOrderID(chain.ID, level.Index)),
				zap.String("order_id", ref.ID),
				zap.Error(err))
			if closeErr := s.gateway.CloseOrder(ctx, ref); closeErr != nil {
				s.logger.Error("Unrecorded order could not be closed",
					zap.String("chain_id", chain.ID),
					zap.String("order_id", ref.ID),
					zap.Error(closeErr))
			}
			s.emitStopped(ctx, updated)
		}
		return err
	}

	s.logger.Info("Chain level opened",
		zap.String("chain_id", updated.ID),
		zap.String("symbol", updated.Symbol),
		zap.String("side", string(updated.Side)),
		zap.Int("level", level.Index),
		zap.String("lot", level.LotSize.String()),
		zap.String("entry", level.EntryPrice.String()),
		zap.String("stop", level.StopPrice.String()),
		zap.String("target", level.TargetPrice.String()),
		zap.String("order_id", ref.ID))
	s.emit(ctx, domain.ChainEvent{
		Kind:    domain.EventLevelOpened,
		ChainID: updated.ID,
		Symbol:  updated.Symbol,
		Side:    updated.Side,
		Level:   level.Index,
		Trigger: level.Trigger,
		LotSize: level.LotSize,
	})
	return nil
}

// clientOrderID is the idempotency key sent with a level's order.
func clientOrderID(chainID string, level int) string {
	return fmt.Sprintf("%s-L%d", chainID, level)
}

// stop moves the chain to STOPPED, closes the level in flight best-effort and
// emits the stop event.
func (s *ReentryService) stop(ctx context.Context, id, reason, detail string) (*domain.Chain, bool, error) {
	chain, changed, err := s.registry.Stop(ctx, id, reason, detail)
	if chain == nil || !changed {
		return chain, changed, err
	}
	s.emitStopped(ctx, chain)

	if open := chain.OpenLevel(); open != nil && open.OrderRef != "" {
		closeErr := s.gateway.CloseOrder(ctx, domain.OrderRef{
			ID:     open.OrderRef,
			Symbol: chain.Symbol,
			Side:   chain.Side,
			Lot:    open.LotSize,
		})
		if closeErr != nil {
			s.flagReconcile(ctx, id, closeErr)
		}
	}
	return chain, changed, err
}

func (s *ReentryService) flagReconcile(ctx context.Context, id string, cause error) {
	s.logger.Error("Order close failed, chain needs reconciliation",
		zap.String("chain_id", id), zap.Error(cause))
	_, err := s.registry.Mutate(ctx, id, func(c *domain.Chain) error {
		c.NeedsReconcile = true
		return nil
	})
	if err != nil {
		s.logger.Error("Could not flag chain for reconciliation", zap.String("chain_id", id), zap.Error(err))
	}
}

func (s *ReentryService) emitStopped(ctx context.Context, chain *domain.Chain) {
	s.emit(ctx, domain.ChainEvent{
		Kind:       domain.EventChainStopped,
		ChainID:    chain.ID,
		Symbol:     chain.Symbol,
		Side:       chain.Side,
		Level:      chain.CurrentLevel,
		PnL:        chain.TotalProfit,
		Reason:     chain.StopReason,
		Detail:     chain.StopDetail,
		Unexpected: domain.UnexpectedStop(chain.StopReason),
	})
}

func (s *ReentryService) emit(ctx context.Context, event domain.ChainEvent) {
	if s.notifier == nil {
		return
	}
	event.At = s.timeNow().UTC()
	s.notifier.Notify(ctx, event)
}
