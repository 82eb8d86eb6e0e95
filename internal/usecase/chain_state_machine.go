package usecase

import (
	"fmt"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

type Transition string

const (
	TransitionNone      Transition = "NONE"
	TransitionAwaiting  Transition = "AWAITING"
	TransitionCompleted Transition = "COMPLETED"
	TransitionStopped   Transition = "STOPPED"
)

// ChainStateMachine applies level transitions to a chain in place. It never
// persists; callers run it inside ChainRegistry.Mutate.
type ChainStateMachine struct{}

func NewChainStateMachine() *ChainStateMachine {
	return &ChainStateMachine{}
}

// Open puts a fresh chain into ACTIVE(0) with its first level.
func (m *ChainStateMachine) Open(chain *domain.Chain, first domain.LevelRecord, trigger domain.TriggerType) error {
	if len(chain.Levels) != 0 || chain.Status != "" {
		return fmt.Errorf("open chain %s: already opened: %w", chain.ID, domain.ErrChainClosed)
	}
	if first.Index != 0 {
		return fmt.Errorf("open chain %s: first level index %d: %w", chain.ID, first.Index, domain.ErrConfiguration)
	}
	first.Trigger = trigger
	chain.Status = domain.ChainActive
	chain.CurrentLevel = 0
	chain.Levels = []domain.LevelRecord{first}
	chain.LastTrigger = trigger
	chain.TotalProfit = chain.RealizedProfit()
	return nil
}

// RecordOrder attaches the broker reference to the open level.
func (m *ChainStateMachine) RecordOrder(chain *domain.Chain, level int, ref string) error {
	if chain.Status != domain.ChainActive {
		return domain.ErrChainClosed
	}
	open := chain.OpenLevel()
	if open == nil || open.Index != level {
		return fmt.Errorf("chain %s has no open level %d: %w", chain.ID, level, domain.ErrChainClosed)
	}
	if open.OrderRef != "" {
		return fmt.Errorf("chain %s level %d already has order %s", chain.ID, level, open.OrderRef)
	}
	open.OrderRef = ref
	return nil
}

// CloseLevel records the close of the open level and decides what happens to
// the chain. A non-positive pnl stops the chain.
func (m *ChainStateMachine) CloseLevel(chain *domain.Chain, trade domain.ClosedTrade) (Transition, error) {
	if chain.Status != domain.ChainActive {
		return TransitionNone, domain.ErrChainClosed
	}
	open := chain.OpenLevel()
	if open == nil {
		return TransitionNone, fmt.Errorf("chain %s has no open level: %w", chain.ID, domain.ErrChainClosed)
	}

	closedAt := trade.ClosedAt
	open.ClosedAt = &closedAt
	open.ExitPrice = trade.ExitPrice
	open.PnL = trade.PnL
	if trade.Outcome != nil {
		open.Outcome = trade.Outcome.Kind()
	}
	chain.TotalProfit = chain.RealizedProfit()

	if !trade.PnL.IsPositive() {
		m.Stop(chain, domain.StopDisqualifyingLoss, fmt.Sprintf("level %d closed with pnl %s", open.Index, trade.PnL))
		return TransitionStopped, nil
	}
	if chain.CurrentLevel >= chain.MaxLevel {
		chain.Status = domain.ChainCompleted
		chain.Pending = nil
		return TransitionCompleted, nil
	}

	kind := domain.OutcomeProfitClose
	if trade.Outcome != nil {
		kind = trade.Outcome.Kind()
	}
	chain.Pending = &domain.PendingReentry{
		TradeRef:   trade.Ref,
		Outcome:    kind,
		EntryPrice: open.EntryPrice,
		ExitPrice:  trade.ExitPrice,
		ClosedAt:   trade.ClosedAt,
	}
	return TransitionAwaiting, nil
}

// Advance moves ACTIVE(k) to ACTIVE(k+1). The previous level must be closed.
func (m *ChainStateMachine) Advance(chain *domain.Chain, next domain.LevelRecord, trigger domain.TriggerType) error {
	if chain.Status != domain.ChainActive {
		return domain.ErrChainClosed
	}
	if chain.Pending == nil || chain.OpenLevel() != nil {
		return fmt.Errorf("chain %s is not awaiting re-entry: %w", chain.ID, domain.ErrChainClosed)
	}
	if chain.CurrentLevel >= chain.MaxLevel {
		return fmt.Errorf("chain %s already at max level %d: %w", chain.ID, chain.MaxLevel, domain.ErrChainClosed)
	}
	if next.Index != chain.CurrentLevel+1 {
		return fmt.Errorf("chain %s: next level %d after %d: %w", chain.ID, next.Index, chain.CurrentLevel, domain.ErrConfiguration)
	}
	next.Trigger = trigger
	chain.Levels = append(chain.Levels, next)
	chain.CurrentLevel = next.Index
	chain.Pending = nil
	chain.LastTrigger = trigger
	return nil
}

// Stop moves the chain to STOPPED. It reports false when the chain was
// already terminal, in which case nothing changes.
func (m *ChainStateMachine) Stop(chain *domain.Chain, reason, detail string) bool {
	if chain.IsTerminal() {
		return false
	}
	chain.Status = domain.ChainStopped
	chain.StopReason = reason
	chain.StopDetail = detail
	chain.Pending = nil
	return true
}
