package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
)

func newOpenChain(t *testing.T, maxLevel int) *domain.Chain {
	t.Helper()
	cfg := testChainConfig()
	chain := &domain.Chain{
		ID:           "c1",
		Symbol:       "EURUSD",
		Side:         domain.SideLong,
		MaxLevel:     maxLevel,
		Multipliers:  cfg.Multipliers,
		SLReductions: cfg.SLReductions,
	}
	m := usecase.NewChainStateMachine()
	require.NoError(t, m.Open(chain, domain.LevelRecord{Index: 0, LotSize: d("0.1"), EntryPrice: d("1.1000")}, domain.TriggerTPContinuation))
	return chain
}

func winningClose(exit string) domain.ClosedTrade {
	return domain.ClosedTrade{
		Ref:       "t",
		ExitPrice: d(exit),
		PnL:       d("10"),
		Outcome:   domain.ProfitClose{},
		ClosedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStateMachine_OpenStartsAtLevelZero(t *testing.T) {
	chain := newOpenChain(t, 4)
	assert.Equal(t, domain.ChainActive, chain.Status)
	assert.Equal(t, 0, chain.CurrentLevel)
	require.Len(t, chain.Levels, 1)
	assert.Equal(t, domain.TriggerTPContinuation, chain.Levels[0].Trigger)

	err := usecase.NewChainStateMachine().Open(chain, domain.LevelRecord{}, domain.TriggerNone)
	assert.ErrorIs(t, err, domain.ErrChainClosed)
}

func TestStateMachine_ProfitableCloseAwaitsTrigger(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)

	tr, err := m.CloseLevel(chain, winningClose("1.1050"))
	require.NoError(t, err)
	assert.Equal(t, usecase.TransitionAwaiting, tr)
	assert.Equal(t, domain.ChainActive, chain.Status)
	require.NotNil(t, chain.Pending)
	assert.Equal(t, domain.OutcomeProfitClose, chain.Pending.Outcome)
	assert.True(t, chain.TotalProfit.Equal(d("10")))

	require.NoError(t, m.Advance(chain, domain.LevelRecord{Index: 1, LotSize: d("0.2")}, domain.TriggerTPContinuation))
	assert.Equal(t, 1, chain.CurrentLevel)
	assert.Nil(t, chain.Pending)
	assert.NotNil(t, chain.OpenLevel())
}

func TestStateMachine_AdvanceRejectsSkippedLevel(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)
	_, err := m.CloseLevel(chain, winningClose("1.1050"))
	require.NoError(t, err)

	err = m.Advance(chain, domain.LevelRecord{Index: 2}, domain.TriggerTPContinuation)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Equal(t, 0, chain.CurrentLevel)
}

func TestStateMachine_AdvanceNeedsClosedLevel(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)
	err := m.Advance(chain, domain.LevelRecord{Index: 1}, domain.TriggerTPContinuation)
	assert.ErrorIs(t, err, domain.ErrChainClosed)
}

func TestStateMachine_LosingLevelStopsChain(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)
	trade := winningClose("1.0900")
	trade.PnL = d("-100")
	trade.Outcome = domain.StopHunted{}

	tr, err := m.CloseLevel(chain, trade)
	require.NoError(t, err)
	assert.Equal(t, usecase.TransitionStopped, tr)
	assert.Equal(t, domain.ChainStopped, chain.Status)
	assert.Equal(t, domain.StopDisqualifyingLoss, chain.StopReason)
	assert.Equal(t, domain.OutcomeStopHunted, chain.Levels[0].Outcome)
}

func TestStateMachine_BreakevenIsDisqualifying(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)
	trade := winningClose("1.1000")
	trade.PnL = d("0")

	tr, err := m.CloseLevel(chain, trade)
	require.NoError(t, err)
	assert.Equal(t, usecase.TransitionStopped, tr)
}

func TestStateMachine_CompletesAtMaxLevel(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 2)

	for level := 0; level < 2; level++ {
		tr, err := m.CloseLevel(chain, winningClose("1.2"))
		require.NoError(t, err)
		require.Equal(t, usecase.TransitionAwaiting, tr)
		require.NoError(t, m.Advance(chain, domain.LevelRecord{Index: level + 1, LotSize: d("0.1")}, domain.TriggerTPContinuation))
	}
	tr, err := m.CloseLevel(chain, winningClose("1.2"))
	require.NoError(t, err)
	assert.Equal(t, usecase.TransitionCompleted, tr)
	assert.Equal(t, domain.ChainCompleted, chain.Status)
	assert.True(t, chain.TotalProfit.Equal(d("30")))

	// Terminal chains accept nothing.
	assert.False(t, m.Stop(chain, domain.StopManual, ""))
	assert.Equal(t, domain.ChainCompleted, chain.Status)
	_, err = m.CloseLevel(chain, winningClose("1.2"))
	assert.ErrorIs(t, err, domain.ErrChainClosed)
	assert.ErrorIs(t, m.Advance(chain, domain.LevelRecord{Index: 3}, domain.TriggerTPContinuation), domain.ErrChainClosed)
}

func TestStateMachine_LevelNeverExceedsMax(t *testing.T) {
	m := usecase.NewChainStateMachine()
	for maxLevel := 0; maxLevel <= 4; maxLevel++ {
		chain := newOpenChain(t, maxLevel)
		for i := 0; i < 10; i++ {
			if _, err := m.CloseLevel(chain, winningClose("1.2")); err != nil {
				break
			}
			_ = m.Advance(chain, domain.LevelRecord{Index: chain.CurrentLevel + 1, LotSize: d("0.1")}, domain.TriggerSLHunt)
			require.LessOrEqual(t, chain.CurrentLevel, chain.MaxLevel)
		}
		assert.Equal(t, domain.ChainCompleted, chain.Status, "max level %d", maxLevel)
		assert.Equal(t, maxLevel, chain.CurrentLevel)
	}
}

func TestStateMachine_RecordOrder(t *testing.T) {
	m := usecase.NewChainStateMachine()
	chain := newOpenChain(t, 4)

	require.NoError(t, m.RecordOrder(chain, 0, "ord-1"))
	assert.Equal(t, "ord-1", chain.Levels[0].OrderRef)
	assert.Error(t, m.RecordOrder(chain, 0, "ord-2"))
	assert.ErrorIs(t, m.RecordOrder(chain, 1, "ord-3"), domain.ErrChainClosed)

	m.Stop(chain, domain.StopManual, "")
	assert.ErrorIs(t, m.RecordOrder(chain, 0, "ord-4"), domain.ErrChainClosed)
}
