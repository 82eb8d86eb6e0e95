package usecase_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
)

func sizingChain(side domain.Side) *domain.Chain {
	cfg := testChainConfig()
	return &domain.Chain{
		ID:           "c1",
		Symbol:       "EURUSD",
		Side:         side,
		MaxLevel:     cfg.MaxLevel,
		Multipliers:  cfg.Multipliers,
		SLReductions: cfg.SLReductions,
	}
}

func TestPositionSizer_LotFollowsMultiplier(t *testing.T) {
	s := usecase.NewPositionSizer(testSizing(), testTiers())
	risk := domain.RiskSnapshot{Tier: "small"}

	want := []string{"0.1", "0.2", "0.4", "0.8", "1.6"}
	for level, lot := range want {
		got, err := s.Compute(sizingChain(domain.SideLong), level, risk, d("1.1000"))
		require.NoError(t, err)
		assert.True(t, got.LotSize.Equal(d(lot)), "level %d: got %s want %s", level, got.LotSize, lot)
	}
}

func TestPositionSizer_StopDistanceShrinks(t *testing.T) {
	s := usecase.NewPositionSizer(testSizing(), testTiers())
	got, err := s.Compute(sizingChain(domain.SideLong), 2, domain.RiskSnapshot{Tier: "small"}, d("1.1000"))
	require.NoError(t, err)

	assert.True(t, got.StopPips.Equal(d("75")), got.StopPips.String())
	assert.True(t, got.StopDistance.Equal(d("0.0075")))
	assert.True(t, got.StopPrice.Equal(d("1.0925")), got.StopPrice.String())
	assert.True(t, got.TargetPrice.Equal(d("1.11125")), got.TargetPrice.String())
}

func TestPositionSizer_ShortPrices(t *testing.T) {
	s := usecase.NewPositionSizer(testSizing(), testTiers())
	got, err := s.Compute(sizingChain(domain.SideShort), 0, domain.RiskSnapshot{Tier: "small"}, d("1.1000"))
	require.NoError(t, err)
	assert.True(t, got.StopPrice.Equal(d("1.1100")))
	assert.True(t, got.TargetPrice.Equal(d("1.0850")))
	assert.True(t, got.PotentialLoss(d("100000")).Equal(d("100")))
}

func TestPositionSizer_BaseLotOverride(t *testing.T) {
	s := usecase.NewPositionSizer(testSizing(), testTiers())
	chain := sizingChain(domain.SideLong)
	chain.BaseLot = decimal.NewNullDecimal(d("0.05"))

	got, err := s.Compute(chain, 1, domain.RiskSnapshot{Tier: "unknown"}, d("1.1"))
	require.NoError(t, err)
	assert.True(t, got.LotSize.Equal(d("0.1")))
}

func TestPositionSizer_ConfigurationErrors(t *testing.T) {
	s := usecase.NewPositionSizer(testSizing(), testTiers())
	risk := domain.RiskSnapshot{Tier: "small"}

	_, err := s.Compute(sizingChain(domain.SideLong), 5, risk, d("1.1"))
	assert.ErrorIs(t, err, domain.ErrConfiguration, "beyond max level")

	short := sizingChain(domain.SideLong)
	short.Multipliers = ds("1", "2")
	_, err = s.Compute(short, 3, risk, d("1.1"))
	assert.ErrorIs(t, err, domain.ErrConfiguration, "missing multiplier")

	_, err = s.Compute(sizingChain(domain.SideLong), 0, domain.RiskSnapshot{Tier: "nope"}, d("1.1"))
	assert.ErrorIs(t, err, domain.ErrConfiguration, "unknown tier")

	tiny := testSizing()
	tiny.MinLot = d("1")
	_, err = usecase.NewPositionSizer(tiny, testTiers()).Compute(sizingChain(domain.SideLong), 0, risk, d("1.1"))
	assert.ErrorIs(t, err, domain.ErrConfiguration, "below min lot")
}

func TestPositionSizer_ExposureCap(t *testing.T) {
	cfg := testSizing()
	cfg.MaxExposureLots = d("0.5")
	s := usecase.NewPositionSizer(cfg, testTiers())

	chain := sizingChain(domain.SideLong)
	chain.Levels = []domain.LevelRecord{{Index: 0, LotSize: d("0.1")}, {Index: 1, LotSize: d("0.2")}}

	_, err := s.Compute(chain, 2, domain.RiskSnapshot{Tier: "small"}, d("1.1"))
	assert.ErrorIs(t, err, domain.ErrCapExceeded)
}

func TestRoundToStep(t *testing.T) {
	tests := []struct{ lot, step, want string }{
		{"0.123", "0.01", "0.12"},
		{"0.125", "0.01", "0.13"},
		{"1.6", "0.5", "1.5"},
		{"0.8", "0.001", "0.8"},
	}
	for _, tt := range tests {
		got := usecase.RoundToStep(d(tt.lot), d(tt.step))
		assert.True(t, got.Equal(d(tt.want)), "%s step %s: got %s", tt.lot, tt.step, got)
	}
}
