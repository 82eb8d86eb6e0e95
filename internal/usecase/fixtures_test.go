package usecase_test

import "github.com/vitos/crypto_reentry_chain/internal/usecase"

var (
	d               = usecase.Dec
	ds              = usecase.Decs
	testChainConfig = usecase.FixtureChainConfig
	testSizing      = usecase.FixtureSizing
	testTiers       = usecase.FixtureTiers
	testTriggers    = usecase.FixtureTriggers
)
