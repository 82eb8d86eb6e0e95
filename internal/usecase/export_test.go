package usecase

// Fixtures shared with the usecase_test package.
var (
	Dec                = d
	Decs               = ds
	FixtureChainConfig = testChainConfig
	FixtureSizing      = testSizing
	FixtureTiers       = testTiers
	FixtureTriggers    = testTriggers
)
