package storage

import (
	"fmt"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Open returns the chain repository for the configured driver.
func Open(driver, path string, readOnly bool) (domain.ChainRepository, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(path)
	case DriverBadger:
		return NewBadgerStore(BadgerOptions{Path: path, ReadOnly: readOnly})
	}
	return nil, fmt.Errorf("unknown storage driver %q: %w", driver, domain.ErrConfiguration)
}
