// Package repository selects the StateRepository implementation for a storage driver.
package repository

import (
	"fmt"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/policy"
	"github.com/jaakkos/dao-ledger/internal/repository/postgres"
	"github.com/jaakkos/dao-ledger/internal/repository/sqlite"
)

var (
	_ app.StateRepository = (*sqlite.Store)(nil)
	_ app.StateRepository = (*postgres.Store)(nil)
)

// NewStateRepository returns a StateRepository for driver. location is the
// state file path for sqlite and the DSN for postgres (see policy.StorageLocation).
// The memory driver returns a nil repository: the store then keeps state in process only.
func NewStateRepository(driver, location string) (app.StateRepository, error) {
	switch driver {
	case "", policy.DriverSQLite:
		store, err := sqlite.New(location)
		if err != nil {
			return nil, err
		}
		return store, nil
	case policy.DriverPostgres:
		store, err := postgres.New(location)
		if err != nil {
			return nil, err
		}
		return store, nil
	case policy.DriverMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
