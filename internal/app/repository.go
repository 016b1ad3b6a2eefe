// Package app implements the voting ledger use cases and defines ports
// (state repository, policy, event publisher).
package app

import (
	"github.com/jaakkos/dao-ledger/internal/domain"
)

// StateRepository loads and saves the full ledger state.
// Implementations: internal/repository/sqlite, internal/repository/postgres.
type StateRepository interface {
	Load() (*domain.LedgerState, error)
	Save(*domain.LedgerState) error
}
