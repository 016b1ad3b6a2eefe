package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/policy"
	"github.com/jaakkos/dao-ledger/internal/repository"
)

// ledgerHandle bundles what the commands need from a persisted ledger.
type ledgerHandle struct {
	repo  app.StateRepository
	store *app.Store
	svc   *app.VotingService
}

// openLedger opens the configured repository and restores the ledger from it.
// The memory driver starts from an empty ledger.
func openLedger(pol *policy.Policy, logger *log.Logger) (*ledgerHandle, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	st := pol.Storage()
	repo, err := repository.NewStateRepository(st.Driver, pol.StorageLocation())
	if err != nil {
		return nil, fmt.Errorf("state repository: %w", err)
	}
	store := app.NewStore(repo, pol, logger)
	if err := store.Restore(); err != nil {
		closeRepo(repo, logger)
		return nil, fmt.Errorf("restore ledger: %w", err)
	}
	return &ledgerHandle{repo: repo, store: store, svc: app.NewVotingService(store, logger)}, nil
}

func (l *ledgerHandle) Close(logger *log.Logger) {
	closeRepo(l.repo, logger)
}

func closeRepo(repo app.StateRepository, logger *log.Logger) {
	if c, ok := repo.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil && logger != nil {
			logger.Printf("Warning: close state repository: %v", err)
		}
	}
}
