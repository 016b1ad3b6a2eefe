package app

import (
	"github.com/jaakkos/dao-ledger/internal/domain"
)

// Truncate truncates s to max runes (Unicode-safe).
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// EnsureStateMaps replaces nil collections left by a repository load with empty ones.
func EnsureStateMaps(state *domain.LedgerState) {
	if state == nil {
		return
	}
	if state.Admins == nil {
		state.Admins = []domain.ActorID{}
	}
	if state.Voters == nil {
		state.Voters = make(map[domain.ActorID]domain.Voter)
	}
	if state.Proposals == nil {
		state.Proposals = make(map[uint64]domain.Proposal)
	}
	if state.VoteCounts == nil {
		state.VoteCounts = make(map[uint64]uint64)
	}
	if state.VotesCast == nil {
		state.VotesCast = make(map[domain.ActorID][]uint64)
	}
}
