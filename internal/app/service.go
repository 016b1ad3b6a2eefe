package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// Summary is a compact view of the ledger used by notifications and status output.
type Summary struct {
	Revision   uint64        `json:"revision"`
	Voters     int           `json:"voters"`
	Proposals  int           `json:"proposals"`
	TotalVotes uint64        `json:"total_votes"`
	Leader     *domain.Tally `json:"leader,omitempty"`
}

// VotingService is the ledger's operation surface. Every call is one Store
// Run or Query, so each operation is atomic with respect to the others.
type VotingService struct {
	store     *Store
	logger    *log.Logger
	publisher EventPublisher // optional; set via SetPublisher
}

// NewVotingService returns a VotingService over store.
func NewVotingService(store *Store, logger *log.Logger) *VotingService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &VotingService{store: store, logger: logger}
}

// SetPublisher attaches the publisher that receives committed events.
func (v *VotingService) SetPublisher(p EventPublisher) {
	v.publisher = p
}

// Store returns the underlying store.
func (v *VotingService) Store() *Store { return v.store }

// RegisterVoter inserts or overwrites the voter record for actor. The voter is always eligible afterwards.
func (v *VotingService) RegisterVoter(ctx context.Context, actor domain.ActorID, name string) error {
	rev, err := v.store.Commit(func(state *domain.LedgerState) error {
		state.Voters[actor] = domain.Voter{Name: name, Eligible: true}
		return nil
	})
	if err != nil {
		return fmt.Errorf("register voter: %w", err)
	}
	v.logger.Printf("Voter registered: %s (%s)", actor, name)

	ev := NewEvent(EventVoterRegistered)
	ev.Revision = rev
	ev.Voter = actor.String()
	ev.Name = name
	v.publish(ctx, ev)
	return nil
}

// RegisterProposal inserts or overwrites a proposal and resets its tally to zero.
// Voter histories are left alone, so earlier voters cannot vote on it again.
func (v *VotingService) RegisterProposal(ctx context.Context, id uint64, description string) error {
	rev, err := v.store.Commit(func(state *domain.LedgerState) error {
		state.Proposals[id] = domain.Proposal{ID: id, Description: description}
		state.VoteCounts[id] = 0
		return nil
	})
	if err != nil {
		return fmt.Errorf("register proposal: %w", err)
	}
	v.logger.Printf("Proposal %d registered", id)

	ev := NewEvent(EventProposalRegistered)
	ev.Revision = rev
	ev.ProposalID = id
	ev.Description = description
	v.publish(ctx, ev)
	return nil
}

// Vote records voter's vote on proposalID. Only VoteAccepted changes the ledger;
// the other outcomes are reported without error.
func (v *VotingService) Vote(ctx context.Context, voter domain.ActorID, proposalID uint64) (domain.VoteOutcome, error) {
	var (
		outcome domain.VoteOutcome
		votes   uint64
	)
	rev, err := v.store.Commit(func(state *domain.LedgerState) error {
		outcome = castVote(state, voter, proposalID)
		if !outcome.Accepted() {
			return ErrNoChange
		}
		votes = state.VoteCounts[proposalID]
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("vote: %w", err)
	}
	if !outcome.Accepted() {
		v.logger.Printf("Vote by %s on proposal %d not counted: %s", voter, proposalID, outcome)
		return outcome, nil
	}
	v.logger.Printf("Vote by %s on proposal %d counted (tally %d)", voter, proposalID, votes)

	ev := NewEvent(EventVoteCast)
	ev.Revision = rev
	ev.Voter = voter.String()
	ev.ProposalID = proposalID
	ev.Votes = votes
	v.publish(ctx, ev)
	return outcome, nil
}

// castVote applies one vote to state. It panics if the proposal exists without
// a tally entry, which no operation can produce.
func castVote(state *domain.LedgerState, voter domain.ActorID, proposalID uint64) domain.VoteOutcome {
	info, known := state.Voters[voter]
	switch {
	case !known:
		return domain.VoteUnknownVoter
	case !info.Eligible:
		return domain.VoteIneligible
	case state.HasVoted(voter, proposalID):
		return domain.VoteAlreadyVoted
	}
	if _, ok := state.Proposals[proposalID]; !ok {
		return domain.VoteUnknownProposal
	}
	count, ok := state.VoteCounts[proposalID]
	if !ok {
		panic(fmt.Sprintf("ledger: proposal %d has no tally entry", proposalID))
	}
	state.VoteCounts[proposalID] = count + 1
	state.VotesCast[voter] = append(state.VotesCast[voter], proposalID)
	return domain.VoteAccepted
}

// RemoveVoter deletes the voter and its history. Tallies it contributed to are kept.
// Removing an unknown voter is a no-op.
func (v *VotingService) RemoveVoter(ctx context.Context, id domain.ActorID) error {
	removed := false
	rev, err := v.store.Commit(func(state *domain.LedgerState) error {
		_, known := state.Voters[id]
		_, hasHistory := state.VotesCast[id]
		if !known && !hasHistory {
			return ErrNoChange
		}
		delete(state.Voters, id)
		delete(state.VotesCast, id)
		removed = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove voter: %w", err)
	}
	if !removed {
		return nil
	}
	v.logger.Printf("Voter removed: %s", id)

	ev := NewEvent(EventVoterRemoved)
	ev.Revision = rev
	ev.Voter = id.String()
	v.publish(ctx, ev)
	return nil
}

// Proposals returns a copy of every proposal, ordered by ID.
func (v *VotingService) Proposals() []domain.Proposal {
	var out []domain.Proposal
	_ = v.store.Query(func(state *domain.LedgerState) error {
		out = state.SortedProposals()
		return nil
	})
	return out
}

// VoteCounts returns a copy of the proposal ID to tally mapping.
func (v *VotingService) VoteCounts() map[uint64]uint64 {
	var out map[uint64]uint64
	_ = v.store.Query(func(state *domain.LedgerState) error {
		out = make(map[uint64]uint64, len(state.VoteCounts))
		for id, n := range state.VoteCounts {
			out[id] = n
		}
		return nil
	})
	return out
}

// VoteCountsAt is VoteCounts together with the revision the counts were read at.
func (v *VotingService) VoteCountsAt() (counts map[uint64]uint64, revision uint64) {
	_ = v.store.Query(func(state *domain.LedgerState) error {
		counts = make(map[uint64]uint64, len(state.VoteCounts))
		for id, n := range state.VoteCounts {
			counts[id] = n
		}
		revision = v.store.revision
		return nil
	})
	return counts, revision
}

// VoterInfo returns the voter record for id; ok is false if it is not registered.
func (v *VotingService) VoterInfo(id domain.ActorID) (voter domain.Voter, ok bool) {
	_ = v.store.Query(func(state *domain.LedgerState) error {
		voter, ok = state.Voters[id]
		return nil
	})
	return voter, ok
}

// VoterHistory returns the voter record for id and the proposals it voted on,
// read together. ok is false if the voter is not registered.
func (v *VotingService) VoterHistory(id domain.ActorID) (voter domain.Voter, votedOn []uint64, ok bool) {
	_ = v.store.Query(func(state *domain.LedgerState) error {
		voter, ok = state.Voters[id]
		if ok {
			votedOn = append([]uint64{}, state.VotesCast[id]...)
		}
		return nil
	})
	return voter, votedOn, ok
}

// ConcludeVoting returns the proposal with the highest tally, ties going to the
// lowest proposal ID. ok is false when no proposals exist.
func (v *VotingService) ConcludeVoting() (leader domain.Tally, ok bool) {
	_ = v.store.Query(func(state *domain.LedgerState) error {
		leader, ok = state.Leader()
		return nil
	})
	return leader, ok
}

// Snapshot returns the flattened external view of the ledger.
func (v *VotingService) Snapshot() domain.Snapshot {
	var snap domain.Snapshot
	_ = v.store.Query(func(state *domain.LedgerState) error {
		snap = state.Snapshot()
		return nil
	})
	return snap
}

// Summary returns counts, total votes and the current leader.
func (v *VotingService) Summary() Summary {
	var sum Summary
	_ = v.store.Query(func(state *domain.LedgerState) error {
		sum = Summary{
			Revision:   v.store.revision,
			Voters:     len(state.Voters),
			Proposals:  len(state.Proposals),
			TotalVotes: state.TotalVotes(),
		}
		if leader, ok := state.Leader(); ok {
			sum.Leader = &leader
		}
		return nil
	})
	return sum
}

func (v *VotingService) publish(ctx context.Context, ev Event) {
	if v.publisher == nil {
		return
	}
	if err := v.publisher.Publish(ctx, ev); err != nil {
		v.logger.Printf("Warning: publish %s event %s failed: %v", ev.Type, ev.ID, err)
	}
}
