// Package domain holds voting ledger entities and aggregate state.
// It has no dependencies on other packages.
package domain

import "sort"

// Voter is a registered participant. Registration always sets Eligible.
type Voter struct {
	Name     string `json:"name"`
	Eligible bool   `json:"eligible"`
}

// Proposal is a ballot item keyed by its caller-supplied ID.
type Proposal struct {
	ID          uint64 `json:"id"`
	Description string `json:"description"`
}

// Tally is the vote count of a single proposal.
type Tally struct {
	ProposalID uint64 `json:"proposal_id"`
	Votes      uint64 `json:"votes"`
}

// LedgerState is the full voting ledger.
// The key set of VoteCounts always equals the key set of Proposals.
// VotesCast records, per voter, the proposals that voter has already voted on.
type LedgerState struct {
	Admins     []ActorID            `json:"admins"`
	Voters     map[ActorID]Voter    `json:"voters"`
	Proposals  map[uint64]Proposal  `json:"proposals"`
	VoteCounts map[uint64]uint64    `json:"vote_counts"`
	VotesCast  map[ActorID][]uint64 `json:"votes_cast"`
}

// NewLedgerState returns an empty LedgerState with all collections initialized.
func NewLedgerState() *LedgerState {
	return &LedgerState{
		Admins:     []ActorID{},
		Voters:     make(map[ActorID]Voter),
		Proposals:  make(map[uint64]Proposal),
		VoteCounts: make(map[uint64]uint64),
		VotesCast:  make(map[ActorID][]uint64),
	}
}

// Clone returns a deep copy of s.
func (s *LedgerState) Clone() *LedgerState {
	c := &LedgerState{
		Admins:     append([]ActorID{}, s.Admins...),
		Voters:     make(map[ActorID]Voter, len(s.Voters)),
		Proposals:  make(map[uint64]Proposal, len(s.Proposals)),
		VoteCounts: make(map[uint64]uint64, len(s.VoteCounts)),
		VotesCast:  make(map[ActorID][]uint64, len(s.VotesCast)),
	}
	for k, v := range s.Voters {
		c.Voters[k] = v
	}
	for k, v := range s.Proposals {
		c.Proposals[k] = v
	}
	for k, v := range s.VoteCounts {
		c.VoteCounts[k] = v
	}
	for k, v := range s.VotesCast {
		c.VotesCast[k] = append([]uint64{}, v...)
	}
	return c
}

// HasVoted reports whether voter's history already contains proposalID.
func (s *LedgerState) HasVoted(voter ActorID, proposalID uint64) bool {
	for _, id := range s.VotesCast[voter] {
		if id == proposalID {
			return true
		}
	}
	return false
}

// SortedProposals returns a copy of all proposals ordered by ID.
func (s *LedgerState) SortedProposals() []Proposal {
	out := make([]Proposal, 0, len(s.Proposals))
	for _, p := range s.Proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leader returns the proposal with the highest tally. Ties go to the lowest proposal ID.
// ok is false when no proposals are registered.
func (s *LedgerState) Leader() (leader Tally, ok bool) {
	for id, votes := range s.VoteCounts {
		if !ok || votes > leader.Votes || (votes == leader.Votes && id < leader.ProposalID) {
			leader = Tally{ProposalID: id, Votes: votes}
			ok = true
		}
	}
	return leader, ok
}

// TotalVotes sums every proposal's tally.
func (s *LedgerState) TotalVotes() uint64 {
	var total uint64
	for _, v := range s.VoteCounts {
		total += v
	}
	return total
}
