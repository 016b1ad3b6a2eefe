package domain

import "sort"

// VoterEntry is one voter record in a Snapshot.
type VoterEntry struct {
	ID    ActorID `json:"id"`
	Voter Voter   `json:"voter"`
}

// ProposalEntry is one proposal record in a Snapshot.
type ProposalEntry struct {
	ID       uint64   `json:"id"`
	Proposal Proposal `json:"proposal"`
}

// VotesCastEntry is one voter's history in a Snapshot.
type VotesCastEntry struct {
	Voter       ActorID  `json:"voter"`
	ProposalIDs []uint64 `json:"proposal_ids"`
}

// Snapshot is the external view of a LedgerState: every keyed collection
// flattened into key/value pairs. Entries are sorted by key.
type Snapshot struct {
	Admins     []ActorID        `json:"admins"`
	Voters     []VoterEntry     `json:"voters"`
	Proposals  []ProposalEntry  `json:"proposals"`
	VoteCounts []Tally          `json:"vote_counts"`
	VotesCast  []VotesCastEntry `json:"votes_cast"`
}

// Snapshot flattens s. The result shares no memory with s.
func (s *LedgerState) Snapshot() Snapshot {
	snap := Snapshot{
		Admins:     append([]ActorID{}, s.Admins...),
		Voters:     make([]VoterEntry, 0, len(s.Voters)),
		Proposals:  make([]ProposalEntry, 0, len(s.Proposals)),
		VoteCounts: make([]Tally, 0, len(s.VoteCounts)),
		VotesCast:  make([]VotesCastEntry, 0, len(s.VotesCast)),
	}
	for id, v := range s.Voters {
		snap.Voters = append(snap.Voters, VoterEntry{ID: id, Voter: v})
	}
	sort.Slice(snap.Voters, func(i, j int) bool { return snap.Voters[i].ID.Less(snap.Voters[j].ID) })

	for id, p := range s.Proposals {
		snap.Proposals = append(snap.Proposals, ProposalEntry{ID: id, Proposal: p})
	}
	sort.Slice(snap.Proposals, func(i, j int) bool { return snap.Proposals[i].ID < snap.Proposals[j].ID })

	for id, votes := range s.VoteCounts {
		snap.VoteCounts = append(snap.VoteCounts, Tally{ProposalID: id, Votes: votes})
	}
	sort.Slice(snap.VoteCounts, func(i, j int) bool { return snap.VoteCounts[i].ProposalID < snap.VoteCounts[j].ProposalID })

	for voter, ids := range s.VotesCast {
		snap.VotesCast = append(snap.VotesCast, VotesCastEntry{Voter: voter, ProposalIDs: append([]uint64{}, ids...)})
	}
	sort.Slice(snap.VotesCast, func(i, j int) bool { return snap.VotesCast[i].Voter.Less(snap.VotesCast[j].Voter) })

	return snap
}

// RestoreSnapshot rebuilds the LedgerState a Snapshot was taken from.
func RestoreSnapshot(snap Snapshot) *LedgerState {
	s := NewLedgerState()
	s.Admins = append(s.Admins, snap.Admins...)
	for _, e := range snap.Voters {
		s.Voters[e.ID] = e.Voter
	}
	for _, e := range snap.Proposals {
		s.Proposals[e.ID] = e.Proposal
	}
	for _, t := range snap.VoteCounts {
		s.VoteCounts[t.ProposalID] = t.Votes
	}
	for _, e := range snap.VotesCast {
		s.VotesCast[e.Voter] = append([]uint64{}, e.ProposalIDs...)
	}
	return s
}
