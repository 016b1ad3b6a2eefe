package postgres

import (
	"fmt"

	"github.com/jaakkos/dao-ledger/internal/domain"
)

// Unsigned IDs and tallies are stored as bit-identical BIGINT values.

type adminModel struct {
	Position int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	Actor    string `gorm:"column:actor;not null"`
}

func (adminModel) TableName() string { return "ledger_admins" }

type voterModel struct {
	Actor    string `gorm:"column:actor;primaryKey"`
	Name     string `gorm:"column:name;not null"`
	Eligible bool   `gorm:"column:eligible;not null"`
}

func (voterModel) TableName() string { return "ledger_voters" }

type proposalModel struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Description string `gorm:"column:description;not null"`
}

func (proposalModel) TableName() string { return "ledger_proposals" }

type voteCountModel struct {
	ProposalID int64 `gorm:"column:proposal_id;primaryKey;autoIncrement:false"`
	Votes      int64 `gorm:"column:votes;not null"`
}

func (voteCountModel) TableName() string { return "ledger_vote_counts" }

type voteCastModel struct {
	Voter      string `gorm:"column:voter;primaryKey"`
	Seq        int    `gorm:"column:seq;primaryKey;autoIncrement:false"`
	ProposalID int64  `gorm:"column:proposal_id;not null;index"`
}

func (voteCastModel) TableName() string { return "ledger_votes_cast" }

func models() []any {
	return []any{&adminModel{}, &voterModel{}, &proposalModel{}, &voteCountModel{}, &voteCastModel{}}
}

type ledgerRows struct {
	admins    []adminModel
	voters    []voterModel
	proposals []proposalModel
	counts    []voteCountModel
	history   []voteCastModel
}

func toModels(state *domain.LedgerState) ledgerRows {
	var rows ledgerRows
	for i, a := range state.Admins {
		rows.admins = append(rows.admins, adminModel{Position: i, Actor: a.String()})
	}
	for id, v := range state.Voters {
		rows.voters = append(rows.voters, voterModel{Actor: id.String(), Name: v.Name, Eligible: v.Eligible})
	}
	for id, p := range state.Proposals {
		rows.proposals = append(rows.proposals, proposalModel{ID: int64(id), Description: p.Description})
	}
	for id, votes := range state.VoteCounts {
		rows.counts = append(rows.counts, voteCountModel{ProposalID: int64(id), Votes: int64(votes)})
	}
	for voter, ids := range state.VotesCast {
		for seq, id := range ids {
			rows.history = append(rows.history, voteCastModel{Voter: voter.String(), Seq: seq, ProposalID: int64(id)})
		}
	}
	return rows
}

func fromModels(admins []adminModel, voters []voterModel, proposals []proposalModel, counts []voteCountModel, history []voteCastModel) (*domain.LedgerState, error) {
	state := domain.NewLedgerState()
	for _, a := range admins {
		id, err := domain.ParseActorID(a.Actor)
		if err != nil {
			return nil, fmt.Errorf("admins: %w", err)
		}
		state.Admins = append(state.Admins, id)
	}
	for _, v := range voters {
		id, err := domain.ParseActorID(v.Actor)
		if err != nil {
			return nil, fmt.Errorf("voters: %w", err)
		}
		state.Voters[id] = domain.Voter{Name: v.Name, Eligible: v.Eligible}
	}
	for _, p := range proposals {
		state.Proposals[uint64(p.ID)] = domain.Proposal{ID: uint64(p.ID), Description: p.Description}
	}
	for _, c := range counts {
		state.VoteCounts[uint64(c.ProposalID)] = uint64(c.Votes)
	}
	for _, h := range history {
		id, err := domain.ParseActorID(h.Voter)
		if err != nil {
			return nil, fmt.Errorf("votes_cast: %w", err)
		}
		state.VotesCast[id] = append(state.VotesCast[id], uint64(h.ProposalID))
	}
	return state, nil
}
